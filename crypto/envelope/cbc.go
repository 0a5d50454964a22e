package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"

	"github.com/pkg/errors"
)

var (
	errNotAligned = errors.New("ciphertext is not a positive multiple of the block size")
	errBadPadding = errors.New("invalid padding")
)

// seal pads plaintext and encrypts it with AES-256-CBC.
func seal(key Key, iv [IVSize]byte, plaintext []byte) []byte {
	block, err := aes.NewCipher(key.b[:])
	if err != nil {
		// aes.NewCipher only fails on a bad key size, which Key rules out.
		panic(err)
	}

	buf := pad(plaintext, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(buf, buf)
	return buf
}

// open decrypts ciphertext with AES-256-CBC and removes the padding.
func open(key Key, iv [IVSize]byte, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, newError(DecryptionFailure, errNotAligned)
	}

	block, err := aes.NewCipher(key.b[:])
	if err != nil {
		panic(err)
	}

	buf := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv[:]).CryptBlocks(buf, ciphertext)

	plaintext, err := unpad(buf, aes.BlockSize)
	if err != nil {
		return nil, newError(DecryptionFailure, err)
	}
	return plaintext, nil
}

// pad returns a new slice holding b with PKCS#7 padding appended. A full
// block of padding is added when len(b) is already aligned.
func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// unpad strips PKCS#7 padding. Every pad byte is checked.
func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errNotAligned
	}

	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, errBadPadding
	}

	want := make([]byte, n)
	for i := range want {
		want[i] = byte(n)
	}
	if subtle.ConstantTimeCompare(b[len(b)-n:], want) != 1 {
		return nil, errBadPadding
	}
	return b[:len(b)-n], nil
}
