package envelope

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
)

var errInvalidUTF8 = errors.New("plaintext is not valid UTF-8")

// Cipher encrypts and decrypts values into envelopes. The zero value is ready
// to use and draws IVs from crypto/rand.
type Cipher struct {
	// GenerateIV returns a fresh IV. It must be backed by a cryptographically
	// secure source; it exists so tests can pin the IV. Nil means
	// GenerateRandomIV.
	GenerateIV func() ([IVSize]byte, error)
}

// Encrypt encodes v as JSON and encrypts it under keyHex with a fresh IV.
// Encrypting the same value twice gives two different results.
func (c *Cipher) Encrypt(v interface{}, keyHex string) (string, error) {
	e, err := c.Seal(v, keyHex)
	if err != nil {
		return "", err
	}
	return e.String(), nil
}

// Seal is like Encrypt but returns the Envelope instead of its wire form.
func (c *Cipher) Seal(v interface{}, keyHex string) (*Envelope, error) {
	key, err := ParseKey(keyHex)
	if err != nil {
		return nil, err
	}

	plaintext, err := marshal(v)
	if err != nil {
		return nil, newError(EncodingFailure, err)
	}
	defer zero(plaintext)

	genIV := c.GenerateIV
	if genIV == nil {
		genIV = GenerateRandomIV
	}
	iv, err := genIV()
	if err != nil {
		return nil, newError(EntropyFailure, err)
	}

	return &Envelope{IV: iv, Ciphertext: seal(key, iv, plaintext)}, nil
}

// Decrypt decrypts an encoded envelope and decodes the JSON plaintext into a
// generic value: map[string]interface{}, []interface{}, string, float64, bool
// or nil.
func (c *Cipher) Decrypt(encoded, keyHex string) (interface{}, error) {
	var v interface{}
	if err := c.DecryptInto(encoded, keyHex, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecryptInto decrypts an encoded envelope and decodes the JSON plaintext into
// dst, which must be a pointer.
func (c *Cipher) DecryptInto(encoded, keyHex string, dst interface{}) error {
	key, err := ParseKey(keyHex)
	if err != nil {
		return err
	}

	e, err := ParseEnvelope(encoded)
	if err != nil {
		return err
	}

	plaintext, err := open(key, e.IV, e.Ciphertext)
	if err != nil {
		return err
	}
	defer zero(plaintext)

	if !utf8.Valid(plaintext) {
		return newError(DecodingFailure, errInvalidUTF8)
	}
	if err := json.Unmarshal(plaintext, dst); err != nil {
		return newError(DecodingFailure, err)
	}
	return nil
}

// GenerateRandomIV draws an IV from crypto/rand. There is deliberately no
// fallback: an IV from a predictable source breaks CBC confidentiality.
func GenerateRandomIV() ([IVSize]byte, error) {
	var iv [IVSize]byte
	if _, err := io.ReadFull(rand.Reader, iv[:]); err != nil {
		return iv, err
	}
	return iv, nil
}

// marshal encodes v without escaping <, > and &, so the bytes match what a
// JavaScript JSON.stringify peer produces for the same key order.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

var defaultCipher = &Cipher{}

// Encrypt encrypts v under keyHex using a random IV.
func Encrypt(v interface{}, keyHex string) (string, error) {
	return defaultCipher.Encrypt(v, keyHex)
}

// Decrypt decrypts an encoded envelope into a generic value.
func Decrypt(encoded, keyHex string) (interface{}, error) {
	return defaultCipher.Decrypt(encoded, keyHex)
}

// DecryptInto decrypts an encoded envelope into dst.
func DecryptInto(encoded, keyHex string, dst interface{}) error {
	return defaultCipher.DecryptInto(encoded, keyHex, dst)
}
