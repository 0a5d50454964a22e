// Package envelope encrypts JSON values into a small text envelope that can be
// passed through a backend which never sees plaintext.
//
// The wire format is shared with other clients, so it must not change:
//
//	<ivHex>:<cipherHex>
//
// ivHex is 16 random bytes as 32 lowercase hex characters. cipherHex is the
// AES-256-CBC encryption, with PKCS#7 padding, of the UTF-8 JSON encoding of
// the value. For an N byte plaintext it is 32*ceil((N+1)/16) hex characters.
//
// All parties hold the same 32 byte key, distributed out of band as 64 hex
// characters. Every function takes the key explicitly; the package holds no
// state and is safe for concurrent use.
//
// The envelope is not authenticated. CBC with PKCS#7 detects most corruption
// through the padding check, but it cannot tell a wrong key from tampered
// ciphertext, and it offers no integrity guarantee. Do not expose the
// distinction between failure kinds to untrusted callers; EncryptData and
// DecryptData collapse them to a boolean for that reason.
package envelope

import (
	"crypto/aes"
	"strings"

	"github.com/pkg/errors"
)

// IVSize is the length of the CBC initialization vector in bytes.
const IVSize = aes.BlockSize

const separator = ":"

// Envelope represents one encrypted message: the IV it was encrypted with and
// the padded ciphertext.
type Envelope struct {
	IV         [IVSize]byte
	Ciphertext []byte
}

// String returns the wire form of the envelope.
func (e *Envelope) String() string {
	return EncodeHex(e.IV[:]) + separator + EncodeHex(e.Ciphertext)
}

// ParseEnvelope parses the wire form. It checks framing only: the ciphertext
// is not checked for block alignment until it is decrypted.
func ParseEnvelope(s string) (*Envelope, error) {
	parts := strings.Split(s, separator)
	if len(parts) != 2 {
		return nil, newError(MalformedEnvelope, errors.Errorf("expected 2 fields, got %d", len(parts)))
	}
	if parts[0] == "" || parts[1] == "" {
		return nil, newError(MalformedEnvelope, errors.Errorf("empty field"))
	}

	iv, err := DecodeHex(parts[0])
	if err != nil {
		return nil, newError(MalformedEnvelope, err)
	}
	if len(iv) != IVSize {
		return nil, newError(MalformedEnvelope, errors.Errorf("iv must be %d bytes, got %d", IVSize, len(iv)))
	}

	ciphertext, err := DecodeHex(parts[1])
	if err != nil {
		return nil, newError(MalformedEnvelope, err)
	}

	e := &Envelope{Ciphertext: ciphertext}
	copy(e.IV[:], iv)
	return e, nil
}
