package envelope

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why an envelope operation failed. A Kind is itself an
// error, so callers can match with errors.Is(err, envelope.DecryptionFailure).
type Kind uint8

const (
	// Unknown is returned by KindOf for errors that did not come from this
	// package.
	Unknown Kind = iota

	// InvalidKeyLength means the key did not decode to exactly 32 bytes.
	InvalidKeyLength

	// MalformedHex means a hex string had odd length or a non-hex
	// character.
	MalformedHex

	// MalformedEnvelope means the encoded envelope did not have exactly two
	// nonempty hex fields, or the IV field was not 16 bytes.
	MalformedEnvelope

	// DecryptionFailure means CBC decryption produced a bad pad or the
	// ciphertext was not block aligned. A wrong key, a wrong IV and a
	// tampered ciphertext all look the same.
	DecryptionFailure

	// DecodingFailure means the plaintext was not UTF-8 JSON.
	DecodingFailure

	// EncodingFailure means the value could not be encoded as JSON.
	EncodingFailure

	// EntropyFailure means the secure random source could not produce an
	// IV.
	EntropyFailure
)

var kindNames = map[Kind]string{
	Unknown:           "unknown",
	InvalidKeyLength:  "invalid_key_length",
	MalformedHex:      "malformed_hex",
	MalformedEnvelope: "malformed_envelope",
	DecryptionFailure: "decryption_failure",
	DecodingFailure:   "decoding_failure",
	EncodingFailure:   "encoding_failure",
	EntropyFailure:    "entropy_failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error implements the error interface.
func (k Kind) Error() string {
	return "envelope: " + k.String()
}

// Error is the error type returned by every operation in this package.
type Error struct {
	Kind Kind
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Cause implements the causer interface from github.com/pkg/errors.
func (e *Error) Cause() error {
	return e.Err
}

// Is reports whether target is the Kind of this error.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of the outermost *Error in err's chain, or the
// first Kind in the chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return Unknown
}

// KeyLengthError describes a key that decoded to the wrong number of bytes.
type KeyLengthError struct {
	Expected int
	Actual   int
}

func (e *KeyLengthError) Error() string {
	return fmt.Sprintf("key must be %d bytes, got %d", e.Expected, e.Actual)
}

func newError(k Kind, err error) *Error {
	return &Error{Kind: k, Err: err}
}
