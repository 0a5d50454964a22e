package envelope

// KeySize is the length of an AES-256 key in bytes.
const KeySize = 32

// Key is a 256 bit AES key. The zero Key is never returned by ParseKey.
//
// A Key is a value: it is parsed per call from configuration and dropped
// when the call returns. Nothing in this package keeps one around.
type Key struct {
	b [KeySize]byte
}

// ParseKey decodes a 64 character hex string into a Key.
func ParseKey(hexText string) (Key, error) {
	b, err := DecodeHex(hexText)
	if err != nil {
		return Key{}, err
	}
	defer zero(b)

	if len(b) != KeySize {
		return Key{}, newError(InvalidKeyLength, &KeyLengthError{Expected: KeySize, Actual: len(b)})
	}

	var k Key
	copy(k.b[:], b)
	return k, nil
}

// Bytes returns a copy of the raw key.
func (k Key) Bytes() []byte {
	b := make([]byte, KeySize)
	copy(b, k.b[:])
	return b
}

// String never prints key material.
func (k Key) String() string {
	return "envelope.Key(redacted)"
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
