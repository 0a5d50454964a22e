package envelope

import "encoding/hex"

// EncodeHex returns the lowercase hex encoding of b. The result is always
// 2*len(b) characters.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeHex decodes s, which must have even length and contain only hex
// digits in either case. Anything else is a MalformedHex error; input is
// never truncated or partially decoded.
func DecodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, newError(MalformedHex, hex.ErrLength)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, newError(MalformedHex, err)
	}
	return b, nil
}
