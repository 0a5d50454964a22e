package envelope_test

import (
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/remind101/hexenvelope/crypto/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	zeroKey = strings.Repeat("00", 32)
	oneKey  = strings.Repeat("11", 32)

	wireFormat = regexp.MustCompile(`^[0-9a-f]{32}:[0-9a-f]+$`)
)

func TestEncryptDecrypt(t *testing.T) {
	s, err := envelope.Encrypt(map[string]interface{}{"a": 1}, zeroKey)
	require.NoError(t, err)
	assert.Regexp(t, wireFormat, s)

	v, err := envelope.Decrypt(s, zeroKey)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, v)
}

func TestRoundTrip(t *testing.T) {
	values := []interface{}{
		nil,
		true,
		false,
		float64(0),
		float64(-12.5),
		"",
		"hello",
		"汉字 and emoji 🔒",
		"<script>&</script>",
		[]interface{}{},
		[]interface{}{float64(1), "two", nil, []interface{}{true}},
		map[string]interface{}{},
		map[string]interface{}{
			"email":       "admin@example.com",
			"password":    "hunter22",
			"store_limit": float64(10),
			"nested":      map[string]interface{}{"role": "admin"},
		},
		strings.Repeat("x", 4096),
	}

	for _, v := range values {
		s, err := envelope.Encrypt(v, oneKey)
		require.NoError(t, err, "%#v", v)
		assert.Regexp(t, wireFormat, s)

		got, err := envelope.Decrypt(s, oneKey)
		require.NoError(t, err, "%#v", v)
		assert.Equal(t, v, got)
	}
}

func TestDecryptInto(t *testing.T) {
	type login struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	s, err := envelope.Encrypt(login{Email: "a@b.co", Password: "secret"}, zeroKey)
	require.NoError(t, err)

	var got login
	require.NoError(t, envelope.DecryptInto(s, zeroKey, &got))
	assert.Equal(t, login{Email: "a@b.co", Password: "secret"}, got)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s, err := envelope.Encrypt(map[string]interface{}{"a": 1}, zeroKey)
		require.NoError(t, err)
		require.False(t, seen[s], "envelope repeated at iteration %d", i)
		seen[s] = true
	}
}

func TestWireLength(t *testing.T) {
	for n := 0; n < 50; n++ {
		// A JSON string of n characters is n+2 bytes.
		s, err := envelope.Encrypt(strings.Repeat("a", n), zeroKey)
		require.NoError(t, err)

		parts := strings.Split(s, ":")
		require.Len(t, parts, 2)
		assert.Len(t, parts[0], 32)
		assert.Len(t, parts[1], 32*((n+2)/16+1), "plaintext length %d", n+2)
	}
}

func TestFixedIV(t *testing.T) {
	var iv [envelope.IVSize]byte
	for i := range iv {
		iv[i] = byte(i)
	}
	c := &envelope.Cipher{GenerateIV: func() ([envelope.IVSize]byte, error) { return iv, nil }}

	a, err := c.Encrypt(map[string]interface{}{"a": 1}, zeroKey)
	require.NoError(t, err)
	b, err := c.Encrypt(map[string]interface{}{"a": 1}, zeroKey)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "000102030405060708090a0b0c0d0e0f:"))
	assert.Equal(t, a, b)

	e, err := c.Seal(map[string]interface{}{"a": 1}, zeroKey)
	require.NoError(t, err)
	assert.Equal(t, a, e.String())
	assert.Len(t, e.Ciphertext, 16)
}

func TestEncryptInvalidKey(t *testing.T) {
	_, err := envelope.Encrypt("x", strings.Repeat("00", 31))
	assert.True(t, errors.Is(err, envelope.InvalidKeyLength))

	_, err = envelope.Encrypt("x", strings.Repeat("00", 33))
	assert.True(t, errors.Is(err, envelope.InvalidKeyLength))

	_, err = envelope.Encrypt("x", zeroKey)
	assert.NoError(t, err)
}

func TestEncryptEncodingFailure(t *testing.T) {
	_, err := envelope.Encrypt(make(chan int), zeroKey)
	assert.Equal(t, envelope.EncodingFailure, envelope.KindOf(err))
}

func TestEncryptEntropyFailure(t *testing.T) {
	c := &envelope.Cipher{GenerateIV: func() ([envelope.IVSize]byte, error) {
		return [envelope.IVSize]byte{}, errors.New("no entropy")
	}}

	s, err := c.Encrypt("x", zeroKey)
	assert.Equal(t, "", s)
	assert.True(t, errors.Is(err, envelope.EntropyFailure))
}

func TestDecryptMalformedEnvelope(t *testing.T) {
	good, err := envelope.Encrypt("x", zeroKey)
	require.NoError(t, err)
	parts := strings.Split(good, ":")

	tests := []string{
		"",
		"abcd",
		"ab:cd:ef",
		":",
		parts[0] + ":",
		":" + parts[1],
		good + ":" + parts[1],
		"zz" + parts[0][2:] + ":" + parts[1],
		parts[0] + ":" + parts[1][1:],
		parts[0][2:] + ":" + parts[1],
		parts[0] + "00:" + parts[1],
	}

	for _, in := range tests {
		_, err := envelope.Decrypt(in, zeroKey)
		assert.True(t, errors.Is(err, envelope.MalformedEnvelope), "%q: %v", in, err)
		assert.Equal(t, envelope.MalformedEnvelope, envelope.KindOf(err))
	}
}

func TestDecryptMalformedHexKeepsCause(t *testing.T) {
	_, err := envelope.Decrypt("zz:00", zeroKey)
	assert.Equal(t, envelope.MalformedEnvelope, envelope.KindOf(err))
	assert.True(t, errors.Is(err, envelope.MalformedHex))
}

func TestDecryptUppercase(t *testing.T) {
	s, err := envelope.Encrypt([]interface{}{"up"}, zeroKey)
	require.NoError(t, err)

	v, err := envelope.Decrypt(strings.ToUpper(s), strings.ToUpper(zeroKey))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"up"}, v)
}

func TestDecryptUnalignedCiphertext(t *testing.T) {
	s, err := envelope.Encrypt("x", zeroKey)
	require.NoError(t, err)

	_, err = envelope.Decrypt(s[:len(s)-2], zeroKey)
	assert.True(t, errors.Is(err, envelope.DecryptionFailure))

	_, err = envelope.Decrypt(s+"00", zeroKey)
	assert.True(t, errors.Is(err, envelope.DecryptionFailure))
}

func TestDecryptBitFlip(t *testing.T) {
	s, err := envelope.Encrypt(map[string]interface{}{"a": 1}, zeroKey)
	require.NoError(t, err)

	e, err := envelope.ParseEnvelope(s)
	require.NoError(t, err)
	require.Len(t, e.Ciphertext, 16)

	var decryptionFailures int
	for bit := 0; bit < len(e.Ciphertext)*8; bit++ {
		flipped := &envelope.Envelope{IV: e.IV, Ciphertext: append([]byte{}, e.Ciphertext...)}
		flipped.Ciphertext[bit/8] ^= 1 << uint(bit%8)

		_, err := envelope.Decrypt(flipped.String(), zeroKey)
		require.Error(t, err, "bit %d", bit)
		if errors.Is(err, envelope.DecryptionFailure) {
			decryptionFailures++
		}
	}

	// A flipped bit garbles the whole block, so the pad check fails unless
	// the garbage happens to end in a valid pad.
	assert.True(t, decryptionFailures >= 100, "only %d of 128 flips failed the pad check", decryptionFailures)
}

func TestDecryptWrongKey(t *testing.T) {
	s, err := envelope.Encrypt(map[string]interface{}{"a": 1}, zeroKey)
	require.NoError(t, err)

	_, err = envelope.Decrypt(s, oneKey)
	require.Error(t, err)
	assert.Contains(t, []envelope.Kind{envelope.DecryptionFailure, envelope.DecodingFailure}, envelope.KindOf(err))
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 64)

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := envelope.Encrypt(map[string]interface{}{"i": i}, oneKey)
			if err != nil {
				errs <- err
				return
			}
			v, err := envelope.Decrypt(s, oneKey)
			if err != nil {
				errs <- err
				return
			}
			if got := v.(map[string]interface{})["i"]; got != float64(i) {
				errs <- errors.Errorf("goroutine %d decrypted %v", i, got)
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
