package envelope_test

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"log"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/remind101/hexenvelope/crypto/envelope"
	"github.com/remind101/hexenvelope/logger"
	"github.com/remind101/hexenvelope/reporter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reported struct {
	level string
	err   error
}

func newTestContext() (context.Context, *bytes.Buffer, *[]reported) {
	b := new(bytes.Buffer)
	var calls []reported

	ctx := logger.WithLogger(context.Background(), logger.New(log.New(b, "", 0), logger.DEBUG))
	ctx = reporter.WithReporter(ctx, reporter.ReporterFunc(func(ctx context.Context, level string, err error) error {
		calls = append(calls, reported{level, err})
		return nil
	}))
	return ctx, b, &calls
}

// sealRaw encrypts plaintext as is, without JSON encoding it first.
func sealRaw(t *testing.T, keyHex string, plaintext []byte) string {
	key, err := hex.DecodeString(keyHex)
	require.NoError(t, err)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	n := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append(append([]byte{}, plaintext...), bytes.Repeat([]byte{byte(n)}, n)...)

	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out)
}

func TestEncryptDataDecryptData(t *testing.T) {
	ctx, out, calls := newTestContext()

	s, ok := envelope.EncryptData(ctx, map[string]interface{}{"a": 1}, zeroKey)
	require.True(t, ok)
	assert.Regexp(t, wireFormat, s)

	v, ok := envelope.DecryptData(ctx, s, zeroKey)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, v)

	assert.Empty(t, out.String())
	assert.Empty(t, *calls)
}

func TestDecryptDataWrongKey(t *testing.T) {
	ctx, _, calls := newTestContext()

	s, ok := envelope.EncryptData(ctx, map[string]interface{}{"a": 1}, zeroKey)
	require.True(t, ok)

	v, ok := envelope.DecryptData(ctx, s, oneKey)
	assert.False(t, ok)
	assert.Nil(t, v)

	require.Len(t, *calls, 1)
	assert.Equal(t, "error", (*calls)[0].level)
	assert.Contains(t, (*calls)[0].err.Error(), "envelope: op=decrypt kind=")
}

func TestEncryptDataFailures(t *testing.T) {
	ctx, _, calls := newTestContext()

	s, ok := envelope.EncryptData(ctx, "x", "short")
	assert.False(t, ok)
	assert.Equal(t, "", s)

	s, ok = envelope.EncryptData(ctx, "x", strings.Repeat("00", 31))
	assert.False(t, ok)
	assert.Equal(t, "", s)

	require.Len(t, *calls, 2)
	assert.Equal(t, "envelope: op=encrypt kind=malformed_hex", (*calls)[0].err.Error())
	assert.Equal(t, "envelope: op=encrypt kind=invalid_key_length", (*calls)[1].err.Error())
	assert.Equal(t, envelope.MalformedHex, envelope.KindOf((*calls)[0].err))
	assert.True(t, errors.Is((*calls)[1].err, envelope.InvalidKeyLength))
}

func TestDecryptDataMalformed(t *testing.T) {
	ctx, _, calls := newTestContext()

	for _, in := range []string{"abcd", "ab:cd:ef"} {
		v, ok := envelope.DecryptData(ctx, in, zeroKey)
		assert.False(t, ok)
		assert.Nil(t, v)
	}

	require.Len(t, *calls, 2)
	for _, c := range *calls {
		assert.Equal(t, envelope.MalformedEnvelope, envelope.KindOf(c.err))
	}
}

func TestDecryptDataDoesNotLeakPlaintext(t *testing.T) {
	ctx, _, calls := newTestContext()

	v, ok := envelope.DecryptData(ctx, sealRaw(t, zeroKey, []byte("xsecret")), zeroKey)
	assert.False(t, ok)
	assert.Nil(t, v)

	require.Len(t, *calls, 1)
	err := (*calls)[0].err
	assert.Equal(t, envelope.DecodingFailure, envelope.KindOf(err))
	assert.Equal(t, "envelope: op=decrypt kind=decoding_failure", err.Error())
	assert.NotContains(t, err.Error(), "x")
}

func TestDecryptDataLogsOnce(t *testing.T) {
	b := new(bytes.Buffer)
	ctx := logger.WithLogger(context.Background(), logger.New(log.New(b, "", 0), logger.DEBUG))
	ctx = reporter.WithReporter(ctx, reporter.NewLogReporter())

	_, ok := envelope.DecryptData(ctx, sealRaw(t, zeroKey, []byte("xsecret")), zeroKey)
	assert.False(t, ok)

	assert.Equal(t, 1, strings.Count(b.String(), "\n"))
	assert.Contains(t, b.String(), `status=error  error="envelope: op=decrypt kind=decoding_failure"`)
	assert.NotContains(t, b.String(), "secret")
}

func TestDecryptDataInto(t *testing.T) {
	ctx, _, _ := newTestContext()

	s, ok := envelope.EncryptData(ctx, []string{"a", "b"}, zeroKey)
	require.True(t, ok)

	var got []string
	require.True(t, envelope.DecryptDataInto(ctx, s, zeroKey, &got))
	assert.Equal(t, []string{"a", "b"}, got)

	var n int
	assert.False(t, envelope.DecryptDataInto(ctx, s, zeroKey, &n))
}
