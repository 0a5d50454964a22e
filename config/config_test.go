package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = strings.Repeat("0f", 32)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	c, err := FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 60*time.Second, c.Timeout)
	assert.Equal(t, 10*time.Second, c.RetryMaxElapsed)
	assert.EqualError(t, c.RequireAPI(), "config: HEXENVELOPE_ENDPOINT is not set")
}

func TestFromEnv(t *testing.T) {
	c, err := FromEnv(env(map[string]string{
		EnvEndpoint:        "https://api.example.com/rest/v1",
		EnvAnonKey:         "anon",
		EnvEnvelopeKey:     testKey,
		EnvLogLevel:        "DEBUG",
		EnvTimeout:         "5s",
		EnvRetryMaxElapsed: "0",
	}))
	require.NoError(t, err)

	assert.Equal(t, &Config{
		Endpoint:        "https://api.example.com/rest/v1",
		AnonKey:         "anon",
		EnvelopeKey:     testKey,
		LogLevel:        "debug",
		Timeout:         5 * time.Second,
		RetryMaxElapsed: 0,
	}, c)
	assert.NoError(t, c.RequireAPI())
	assert.NoError(t, c.Require())
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		err  string
	}{
		{"bad level", map[string]string{EnvLogLevel: "loud"}, "config: LOG_LEVEL is invalid (oneof)"},
		{"bad timeout", map[string]string{EnvTimeout: "soon"}, "config: HEXENVELOPE_TIMEOUT"},
		{"zero timeout", map[string]string{EnvTimeout: "0s"}, "config: HEXENVELOPE_TIMEOUT is invalid (gt)"},
		{"negative retry", map[string]string{EnvRetryMaxElapsed: "-1s"}, "config: HEXENVELOPE_RETRY_MAX_ELAPSED is invalid (gte)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(env(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestRequire_EnvelopeKey(t *testing.T) {
	tests := []struct {
		key string
		err string
	}{
		{testKey, ""},
		{strings.ToUpper(testKey), ""},
		{"", "config: ENVELOPE_KEY is not set"},
		{testKey[:62], "config: ENVELOPE_KEY is invalid (len)"},
		{strings.Repeat("zz", 32), "config: ENVELOPE_KEY is invalid (hexadecimal)"},
	}

	for _, tt := range tests {
		c := &Config{EnvelopeKey: tt.key}
		err := c.Require("EnvelopeKey")
		if tt.err == "" {
			assert.NoError(t, err)
		} else {
			assert.EqualError(t, err, tt.err)
		}
	}
}

func TestRequireAPI_BadEndpoint(t *testing.T) {
	c := &Config{Endpoint: "not a url", AnonKey: "anon", EnvelopeKey: testKey}
	assert.EqualError(t, c.RequireAPI(), "config: HEXENVELOPE_ENDPOINT is invalid (url)")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("HEXENVELOPE_ANON_KEY=from-file\nHEXENVELOPE_TIMEOUT=7s\n"), 0600))

	t.Setenv(EnvAnonKey, "")
	os.Unsetenv(EnvAnonKey)
	t.Setenv(EnvTimeout, "3s")

	c, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.AnonKey)
	assert.Equal(t, 3*time.Second, c.Timeout)
}
