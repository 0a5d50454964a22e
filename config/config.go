// Package config loads process configuration from the environment, with an
// optional .env file.
//
// Env Vars:
// * HEXENVELOPE_ENDPOINT          - Base URL of the administration backend.
// * HEXENVELOPE_ANON_KEY          - Public API key sent with every request.
// * ENVELOPE_KEY                  - 64 hex characters, the shared envelope key.
// * LOG_LEVEL                     - debug, info, warn, error or crit. Default info.
// * HEXENVELOPE_TIMEOUT           - Request timeout. Default 60s.
// * HEXENVELOPE_RETRY_MAX_ELAPSED - Retry budget per request, 0 disables retries. Default 10s.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	EnvEndpoint        = "HEXENVELOPE_ENDPOINT"
	EnvAnonKey         = "HEXENVELOPE_ANON_KEY"
	EnvEnvelopeKey     = "ENVELOPE_KEY"
	EnvLogLevel        = "LOG_LEVEL"
	EnvTimeout         = "HEXENVELOPE_TIMEOUT"
	EnvRetryMaxElapsed = "HEXENVELOPE_RETRY_MAX_ELAPSED"
)

const (
	DefaultLogLevel        = "info"
	DefaultTimeout         = 60 * time.Second
	DefaultRetryMaxElapsed = 10 * time.Second
)

type Config struct {
	Endpoint        string        `validate:"required,url"`
	AnonKey         string        `validate:"required"`
	EnvelopeKey     string        `validate:"required,len=64,hexadecimal"`
	LogLevel        string        `validate:"oneof=debug info warn warning error crit"`
	Timeout         time.Duration `validate:"gt=0"`
	RetryMaxElapsed time.Duration `validate:"gte=0"`
}

// Fields checked by Load. The rest are checked on demand with Require, since
// not every command talks to the backend.
var ambient = []string{"LogLevel", "Timeout", "RetryMaxElapsed"}

var envNames = map[string]string{
	"Endpoint":        EnvEndpoint,
	"AnonKey":         EnvAnonKey,
	"EnvelopeKey":     EnvEnvelopeKey,
	"LogLevel":        EnvLogLevel,
	"Timeout":         EnvTimeout,
	"RetryMaxElapsed": EnvRetryMaxElapsed,
}

var validate = validator.New()

// Load reads the given .env files, or ".env" if none are given, into the
// process environment and then builds a Config from it. Missing .env files
// are not an error. Variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "config: reading %s", f)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	c := &Config{
		Endpoint:        strings.TrimSpace(getenv(EnvEndpoint)),
		AnonKey:         strings.TrimSpace(getenv(EnvAnonKey)),
		EnvelopeKey:     strings.TrimSpace(getenv(EnvEnvelopeKey)),
		LogLevel:        DefaultLogLevel,
		Timeout:         DefaultTimeout,
		RetryMaxElapsed: DefaultRetryMaxElapsed,
	}

	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}

	var err error
	if c.Timeout, err = duration(getenv, EnvTimeout, DefaultTimeout); err != nil {
		return nil, err
	}
	if c.RetryMaxElapsed, err = duration(getenv, EnvRetryMaxElapsed, DefaultRetryMaxElapsed); err != nil {
		return nil, err
	}

	if err := c.Require(ambient...); err != nil {
		return nil, err
	}
	return c, nil
}

// Require validates the named fields, or every field if none are named.
func (c *Config) Require(fields ...string) error {
	var err error
	if len(fields) == 0 {
		err = validate.Struct(c)
	} else {
		err = validate.StructPartial(c, fields...)
	}
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return errors.Errorf("config: %s is not set", envNames[fe.StructField()])
		}
		return errors.Errorf("config: %s is invalid (%s)", envNames[fe.StructField()], fe.Tag())
	}
	return errors.Wrap(err, "config")
}

// RequireAPI checks the fields needed to talk to the backend.
func (c *Config) RequireAPI() error {
	return c.Require("Endpoint", "AnonKey", "EnvelopeKey")
}

func duration(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "config: %s", name)
	}
	return d, nil
}
