// Package id generates and validates random UUID shaped correlation
// identifiers.
//
// These identifiers are for correlating requests and log lines. They are not
// secrets: when the secure random source fails, Generate falls back to
// math/rand, which is predictable. Never use this package for tokens, keys,
// IVs or anything else an attacker must not guess.
package id

import (
	"context"
	"crypto/rand"
	"io"
	mrand "math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/remind101/hexenvelope/logger"
)

const hexDigits = "0123456789abcdef"

// template is the canonical v4 layout. x is any nibble, y is a variant
// nibble in 8-b.
const template = "xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx"

// Generator generates version 4 identifiers.
type Generator struct {
	// Rand is the secure random source. Nil means crypto/rand.Reader.
	Rand io.Reader
}

// Generate returns a new identifier in the form
// xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx.
func (g *Generator) Generate(ctx context.Context) string {
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}

	u, err := uuid.NewRandomFromReader(r)
	if err == nil {
		return u.String()
	}

	logger.Warn(ctx, "secure random source unavailable, using math/rand for identifier", "error", err)
	return insecure()
}

// insecure fills the template from math/rand. The result has the right
// shape but is guessable.
func insecure() string {
	var b strings.Builder
	b.Grow(len(template))
	for _, c := range template {
		switch c {
		case 'x':
			b.WriteByte(hexDigits[mrand.Intn(16)])
		case 'y':
			b.WriteByte(hexDigits[mrand.Intn(4)|0x8])
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

var defaultGenerator = &Generator{}

// Generate returns a new version 4 identifier using crypto/rand, or math/rand
// if that fails. See the package documentation before using the result for
// anything but correlation.
func Generate() string {
	return defaultGenerator.Generate(context.Background())
}

// IsValid reports whether s is a 36 character 8-4-4-4-12 hex identifier with
// version 1 through 5 and an RFC 4122 variant. Case is ignored.
func IsValid(s string) bool {
	// uuid.Parse also accepts urn:uuid: and braced forms; those are not
	// valid here.
	if len(s) != 36 {
		return false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	if v := u.Version(); v < 1 || v > 5 {
		return false
	}
	return u.Variant() == uuid.RFC4122
}
