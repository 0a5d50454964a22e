package envelope

import (
	"context"

	"github.com/pkg/errors"
	"github.com/remind101/hexenvelope/reporter"
)

// EncryptData is the boundary form of Encrypt for callers that only need to
// know whether encryption worked. On failure it returns "", false and reports
// the failure kind; the cause is not returned.
func EncryptData(ctx context.Context, v interface{}, keyHex string) (string, bool) {
	s, err := Encrypt(v, keyHex)
	if err != nil {
		diagnose(ctx, errors.WithStack(failed("encrypt", err)))
		return "", false
	}
	return s, true
}

// DecryptData is the boundary form of Decrypt. On failure it returns nil,
// false. A successfully decrypted JSON null also yields nil, so callers must
// check the boolean.
func DecryptData(ctx context.Context, encoded, keyHex string) (interface{}, bool) {
	v, err := Decrypt(encoded, keyHex)
	if err != nil {
		diagnose(ctx, errors.WithStack(failed("decrypt", err)))
		return nil, false
	}
	return v, true
}

// DecryptDataInto is the boundary form of DecryptInto.
func DecryptDataInto(ctx context.Context, encoded, keyHex string, dst interface{}) bool {
	if err := DecryptInto(encoded, keyHex, dst); err != nil {
		diagnose(ctx, errors.WithStack(failed("decrypt", err)))
		return false
	}
	return true
}

// OpError is what the boundary functions report. It names the operation and
// the Kind of the failure and drops the cause, which may quote key material
// or decrypted bytes.
type OpError struct {
	Op   string
	Kind Kind
}

func failed(op string, err error) *OpError {
	return &OpError{Op: op, Kind: KindOf(err)}
}

func (e *OpError) Error() string {
	return "envelope: op=" + e.Op + " kind=" + e.Kind.String()
}

func (e *OpError) Unwrap() error {
	return e.Kind
}

func diagnose(ctx context.Context, err error) {
	reporter.ReportWithLevel(ctx, "error", err)
}
