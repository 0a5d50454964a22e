// Package pstack turns recovered panic values into errors that carry the
// stack of the panic.
package pstack

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

type StackTracer interface {
	error
	StackTrace() errors.StackTrace
}

type panicError struct {
	err   error
	stack errors.StackTrace
}

func (e *panicError) Error() string                 { return e.err.Error() }
func (e *panicError) Unwrap() error                 { return e.err }
func (e *panicError) StackTrace() errors.StackTrace { return e.stack }

// New converts the value returned by recover() into an error. Errors that
// already carry a stack are returned as is; anything else gets the stack of
// the panicking goroutine. New returns nil for nil.
//
// New must be called from the deferred function that called recover().
func New(v interface{}) error {
	var err error
	switch t := v.(type) {
	case nil:
		return nil
	case error:
		var st StackTracer
		if errors.As(t, &st) {
			return t
		}
		err = t
	default:
		err = fmt.Errorf("%v", t)
	}
	return &panicError{err: err, stack: callers()}
}

// callers returns the stack of the panicking function, skipping the deferred
// function and the runtime frames that handled the panic.
func callers() errors.StackTrace {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	start := 0
	inRuntime := false
	for i, pc := range pcs[:n] {
		fn := runtime.FuncForPC(pc)
		if fn != nil && strings.HasPrefix(fn.Name(), "runtime.") {
			inRuntime = true
			continue
		}
		if inRuntime {
			start = i
			break
		}
	}

	st := make(errors.StackTrace, 0, n-start)
	for _, pc := range pcs[start:n] {
		st = append(st, errors.Frame(pc))
	}
	return st
}
