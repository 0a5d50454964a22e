// package reporter provides a context.Context aware abstraction for shuttling
// errors to an operator. Envelope failures are swallowed at the API boundary;
// this is where their diagnostics go instead.
package reporter

import (
	"context"
	"strings"

	"github.com/remind101/hexenvelope/pstack"
)

// DefaultLevel is the default level a Report uses when reporting an error.
const DefaultLevel = "error"

// Reporter represents an error handler.
type Reporter interface {
	// ReportWithLevel reports the error. If err carries a stack trace from
	// github.com/pkg/errors, implementers may use it to locate the failure.
	ReportWithLevel(ctx context.Context, level string, err error) error
}

// Reporters should implement this interface if they need to be flushed.
type flusher interface {
	// Flush blocks until all errors are delivered.
	Flush()
}

// ReporterFunc is a function signature that conforms to the Reporter interface.
type ReporterFunc func(context.Context, string, error) error

// ReportWithLevel implements the Reporter interface.
func (f ReporterFunc) ReportWithLevel(ctx context.Context, level string, err error) error {
	return f(ctx, level, err)
}

// FromContext extracts a Reporter from a context.Context.
func FromContext(ctx context.Context) (Reporter, bool) {
	h, ok := ctx.Value(reporterKey).(Reporter)
	return h, ok
}

// WithReporter inserts a Reporter into the context.Context.
func WithReporter(ctx context.Context, r Reporter) context.Context {
	return context.WithValue(ctx, reporterKey, r)
}

// MultiError is an error implementation that wraps multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface. It simply joins all of the individual
// error messages with a comma.
func (e *MultiError) Error() string {
	var m []string

	for _, err := range e.Errors {
		m = append(m, err.Error())
	}

	return strings.Join(m, ", ")
}

// ReportWithLevel reports err to the Reporter in the context, or to a
// LogReporter when there is none. Callers that want a stack trace should wrap
// err with errors.WithStack before calling.
func ReportWithLevel(ctx context.Context, level string, err error) error {
	if r, ok := FromContext(ctx); ok {
		return r.ReportWithLevel(ctx, level, err)
	}
	return defaultReporter.ReportWithLevel(ctx, level, err)
}

// Report reports err at DefaultLevel.
func Report(ctx context.Context, err error) error {
	return ReportWithLevel(ctx, DefaultLevel, err)
}

// Flush the Reporter embedded within the context.Context
func Flush(ctx context.Context) {
	if r, ok := FromContext(ctx); ok {
		if f, ok := r.(flusher); ok {
			f.Flush()
		}
	}
}

// Monitor reports and flushes a panic, then panics again with the reported
// error. Use it as the first deferred call of a goroutine or command:
//
//	defer reporter.Monitor(ctx)
func Monitor(ctx context.Context) {
	if err := pstack.New(recover()); err != nil {
		ReportWithLevel(ctx, "critical", err)
		Flush(ctx)
		panic(err)
	}
}

var defaultReporter = NewLogReporter()

// key used to store context values from within this package.
type key int

const (
	reporterKey key = iota
)
