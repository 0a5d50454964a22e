package reporter

import "context"

// MultiReporter reports the error to each Reporter in turn. Failures of the
// individual reporters are collected into a *MultiError.
type MultiReporter []Reporter

func (r MultiReporter) ReportWithLevel(ctx context.Context, level string, err error) error {
	var errs []error

	for _, reporter := range r {
		if err2 := reporter.ReportWithLevel(ctx, level, err); err2 != nil {
			errs = append(errs, err2)
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return &MultiError{Errors: errs}
}

func (r MultiReporter) Flush() {
	for _, reporter := range r {
		if f, ok := reporter.(flusher); ok {
			f.Flush()
		}
	}
}
