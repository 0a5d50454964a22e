package reporter

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/remind101/hexenvelope/logger"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// LogReporter is a Reporter that logs the error with the logger in the
// context, along with the file and line where the error was wrapped.
type LogReporter struct{}

func NewLogReporter() *LogReporter {
	return &LogReporter{}
}

// ReportWithLevel logs the error.
func (h *LogReporter) ReportWithLevel(ctx context.Context, level string, err error) error {
	file, line := "unknown", "0"

	var st stackTracer
	if errors.As(err, &st) {
		if stack := st.StackTrace(); len(stack) > 0 {
			file = fmt.Sprintf("%s", stack[0])
			line = fmt.Sprintf("%d", stack[0])
		}
	}

	pairs := []interface{}{"error", fmt.Sprintf("%q", err.Error()), "line", line, "file", file}

	switch level {
	case "debug":
		logger.Debug(ctx, "", pairs...)
	case "info":
		logger.Info(ctx, "", pairs...)
	case "warning", "warn":
		logger.Warn(ctx, "", pairs...)
	case "critical", "crit":
		logger.Crit(ctx, "", pairs...)
	default:
		logger.Error(ctx, "", pairs...)
	}
	return nil
}
