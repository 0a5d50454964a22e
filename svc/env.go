// Package svc wires the process level dependencies of the hexenvelope
// commands from a config.Config.
package svc

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/remind101/hexenvelope/admin"
	"github.com/remind101/hexenvelope/client"
	"github.com/remind101/hexenvelope/config"
	"github.com/remind101/hexenvelope/logger"
	"github.com/remind101/hexenvelope/reporter"
	"github.com/remind101/hexenvelope/retry"
)

// Env holds global dependencies that need to be initialized in main() and
// injected as dependencies into an application.
type Env struct {
	Config   *config.Config
	Reporter reporter.Reporter
	Logger   logger.Logger
	Context  context.Context
	Close    func() // Should be called in a defer in main().
}

// InitAll initializes logging and error reporting from cfg. Logs go to
// stderr so command output on stdout stays clean.
func InitAll(cfg *config.Config) Env {
	return initAll(cfg, os.Stderr)
}

func initAll(cfg *config.Config, w io.Writer) Env {
	l := InitLogger(cfg, w)
	logger.DefaultLogger = l

	r := InitReporter()

	ctx := reporter.WithReporter(context.Background(), r)
	ctx = logger.WithLogger(ctx, l)

	return Env{
		Config:   cfg,
		Logger:   l,
		Reporter: r,
		Context:  ctx,
		Close: func() {
			reporter.Flush(ctx)
		},
	}
}

// InitLogger configures a leveled logger at cfg.LogLevel.
//
// If you want to replace the global default logger:
//
//	logger.DefaultLogger = InitLogger(cfg, os.Stderr)
func InitLogger(cfg *config.Config, w io.Writer) logger.Logger {
	return logger.New(log.New(w, "", log.LstdFlags), logger.ParseLevel(cfg.LogLevel))
}

// InitReporter configures and returns a reporter.Reporter instance.
func InitReporter() reporter.Reporter {
	rep := reporter.MultiReporter{}

	// Log Reporter, uses package level logger.
	rep = append(rep, reporter.NewLogReporter())

	return rep
}

// InitRetrier returns the retrier for backend requests, or nil when
// cfg.RetryMaxElapsed is zero.
func InitRetrier(cfg *config.Config) *retry.Retrier {
	if cfg.RetryMaxElapsed <= 0 {
		return nil
	}
	opts := *retry.DefaultBackOffOpts
	opts.MaxElapsedTime = cfg.RetryMaxElapsed
	return retry.NewRetrier("backend", &opts, retry.RetryOnAnyError)
}

// NewAdminClient returns an admin.Client for the configured backend. The
// caller should check cfg.RequireAPI first.
func (e Env) NewAdminClient() *admin.Client {
	opts := []func(*client.Client){client.Timeout(e.Config.Timeout)}
	if r := InitRetrier(e.Config); r != nil {
		opts = append(opts, client.WithRetrier(r))
	}
	return admin.New(e.Config.Endpoint, e.Config.AnonKey, e.Config.EnvelopeKey, opts...)
}
