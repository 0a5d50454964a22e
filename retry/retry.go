// Package retry retries operations with exponential backoff. It is used by the
// request layer; the envelope package itself never retries.
package retry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/remind101/hexenvelope/logger"
)

type BackOffOpts struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

var DefaultBackOffOpts = &BackOffOpts{
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     3 * time.Second,
	MaxElapsedTime:  10 * time.Second,
}

var RetryOnAnyError = func(error) bool { return true }

type RetryNotifier func(context.Context, *RetryEvent)

type Retrier struct {
	Name                      string
	backOffOpts               *BackOffOpts
	shouldRetryFunc           func(error) bool
	notifyRetryFuncs          []RetryNotifier
	notifyGaveUpFuncs         []RetryNotifier
	notifyShouldNotRetryFuncs []RetryNotifier
}

var retrierNum uint32

func NewRetrier(name string, backOffOpts *BackOffOpts, shouldRetryFunc func(error) bool) *Retrier {
	return &Retrier{
		Name:                      fmt.Sprintf("%s%d", name, atomic.AddUint32(&retrierNum, 1)),
		backOffOpts:               backOffOpts,
		shouldRetryFunc:           shouldRetryFunc,
		notifyRetryFuncs:          []RetryNotifier{logRetry},
		notifyGaveUpFuncs:         []RetryNotifier{logGaveUp},
		notifyShouldNotRetryFuncs: []RetryNotifier{logShouldNotRetry},
	}
}

// Retry calls f until it succeeds, the error is not retryable, the backoff
// gives up, or ctx is done. The last value and error from f are returned; if
// ctx ends the loop, ctx.Err() is returned instead.
func (r *Retrier) Retry(ctx context.Context, f func() (interface{}, error)) (interface{}, error) {
	var val interface{}
	var err error
	var next time.Duration

	numTries := 0
	b := r.newBackOff()
	b.Reset()
	for {
		numTries++
		if val, err = f(); err == nil {
			return val, nil
		}

		if !r.shouldRetryFunc(err) {
			r.notify(ctx, r.notifyShouldNotRetryFuncs, err, numTries)
			return val, err
		}

		if next = b.NextBackOff(); next == backoff.Stop {
			r.notify(ctx, r.notifyGaveUpFuncs, err, numTries)
			return val, err
		}

		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			return val, ctx.Err()
		case <-t.C:
		}
		r.notify(ctx, r.notifyRetryFuncs, err, numTries)
	}
}

type RetryEvent struct {
	Retrier  *Retrier
	Err      error
	NumTries int
}

func (r *Retrier) AddNotifyRetry(f RetryNotifier) {
	r.notifyRetryFuncs = append(r.notifyRetryFuncs, f)
}

func (r *Retrier) AddNotifyGaveUp(f RetryNotifier) {
	r.notifyGaveUpFuncs = append(r.notifyGaveUpFuncs, f)
}

func (r *Retrier) AddNotifyShouldNotRetry(f RetryNotifier) {
	r.notifyShouldNotRetryFuncs = append(r.notifyShouldNotRetryFuncs, f)
}

func (r *Retrier) notify(ctx context.Context, fns []RetryNotifier, err error, numTries int) {
	e := &RetryEvent{Retrier: r, Err: err, NumTries: numTries}
	for _, fn := range fns {
		fn(ctx, e)
	}
}

func logShouldNotRetry(ctx context.Context, re *RetryEvent) {
	logger.Debug(ctx, "error not qualified for retry", "retrier", re.Retrier.Name, "error", re.Err)
}

func logRetry(ctx context.Context, re *RetryEvent) {
	logger.Info(ctx, "retrying", "retrier", re.Retrier.Name, "tries", re.NumTries, "error", re.Err)
}

func logGaveUp(ctx context.Context, re *RetryEvent) {
	logger.Warn(ctx, "giving up", "retrier", re.Retrier.Name, "tries", re.NumTries, "error", re.Err)
}

func (r *Retrier) BackOffOpts() *BackOffOpts {
	return r.backOffOpts
}

func (r *Retrier) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.backOffOpts.InitialInterval
	b.MaxInterval = r.backOffOpts.MaxInterval
	b.MaxElapsedTime = r.backOffOpts.MaxElapsedTime
	return b
}
