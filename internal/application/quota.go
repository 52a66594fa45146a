// Package application contains the monitor pipeline services.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/evanfisk/citriage/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.QuotaGate = (*QuotaGate)(nil)

// QuotaGate implements the driven.QuotaGate port. It bounds outbound GitHub
// API usage two ways: a token bucket models the provider's hourly quota
// window, and a weighted semaphore bounds in-flight calls so plentiful quota
// cannot turn into unbounded fan-out. One gate is constructed per process and
// shared by every discovery cycle; it is safe for concurrent use.
type QuotaGate struct {
	limiter  *rate.Limiter
	inflight *semaphore.Weighted
	waitMax  time.Duration
}

// NewQuotaGate creates a QuotaGate for the given hourly request quota,
// in-flight call bound, and maximum acquisition wait.
func NewQuotaGate(requestsPerHour int, maxInFlight int64, waitMax time.Duration) *QuotaGate {
	perSecond := rate.Limit(float64(requestsPerHour) / time.Hour.Seconds())

	// Allow a minute's worth of quota as burst so a fresh cycle's first
	// pages are not artificially serialized.
	burst := requestsPerHour / 60
	if burst < 1 {
		burst = 1
	}

	return &QuotaGate{
		limiter:  rate.NewLimiter(perSecond, burst),
		inflight: semaphore.NewWeighted(maxInFlight),
		waitMax:  waitMax,
	}
}

// Acquire blocks until an in-flight permit and quota for cost requests are
// available. It fails closed: once waitMax elapses it returns
// driven.ErrQuotaWaitTimeout instead of queueing indefinitely. The returned
// release func must be called when the remote call completes.
//
// The permit is taken before the token bucket so a failed acquisition never
// consumes quota; tokens are only spent once the call is cleared to go out.
func (g *QuotaGate) Acquire(ctx context.Context, cost int) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.waitMax)
	defer cancel()

	if err := g.inflight.Acquire(waitCtx, 1); err != nil {
		return nil, g.waitErr(ctx, err, "in-flight permit")
	}

	if err := g.limiter.WaitN(waitCtx, cost); err != nil {
		g.inflight.Release(1)
		return nil, g.waitErr(ctx, err, "quota")
	}

	return func() { g.inflight.Release(1) }, nil
}

// waitErr distinguishes the bounded wait expiring from the caller's own
// context being canceled.
func (g *QuotaGate) waitErr(parent context.Context, err error, what string) error {
	if parent.Err() != nil {
		return fmt.Errorf("acquiring %s: %w", what, parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("acquiring %s after %s: %w", what, g.waitMax, driven.ErrQuotaWaitTimeout)
	}
	return fmt.Errorf("acquiring %s: %w", what, err)
}
