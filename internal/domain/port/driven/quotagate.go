package driven

import (
	"context"
	"errors"
)

// ErrQuotaWaitTimeout is returned by QuotaGate.Acquire when remote API quota
// did not become available within the configured wait bound. Callers surface
// it as a retryable discovery failure rather than blocking indefinitely.
var ErrQuotaWaitTimeout = errors.New("timed out waiting for API quota")

// QuotaGate defines the driven port for rate-limit-aware throttling of
// outbound remote API calls. Implementations are safe for concurrent use.
type QuotaGate interface {
	// Acquire blocks until quota for cost requests and an in-flight permit
	// are available, or the wait bound elapses. On success it returns a
	// release func the caller must invoke once the call completes, success
	// or failure, so capacity always returns.
	Acquire(ctx context.Context, cost int) (release func(), err error)
}
