// Package throttle enforces per-key rate limits ahead of expensive or
// abusable operations (opening a socket, submitting an op). It never
// implements a limiting algorithm itself — it adapts whatever RateLimiter
// a collaborator supplies and fails open when the limiter's backing store
// is unavailable, so a degraded limiter never blocks legitimate traffic.
package throttle

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is the collaborator contract a concrete limiter
// implementation (e.g. a Redis- or memory-backed token bucket) satisfies.
// IncrementCount records one unit of usage against key and reports whether
// the caller is over limit.
type RateLimiter interface {
	IncrementCount(ctx context.Context, key string) (*Result, error)
}

// Result carries the outcome of a single IncrementCount call.
type Result struct {
	OverLimit  bool
	RetryAfter time.Duration
}

// Error is returned when a key is over its configured limit. It is a
// caller error: the connection or operation that triggered it should be
// rejected without being logged above info.
type Error struct {
	Key        string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("throttled: %s (retry after %s)", e.Key, e.RetryAfter)
}

// FailureLogger receives a note when a limiter's backing store faults and
// the guard fails open. Implementations typically forward to a structured
// logger; nil is a valid no-op.
type FailureLogger func(ctx context.Context, key string, err error)

// Guard checks a single RateLimiter, failing open on internal limiter
// faults rather than rejecting the caller.
type Guard struct {
	Limiter RateLimiter
	OnFault FailureLogger
}

// NewGuard constructs a Guard around limiter. onFault may be nil.
func NewGuard(limiter RateLimiter, onFault FailureLogger) *Guard {
	return &Guard{Limiter: limiter, OnFault: onFault}
}

// Check increments key's usage count and returns *Error if it is over
// limit. A fault from the limiter itself (store unreachable, etc.) is
// logged via OnFault and treated as "not throttled" — the guard fails
// open rather than rejecting legitimate callers because of infrastructure
// trouble.
func (g *Guard) Check(ctx context.Context, key string) error {
	if g == nil || g.Limiter == nil {
		return nil
	}

	result, err := g.Limiter.IncrementCount(ctx, key)
	if err != nil {
		if g.OnFault != nil {
			g.OnFault(ctx, key, err)
		}
		return nil
	}

	if result != nil && result.OverLimit {
		return &Error{Key: key, RetryAfter: result.RetryAfter}
	}
	return nil
}

// ConnectKey builds the throttle key for a connect_document attempt.
func ConnectKey(tenantID string) string {
	return tenantID + "_OpenSocketConn"
}

// SubmitOpKey builds the throttle key for a submitOp attempt.
func SubmitOpKey(clientID, tenantID string) string {
	return clientID + "_" + tenantID + "_SubmitOp"
}
