// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy bounds exponential backoff for locally recoverable errors
// (spec §7 "Policy": network timeouts and transient storage errors are
// retried with exponential backoff and a bounded attempt count).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy mirrors the teacher's timeout/backoff defaults used
// across its networking handlers: a handful of attempts, starting small
// and capping quickly so a stuck peer doesn't stall a caller for long.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    5 * time.Second,
}

// ErrRetriesExhausted is returned when every attempt permitted by a
// RetryPolicy failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Do runs fn up to p.MaxAttempts times, sleeping an exponentially growing,
// jittered delay between attempts. Every non-nil error from fn is retried;
// Do does no error classification. If no attempt succeeds it returns
// ErrRetriesExhausted joined with the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	var lastErr error
	delay := p.BaseDelay
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		jittered := delay/2 + time.Duration(rand.Int63n(int64(delay/2+1)))
		select {
		case <-time.After(jittered):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	if lastErr != nil {
		return errors.Join(ErrRetriesExhausted, lastErr)
	}
	return ErrRetriesExhausted
}
