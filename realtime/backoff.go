// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	initialRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
	retryJitter       = 0.1
)

// newRetryBackoff returns the per-topic backoff policy. The n-th call
// to NextBackOff after a Reset (0-indexed) returns RetryDelay(n) with
// up to 10% jitter either way.
func newRetryBackoff() *backoff.ExponentialBackOff {
	policy := &backoff.ExponentialBackOff{
		InitialInterval:     initialRetryDelay,
		RandomizationFactor: retryJitter,
		Multiplier:          2,
		MaxInterval:         maxRetryDelay,
	}
	policy.Reset()
	return policy
}

// RetryDelay returns the delay before retry attempt n (0-indexed)
// without jitter: 2^n seconds, clamped to [1s, 30s].
func RetryDelay(n int) time.Duration {
	if n < 0 {
		return initialRetryDelay
	}
	delay := initialRetryDelay
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
