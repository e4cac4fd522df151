// go-arq
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-arq.
//
// go-arq is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-arq is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-arq; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package arq

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds and paces retransmissions. The zero MaxAttempts means
// retry forever, the zero InitialBackoff means retry immediately.
type RetryPolicy struct {
	// MaxAttempts is the number of consecutive failed attempts tolerated for
	// one fragment before the transfer is abandoned.
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Jitter is a fraction of the computed delay, in [0, 1].
	Jitter float64
}

// DefaultRetryPolicy retries without bound and without delay.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       0,
		InitialBackoff:    0,
		MaxBackoff:        0,
		BackoffMultiplier: 1.0,
		Jitter:            0,
	}
}

// Exhausted reports whether failures consecutive failures exceed the policy.
func (p *RetryPolicy) Exhausted(failures int) bool {
	return p != nil && p.MaxAttempts > 0 && failures >= p.MaxAttempts
}

// Backoff returns the delay before the next attempt after failures
// consecutive failures (failures >= 1).
func (p *RetryPolicy) Backoff(failures int) time.Duration {
	if p == nil || p.InitialBackoff <= 0 || failures < 1 {
		return 0
	}

	mult := p.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(p.InitialBackoff) * math.Pow(mult, float64(failures-1))
	if p.MaxBackoff > 0 && delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}

	if p.Jitter > 0 {
		jitter := math.Min(p.Jitter, 1)
		delay += delay * jitter * (rand.Float64()*2 - 1) //nolint:gosec // timing jitter only
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// Validate checks the policy fields.
func (p *RetryPolicy) Validate() error {
	switch {
	case p.MaxAttempts < 0:
		return ErrInvalidParameter
	case p.InitialBackoff < 0 || p.MaxBackoff < 0:
		return ErrInvalidParameter
	case p.Jitter < 0 || p.Jitter > 1:
		return ErrInvalidParameter
	}
	return nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
