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

// Package retry provides the caller-side retry loops used by the commands
package retry

import (
	"context"
	"fmt"
	"time"

	arq "github.com/ZaparooProject/go-arq"
)

// Operation represents a function that can be retried
// Returns: data, shouldRetry, error
//   - data: the result if successful
//   - shouldRetry: true if the operation should be retried
//   - error: with shouldRetry, the reason for retrying; without it, a
//     permanent error that stops the loop
type Operation[T any] func() (T, bool, error)

// Config configures retry behavior
type Config struct {
	// OnRetry runs before each new attempt with the attempt number about to
	// start and the last failure. Returning an error stops the loop with it.
	OnRetry func(attempt int, lastErr error) error
	// OnRetryFailed runs once all attempts failed.
	OnRetryFailed func(lastErr error) error
	Description   string
	MaxRetries    int
	RetryDelay    time.Duration
}

// WithRetry executes an operation up to MaxRetries+1 times.
func WithRetry[T any](ctx context.Context, config Config, operation Operation[T]) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, shouldRetry, err := operation()
		if !shouldRetry {
			if err != nil {
				return zero, err
			}
			return result, nil
		}
		lastErr = err

		// If we should retry but we're at max attempts, break
		if attempt >= config.MaxRetries {
			break
		}

		if config.OnRetry != nil {
			if err := config.OnRetry(attempt+2, lastErr); err != nil {
				return zero, err
			}
		}

		if err := sleep(ctx, config.RetryDelay); err != nil {
			return zero, err
		}
	}

	return handleRetriesExhausted[T](config, lastErr)
}

func handleRetriesExhausted[T any](config Config, lastErr error) (T, error) {
	var zero T

	if config.OnRetryFailed != nil {
		if failErr := config.OnRetryFailed(lastErr); failErr != nil {
			return zero, failErr
		}
	}

	desc := config.Description
	if desc == "" {
		desc = "operation"
	}
	if lastErr != nil {
		return zero, fmt.Errorf("%s: %w: %w", desc, arq.ErrRetriesExhausted, lastErr)
	}
	return zero, fmt.Errorf("%s: %w", desc, arq.ErrRetriesExhausted)
}

// TimeoutRetry executes an operation until it stops asking for a retry or
// timeout elapses, pausing interval between attempts.
func TimeoutRetry[T any](ctx context.Context, timeout, interval time.Duration, operation Operation[T]) (T, error) {
	var (
		zero    T
		lastErr error
	)
	deadline := time.Now().Add(timeout)

	for {
		result, shouldRetry, err := operation()
		if !shouldRetry {
			if err != nil {
				return zero, err
			}
			return result, nil
		}
		lastErr = err

		if time.Now().Add(interval).After(deadline) {
			break
		}
		if err := sleep(ctx, interval); err != nil {
			return zero, err
		}
	}

	if lastErr != nil {
		return zero, fmt.Errorf("%w after %v: %w", arq.ErrTransportTimeout, timeout, lastErr)
	}
	return zero, fmt.Errorf("%w after %v", arq.ErrTransportTimeout, timeout)
}

func sleep(ctx context.Context, d time.Duration) error {
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
