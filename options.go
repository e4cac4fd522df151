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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-arq/frame"
)

// Config holds the link configuration
type Config struct {
	RetryPolicy *RetryPolicy
	Recorder    EventRecorder
	Faults      FaultInjector
	// OnFragment is called after a fragment is acknowledged (sender) or
	// accepted (receiver).
	OnFragment func(seq, total uint16)
	// MaxFragmentSize is the largest payload carried by one Data frame.
	MaxFragmentSize int
	// SettleDelay is waited before the throwaway byte of the handshake,
	// LineClearDelay after it.
	SettleDelay    time.Duration
	LineClearDelay time.Duration
	// StrictAck makes the sender cross-check the sequence number named by
	// Ack and Nack frames against the fragment in flight.
	StrictAck bool
}

// DefaultConfig returns default link configuration
func DefaultConfig() *Config {
	return &Config{
		RetryPolicy:     DefaultRetryPolicy(),
		Recorder:        nopRecorder{},
		MaxFragmentSize: frame.MaxFragmentSize,
		SettleDelay:     200 * time.Millisecond,
		LineClearDelay:  1 * time.Second,
	}
}

// Option configures a Link
type Option func(*Link) error

// WithRetryPolicy replaces the retransmission policy
func WithRetryPolicy(policy *RetryPolicy) Option {
	return func(l *Link) error {
		if policy == nil {
			policy = DefaultRetryPolicy()
		}
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("retry policy: %w", err)
		}
		cp := *policy
		l.config.RetryPolicy = &cp
		return nil
	}
}

// WithMaxRetries bounds consecutive failed attempts per fragment; 0 means
// unbounded.
func WithMaxRetries(maxAttempts int) Option {
	return func(l *Link) error {
		if maxAttempts < 0 {
			return fmt.Errorf("max retries %d: %w", maxAttempts, ErrInvalidParameter)
		}
		l.config.RetryPolicy.MaxAttempts = maxAttempts
		return nil
	}
}

// WithRetryBackoff sets the delay before the first retransmission and the
// growth factor applied to following ones.
func WithRetryBackoff(initial time.Duration, multiplier float64) Option {
	return func(l *Link) error {
		if initial < 0 {
			return fmt.Errorf("backoff %v: %w", initial, ErrInvalidParameter)
		}
		l.config.RetryPolicy.InitialBackoff = initial
		l.config.RetryPolicy.BackoffMultiplier = multiplier
		return nil
	}
}

// WithMaxFragmentSize sets the fragment size, between 1 and
// frame.MaxFragmentSize.
func WithMaxFragmentSize(size int) Option {
	return func(l *Link) error {
		if size < 1 || size > frame.MaxFragmentSize {
			return fmt.Errorf("fragment size %d: %w", size, ErrInvalidParameter)
		}
		l.config.MaxFragmentSize = size
		return nil
	}
}

// WithStrictAck enables sequence cross-checking of Ack and Nack frames.
func WithStrictAck(strict bool) Option {
	return func(l *Link) error {
		l.config.StrictAck = strict
		return nil
	}
}

// WithEventRecorder sends frame events to rec.
func WithEventRecorder(rec EventRecorder) Option {
	return func(l *Link) error {
		if rec == nil {
			rec = nopRecorder{}
		}
		l.config.Recorder = rec
		return nil
	}
}

// WithSettleDelays sets the waits around the handshake throwaway byte.
func WithSettleDelays(settle, lineClear time.Duration) Option {
	return func(l *Link) error {
		if settle < 0 || lineClear < 0 {
			return fmt.Errorf("settle delays: %w", ErrInvalidParameter)
		}
		l.config.SettleDelay = settle
		l.config.LineClearDelay = lineClear
		return nil
	}
}

// WithFragmentHook registers a progress callback.
func WithFragmentHook(fn func(seq, total uint16)) Option {
	return func(l *Link) error {
		l.config.OnFragment = fn
		return nil
	}
}

// WithFaultInjector deliberately alters outgoing data frames, for testing
// the peer's error handling.
func WithFaultInjector(f FaultInjector) Option {
	return func(l *Link) error {
		l.config.Faults = f
		return nil
	}
}

// WithTimeout sets the transport read timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Link) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout %v: %w", timeout, ErrInvalidParameter)
		}
		if err := l.transport.SetTimeout(timeout); err != nil {
			return fmt.Errorf("failed to set transport timeout: %w", err)
		}
		return nil
	}
}
