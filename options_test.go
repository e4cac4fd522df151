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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-arq/frame"
)

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	link, err := New(NewMockTransport())
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig().MaxFragmentSize, link.config.MaxFragmentSize)
	assert.Equal(t, frame.MaxFragmentSize, link.config.MaxFragmentSize)
	assert.Equal(t, 200*time.Millisecond, link.config.SettleDelay)
	assert.Equal(t, time.Second, link.config.LineClearDelay)
	assert.False(t, link.config.StrictAck)
	assert.Equal(t, 0, link.config.RetryPolicy.MaxAttempts)
	assert.Equal(t, HandshakeIdle, link.HandshakeState())
	assert.False(t, link.Established())
}

func TestNew_NilTransport(t *testing.T) {
	t.Parallel()
	_, err := New(nil)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestOptions(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	var events int
	link, err := New(mock,
		WithMaxFragmentSize(20),
		WithMaxRetries(4),
		WithRetryBackoff(time.Millisecond, 2),
		WithStrictAck(true),
		WithSettleDelays(time.Millisecond, 2*time.Millisecond),
		WithTimeout(300*time.Millisecond),
		WithEventRecorder(EventRecorderFunc(func(Event) { events++ })),
		WithFaultInjector(CorruptPayload(1)),
		WithFragmentHook(func(uint16, uint16) {}),
	)
	require.NoError(t, err)

	assert.Equal(t, 20, link.config.MaxFragmentSize)
	assert.Equal(t, 4, link.config.RetryPolicy.MaxAttempts)
	assert.Equal(t, time.Millisecond, link.config.RetryPolicy.InitialBackoff)
	assert.InDelta(t, 2.0, link.config.RetryPolicy.BackoffMultiplier, 0)
	assert.True(t, link.config.StrictAck)
	assert.Equal(t, time.Millisecond, link.config.SettleDelay)
	assert.Equal(t, 2*time.Millisecond, link.config.LineClearDelay)
	assert.Equal(t, 300*time.Millisecond, mock.Timeout())
	assert.NotNil(t, link.config.Faults)
	assert.NotNil(t, link.config.OnFragment)

	link.config.Recorder.Record(Event{})
	assert.Equal(t, 1, events)
}

func TestWithRetryPolicy_CopiesPolicy(t *testing.T) {
	t.Parallel()

	policy := &RetryPolicy{MaxAttempts: 10}
	link, err := New(NewMockTransport(),
		WithRetryPolicy(policy),
		WithMaxRetries(2),
		WithRetryBackoff(time.Millisecond, 2),
	)
	require.NoError(t, err)

	assert.Equal(t, 2, link.config.RetryPolicy.MaxAttempts)
	assert.Equal(t, 10, policy.MaxAttempts)
	assert.Zero(t, policy.InitialBackoff)
	assert.NotSame(t, policy, link.config.RetryPolicy)
}

func TestOptions_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		opt  Option
		name string
	}{
		{name: "fragment size zero", opt: WithMaxFragmentSize(0)},
		{name: "fragment size above frame limit", opt: WithMaxFragmentSize(frame.MaxFragmentSize + 1)},
		{name: "negative retries", opt: WithMaxRetries(-1)},
		{name: "negative backoff", opt: WithRetryBackoff(-time.Second, 1)},
		{name: "negative settle delay", opt: WithSettleDelays(-1, 0)},
		{name: "zero timeout", opt: WithTimeout(0)},
		{name: "invalid policy", opt: WithRetryPolicy(&RetryPolicy{Jitter: 2})},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(NewMockTransport(), tt.opt)
			require.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}

func TestWithRetryPolicy_NilRestoresDefault(t *testing.T) {
	t.Parallel()
	link, err := New(NewMockTransport(), WithMaxRetries(3), WithRetryPolicy(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultRetryPolicy(), link.config.RetryPolicy)
}

func TestWithEventRecorder_Nil(t *testing.T) {
	t.Parallel()
	link, err := New(NewMockTransport(), WithEventRecorder(nil))
	require.NoError(t, err)
	assert.NotPanics(t, func() { link.config.Recorder.Record(Event{}) })
}
