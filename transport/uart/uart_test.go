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

package uart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	arq "github.com/ZaparooProject/go-arq"
	"github.com/ZaparooProject/go-arq/frame"
)

// fakePort serves scripted reads. Each queued chunk is returned by one Read;
// an empty queue behaves like a read timeout.
type fakePort struct {
	serial.Port
	readErr  error
	writeErr error
	chunks   [][]byte
	written  []byte
	timeouts []time.Duration
	resets   int
	mu       sync.Mutex
	closed   bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.readErr != nil {
		p.mu.Unlock()
		return 0, p.readErr
	}
	if len(p.chunks) == 0 {
		wait := p.timeouts[len(p.timeouts)-1]
		p.mu.Unlock()
		time.Sleep(wait)
		return 0, nil
	}
	defer p.mu.Unlock()
	n := copy(b, p.chunks[0])
	if n < len(p.chunks[0]) {
		p.chunks[0] = p.chunks[0][n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, b...)
	return len(b), nil
}

func (*fakePort) Drain() error { return nil }

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	p.chunks = nil
	return nil
}

func (p *fakePort) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeouts = append(p.timeouts, d)
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) queue(chunks ...[]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks = append(p.chunks, chunks...)
}

func newOpenTransport(t *testing.T, port *fakePort) *Transport {
	t.Helper()
	tr, err := New("/dev/ttyUSB0",
		WithReadTimeout(30*time.Millisecond),
		WithInterByteTimeout(5*time.Millisecond))
	require.NoError(t, err)
	tr.open = func(string, *serial.Mode) (serial.Port, error) { return port, nil }
	require.NoError(t, tr.Open())
	return tr
}

func TestNew(t *testing.T) {
	t.Parallel()

	tr, err := New("/dev/ttyUSB0")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", tr.PortName())
	assert.Equal(t, arq.TransportUART, tr.Type())
	assert.False(t, tr.IsOpen())
	assert.Equal(t, DefaultBaudRate, tr.mode.BaudRate)
	assert.Equal(t, DefaultTimeout, tr.timeout)

	tr, err = New("COM3", WithBaudRate(9600), WithReadTimeout(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 9600, tr.mode.BaudRate)
	assert.Equal(t, 2*time.Second, tr.timeout)

	_, err = New("")
	require.ErrorIs(t, err, arq.ErrInvalidParameter)
	_, err = New("COM3", WithBaudRate(0))
	require.ErrorIs(t, err, arq.ErrInvalidParameter)
}

func TestOpenClose(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	tr := newOpenTransport(t, port)
	assert.True(t, tr.IsOpen())
	assert.Equal(t, 1, port.resets, "stale input dropped on open")

	require.NoError(t, tr.Close())
	assert.False(t, tr.IsOpen())
	assert.True(t, port.closed)
	require.NoError(t, tr.Close())

	_, err := tr.Receive(10)
	require.ErrorIs(t, err, arq.ErrTransportClosed)
	require.ErrorIs(t, tr.Send([]byte{1}), arq.ErrTransportClosed)
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err       error
		name      string
		retryable bool
	}{
		// The zero PortError code is PortBusy.
		{name: "busy", err: &serial.PortError{}, retryable: true},
		{name: "missing device", err: errors.New("no such file or directory"), retryable: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr, err := New("/dev/ttyUSB9")
			require.NoError(t, err)
			tr.open = func(string, *serial.Mode) (serial.Port, error) {
				return nil, tt.err
			}

			err = tr.Open()
			var te *arq.TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, "/dev/ttyUSB9", te.Port)
			assert.Equal(t, "Open", te.Op)
			assert.Equal(t, tt.retryable, arq.IsRetryable(err))
			assert.False(t, tr.IsOpen())
		})
	}
}

func TestReceive(t *testing.T) {
	t.Parallel()

	ack := frame.MustEncode(frame.NewAck(1))

	t.Run("frame split across reads", func(t *testing.T) {
		t.Parallel()
		port := &fakePort{}
		tr := newOpenTransport(t, port)
		port.queue(ack[:4], ack[4:9], ack[9:])

		got, err := tr.Receive(frame.ControlFrameSize)
		require.NoError(t, err)
		assert.Equal(t, ack, got)
	})

	t.Run("stops at maxLen", func(t *testing.T) {
		t.Parallel()
		port := &fakePort{}
		tr := newOpenTransport(t, port)
		port.queue(append(append([]byte(nil), ack...), 0x01, 0x02))

		got, err := tr.Receive(frame.ControlFrameSize)
		require.NoError(t, err)
		assert.Equal(t, ack, got)

		rest, err := tr.Receive(frame.ControlFrameSize)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x02}, rest)
	})

	t.Run("short frame ends on idle gap", func(t *testing.T) {
		t.Parallel()
		port := &fakePort{}
		tr := newOpenTransport(t, port)
		port.queue([]byte{0xAA, 0xBB})

		got, err := tr.Receive(frame.MaxFrameSize)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xAA, 0xBB}, got)
		assert.Equal(t, 5*time.Millisecond, port.timeouts[len(port.timeouts)-1])
	})

	t.Run("timeout returns nothing", func(t *testing.T) {
		t.Parallel()
		port := &fakePort{}
		tr := newOpenTransport(t, port)

		start := time.Now()
		got, err := tr.Receive(frame.MaxFrameSize)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	})

	t.Run("read failure", func(t *testing.T) {
		t.Parallel()
		port := &fakePort{readErr: errors.New("device unplugged")}
		tr := newOpenTransport(t, port)

		_, err := tr.Receive(frame.MaxFrameSize)
		require.ErrorIs(t, err, arq.ErrTransportRead)
		assert.False(t, arq.IsRetryable(err))
	})

}

func TestSendAndClear(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	tr := newOpenTransport(t, port)

	req := frame.MustEncode(frame.NewHandshakeRequest())
	require.NoError(t, tr.Send(req))
	assert.Equal(t, req, port.written)

	port.queue([]byte{0x00}, []byte{0x01, 0x02})
	n, err := tr.Discard(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, tr.ClearInputBuffer())
	got, err := tr.Receive(4)
	require.NoError(t, err)
	assert.Empty(t, got)

	port.writeErr = errors.New("broken pipe")
	require.ErrorIs(t, tr.Send(req), arq.ErrTransportWrite)

	require.ErrorIs(t, tr.SetTimeout(0), arq.ErrInvalidParameter)
	require.NoError(t, tr.SetTimeout(time.Second))
}

// Runs the handshake over a serial port whose peer answers from a script.
func TestLinkOverUART(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	tr := newOpenTransport(t, port)
	port.queue(frame.MustEncode(frame.NewHandshakeAck()))

	link, err := arq.New(tr, arq.WithSettleDelays(0, 0))
	require.NoError(t, err)
	require.NoError(t, link.Handshake(context.Background()))
	assert.True(t, link.Established())
	assert.Equal(t, append([]byte{0x00}, frame.MustEncode(frame.NewHandshakeRequest())...), port.written)
}
