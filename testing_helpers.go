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
	"sync"
	"time"
)

// MockTransport is a scripted transport for testing. Receive returns queued
// chunks in order and nothing once the queue is empty, as a real line does
// on timeout. A responder can queue replies to every Send.
type MockTransport struct {
	responder  func(sent []byte) [][]byte
	sendErr    error
	receiveErr error
	inbound    [][]byte
	afterClear [][]byte
	sent       [][]byte
	mu         sync.Mutex
	emptyReads int
	clears     int
	timeout    time.Duration
	open       bool
}

// NewMockTransport creates an open mock transport with an empty queue.
func NewMockTransport() *MockTransport {
	return &MockTransport{open: true, timeout: time.Second}
}

// QueueResponse appends chunks returned by later Receive calls.
func (m *MockTransport) QueueResponse(chunks ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.inbound = append(m.inbound, append([]byte(nil), c...))
	}
}

// QueueAfterClear holds chunks back until the next ClearInputBuffer, as
// bytes that arrive on the line after it was cleared.
func (m *MockTransport) QueueAfterClear(chunks ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.afterClear = append(m.afterClear, append([]byte(nil), c...))
	}
}

// SetResponder registers fn, called with every frame sent. The chunks it
// returns are queued for Receive.
func (m *MockTransport) SetResponder(fn func(sent []byte) [][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// SetSendError makes every following Send fail with err.
func (m *MockTransport) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetReceiveError makes every following Receive fail with err.
func (m *MockTransport) SetReceiveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiveErr = err
}

// Sent returns a copy of every chunk written so far.
func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	for i, s := range m.sent {
		out[i] = append([]byte(nil), s...)
	}
	return out
}

// EmptyReads returns how many Receive calls found nothing queued.
func (m *MockTransport) EmptyReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emptyReads
}

// Clears returns how many times the input buffer was cleared.
func (m *MockTransport) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// Pending returns the number of queued bytes not yet read.
func (m *MockTransport) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.inbound {
		n += len(c)
	}
	return n
}

// Open marks the transport open.
func (m *MockTransport) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

// Send records data and queues the responder's replies.
func (m *MockTransport) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return NewTransportClosedError("Send", "mock")
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, append([]byte(nil), data...))
	if m.responder != nil {
		for _, c := range m.responder(data) {
			m.inbound = append(m.inbound, append([]byte(nil), c...))
		}
	}
	return nil
}

// Receive returns the next queued chunk, cut to maxLen. The rest of a cut
// chunk stays queued.
func (m *MockTransport) Receive(maxLen int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil, NewTransportClosedError("Receive", "mock")
	}
	if m.receiveErr != nil {
		return nil, m.receiveErr
	}
	if len(m.inbound) == 0 {
		m.emptyReads++
		return nil, nil
	}

	chunk := m.inbound[0]
	if len(chunk) > maxLen {
		m.inbound[0] = chunk[maxLen:]
		return chunk[:maxLen], nil
	}
	m.inbound = m.inbound[1:]
	return chunk, nil
}

// Discard drops up to n queued bytes.
func (m *MockTransport) Discard(n int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return 0, NewTransportClosedError("Discard", "mock")
	}
	dropped := 0
	for dropped < n && len(m.inbound) > 0 {
		chunk := m.inbound[0]
		take := min(n-dropped, len(chunk))
		dropped += take
		if take == len(chunk) {
			m.inbound = m.inbound[1:]
		} else {
			m.inbound[0] = chunk[take:]
		}
	}
	if dropped == 0 {
		m.emptyReads++
	}
	return dropped, nil
}

// ClearInputBuffer drops everything queued and releases chunks held by
// QueueAfterClear.
func (m *MockTransport) ClearInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = m.afterClear
	m.afterClear = nil
	m.clears++
	return nil
}

// SetTimeout records the timeout.
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// Timeout returns the last timeout set.
func (m *MockTransport) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// IsOpen reports whether the transport is open.
func (m *MockTransport) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Type returns TransportMock.
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// PipeTransport is one end of an in-memory line created by NewPipe. Reads
// block until data arrives or the timeout expires, then return whatever is
// buffered up to the requested length.
type PipeTransport struct {
	in      *pipeBuffer
	out     *pipeBuffer
	filter  func([]byte) []byte
	mu      sync.Mutex
	timeout time.Duration
	open    bool
}

type pipeBuffer struct {
	notify chan struct{}
	data   []byte
	mu     sync.Mutex
}

func newPipeBuffer() *pipeBuffer {
	return &pipeBuffer{notify: make(chan struct{}, 1)}
}

func (b *pipeBuffer) write(p []byte) {
	b.mu.Lock()
	b.data = append(b.data, p...)
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *pipeBuffer) take(maxLen int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := min(maxLen, len(b.data))
	if n == 0 {
		return nil
	}
	out := append([]byte(nil), b.data[:n]...)
	b.data = b.data[n:]
	if len(b.data) > 0 {
		select {
		case b.notify <- struct{}{}:
		default:
		}
	}
	return out
}

func (b *pipeBuffer) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
}

// NewPipe returns both ends of an open in-memory line with the given read
// timeout.
func NewPipe(timeout time.Duration) (a, b *PipeTransport) {
	ab, ba := newPipeBuffer(), newPipeBuffer()
	a = &PipeTransport{in: ba, out: ab, timeout: timeout, open: true}
	b = &PipeTransport{in: ab, out: ba, timeout: timeout, open: true}
	return a, b
}

// SetFilter registers fn, applied to every outgoing chunk. Returning nil
// drops the chunk; returning altered bytes corrupts it.
func (p *PipeTransport) SetFilter(fn func([]byte) []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = fn
}

// Open marks the end open.
func (p *PipeTransport) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
	return nil
}

// Close marks the end closed.
func (p *PipeTransport) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	return nil
}

// Send delivers data to the other end.
func (p *PipeTransport) Send(data []byte) error {
	p.mu.Lock()
	open, filter := p.open, p.filter
	p.mu.Unlock()
	if !open {
		return NewTransportClosedError("Send", "pipe")
	}

	out := append([]byte(nil), data...)
	if filter != nil {
		out = filter(out)
	}
	if len(out) > 0 {
		p.out.write(out)
	}
	return nil
}

// Receive waits up to the timeout for data and returns at most maxLen bytes.
func (p *PipeTransport) Receive(maxLen int) ([]byte, error) {
	p.mu.Lock()
	open, timeout := p.open, p.timeout
	p.mu.Unlock()
	if !open {
		return nil, NewTransportClosedError("Receive", "pipe")
	}

	if b := p.in.take(maxLen); b != nil {
		return b, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-p.in.notify:
			if b := p.in.take(maxLen); b != nil {
				return b, nil
			}
		case <-timer.C:
			return nil, nil
		}
	}
}

// Discard drops up to n bytes, waiting up to the timeout for them.
func (p *PipeTransport) Discard(n int) (int, error) {
	b, err := p.Receive(n)
	return len(b), err
}

// ClearInputBuffer drops everything buffered for this end.
func (p *PipeTransport) ClearInputBuffer() error {
	p.in.reset()
	return nil
}

// SetTimeout sets the read timeout.
func (p *PipeTransport) SetTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = timeout
	return nil
}

// IsOpen reports whether the end is open.
func (p *PipeTransport) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Type returns TransportMock.
func (*PipeTransport) Type() TransportType {
	return TransportMock
}
