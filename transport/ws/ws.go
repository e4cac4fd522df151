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

// Package ws tunnels the link's byte stream over a WebSocket, for lines
// bridged across a network and for tests without hardware. Every Send is
// one binary message; Receive hands out the received bytes without regard
// to message boundaries, like a serial port would.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	arq "github.com/ZaparooProject/go-arq"
)

const (
	// DefaultTimeout bounds how long Receive waits for data.
	DefaultTimeout = time.Second
	writeTimeout   = 5 * time.Second
	incomingQueue  = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Transport implements arq.Transport over a single WebSocket connection.
// It either dials a peer (Dial) or waits for one (Listen).
type Transport struct {
	conn     *websocket.Conn
	server   *server
	incoming chan []byte
	stop     chan struct{} // closed by Close to end the read loop
	done     chan struct{} // closed when the read loop exits
	readErr  error
	url      string
	pending  []byte
	mu       sync.Mutex
	writeMu  sync.Mutex
	timeout  time.Duration
}

// Option configures a Transport
type Option func(*Transport)

// WithTimeout sets how long Receive waits for data.
func WithTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.timeout = timeout
	}
}

// Dial returns a transport that connects to the WebSocket at url on Open.
func Dial(url string, opts ...Option) *Transport {
	t := &Transport{url: url, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Listen binds addr and serves path. The transport accepts exactly one
// peer; Open blocks until it connects.
func Listen(addr, path string, opts ...Option) (*Transport, error) {
	srv, err := newServer(addr, path)
	if err != nil {
		return nil, err
	}
	t := &Transport{server: srv, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(t)
	}
	t.url = "ws://" + srv.listener.Addr().String() + path
	return t, nil
}

// Addr returns the bound address of a listening transport, or nil.
func (t *Transport) Addr() net.Addr {
	if t.server == nil {
		return nil
	}
	return t.server.listener.Addr()
}

// URL returns the peer URL for Dial, or the served URL for Listen.
func (t *Transport) URL() string {
	return t.url
}

// Open dials the peer, or waits for it to connect.
func (t *Transport) Open() error {
	return t.OpenContext(context.Background())
}

// OpenContext is Open bounded by ctx.
func (t *Transport) OpenContext(ctx context.Context) error {
	if t.IsOpen() {
		return nil
	}

	var (
		conn *websocket.Conn
		err  error
	)
	if t.server != nil {
		conn, err = t.server.accept(ctx)
	} else {
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	}
	if err != nil {
		return arq.NewTransportError("Open", t.url, fmt.Errorf("failed to connect: %w", err), arq.ErrorTypeTransient)
	}

	t.mu.Lock()
	t.conn = conn
	t.incoming = make(chan []byte, incomingQueue)
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.pending = nil
	t.readErr = nil
	t.mu.Unlock()

	go t.readLoop(conn, t.incoming, t.stop, t.done)
	arq.Debugf("websocket connected: %s", t.url)
	return nil
}

func (t *Transport) readLoop(conn *websocket.Conn, incoming chan<- []byte, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			t.readErr = err
			t.mu.Unlock()
			return
		}
		if kind != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		select {
		case incoming <- data:
		case <-stop:
			return
		case <-time.After(writeTimeout):
			// Nobody is reading; the line overflows like a serial buffer.
			arq.Debugf("websocket input overflow, dropped %d bytes", len(data))
		}
	}
}

// Close closes the connection and, for a listening transport, the
// listener. It returns once the read loop has exited.
func (t *Transport) Close() error {
	t.mu.Lock()
	conn, stop, done := t.conn, t.stop, t.done
	t.conn = nil
	t.mu.Unlock()

	var err error
	if conn != nil {
		close(stop)
		t.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		err = conn.Close()
		<-done
	}
	if t.server != nil {
		t.server.close()
	}
	if err != nil {
		return arq.NewTransportError("Close", t.url, err, arq.ErrorTypePermanent)
	}
	return nil
}

// Send writes data as one binary message.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return arq.NewTransportClosedError("Send", t.url)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return arq.NewTransportClosedError("Send", t.url)
		}
		return arq.NewTransportWriteError("Send", t.url, err)
	}
	return nil
}

// Receive returns up to maxLen bytes, waiting up to the timeout for the
// first message. Bytes beyond maxLen stay buffered for the next call.
func (t *Transport) Receive(maxLen int) ([]byte, error) {
	t.mu.Lock()
	conn, incoming, done, timeout := t.conn, t.incoming, t.done, t.timeout
	t.mu.Unlock()
	if conn == nil {
		return nil, arq.NewTransportClosedError("Receive", t.url)
	}
	if maxLen <= 0 {
		return nil, nil
	}

	if b := t.take(maxLen); b != nil {
		return b, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data := <-incoming:
		t.mu.Lock()
		t.pending = append(t.pending, data...)
		t.mu.Unlock()
		return t.take(maxLen), nil
	case <-done:
		// Deliver what the peer sent before it went away.
		select {
		case data := <-incoming:
			t.mu.Lock()
			t.pending = append(t.pending, data...)
			t.mu.Unlock()
			return t.take(maxLen), nil
		default:
		}
		return nil, t.peerError()
	case <-timer.C:
		return nil, nil
	}
}

func (t *Transport) take(maxLen int) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) == 0 {
		return nil
	}
	n := min(maxLen, len(t.pending))
	out := append([]byte(nil), t.pending[:n]...)
	t.pending = t.pending[n:]
	return out
}

func (t *Transport) peerError() error {
	t.mu.Lock()
	err := t.readErr
	t.mu.Unlock()
	if err == nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return arq.NewTransportClosedError("Receive", t.url)
	}
	return arq.NewTransportReadError("Receive", t.url, err)
}

// Discard drops up to n bytes.
func (t *Transport) Discard(n int) (int, error) {
	b, err := t.Receive(n)
	return len(b), err
}

// ClearInputBuffer drops buffered bytes and queued messages.
func (t *Transport) ClearInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return arq.NewTransportClosedError("ClearInputBuffer", t.url)
	}
	t.pending = nil
	for {
		select {
		case <-t.incoming:
		default:
			return nil
		}
	}
}

// SetTimeout sets how long Receive waits for data.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("timeout %v: %w", timeout, arq.ErrInvalidParameter)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// IsOpen returns true while a peer is connected
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Type returns the transport type
func (*Transport) Type() arq.TransportType {
	return arq.TransportWebSocket
}

// PortName returns the WebSocket URL
func (t *Transport) PortName() string {
	return t.url
}
