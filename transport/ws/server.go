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
)

// server accepts the single peer of a listening transport.
type server struct {
	listener net.Listener
	srv      *http.Server
	connCh   chan *websocket.Conn // holds the peer until accept takes it
	closed   chan struct{}
	served   chan struct{} // closed when Serve returns
	once     sync.Once
	mu       sync.Mutex
	taken    bool
	shut     bool
}

func newServer(addr, path string) (*server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &server{
		listener: listener,
		connCh:   make(chan *websocket.Conn, 1),
		closed:   make(chan struct{}),
		served:   make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handleWS)
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		defer close(s.served)
		_ = s.srv.Serve(listener)
	}()
	return s, nil
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken || s.shut {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"))
		_ = conn.Close()
		return
	}
	// Only the first peer is kept, so the buffered send never blocks.
	s.taken = true
	s.connCh <- conn
}

// accept blocks until a peer connects, ctx is done or the server closes.
func (s *server) accept(ctx context.Context) (*websocket.Conn, error) {
	select {
	case conn := <-s.connCh:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, errors.New("listener closed")
	}
}

// close stops the listener. A peer that connected but was never accepted
// is disconnected, since the HTTP server does not track hijacked conns.
func (s *server) close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.shut = true
		select {
		case conn := <-s.connCh:
			_ = conn.Close()
		default:
		}
		s.mu.Unlock()

		close(s.closed)
		_ = s.srv.Close()
		<-s.served
	})
}
