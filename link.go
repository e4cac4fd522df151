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
	"fmt"

	"github.com/ZaparooProject/go-arq/frame"
)

// Link runs the stop-and-wait protocol over one transport.
//
// A Link owns its transport and configuration. A transfer session starts
// when a handshake succeeds and ends when its Sender or Receiver finishes;
// the next transfer needs a new handshake.
//
// Thread Safety: Link is NOT thread-safe. Exactly one frame is outstanding
// at a time and all methods must be called from a single goroutine.
type Link struct {
	transport Transport
	config    *Config
	handshake HandshakeState
}

// New creates a Link over transport with the given options.
func New(transport Transport, opts ...Option) (*Link, error) {
	if transport == nil {
		return nil, fmt.Errorf("nil transport: %w", ErrInvalidParameter)
	}

	l := &Link{
		transport: transport,
		config:    DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Open opens the transport if it is not open yet.
func (l *Link) Open() error {
	if l.transport.IsOpen() {
		return nil
	}
	if err := l.transport.Open(); err != nil {
		return fmt.Errorf("failed to open transport: %w", err)
	}
	return nil
}

// Close ends any session and releases the transport.
func (l *Link) Close() error {
	l.handshake = HandshakeIdle
	if err := l.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// Transport returns the underlying transport.
func (l *Link) Transport() Transport {
	return l.transport
}

// HandshakeState returns the state of the handshake coordinator.
func (l *Link) HandshakeState() HandshakeState {
	return l.handshake
}

// Established reports whether a handshake succeeded and no transfer has
// completed since.
func (l *Link) Established() bool {
	return l.handshake == HandshakeEstablished
}

// Send transfers data to the peer. The link must be established.
func (l *Link) Send(ctx context.Context, data []byte) error {
	s, err := l.NewSender(data)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// Receive accepts one transfer from the peer and returns the reassembled
// bytes. The link must be established.
func (l *Link) Receive(ctx context.Context) ([]byte, error) {
	r, err := l.NewReceiver()
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// endSession returns the handshake coordinator to rest once a transfer is
// over.
func (l *Link) endSession() {
	l.handshake = HandshakeIdle
}

func (l *Link) ensureOpen(op string) error {
	if !l.transport.IsOpen() {
		return NewTransportClosedError(op, portName(l.transport))
	}
	return nil
}

// writeFrame encodes and sends d.
func (l *Link) writeFrame(d *frame.Datagram) error {
	b, err := frame.Encode(d)
	if err != nil {
		return err
	}
	return l.writeEncoded(d, b)
}

// writeEncoded sends b, the encoding of d.
func (l *Link) writeEncoded(d *frame.Datagram, b []byte) error {
	if err := l.transport.Send(b); err != nil {
		return err
	}
	debugFrame("frame sent", DirectionSend, d)
	l.config.Recorder.Record(newEvent(DirectionSend, d, len(b)))
	return nil
}

// inbound is the outcome of one read from the transport.
type inbound struct {
	dgram     *frame.Datagram
	decodeErr error
	size      int
}

func (in inbound) empty() bool {
	return in.size == 0
}

// readFrame reads up to maxLen bytes and decodes them. The returned error is
// a transport failure; timeouts and decode failures are reported through
// inbound.
func (l *Link) readFrame(maxLen int) (inbound, error) {
	b, err := l.transport.Receive(maxLen)
	if err != nil {
		if GetErrorType(err) == ErrorTypeTimeout {
			return inbound{}, nil
		}
		return inbound{}, err
	}
	if len(b) == 0 {
		return inbound{}, nil
	}

	d, decErr := frame.Decode(b)
	in := inbound{dgram: d, decodeErr: decErr, size: len(b)}
	if decErr != nil {
		Debugf("undecodable %d bytes: %v", len(b), decErr)
	} else {
		debugFrame("frame received", DirectionReceive, d)
	}
	l.config.Recorder.Record(newEvent(DirectionReceive, d, len(b)))
	return in, nil
}
