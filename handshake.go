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

// HandshakeState is the state of the handshake coordinator
type HandshakeState int

const (
	// HandshakeIdle means no handshake is in progress and no session exists.
	HandshakeIdle HandshakeState = iota
	// HandshakeAwaitingPeer means a handshake is in progress.
	HandshakeAwaitingPeer
	// HandshakeEstablished means both ends are ready for data transfer.
	HandshakeEstablished
	// HandshakeFailed means the last handshake did not complete.
	HandshakeFailed
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeIdle:
		return "idle"
	case HandshakeAwaitingPeer:
		return "awaiting peer"
	case HandshakeEstablished:
		return "established"
	case HandshakeFailed:
		return "failed"
	default:
		return fmt.Sprintf("HandshakeState(%d)", int(s))
	}
}

// throwawayByte is written before the handshake request so that startup
// noise on the line is absorbed by the receiver's discard.
var throwawayByte = []byte{0x00}

// Handshake runs the sending side of the handshake: settle, write a
// throwaway byte, settle again, send a HandshakeRequest and wait for a
// HandshakeAck.
//
// Any response other than a HandshakeAck, including no response, yields a
// *HandshakeError. The handshake is not retried here; the caller decides
// whether to try again. Fatal transport errors are returned as is.
func (l *Link) Handshake(ctx context.Context) error {
	if err := l.beginHandshake("Handshake"); err != nil {
		return err
	}

	if err := sleepContext(ctx, l.config.SettleDelay); err != nil {
		return l.failHandshake(err)
	}
	if err := l.transport.Send(throwawayByte); err != nil {
		return l.failHandshake(err)
	}
	if err := sleepContext(ctx, l.config.LineClearDelay); err != nil {
		return l.failHandshake(err)
	}

	if err := l.writeFrame(frame.NewHandshakeRequest()); err != nil {
		return l.failHandshake(err)
	}
	Debugf("handshake request sent, waiting for ack")

	in, err := l.readFrame(frame.ControlFrameSize)
	if err != nil {
		if IsRetryable(err) {
			err = &HandshakeError{Reason: "read failed", Err: err}
		}
		return l.failHandshake(err)
	}

	switch {
	case in.empty():
		return l.failHandshake(&HandshakeError{Reason: "no response", Err: ErrTransportTimeout})
	case in.decodeErr != nil:
		return l.failHandshake(&HandshakeError{Reason: "malformed response", Err: in.decodeErr})
	case in.dgram.Type != frame.TypeHandshakeAck:
		return l.failHandshake(&HandshakeError{
			Reason:   "unexpected response",
			Received: in.dgram.Type,
			Err:      ErrUnexpectedType,
		})
	}

	l.handshake = HandshakeEstablished
	Debugf("handshake established")
	return nil
}

// AcceptHandshake runs the receiving side of the handshake: drop the
// sender's throwaway byte, clear the input buffer, wait for a
// HandshakeRequest and answer it with a HandshakeAck.
//
// Waiting for the throwaway byte and for the request is bounded only by
// ctx. A request that does not decode, or a frame of another type, yields
// a *HandshakeError.
func (l *Link) AcceptHandshake(ctx context.Context) error {
	if err := l.beginHandshake("AcceptHandshake"); err != nil {
		return err
	}

	if err := l.discardThrowaway(ctx); err != nil {
		return l.failHandshake(err)
	}
	if err := l.transport.ClearInputBuffer(); err != nil {
		return l.failHandshake(err)
	}
	Debugf("line cleared, waiting for handshake request")

	in, err := l.awaitFrame(ctx, frame.ControlFrameSize)
	if err != nil {
		return l.failHandshake(err)
	}

	switch {
	case in.decodeErr != nil:
		return l.failHandshake(&HandshakeError{Reason: "malformed request", Err: in.decodeErr})
	case in.dgram.Type != frame.TypeHandshakeRequest:
		return l.failHandshake(&HandshakeError{
			Reason:   "unexpected request",
			Received: in.dgram.Type,
			Err:      ErrUnexpectedType,
		})
	}

	if err := l.writeFrame(frame.NewHandshakeAck()); err != nil {
		return l.failHandshake(err)
	}

	l.handshake = HandshakeEstablished
	Debugf("handshake accepted")
	return nil
}

func (l *Link) beginHandshake(op string) error {
	if err := l.ensureOpen(op); err != nil {
		l.handshake = HandshakeFailed
		return err
	}
	l.handshake = HandshakeAwaitingPeer
	return nil
}

func (l *Link) failHandshake(err error) error {
	l.handshake = HandshakeFailed
	Debugf("handshake failed: %v", err)
	return err
}

// discardThrowaway blocks until one byte has been dropped from the line.
func (l *Link) discardThrowaway(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := l.transport.Discard(1)
		if err != nil && !IsRetryable(err) {
			return err
		}
		if n > 0 {
			return nil
		}
	}
}

// awaitFrame reads until something arrives on the line or ctx is done.
func (l *Link) awaitFrame(ctx context.Context, maxLen int) (inbound, error) {
	for {
		if err := ctx.Err(); err != nil {
			return inbound{}, err
		}
		in, err := l.readFrame(maxLen)
		if err != nil {
			return inbound{}, err
		}
		if !in.empty() {
			return in, nil
		}
	}
}
