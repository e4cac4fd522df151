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
	"bytes"
	"context"
	"fmt"

	"github.com/ZaparooProject/go-arq/frame"
)

// ReceiverState is the last transition taken by a Receiver
type ReceiverState int

const (
	// ReceiverWaiting means no frame has been read yet.
	ReceiverWaiting ReceiverState = iota
	// ReceiverIdle means the last read returned nothing.
	ReceiverIdle
	// ReceiverUndecodable means the last read did not hold a Data frame.
	// No Nack is sent for it; the receiver simply reads again.
	ReceiverUndecodable
	// ReceiverRejected means the last Data frame failed validation and was
	// answered with a Nack.
	ReceiverRejected
	// ReceiverAccepted means the last Data frame was appended and acked.
	ReceiverAccepted
	// ReceiverComplete means the final fragment was accepted.
	ReceiverComplete
	// ReceiverFailed means the transfer was abandoned.
	ReceiverFailed
)

func (s ReceiverState) String() string {
	switch s {
	case ReceiverWaiting:
		return "waiting"
	case ReceiverIdle:
		return "idle"
	case ReceiverUndecodable:
		return "undecodable"
	case ReceiverRejected:
		return "rejected"
	case ReceiverAccepted:
		return "accepted"
	case ReceiverComplete:
		return "complete"
	case ReceiverFailed:
		return "failed"
	default:
		return fmt.Sprintf("ReceiverState(%d)", int(s))
	}
}

// ReceiverStats counts what happened during a transfer.
type ReceiverStats struct {
	Accepted       int
	OutOfSequence  int
	LengthErrors   int
	ChecksumErrors int
	Undecodable    int
	Idle           int
}

// Rejected returns the number of Data frames answered with a Nack.
func (s ReceiverStats) Rejected() int {
	return s.OutOfSequence + s.LengthErrors + s.ChecksumErrors
}

// Receiver validates incoming Data frames and reassembles the byte stream.
// A frame is accepted only if it is the expected fragment, its declared
// length matches its payload and its checksum verifies.
type Receiver struct {
	link       *Link
	err        error
	lastReject error
	buf        bytes.Buffer
	stats      ReceiverStats
	failures   int // consecutive reads that did not accept a fragment
	expected   int
	total      uint16
	totalKnown bool
	state      ReceiverState
}

// NewReceiver prepares to accept one transfer. The link must be established.
func (l *Link) NewReceiver() (*Receiver, error) {
	if !l.Established() {
		return nil, ErrNotEstablished
	}
	return &Receiver{
		link:     l,
		expected: 1,
		state:    ReceiverWaiting,
	}, nil
}

// State returns the last transition taken.
func (r *Receiver) State() ReceiverState { return r.state }

// ExpectedSequence returns the next fragment the receiver will accept.
func (r *Receiver) ExpectedSequence() int { return r.expected }

// TotalFragments returns the fragment count latched from the first Data
// frame, and whether it is known yet.
func (r *Receiver) TotalFragments() (uint16, bool) { return r.total, r.totalKnown }

// Stats returns transfer counters.
func (r *Receiver) Stats() ReceiverStats { return r.stats }

// LastRejection returns the reason the most recent Data frame was refused.
func (r *Receiver) LastRejection() error { return r.lastReject }

// Err returns the error that failed the transfer, if any.
func (r *Receiver) Err() error { return r.err }

// Bytes returns the payload reassembled so far.
func (r *Receiver) Bytes() []byte { return r.buf.Bytes() }

// Run reads frames until the final fragment is accepted and returns the
// reassembled stream.
func (r *Receiver) Run(ctx context.Context) ([]byte, error) {
	switch r.state {
	case ReceiverComplete:
		return r.buf.Bytes(), nil
	case ReceiverFailed:
		return nil, r.err
	}

	policy := r.link.config.RetryPolicy
	for {
		if err := ctx.Err(); err != nil {
			return nil, r.fail(fmt.Errorf("waiting for fragment %d: %w", r.expected, err))
		}

		done, err := r.Step()
		if err != nil {
			return nil, r.fail(fmt.Errorf("waiting for fragment %d: %w", r.expected, err))
		}
		if done {
			return r.buf.Bytes(), nil
		}

		if r.state == ReceiverAccepted {
			r.failures = 0
			continue
		}
		r.failures++
		if policy.Exhausted(r.failures) {
			return nil, r.fail(fmt.Errorf("fragment %d after %d attempts: %w",
				r.expected, r.failures, ErrRetriesExhausted))
		}
	}
}

// Step performs one read and handles what arrived. It reports whether the
// transfer is complete. Only fatal transport errors are returned.
func (r *Receiver) Step() (bool, error) {
	if r.state == ReceiverComplete || r.state == ReceiverFailed {
		return r.state == ReceiverComplete, nil
	}

	in, err := r.link.readFrame(frame.MaxFrameSize)
	if err != nil {
		if !IsRetryable(err) {
			return false, err
		}
		in = inbound{}
	}

	switch {
	case in.empty():
		r.state = ReceiverIdle
		r.stats.Idle++
		return false, nil
	case in.decodeErr != nil:
		r.undecodable(in.decodeErr)
		return false, nil
	case in.dgram.Type != frame.TypeData:
		r.undecodable(fmt.Errorf("%w: %s during transfer", ErrUnexpectedType, in.dgram.Type))
		return false, nil
	}

	return r.handleData(in.dgram)
}

func (r *Receiver) undecodable(err error) {
	r.state = ReceiverUndecodable
	r.stats.Undecodable++
	Debugf("ignoring frame while expecting fragment %d: %v", r.expected, err)
}

// handleData validates a Data frame, then accepts it or answers with a Nack
// naming the expected fragment.
func (r *Receiver) handleData(d *frame.Datagram) (bool, error) {
	if !r.totalKnown && d.Total > 0 {
		r.total = d.Total
		r.totalKnown = true
		Debugf("transfer of %d fragments started", r.total)
	}

	if reason := r.validate(d); reason != nil {
		r.reject(d, reason)
		if err := r.link.writeFrame(frame.NewNack(uint16(r.expected))); err != nil && !IsRetryable(err) {
			return false, err
		}
		return false, nil
	}

	r.buf.Write(d.Payload)
	r.stats.Accepted++
	r.state = ReceiverAccepted
	r.lastReject = nil
	if err := r.link.writeFrame(frame.NewAck(d.Sequence)); err != nil && !IsRetryable(err) {
		return false, err
	}
	if hook := r.link.config.OnFragment; hook != nil {
		hook(d.Sequence, r.total)
	}
	r.expected++

	if d.Sequence == r.total {
		r.state = ReceiverComplete
		r.link.endSession()
		Debugf("transfer complete: %d fragments, %d bytes", r.total, r.buf.Len())
		return true, nil
	}
	return false, nil
}

// validate runs the sequence, length and integrity checks in that order.
func (r *Receiver) validate(d *frame.Datagram) error {
	switch {
	case !r.totalKnown || int(d.Sequence) != r.expected:
		return ErrSequenceMismatch
	case len(d.Payload) != int(d.PayloadLength):
		return ErrLengthMismatch
	case !frame.VerifyChecksum(d.Payload, d.Checksum):
		return ErrChecksumMismatch
	}
	return nil
}

func (r *Receiver) reject(d *frame.Datagram, reason error) {
	switch reason {
	case ErrSequenceMismatch:
		r.stats.OutOfSequence++
	case ErrLengthMismatch:
		r.stats.LengthErrors++
	case ErrChecksumMismatch:
		r.stats.ChecksumErrors++
	}
	r.state = ReceiverRejected
	r.lastReject = &RejectedError{Reason: reason, Sequence: d.Sequence, Expected: uint16(r.expected)}
	Debugf("%v", r.lastReject)
}

func (r *Receiver) fail(err error) error {
	r.state = ReceiverFailed
	r.err = err
	Debugf("transfer failed: %v", err)
	return err
}
