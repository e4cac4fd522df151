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
	"math"

	"github.com/ZaparooProject/go-arq/frame"
)

// SenderState is the state of a Sender
type SenderState int

const (
	// SenderReady means the current fragment is about to be transmitted.
	SenderReady SenderState = iota
	// SenderAwaitingResponse means a fragment is in flight.
	SenderAwaitingResponse
	// SenderDone means every fragment was acknowledged.
	SenderDone
	// SenderFailed means the transfer was abandoned.
	SenderFailed
)

func (s SenderState) String() string {
	switch s {
	case SenderReady:
		return "ready"
	case SenderAwaitingResponse:
		return "awaiting response"
	case SenderDone:
		return "done"
	case SenderFailed:
		return "failed"
	default:
		return fmt.Sprintf("SenderState(%d)", int(s))
	}
}

// SenderStats counts what happened during a transfer.
type SenderStats struct {
	FramesSent      int
	Retransmissions int
	Acks            int
	Nacks           int
	NoResponse      int
	Undecodable     int
	Unexpected      int
}

// Sender fragments a byte stream and drives the stop-and-wait loop: send a
// fragment, wait for the response, advance on Ack, retransmit otherwise.
type Sender struct {
	link     *Link
	data     []byte
	current  *frame.Datagram // data frame of the fragment in flight
	wire     []byte          // encoding of current
	err      error
	stats    SenderStats
	size     int
	attempt  int // transmissions of the fragment in flight
	failures int // consecutive failed attempts of the fragment in flight
	seq      int // 1-based, total+1 once done
	total    uint16
	state    SenderState
}

// NewSender prepares the transfer of data. The link must be established and
// data must not be empty.
func (l *Link) NewSender(data []byte) (*Sender, error) {
	if !l.Established() {
		return nil, ErrNotEstablished
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty transfer: %w", ErrInvalidParameter)
	}

	size := l.config.MaxFragmentSize
	total := (len(data) + size - 1) / size
	if total > math.MaxUint16 {
		return nil, fmt.Errorf("%d bytes need %d fragments (max %d): %w",
			len(data), total, math.MaxUint16, ErrInvalidParameter)
	}

	return &Sender{
		link:  l,
		data:  data,
		size:  size,
		seq:   1,
		total: uint16(total),
		state: SenderReady,
	}, nil
}

// State returns the current state.
func (s *Sender) State() SenderState { return s.state }

// Current returns the 1-based index of the fragment being sent. It is
// Total()+1 once the transfer is done.
func (s *Sender) Current() int { return s.seq }

// Total returns the number of fragments of the transfer.
func (s *Sender) Total() uint16 { return s.total }

// Stats returns transfer counters.
func (s *Sender) Stats() SenderStats { return s.stats }

// Err returns the error that failed the transfer, if any.
func (s *Sender) Err() error { return s.err }

// Fragment returns the payload of fragment seq.
func (s *Sender) Fragment(seq uint16) ([]byte, bool) {
	if seq < 1 || seq > s.total {
		return nil, false
	}
	start := int(seq-1) * s.size
	end := min(start+s.size, len(s.data))
	return s.data[start:end], true
}

// Datagram returns the Data frame carrying fragment seq.
func (s *Sender) Datagram(seq uint16) (*frame.Datagram, bool) {
	payload, ok := s.Fragment(seq)
	if !ok {
		return nil, false
	}
	return frame.NewData(seq, s.total, payload), true
}

// Run transmits every fragment in order, retrying each one according to the
// link's retry policy. It returns nil once the last fragment is
// acknowledged.
func (s *Sender) Run(ctx context.Context) error {
	switch s.state {
	case SenderDone:
		return nil
	case SenderFailed:
		return s.err
	}

	policy := s.link.config.RetryPolicy
	for s.seq <= int(s.total) {
		if err := ctx.Err(); err != nil {
			return s.fail(fmt.Errorf("fragment %d/%d: %w", s.seq, s.total, err))
		}

		acked, err := s.Step()
		if err != nil {
			return s.fail(fmt.Errorf("fragment %d/%d: %w", s.seq, s.total, err))
		}
		if acked {
			continue
		}

		s.failures++
		if policy.Exhausted(s.failures) {
			return s.fail(fmt.Errorf("fragment %d/%d after %d attempts: %w",
				s.seq, s.total, s.failures, ErrRetriesExhausted))
		}
		if err := sleepContext(ctx, policy.Backoff(s.failures)); err != nil {
			return s.fail(fmt.Errorf("fragment %d/%d: %w", s.seq, s.total, err))
		}
	}

	s.state = SenderDone
	s.link.endSession()
	Debugf("transfer complete: %d fragments, %d retransmissions", s.total, s.stats.Retransmissions)
	return nil
}

// Step transmits the fragment in flight once and waits for the response.
// It reports whether the fragment was acknowledged; on false the same
// fragment is sent again by the next Step. Only fatal transport errors are
// returned.
func (s *Sender) Step() (bool, error) {
	if s.state == SenderDone || s.state == SenderFailed {
		return false, fmt.Errorf("sender is %s: %w", s.state, ErrInvalidParameter)
	}

	d, b, err := s.nextTransmission()
	if err != nil {
		return false, err
	}

	if err := s.link.writeEncoded(d, b); err != nil {
		if !IsRetryable(err) {
			return false, err
		}
		s.stats.NoResponse++
		return false, nil
	}
	s.stats.FramesSent++
	if s.attempt > 1 {
		s.stats.Retransmissions++
	}

	s.state = SenderAwaitingResponse
	in, err := s.link.readFrame(frame.ControlFrameSize)
	s.state = SenderReady
	if err != nil {
		if !IsRetryable(err) {
			return false, err
		}
		s.stats.NoResponse++
		return false, nil
	}

	if !s.acknowledged(in) {
		return false, nil
	}
	s.advance()
	return true, nil
}

// nextTransmission returns the frame to put on the wire for this attempt.
// Every attempt of a fragment sends the same bytes unless a fault injector
// alters them.
func (s *Sender) nextTransmission() (*frame.Datagram, []byte, error) {
	if s.current == nil {
		d, _ := s.Datagram(uint16(s.seq))
		b, err := frame.Encode(d)
		if err != nil {
			return nil, nil, err
		}
		s.current, s.wire = d, b
	}
	s.attempt++

	if f := s.link.config.Faults; f != nil {
		a := Attempt{Sequence: uint16(s.seq), Total: s.total, Number: s.attempt}
		if d := f.Inject(s, a, s.current.Clone()); d != nil {
			b, err := frame.Encode(d)
			if err != nil {
				return nil, nil, fmt.Errorf("fault injection: %w", err)
			}
			return d, b, nil
		}
	}
	return s.current, s.wire, nil
}

// acknowledged evaluates a response to the fragment in flight.
func (s *Sender) acknowledged(in inbound) bool {
	switch {
	case in.empty():
		s.stats.NoResponse++
		Debugf("no response to fragment %d, retransmitting", s.seq)
		return false
	case in.decodeErr != nil:
		s.stats.Undecodable++
		Debugf("malformed response to fragment %d, retransmitting", s.seq)
		return false
	}

	d := in.dgram
	switch d.Type {
	case frame.TypeAck:
		if s.link.config.StrictAck && int(d.Sequence) != s.seq {
			s.stats.Unexpected++
			Debugf("ack names fragment %d while %d is in flight, retransmitting", d.Sequence, s.seq)
			return false
		}
		s.stats.Acks++
		return true
	case frame.TypeNack:
		s.stats.Nacks++
		// The peer already holds the fragment in flight and asks for the
		// next one: its Ack was lost.
		if s.link.config.StrictAck && int(d.Sequence) == s.seq+1 {
			Debugf("nack requests fragment %d, treating %d as acknowledged", d.Sequence, s.seq)
			return true
		}
		Debugf("nack for fragment %d (peer expects %d), retransmitting", s.seq, d.Sequence)
		return false
	default:
		s.stats.Unexpected++
		Debugf("unexpected %s in response to fragment %d, retransmitting", d.Type, s.seq)
		return false
	}
}

func (s *Sender) advance() {
	if hook := s.link.config.OnFragment; hook != nil {
		hook(uint16(s.seq), s.total)
	}
	s.seq++
	s.current, s.wire = nil, nil
	s.attempt, s.failures = 0, 0
}

func (s *Sender) fail(err error) error {
	s.state = SenderFailed
	s.err = err
	Debugf("transfer failed: %v", err)
	return err
}
