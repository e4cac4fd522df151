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
	"time"

	"github.com/ZaparooProject/go-arq/frame"
)

// Attempt identifies one transmission of a fragment.
type Attempt struct {
	Sequence uint16
	Total    uint16
	Number   int // 1 for the first transmission of the fragment
}

// FaultInjector alters outgoing Data frames so the peer's error handling can
// be exercised over a real line. Inject receives a copy of the frame about
// to be sent and returns the frame to send instead, or nil to send it
// unchanged.
type FaultInjector interface {
	Inject(s *Sender, a Attempt, d *frame.Datagram) *frame.Datagram
}

// FaultFunc adapts a function to FaultInjector.
type FaultFunc func(s *Sender, a Attempt, d *frame.Datagram) *frame.Datagram

// Inject calls f.
func (f FaultFunc) Inject(s *Sender, a Attempt, d *frame.Datagram) *frame.Datagram {
	return f(s, a, d)
}

// CorruptPayload flips the first payload byte of fragment seq after its
// checksum was computed, on the first transmission only.
func CorruptPayload(seq uint16) FaultInjector {
	return FaultFunc(func(_ *Sender, a Attempt, d *frame.Datagram) *frame.Datagram {
		if a.Sequence != seq || a.Number != 1 || len(d.Payload) == 0 {
			return nil
		}
		d.Payload[0] ^= 0xFF
		return d
	})
}

// SendOutOfOrder transmits fragment seq+1 in place of the first
// transmission of fragment seq.
func SendOutOfOrder(seq uint16) FaultInjector {
	return FaultFunc(func(s *Sender, a Attempt, _ *frame.Datagram) *frame.Datagram {
		if a.Sequence != seq || a.Number != 1 {
			return nil
		}
		next, ok := s.Datagram(seq + 1)
		if !ok {
			return nil
		}
		return next
	})
}

// FakeLength declares length in the header of fragment seq on its first
// transmission, leaving the payload untouched.
func FakeLength(seq, length uint16) FaultInjector {
	return FaultFunc(func(_ *Sender, a Attempt, d *frame.Datagram) *frame.Datagram {
		if a.Sequence != seq || a.Number != 1 {
			return nil
		}
		d.PayloadLength = length
		return d
	})
}

// InterruptLine closes the transport before the first transmission of
// fragment seq, waits pause and opens it again, as if the cable had been
// pulled. The frame itself is sent unchanged. If the transport cannot be
// reopened the following write fails and the transfer aborts.
func InterruptLine(seq uint16, pause time.Duration) FaultInjector {
	return FaultFunc(func(s *Sender, a Attempt, _ *frame.Datagram) *frame.Datagram {
		if a.Sequence != seq || a.Number != 1 {
			return nil
		}
		t := s.link.transport
		Debugf("interrupting line before fragment %d for %v", seq, pause)
		if err := t.Close(); err != nil {
			Debugf("interrupt close: %v", err)
		}
		time.Sleep(pause)
		if err := t.Open(); err != nil {
			Debugf("interrupt reopen: %v", err)
		}
		return nil
	})
}

// ChainFaults applies injectors in order, each seeing the previous result.
func ChainFaults(faults ...FaultInjector) FaultInjector {
	return FaultFunc(func(s *Sender, a Attempt, d *frame.Datagram) *frame.Datagram {
		var changed bool
		for _, f := range faults {
			if out := f.Inject(s, a, d); out != nil {
				d, changed = out, true
			}
		}
		if !changed {
			return nil
		}
		return d
	})
}
