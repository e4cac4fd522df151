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

// Direction tells whether a frame was sent or received.
type Direction string

const (
	DirectionSend    Direction = "send"
	DirectionReceive Direction = "recv"
)

// Event describes one frame crossing the transport.
type Event struct {
	Time        time.Time
	Direction   Direction
	Size        int
	Type        frame.MessageType // zero when the bytes did not decode
	Sequence    uint16
	Total       uint16
	Checksum    uint16
	HasFragment bool // Sequence and Total are meaningful
	HasChecksum bool
}

// EventRecorder receives an event for every frame sent or received.
// Recording is best effort; implementations must not block the link.
type EventRecorder interface {
	Record(ev Event)
}

// EventRecorderFunc adapts a function to EventRecorder.
type EventRecorderFunc func(ev Event)

// Record calls f(ev).
func (f EventRecorderFunc) Record(ev Event) {
	f(ev)
}

type nopRecorder struct{}

func (nopRecorder) Record(Event) {}

func newEvent(dir Direction, d *frame.Datagram, size int) Event {
	ev := Event{
		Time:      time.Now(),
		Direction: dir,
		Size:      size,
	}
	if d == nil {
		return ev
	}
	ev.Type = d.Type
	if d.Type == frame.TypeData {
		ev.Sequence = d.Sequence
		ev.Total = d.Total
		ev.Checksum = d.Checksum
		ev.HasFragment = true
		ev.HasChecksum = true
	}
	return ev
}
