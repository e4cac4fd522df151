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

package frame

import (
	"bytes"
	"fmt"
)

// Datagram is the unit exchanged on the wire.
//
// PayloadLength is carried as declared and is not derived from Payload when
// encoding, so a frame whose declared length disagrees with its payload can
// still be put on the wire. Receivers detect the mismatch.
//
// A nil Payload means an empty one. Decode never returns an empty non-nil
// slice, so an encoded []byte{} payload comes back as nil.
type Datagram struct {
	Payload       []byte
	Sequence      uint16
	Total         uint16
	PayloadLength uint16
	Checksum      uint16
	Type          MessageType
}

// NewData builds a Data frame for one fragment with its length and checksum.
func NewData(seq, total uint16, payload []byte) *Datagram {
	return &Datagram{
		Sequence:      seq,
		Total:         total,
		PayloadLength: uint16(len(payload)),
		Checksum:      Checksum(payload),
		Type:          TypeData,
		Payload:       payload,
	}
}

// NewHandshakeRequest builds the frame opening a session.
func NewHandshakeRequest() *Datagram {
	return &Datagram{Type: TypeHandshakeRequest}
}

// NewHandshakeAck builds the reply accepting a session.
func NewHandshakeAck() *Datagram {
	return &Datagram{Type: TypeHandshakeAck}
}

// NewAck confirms that fragment seq was received.
func NewAck(seq uint16) *Datagram {
	return &Datagram{Sequence: seq, Type: TypeAck}
}

// NewNack asks the sender for fragment expected.
func NewNack(expected uint16) *Datagram {
	return &Datagram{Sequence: expected, Type: TypeNack}
}

// Size returns the encoded size of the datagram in bytes.
func (d *Datagram) Size() int {
	return HeaderSize + len(d.Payload) + TrailerSize
}

// Clone returns a deep copy of d.
func (d *Datagram) Clone() *Datagram {
	c := *d
	if d.Payload != nil {
		c.Payload = bytes.Clone(d.Payload)
	}
	return &c
}

func (d *Datagram) String() string {
	return fmt.Sprintf("%s seq=%d total=%d len=%d crc=%04x",
		d.Type, d.Sequence, d.Total, d.PayloadLength, d.Checksum)
}
