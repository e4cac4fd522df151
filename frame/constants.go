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

// Package frame implements the datagram layout exchanged by the ARQ link:
// a fixed 12 byte header, up to MaxFragmentSize payload bytes and a fixed
// 3 byte end-of-packet trailer.
//
// The trailer is not escaped. A payload ending in the trailer bytes can be
// mistaken for a frame boundary by a reader that stops on the trailer, so
// readers rely on fixed-size reads per message type instead.
package frame

// MessageType identifies the purpose of a datagram.
type MessageType byte

// Message types carried in the header.
const (
	TypeHandshakeRequest MessageType = 1
	TypeHandshakeAck     MessageType = 2
	TypeData             MessageType = 3
	TypeAck              MessageType = 4
	TypeNack             MessageType = 5
)

// Frame size limits
const (
	HeaderSize       = 12 // seq(2) total(2) length(2) checksum(2) type(1) reserved(3)
	TrailerSize      = 3
	MaxFragmentSize  = 50
	MinFrameSize     = HeaderSize + TrailerSize
	ControlFrameSize = MinFrameSize // handshake, Ack and Nack frames carry no payload
	MaxFrameSize     = HeaderSize + MaxFragmentSize + TrailerSize
)

// Header field offsets
const (
	offSequence = 0
	offTotal    = 2
	offLength   = 4
	offChecksum = 6
	offType     = 8
	offReserved = 9
)

// Trailer is the end-of-packet sentinel closing every frame.
var Trailer = []byte{0xAA, 0xBB, 0xCC}

// String returns the name of the message type.
func (t MessageType) String() string {
	switch t {
	case TypeHandshakeRequest:
		return "HandshakeRequest"
	case TypeHandshakeAck:
		return "HandshakeAck"
	case TypeData:
		return "Data"
	case TypeAck:
		return "Ack"
	case TypeNack:
		return "Nack"
	default:
		return "Unknown"
	}
}

// Valid reports whether t is one of the defined message types.
func (t MessageType) Valid() bool {
	return t >= TypeHandshakeRequest && t <= TypeNack
}
