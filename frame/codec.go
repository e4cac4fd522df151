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
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame errors
var (
	ErrTruncated       = errors.New("frame truncated")
	ErrMissingTrailer  = errors.New("frame trailer missing")
	ErrPayloadTooLarge = errors.New("payload exceeds maximum fragment size")
)

// Encode serializes a datagram: header, payload, trailer. All multi-byte
// fields are big-endian and the reserved bytes are zero.
func Encode(d *Datagram) ([]byte, error) {
	if len(d.Payload) > MaxFragmentSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(d.Payload), MaxFragmentSize)
	}

	buf := make([]byte, d.Size())
	binary.BigEndian.PutUint16(buf[offSequence:], d.Sequence)
	binary.BigEndian.PutUint16(buf[offTotal:], d.Total)
	binary.BigEndian.PutUint16(buf[offLength:], d.PayloadLength)
	binary.BigEndian.PutUint16(buf[offChecksum:], d.Checksum)
	buf[offType] = byte(d.Type)
	// buf[offReserved:HeaderSize] stays zero
	copy(buf[HeaderSize:], d.Payload)
	copy(buf[HeaderSize+len(d.Payload):], Trailer)
	return buf, nil
}

// Decode parses a buffer holding exactly one frame. Fields are extracted
// positionally; checksum and sequence are not validated here.
func Decode(buf []byte) (*Datagram, error) {
	if len(buf) < MinFrameSize {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrTruncated, len(buf), MinFrameSize)
	}
	if !HasTrailer(buf) {
		return nil, fmt.Errorf("%w: ends with % X", ErrMissingTrailer, buf[len(buf)-TrailerSize:])
	}

	d := &Datagram{
		Sequence:      binary.BigEndian.Uint16(buf[offSequence:]),
		Total:         binary.BigEndian.Uint16(buf[offTotal:]),
		PayloadLength: binary.BigEndian.Uint16(buf[offLength:]),
		Checksum:      binary.BigEndian.Uint16(buf[offChecksum:]),
		Type:          MessageType(buf[offType]),
	}
	// Empty payloads stay nil.
	if n := len(buf) - MinFrameSize; n > 0 {
		d.Payload = make([]byte, n)
		copy(d.Payload, buf[HeaderSize:HeaderSize+n])
	}
	return d, nil
}

// HasTrailer reports whether buf ends with the end-of-packet sentinel.
func HasTrailer(buf []byte) bool {
	return len(buf) >= TrailerSize && bytes.Equal(buf[len(buf)-TrailerSize:], Trailer)
}

// MustEncode is like Encode but panics on error. It is meant for frames
// built by the constructors in this package, which never exceed limits.
func MustEncode(d *Datagram) []byte {
	b, err := Encode(d)
	if err != nil {
		panic(err)
	}
	return b
}
