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

import "time"

// Transport is the byte-oriented link the protocol runs over. It offers no
// message boundaries and no delivery guarantees. Implementations exist for
// serial ports (transport/uart) and WebSocket bridges (transport/ws).
type Transport interface {
	// Open acquires the underlying line
	Open() error

	// Close releases the underlying line
	Close() error

	// Send writes all of data to the line
	Send(data []byte) error

	// Receive blocks until maxLen bytes arrived or the line stayed idle for
	// the read timeout. It returns fewer bytes, or none, on timeout.
	Receive(maxLen int) ([]byte, error)

	// Discard drops up to n incoming bytes and returns how many were dropped
	// before the read timeout.
	Discard(n int) (int, error)

	// ClearInputBuffer drops everything received but not yet read
	ClearInputBuffer() error

	// SetTimeout sets the read timeout
	SetTimeout(timeout time.Duration) error

	// IsOpen returns true if the line is open
	IsOpen() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents a serial port.
	TransportUART TransportType = "uart"
	// TransportWebSocket represents a byte stream tunnelled over a WebSocket.
	TransportWebSocket TransportType = "ws"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// PortNamer is implemented by transports that can name their line, used to
// annotate errors and logs.
type PortNamer interface {
	PortName() string
}

func portName(t Transport) string {
	if n, ok := t.(PortNamer); ok {
		return n.PortName()
	}
	return string(t.Type())
}
