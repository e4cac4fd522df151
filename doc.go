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


/*
Package arq implements a stop-and-wait automatic repeat request protocol for
moving a byte buffer reliably across a noisy point-to-point link, usually a
serial line.

Every frame carries a 12-byte big-endian header (sequence, total, payload
length, CRC-16/CCITT-FALSE checksum, type), up to 50 bytes of payload and the
AA BB CC trailer. The frame package owns the wire codec.

A Link wraps a Transport. Before any data moves, one side calls Handshake and
the other AcceptHandshake. Once established, the sending side splits its
buffer into fragments and transmits them one at a time, waiting for an Ack
before moving on and resending the same frame on a Nack or on silence. The
receiving side validates each Data frame, answers with Ack or Nack, and
reassembles the payload in order.

Basic usage:

	tr, err := uart.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}

	link, err := arq.New(tr, arq.WithMaxRetries(10))
	if err != nil {
	    log.Fatal(err)
	}
	if err := link.Open(); err != nil {
	    log.Fatal(err)
	}
	defer link.Close()

	if err := link.Handshake(ctx); err != nil {
	    log.Fatal(err)
	}
	if err := link.Send(ctx, data); err != nil {
	    log.Fatal(err)
	}

The receiving end mirrors this with AcceptHandshake and Receive. For finer
control, NewSender and NewReceiver expose the per-step state machines.

Transports live in transport/uart (go.bug.st/serial) and transport/ws
(gorilla/websocket). MockTransport and the in-memory pipe transport are provided for tests.

SetDebugEnabled turns on pterm-backed protocol traces.
*/
package arq
