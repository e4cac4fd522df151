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

// Package uart implements the byte transport over a serial port.
package uart

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	arq "github.com/ZaparooProject/go-arq"
)

const (
	// DefaultBaudRate matches the reference wiring of the link.
	DefaultBaudRate = 115200
	// DefaultTimeout bounds how long Receive waits for the first byte.
	DefaultTimeout = time.Second
	// DefaultInterByteTimeout ends a read once the line goes quiet after
	// data started arriving.
	DefaultInterByteTimeout = 50 * time.Millisecond
)

type openFunc func(name string, mode *serial.Mode) (serial.Port, error)

// Transport implements arq.Transport for serial ports
type Transport struct {
	port      serial.Port
	open      openFunc
	mode      *serial.Mode
	portName  string
	mu        sync.Mutex
	timeout   time.Duration
	interByte time.Duration
}

// Option configures a Transport
type Option func(*Transport)

// WithBaudRate sets the line speed.
func WithBaudRate(baud int) Option {
	return func(t *Transport) {
		t.mode.BaudRate = baud
	}
}

// WithReadTimeout sets how long Receive waits for the first byte.
func WithReadTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.timeout = timeout
	}
}

// WithInterByteTimeout sets the idle gap that ends a read in progress.
func WithInterByteTimeout(gap time.Duration) Option {
	return func(t *Transport) {
		t.interByte = gap
	}
}

// New creates a UART transport for portName. The port is opened by Open.
func New(portName string, opts ...Option) (*Transport, error) {
	if portName == "" {
		return nil, fmt.Errorf("empty port name: %w", arq.ErrInvalidParameter)
	}
	t := &Transport{
		portName: portName,
		open:     serial.Open,
		mode: &serial.Mode{
			BaudRate: DefaultBaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		timeout:   DefaultTimeout,
		interByte: DefaultInterByteTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.mode.BaudRate <= 0 || t.timeout <= 0 || t.interByte <= 0 {
		return nil, fmt.Errorf("invalid serial settings for %s: %w", portName, arq.ErrInvalidParameter)
	}
	return t, nil
}

// Open opens the serial port
func (t *Transport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return nil
	}

	port, err := t.open(t.portName, t.mode)
	if err != nil {
		return t.classify("Open", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return t.classify("Open", err)
	}
	t.port = port
	arq.Debugf("opened %s at %d baud", t.portName, t.mode.BaudRate)
	return nil
}

// Close closes the serial port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return t.classify("Close", err)
	}
	return nil
}

// Send writes data and waits until it left the output buffer.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return arq.NewTransportClosedError("Send", t.portName)
	}

	for written := 0; written < len(data); {
		n, err := t.port.Write(data[written:])
		if err != nil {
			return t.writeError(err)
		}
		if n == 0 {
			return t.writeError(errors.New("short write"))
		}
		written += n
	}
	if err := t.port.Drain(); err != nil {
		return t.writeError(err)
	}
	return nil
}

// Receive reads up to maxLen bytes. It waits up to the read timeout for the
// first byte, then keeps reading until maxLen bytes arrived or the line
// stayed quiet for the inter-byte gap. No bytes and no error means timeout.
func (t *Transport) Receive(maxLen int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil, arq.NewTransportClosedError("Receive", t.portName)
	}
	if maxLen <= 0 {
		return nil, nil
	}

	deadline := time.Now().Add(t.timeout)
	buf := make([]byte, 0, maxLen)
	chunk := make([]byte, maxLen)
	for len(buf) < maxLen {
		wait := t.interByte
		if len(buf) == 0 {
			wait = time.Until(deadline)
			if wait <= 0 {
				break
			}
		}
		if err := t.port.SetReadTimeout(wait); err != nil {
			return nil, t.readError(err)
		}

		n, err := t.port.Read(chunk[:maxLen-len(buf)])
		if err != nil {
			return nil, t.readError(err)
		}
		if n == 0 {
			if len(buf) > 0 {
				break
			}
			continue
		}
		buf = append(buf, chunk[:n]...)
	}

	if len(buf) == 0 {
		return nil, nil
	}
	return buf, nil
}

// Discard drops up to n bytes from the line.
func (t *Transport) Discard(n int) (int, error) {
	b, err := t.Receive(n)
	return len(b), err
}

// ClearInputBuffer drops bytes received but not read yet
func (t *Transport) ClearInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return arq.NewTransportClosedError("ClearInputBuffer", t.portName)
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		return t.classify("ClearInputBuffer", err)
	}
	return nil
}

// SetTimeout sets how long Receive waits for the first byte.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("timeout %v: %w", timeout, arq.ErrInvalidParameter)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// IsOpen returns true if the port is open
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() arq.TransportType {
	return arq.TransportUART
}

// PortName returns the device path
func (t *Transport) PortName() string {
	return t.portName
}

func (t *Transport) readError(err error) error {
	if isClosed(err) {
		return arq.NewTransportClosedError("Receive", t.portName)
	}
	return arq.NewTransportReadError("Receive", t.portName, err)
}

func (t *Transport) writeError(err error) error {
	if isClosed(err) {
		return arq.NewTransportClosedError("Send", t.portName)
	}
	return arq.NewTransportWriteError("Send", t.portName, err)
}

// classify maps serial port errors onto the transport error taxonomy. A
// busy port may free up; everything else needs the operator.
func (t *Transport) classify(op string, err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortBusy:
			return arq.NewTransportError(op, t.portName, err, arq.ErrorTypeTransient)
		case serial.PortClosed:
			return arq.NewTransportClosedError(op, t.portName)
		}
	}
	return arq.NewTransportError(op, t.portName, err, arq.ErrorTypePermanent)
}

func isClosed(err error) bool {
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortClosed
}
