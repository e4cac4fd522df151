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
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-arq/frame"
)

// Transport errors
var (
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportClosed  = errors.New("transport closed")
)

// Protocol errors
var (
	ErrHandshakeFailed  = errors.New("handshake failed")
	ErrNotEstablished   = errors.New("link not established")
	ErrSequenceMismatch = errors.New("fragment out of sequence")
	ErrLengthMismatch   = errors.New("payload length mismatch")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrUndecodable      = errors.New("undecodable frame")
	ErrUnexpectedType   = errors.New("unexpected message type")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ErrorType classifies errors for retry decisions
type ErrorType int

const (
	// ErrorTypePermanent errors end the transfer; the transport must be released.
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors may clear up on the next attempt.
	ErrorTypeTransient
	// ErrorTypeTimeout means nothing arrived within the transport bound.
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "permanent"
	}
}

// TransportError wraps a failure of the underlying byte transport.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Port, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error. Transient and timeout errors
// are marked retryable.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError creates a retryable timeout error
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewTransportReadError creates a permanent read error wrapping cause.
func NewTransportReadError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportRead, cause), ErrorTypePermanent)
}

// NewTransportWriteError creates a permanent write error wrapping cause.
func NewTransportWriteError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportWrite, cause), ErrorTypePermanent)
}

// NewTransportClosedError reports use of a transport that is not open.
func NewTransportClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}

// IsRetryable reports whether an operation failing with err may be attempted
// again. Bare sentinels are classified by identity; wrapped transport errors
// carry their own flag.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrSequenceMismatch),
		errors.Is(err, ErrLengthMismatch),
		errors.Is(err, ErrChecksumMismatch),
		errors.Is(err, ErrUndecodable),
		errors.Is(err, ErrUnexpectedType),
		errors.Is(err, frame.ErrTruncated),
		errors.Is(err, frame.ErrMissingTrailer):
		return true
	default:
		return false
	}
}

// GetErrorType returns the classification of err.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}

	switch {
	case errors.Is(err, ErrTransportTimeout):
		return ErrorTypeTimeout
	case IsRetryable(err):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// HandshakeError reports a failed handshake. It matches ErrHandshakeFailed
// and the underlying cause with errors.Is.
type HandshakeError struct {
	Err      error
	Reason   string
	Received frame.MessageType
}

func (e *HandshakeError) Error() string {
	msg := "handshake failed: " + e.Reason
	if e.Received != 0 {
		msg += fmt.Sprintf(" (received %s)", e.Received)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *HandshakeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrHandshakeFailed}
	}
	return []error{ErrHandshakeFailed, e.Err}
}

// RejectedError describes a data frame the receiver refused and answered
// with a Nack.
type RejectedError struct {
	Reason   error
	Sequence uint16
	Expected uint16
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("fragment %d rejected (expected %d): %v", e.Sequence, e.Expected, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return e.Reason
}
