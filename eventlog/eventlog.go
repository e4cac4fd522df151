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

// Package eventlog writes an append-only line per frame crossing a link:
//
//	dd/mm/yyyy HH:MM:SS.micro / send|recv / <type> / <size>[ / <seq> / <total>][ / <crc>]
//
// The type is the numeric message type, the checksum four lowercase hex
// digits. Sequence, total and checksum appear only for Data frames.
package eventlog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	arq "github.com/ZaparooProject/go-arq"
)

// TimeLayout is the timestamp layout of a log line.
const TimeLayout = "02/01/2006 15:04:05.000000"

const (
	fieldDirection = "direction"
	fieldType      = "type"
	fieldSize      = "size"
	fieldSequence  = "seq"
	fieldTotal     = "total"
	fieldChecksum  = "crc"
)

// LineFormatter renders entries in the event log layout.
type LineFormatter struct{}

// Format implements logrus.Formatter.
func (LineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(e.Time.Format(TimeLayout))
	fmt.Fprintf(&b, " / %v / %v / %v", e.Data[fieldDirection], e.Data[fieldType], e.Data[fieldSize])
	if seq, ok := e.Data[fieldSequence]; ok {
		fmt.Fprintf(&b, " / %v / %v", seq, e.Data[fieldTotal])
	}
	if crc, ok := e.Data[fieldChecksum]; ok {
		fmt.Fprintf(&b, " / %04x", crc)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Recorder is an arq.EventRecorder writing through a logrus logger.
type Recorder struct {
	logger *logrus.Logger
	closer io.Closer
	once   sync.Once
}

// New returns a recorder writing to w.
func New(w io.Writer) *Recorder {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(LineFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	return &Recorder{logger: logger}
}

// Open returns a recorder appending to the file at path, creating it and
// its directory if needed.
func Open(path string) (*Recorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // operator-chosen path
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	r := New(f)
	r.closer = f
	return r, nil
}

// Record writes one line for ev. Write failures are dropped so the link is
// never held up by its log.
func (r *Recorder) Record(ev arq.Event) {
	fields := logrus.Fields{
		fieldDirection: string(ev.Direction),
		fieldType:      int(ev.Type),
		fieldSize:      ev.Size,
	}
	if ev.HasFragment {
		fields[fieldSequence] = ev.Sequence
		fields[fieldTotal] = ev.Total
	}
	if ev.HasChecksum {
		fields[fieldChecksum] = ev.Checksum
	}
	r.logger.WithFields(fields).WithTime(ev.Time).Info()
}

// Close closes the underlying file, if the recorder owns one.
func (r *Recorder) Close() error {
	var err error
	r.once.Do(func() {
		if r.closer != nil {
			err = r.closer.Close()
		}
	})
	return err
}
