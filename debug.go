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
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pterm/pterm"

	"github.com/ZaparooProject/go-arq/frame"
)

var (
	debugEnabled atomic.Bool
	loggerMu     sync.RWMutex
	logger       = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *pterm.Logger {
	l := pterm.DefaultLogger.WithLevel(pterm.LogLevelDebug).WithWriter(w)
	l.ShowTime = true
	l.TimeFormat = "15:04:05.000"
	return l
}

// SetDebugEnabled turns protocol tracing on or off.
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// SetDebugOutput redirects protocol tracing to w.
func SetDebugOutput(w io.Writer) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = newLogger(w)
}

// Debugf logs a formatted trace line when debugging is enabled.
func Debugf(format string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	logger.Debug(fmt.Sprintf(format, args...))
}

func debugFrame(msg string, dir Direction, d *frame.Datagram) {
	if !debugEnabled.Load() {
		return
	}
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	logger.Debug(msg, logger.Args(
		"dir", string(dir),
		"type", d.Type.String(),
		"seq", d.Sequence,
		"total", d.Total,
		"len", d.PayloadLength,
		"crc", fmt.Sprintf("%04x", d.Checksum),
	))
}
