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
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ZaparooProject/go-arq/frame"
)

//nolint:paralleltest // mutates the package logger
func TestDebugf(t *testing.T) {
	var buf bytes.Buffer
	SetDebugOutput(&buf)
	t.Cleanup(func() {
		SetDebugEnabled(false)
		SetDebugOutput(os.Stderr)
	})

	SetDebugEnabled(false)
	Debugf("hidden %d", 1)
	debugFrame("frame sent", DirectionSend, frame.NewAck(1))
	assert.Empty(t, buf.String())

	SetDebugEnabled(true)
	Debugf("visible %d", 2)
	debugFrame("frame received", DirectionReceive, frame.NewNack(7))

	out := buf.String()
	assert.Contains(t, out, "visible 2")
	assert.Contains(t, out, "frame received")
	assert.Contains(t, out, "Nack")
	assert.Contains(t, out, "recv")
}

func TestNewEvent(t *testing.T) {
	t.Parallel()

	data := newEvent(DirectionSend, frame.NewData(2, 3, []byte("abc")), 18)
	assert.Equal(t, DirectionSend, data.Direction)
	assert.Equal(t, 18, data.Size)
	assert.Equal(t, frame.TypeData, data.Type)
	assert.True(t, data.HasFragment)
	assert.True(t, data.HasChecksum)
	assert.Equal(t, uint16(2), data.Sequence)
	assert.Equal(t, uint16(3), data.Total)
	assert.Equal(t, frame.Checksum([]byte("abc")), data.Checksum)
	assert.False(t, data.Time.IsZero())

	ack := newEvent(DirectionReceive, frame.NewAck(2), frame.ControlFrameSize)
	assert.Equal(t, frame.TypeAck, ack.Type)
	assert.False(t, ack.HasFragment)
	assert.Zero(t, ack.Sequence)

	garbage := newEvent(DirectionReceive, nil, 4)
	assert.Equal(t, frame.MessageType(0), garbage.Type)
	assert.Equal(t, 4, garbage.Size)
}
