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


package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		ignore []string
		want   bool
	}{
		{name: "nil ignore list", path: "/dev/ttyUSB0"},
		{name: "empty path", path: "", ignore: []string{""}},
		{name: "usb adapter", path: "/dev/ttyUSB0", ignore: []string{"/dev/ttyUSB0"}, want: true},
		{name: "cdc acm adapter", path: "/dev/ttyACM1", ignore: []string{"/dev/ttyACM0", "/dev/ttyACM1"}, want: true},
		{name: "other adapter", path: "/dev/ttyUSB1", ignore: []string{"/dev/ttyUSB0"}},
		{name: "windows port any case", path: "com7", ignore: []string{"COM7"}, want: true},
		{name: "windows port prefix is not a match", path: "COM10", ignore: []string{"COM1"}},
		{name: "macos callout", path: "/dev/cu.usbserial-110", ignore: []string{"/dev/cu.usbserial-110"}, want: true},
		{name: "macos dial-in is distinct", path: "/dev/tty.usbserial-110", ignore: []string{"/dev/cu.usbserial-110"}},
		{name: "by-id symlink spelled with dot segments", path: "/dev/serial/by-id/../by-id/usb-FTDI-if00",
			ignore: []string{"/dev/serial/by-id/usb-FTDI-if00"}, want: true},
		{name: "trailing slash", path: "/dev/ttyS0/", ignore: []string{"/dev/ttyS0"}, want: true},
		{name: "blank entries skipped", path: "/dev/ttyS0", ignore: []string{"", "/dev/ttyS0"}, want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsPathIgnored(tt.path, tt.ignore))
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	assert.Equal(t, DefaultBlocklist(), opts.Blocklist)
	assert.Nil(t, opts.IgnorePaths)
	assert.False(t, opts.USBOnly)
	for _, entry := range opts.Blocklist {
		_, ok := ParseVIDPID(entry)
		assert.True(t, ok, entry)
	}
}
