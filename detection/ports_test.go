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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func testDetails() []*enumerator.PortDetails {
	return []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1a86", PID: "7523", Product: "USB Serial"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", SerialNumber: "A50285BI"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "1366", PID: "0105"},
		{Name: "/dev/cu.usbserial-110", IsUSB: true, VID: "0403", PID: "6015"},
		{Name: "/dev/tty.usbserial-110", IsUSB: true, VID: "0403", PID: "6015"},
		{Name: "/dev/cu.Bluetooth-Incoming-Port"},
		{Name: "/dev/cu.debug-console"},
	}
}

func paths(ports []Port) []string {
	out := make([]string, 0, len(ports))
	for _, p := range ports {
		out = append(out, p.Path)
	}
	return out
}

func TestFilterPorts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "default options",
			opts: DefaultOptions(),
			want: []string{"/dev/cu.usbserial-110", "/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyS0"},
		},
		{
			name: "no blocklist",
			opts: Options{},
			want: []string{"/dev/cu.usbserial-110", "/dev/ttyACM0", "/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyS0"},
		},
		{
			name: "usb only",
			opts: Options{Blocklist: DefaultBlocklist(), USBOnly: true},
			want: []string{"/dev/cu.usbserial-110", "/dev/ttyUSB0", "/dev/ttyUSB1"},
		},
		{
			name: "ignored paths",
			opts: Options{Blocklist: DefaultBlocklist(), IgnorePaths: []string{"/dev/ttyUSB0", "/dev/ttyS0"}},
			want: []string{"/dev/cu.usbserial-110", "/dev/ttyUSB1"},
		},
		{
			name: "custom blocklist",
			opts: Options{Blocklist: []string{"1a86:7523"}},
			want: []string{"/dev/cu.usbserial-110", "/dev/ttyACM0", "/dev/ttyUSB0", "/dev/ttyS0"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, paths(filterPorts(testDetails(), tt.opts)))
		})
	}
}

func TestFilterPorts_Metadata(t *testing.T) {
	t.Parallel()

	ports := filterPorts(testDetails(), DefaultOptions())
	require.Len(t, ports, 4)

	usb0 := ports[1]
	assert.Equal(t, "/dev/ttyUSB0", usb0.Path)
	assert.Equal(t, "0403:6001", usb0.VIDPID)
	assert.Equal(t, "A50285BI", usb0.SerialNumber)
	assert.Equal(t, "/dev/ttyUSB0 [0403:6001]", usb0.String())

	assert.Equal(t, "1A86:7523", ports[2].VIDPID)
	assert.Equal(t, "/dev/ttyUSB1 [1A86:7523] USB Serial", ports[2].String())

	assert.Empty(t, ports[3].VIDPID)
	assert.Equal(t, "/dev/ttyS0", ports[3].String())
}

//nolint:paralleltest // replaces the package enumerator
func TestListSerialPorts(t *testing.T) {
	orig := listDetailed
	t.Cleanup(func() { listDetailed = orig })

	listDetailed = func() ([]*enumerator.PortDetails, error) {
		return testDetails(), nil
	}
	ports, err := ListSerialPorts(DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, ports, 4)

	listDetailed = func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("no sysfs")
	}
	_, err = ListSerialPorts(DefaultOptions())
	require.ErrorContains(t, err, "no sysfs")
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		vidpid    string
		blocklist []string
		want      bool
	}{
		{name: "listed", vidpid: "1366:0105", blocklist: DefaultBlocklist(), want: true},
		{name: "lower case and spaces", vidpid: " 0483:374b ", blocklist: DefaultBlocklist(), want: true},
		{name: "short vendor id", vidpid: "403:6001", blocklist: []string{"0403:6001"}, want: true},
		{name: "hex prefixed entry", vidpid: "0403:6001", blocklist: []string{"0x0403:0x6001"}, want: true},
		{name: "not listed", vidpid: "0403:6001", blocklist: DefaultBlocklist()},
		{name: "nil blocklist", vidpid: "0403:6001"},
		{name: "malformed entry skipped", vidpid: "0403:6001", blocklist: []string{"0403-6001"}},
		{name: "malformed port id", vidpid: "FTDI", blocklist: []string{"FTDI"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsBlocked(tt.vidpid, tt.blocklist))
		})
	}
}

func TestParseVIDPID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "0403:6001", want: "0403:6001", ok: true},
		{in: "1a86:7523", want: "1A86:7523", ok: true},
		{in: "403:6001", want: "0403:6001", ok: true},
		{in: "0x10c4:0xEA60", want: "10C4:EA60", ok: true},
		{in: " 2341:43 ", want: "2341:0043", ok: true},
		{in: "/dev/ttyUSB0"},
		{in: "COM3"},
		{in: "0403:"},
		{in: "04030:6001"},
		{in: "0403:6001:1"},
		{in: "/dev/serial/by-path/pci-0000:00:14.0-usb-0:1:1.0-port0"},
	}

	for _, tt := range tests {
		got, ok := ParseVIDPID(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

//nolint:paralleltest // replaces the package enumerator
func TestResolvePort(t *testing.T) {
	orig := listDetailed
	t.Cleanup(func() { listDetailed = orig })
	listDetailed = func() ([]*enumerator.PortDetails, error) {
		return testDetails(), nil
	}

	tests := []struct {
		wantErr  error
		name     string
		selector string
		want     string
	}{
		{name: "path passes through", selector: "/dev/ttyS3", want: "/dev/ttyS3"},
		{name: "windows port passes through", selector: "COM3", want: "COM3"},
		{name: "vid pid", selector: "0403:6001", want: "/dev/ttyUSB0"},
		{name: "lower case vid pid", selector: "1a86:7523", want: "/dev/ttyUSB1"},
		{name: "callout device preferred", selector: "403:6015", want: "/dev/cu.usbserial-110"},
		{name: "blocklisted but named", selector: "1366:0105", want: "/dev/ttyACM0"},
		{name: "not attached", selector: "10C4:EA60", wantErr: ErrNoMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePort(tt.selector, DefaultOptions())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	listDetailed = func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("no sysfs")
	}
	_, err := ResolvePort("0403:6001", DefaultOptions())
	require.ErrorContains(t, err, "no sysfs")

	path, err := ResolvePort("/dev/ttyUSB0", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", path)
}
