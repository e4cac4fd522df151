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

// Package detection discovers serial ports a link can run over.
package detection

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ErrNoMatch is returned when no attached port has the requested VID:PID.
var ErrNoMatch = errors.New("no serial port with that VID:PID")

// Port describes a serial port found on the system.
type Port struct {
	Path         string
	VIDPID       string // empty for non-USB ports
	Product      string
	SerialNumber string
	IsUSB        bool
}

func (p Port) String() string {
	if !p.IsUSB {
		return p.Path
	}
	desc := p.Path + " [" + p.VIDPID + "]"
	if p.Product != "" {
		desc += " " + p.Product
	}
	return desc
}

// Options controls which ports are reported
type Options struct {
	// Blocklist holds VID:PID pairs that are skipped.
	Blocklist []string
	// IgnorePaths holds device paths that are skipped.
	IgnorePaths []string
	// USBOnly drops ports that are not USB adapters.
	USBOnly bool
}

// DefaultOptions returns the default detection options
func DefaultOptions() Options {
	return Options{
		Blocklist: DefaultBlocklist(),
	}
}

// listDetailed is replaced in tests.
var listDetailed = enumerator.GetDetailedPortsList

// ListSerialPorts enumerates serial ports, applies opts and returns the
// remaining ports sorted by path, USB adapters first.
func ListSerialPorts(opts Options) ([]Port, error) {
	details, err := listDetailed()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return filterPorts(details, opts), nil
}

func filterPorts(details []*enumerator.PortDetails, opts Options) []Port {
	names := make(map[string]bool, len(details))
	for _, d := range details {
		names[d.Name] = true
	}

	ports := make([]Port, 0, len(details))
	for _, d := range details {
		port := Port{
			Path:         d.Name,
			IsUSB:        d.IsUSB,
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
		}
		if d.IsUSB {
			port.VIDPID, _ = ParseVIDPID(d.VID + ":" + d.PID)
		}

		switch {
		case opts.USBOnly && !port.IsUSB:
			continue
		case port.VIDPID != "" && IsBlocked(port.VIDPID, opts.Blocklist):
			continue
		case IsPathIgnored(port.Path, opts.IgnorePaths):
			continue
		case !shouldIncludeDevice(filepath.Base(port.Path)):
			continue
		case hasCalloutEquivalent(port.Path, names):
			continue
		}
		ports = append(ports, port)
	}

	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].IsUSB != ports[j].IsUSB {
			return ports[i].IsUSB
		}
		return ports[i].Path < ports[j].Path
	})
	return ports
}

// ResolvePort turns a device selector into a port path. A VID:PID pair
// picks the first attached USB adapter with those IDs, even a blocklisted
// one, since the user named it. Anything else is taken as a path.
func ResolvePort(selector string, opts Options) (string, error) {
	want, ok := ParseVIDPID(selector)
	if !ok {
		return selector, nil
	}

	opts.Blocklist = nil
	opts.USBOnly = true
	ports, err := ListSerialPorts(opts)
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		if p.VIDPID == want {
			return p.Path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoMatch, want)
}

// hasCalloutEquivalent reports whether a macOS /dev/tty.* device also
// appears as /dev/cu.*, which is the one to open for outgoing use.
func hasCalloutEquivalent(path string, names map[string]bool) bool {
	if !strings.HasPrefix(path, "/dev/tty.") {
		return false
	}
	return names[strings.Replace(path, "/dev/tty.", "/dev/cu.", 1)]
}

// shouldIncludeDevice drops Bluetooth and system console ports by name.
func shouldIncludeDevice(name string) bool {
	lowerName := strings.ToLower(name)
	if strings.Contains(lowerName, "bluetooth") {
		return false
	}

	systemPatterns := []string{
		"console", "debug", "system", "kernel",
	}
	for _, sysPattern := range systemPatterns {
		if strings.Contains(lowerName, sysPattern) {
			return false
		}
	}
	return true
}
