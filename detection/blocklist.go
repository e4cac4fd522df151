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
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// DefaultBlocklist returns USB serial devices that are never a link peer.
// Entries are VID:PID pairs in hexadecimal.
func DefaultBlocklist() []string {
	return []string{
		"1366:0105", // SEGGER J-Link virtual COM port
		"0483:374B", // ST-LINK/V2-1 virtual COM port
		"1D50:6018", // Black Magic debug adapter GDB server
	}
}

// ParseVIDPID normalizes a USB vendor:product pair such as "403:6001" or
// "0x0403:0x6001" to the upper-case "0403:6001" form used for ports. ok is
// false unless s is two hex numbers of at most four digits.
func ParseVIDPID(s string) (string, bool) {
	vid, pid, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return "", false
	}
	v, okVID := parseUSBID(vid)
	p, okPID := parseUSBID(pid)
	if !okVID || !okPID {
		return "", false
	}
	return fmt.Sprintf("%04X:%04X", v, p), true
}

func parseUSBID(s string) (uint16, bool) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" || len(s) > 4 {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

// IsBlocked reports whether vidpid is on the blocklist. Both sides go
// through ParseVIDPID, so "403:6001" matches "0403:6001". Malformed entries
// never match.
func IsBlocked(vidpid string, blocklist []string) bool {
	want, ok := ParseVIDPID(vidpid)
	if !ok {
		return false
	}
	return slices.ContainsFunc(blocklist, func(entry string) bool {
		got, ok := ParseVIDPID(entry)
		return ok && got == want
	})
}

// IsPathIgnored reports whether path names one of ignore. Paths are
// cleaned and compared without regard to case, so COM3 matches com3.
func IsPathIgnored(path string, ignore []string) bool {
	if path == "" {
		return false
	}
	return slices.ContainsFunc(ignore, func(p string) bool {
		return p != "" && samePath(path, p)
	})
}

func samePath(a, b string) bool {
	return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
}
