// spi-eeprom
// Copyright (c) 2025 The spi-eeprom Authors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of spi-eeprom.
//
// spi-eeprom is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// spi-eeprom is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with spi-eeprom; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package detection

import (
	"path/filepath"
	"strings"
)

// DefaultBlocklist returns the VID:PID pairs detection must never probe.
// Serial probing writes bytes to the port, and some devices misbehave when
// fed an unexpected handshake. Entries are hexadecimal, case-insensitive.
func DefaultBlocklist() []string {
	return []string{
		// Populated as problem hardware is reported, e.g.
		// "1234:5678", // resets when probed
		// "ABCD:EF01", // latches up on binary-mode bytes
	}
}

// IsBlocked reports whether vidpid appears in blocklist. The comparison is
// case-insensitive and tolerates surrounding whitespace.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.TrimSpace(vidpid)
	for _, blocked := range blocklist {
		if strings.EqualFold(vidpid, strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// ParseVIDPID normalizes the USB identifier formats enumerators report into
// a canonical uppercase "VID:PID" pair. It understands labeled forms such as
// "VID:0403 PID:6001" and "vendor=04d8 product=fb00" as well as a bare pair,
// and returns "" when no identifier can be extracted.
func ParseVIDPID(descriptor string) string {
	descriptor = strings.ToUpper(descriptor)

	vid := labeledHex(descriptor, "VID:", "VENDOR=", "VID=")
	pid := labeledHex(descriptor, "PID:", "PRODUCT=", "PID=")
	if vid != "" && pid != "" {
		return vid + ":" + pid
	}

	if head, tail, ok := strings.Cut(descriptor, ":"); ok && isHex(head) && isHex(tail) {
		return descriptor
	}
	return ""
}

// labeledHex returns the hex run following the first of labels found in s.
func labeledHex(s string, labels ...string) string {
	for _, label := range labels {
		if idx := strings.Index(s, label); idx >= 0 {
			return firstHexRun(s[idx+len(label):])
		}
	}
	return ""
}

// firstHexRun returns the first contiguous run of hex digits in s. The
// caller has already uppercased s, so lowercase digits need no handling.
func firstHexRun(s string) string {
	start := -1
	for i, r := range s {
		if isHexDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return s[start:i]
		}
	}
	if start >= 0 {
		return s[start:]
	}
	return ""
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isHexDigit(r) {
			return false
		}
	}
	return true
}

// IsPathIgnored reports whether devicePath matches an entry in ignorePaths,
// either verbatim or after cleaning and case folding.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	for _, ignore := range ignorePaths {
		if ignore == "" {
			continue
		}
		if devicePath == ignore || normalizePath(devicePath) == normalizePath(ignore) {
			return true
		}
	}
	return false
}

// normalizePath cleans path and lowercases it so matches hold on
// case-insensitive filesystems.
func normalizePath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
