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

//go:build darwin

package buspirate

import (
	"context"
	"path/filepath"
	"strings"
)

// getSerialPorts enumerates serial devices on macOS. Callout devices
// (/dev/cu.*) are preferred over their /dev/tty.* twins because opening a
// cu device does not block on carrier detect; a tty device is listed only
// when it has no cu twin. USB identifiers are not available from the
// filesystem alone, so candidates found here score on the name heuristics
// in the detector.
func getSerialPorts(_ context.Context) ([]serialPort, error) {
	cu, _ := filepath.Glob("/dev/cu.*")
	tty, _ := filepath.Glob("/dev/tty.*")

	hasCallout := make(map[string]bool, len(cu))
	for _, path := range cu {
		hasCallout[strings.TrimPrefix(path, "/dev/cu.")] = true
	}

	var ports []serialPort
	for _, path := range cu {
		if name := filepath.Base(path); usableDarwinPort(name) {
			ports = append(ports, serialPort{Path: path, Name: name})
		}
	}
	for _, path := range tty {
		if hasCallout[strings.TrimPrefix(path, "/dev/tty.")] {
			continue
		}
		if name := filepath.Base(path); usableDarwinPort(name) {
			ports = append(ports, serialPort{Path: path, Name: name})
		}
	}
	return ports, nil
}

// usableDarwinPort filters out Bluetooth endpoints and system consoles,
// which are never SPI bridges.
func usableDarwinPort(name string) bool {
	lower := strings.ToLower(name)
	for _, skip := range []string{"bluetooth", "console", "debug", "system", "kernel"} {
		if strings.Contains(lower, skip) {
			return false
		}
	}
	return true
}
