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

//go:build linux

package buspirate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// getSerialPorts returns available USB serial ports on Linux
func getSerialPorts(_ context.Context) ([]serialPort, error) {
	var paths []string
	for _, pattern := range []string{"/dev/ttyUSB*", "/dev/ttyACM*"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		paths = append(paths, matches...)
	}

	ports := make([]serialPort, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}

		name := filepath.Base(path)
		port := serialPort{
			Path: path,
			Name: name,
		}
		port.VIDPID, port.Product = readUSBIdentity(name)
		ports = append(ports, port)
	}

	return ports, nil
}

// readUSBIdentity walks sysfs for the USB device behind a tty. For ttyACM
// the interface directory sits directly under the USB device; ttyUSB adds
// one usb-serial level in between, so both depths are tried.
func readUSBIdentity(ttyName string) (vidpid, product string) {
	for _, rel := range []string{"device/..", "device/../.."} {
		dir := filepath.Join("/sys/class/tty", ttyName, rel)

		vid := readSysfsValue(filepath.Join(dir, "idVendor"))
		pid := readSysfsValue(filepath.Join(dir, "idProduct"))
		if vid == "" || pid == "" {
			continue
		}

		vidpid = strings.ToUpper(fmt.Sprintf("%s:%s", vid, pid))
		product = readSysfsValue(filepath.Join(dir, "product"))
		return vidpid, product
	}
	return "", ""
}

// readSysfsValue reads one sysfs attribute, empty on any failure
func readSysfsValue(path string) string {
	data, err := os.ReadFile(path) // #nosec G304 -- fixed sysfs prefix
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
