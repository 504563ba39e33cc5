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

package spidev

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/n573/spi-eeprom/detection"
)

// spidev ioctl requests, from linux/spi/spidev.h.
const (
	// spiIocRdMode reads the controller's SPI mode: _IOR('k', 1, __u8)
	spiIocRdMode = 0x80016B01

	// spiIocRdMaxSpeedHz reads the maximum clock: _IOR('k', 4, __u32)
	spiIocRdMaxSpeedHz = 0x80046B04
)

// busInfo contains information about one spidev node
type busInfo struct {
	Path       string // Device path, e.g., "/dev/spidev0.0"
	Bus        int    // Controller number
	ChipSelect int    // Native chip-select number
}

// detectLinux enumerates spidev nodes and grades each one
func detectLinux(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	buses, err := findSPIBuses()
	if err != nil {
		return nil, err
	}
	if len(buses) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	devices := make([]detection.DeviceInfo, 0, len(buses))
	for _, bus := range buses {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		if detection.IsPathIgnored(bus.Path, opts.IgnorePaths) {
			continue
		}
		devices = append(devices, describeBus(bus, opts))
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// findSPIBuses discovers spidev nodes on the system
func findSPIBuses() ([]busInfo, error) {
	matches, err := filepath.Glob("/dev/spidev*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan for spidev nodes: %w", err)
	}

	buses := make([]busInfo, 0, len(matches))
	for _, path := range matches {
		var bus, cs int
		if _, err := fmt.Sscanf(filepath.Base(path), "spidev%d.%d", &bus, &cs); err != nil {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		buses = append(buses, busInfo{Path: path, Bus: bus, ChipSelect: cs})
	}
	return buses, nil
}

// describeBus builds the DeviceInfo for one node. In Safe mode it opens the
// node and reads the controller settings; that touches no bus lines, so it
// cannot disturb a chip wired to the controller.
func describeBus(bus busInfo, opts *detection.Options) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  "spi",
		Path:       bus.Path,
		Name:       fmt.Sprintf("SPI controller %s", bus.Path),
		Confidence: detection.Low,
		Metadata: map[string]string{
			"bus":         fmt.Sprintf("%d", bus.Bus),
			"chip_select": fmt.Sprintf("%d", bus.ChipSelect),
		},
	}

	if opts.Mode == detection.Passive {
		return device
	}

	fd, err := unix.Open(bus.Path, unix.O_RDWR, 0)
	if err != nil {
		// Present but not openable, likely a permissions problem.
		// Leave it listed so the caller can see what exists.
		return device
	}
	defer func() { _ = unix.Close(fd) }()

	var mode uint8
	// #nosec G103 -- unsafe pointer required for ioctl system call
	if err := spiIoctl(fd, spiIocRdMode, unsafe.Pointer(&mode)); err != nil {
		return device
	}
	var speed uint32
	// #nosec G103 -- unsafe pointer required for ioctl system call
	if err := spiIoctl(fd, spiIocRdMaxSpeedHz, unsafe.Pointer(&speed)); err != nil {
		return device
	}

	device.Confidence = detection.Medium
	device.Metadata["mode"] = fmt.Sprintf("%d", mode)
	device.Metadata["max_speed_hz"] = fmt.Sprintf("%d", speed)
	return device
}

// spiIoctl performs an ioctl system call against a spidev descriptor
func spiIoctl(fd int, request uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(request), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
