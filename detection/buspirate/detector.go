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

// Package buspirate detects Bus Pirate serial bridges. Candidates are
// scored from USB identifiers; in Safe mode, identifier matches are
// confirmed by entering and immediately leaving the Bus Pirate's binary
// mode, which is a documented no-op for the probed board but is only ever
// attempted against ports that already look like a Bus Pirate.
package buspirate

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/n573/spi-eeprom/detection"
)

// serialPort describes one enumerated serial port.
type serialPort struct {
	Path    string
	Name    string
	VIDPID  string
	Product string
}

// knownBridges maps USB VID:PID pairs to Bus Pirate hardware revisions.
// The v3 pair belongs to the FTDI FT232RL and is shared with every plain
// FTDI serial adapter, which is exactly why a match alone never scores
// higher than Medium.
var knownBridges = map[string]string{
	"0403:6001": "Bus Pirate v3 (FTDI FT232RL)",
	"04D8:FB00": "Bus Pirate v4",
}

// detector implements the Detector interface for Bus Pirate bridges
type detector struct{}

// New creates a new Bus Pirate detector
func New() detection.Detector {
	return &detector{}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "buspirate"
}

// Detect searches serial ports for Bus Pirate bridges
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
	default:
		return nil, detection.ErrUnsupportedPlatform
	}

	ports, err := getSerialPorts(ctx)
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	devices := make([]detection.DeviceInfo, 0, len(ports))
	for _, port := range ports {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		device, skip := describePort(ctx, port, opts)
		if skip {
			continue
		}
		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// describePort scores one serial port as a Bus Pirate candidate
func describePort(ctx context.Context, port serialPort, opts *detection.Options) (
	detection.DeviceInfo, bool,
) {
	if detection.IsPathIgnored(port.Path, opts.IgnorePaths) {
		return detection.DeviceInfo{}, true
	}
	if port.VIDPID != "" && detection.IsBlocked(port.VIDPID, opts.Blocklist) {
		return detection.DeviceInfo{}, true
	}

	device := detection.DeviceInfo{
		Transport:  "buspirate",
		Path:       port.Path,
		Name:       fmt.Sprintf("serial port %s", port.Name),
		Confidence: detection.Low,
		Metadata:   map[string]string{},
	}
	if port.VIDPID != "" {
		device.Metadata["vid_pid"] = port.VIDPID
	}
	if port.Product != "" {
		device.Metadata["product"] = port.Product
	}

	revision, known := knownBridges[strings.ToUpper(port.VIDPID)]
	switch {
	case known:
		device.Confidence = detection.Medium
		device.Name = revision
		device.Metadata["revision"] = revision
	case looksLikeSerialAdapter(port):
		// Listed so a caller can hand the path to the transport
		// explicitly, but never probed: writing handshake bytes to an
		// arbitrary device is what Safe mode exists to avoid.
	default:
		return detection.DeviceInfo{}, true
	}

	if opts.Mode != detection.Passive && known {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		confirmed := probeBinaryMode(probeCtx, port.Path)
		cancel()

		if confirmed {
			device.Confidence = detection.High
			device.Metadata["probe"] = "binary mode banner"
		}
	}

	return device, false
}

// looksLikeSerialAdapter reports whether a port without matching USB
// identifiers still resembles a USB serial adapter worth listing.
func looksLikeSerialAdapter(port serialPort) bool {
	name := strings.ToLower(port.Name)
	patterns := []string{
		"ttyusb", "ttyacm", // Linux USB serial
		"usbserial", "usbmodem", "wchusbserial", "slab_usbtouart", // macOS
		"com", // Windows
	}
	for _, pattern := range patterns {
		if strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

// probeBinaryMode opens the port and performs the documented Bus Pirate
// handshake: up to twenty zero bytes make the firmware answer "BBIO1", and
// a reset byte puts it back into the user terminal.
func probeBinaryMode(ctx context.Context, path string) bool {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return false
	}
	defer func() { _ = port.Close() }()

	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		return false
	}
	_ = port.ResetInputBuffer()

	var window []byte
	for attempt := 0; attempt < 20; attempt++ {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if _, err := port.Write([]byte{0x00}); err != nil {
			return false
		}

		buf := make([]byte, 16)
		n, err := port.Read(buf)
		if err != nil {
			return false
		}
		window = append(window, buf[:n]...)
		if bytes.Contains(window, []byte("BBIO1")) {
			// Hard reset back to the user terminal.
			_, _ = port.Write([]byte{0x0F})
			return true
		}
	}
	return false
}
