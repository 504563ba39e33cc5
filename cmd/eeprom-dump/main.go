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

// eeprom-dump reads an AT93C86A-class EEPROM and prints its contents as a
// formatted hex table, optionally saving a binary image.
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	at93c "github.com/n573/spi-eeprom"
	"github.com/n573/spi-eeprom/detection"
	// Import all detectors to register them
	_ "github.com/n573/spi-eeprom/detection/buspirate"
	_ "github.com/n573/spi-eeprom/detection/spidev"
	"github.com/n573/spi-eeprom/transport/buspirate"
	"github.com/n573/spi-eeprom/transport/spidev"
)

const wordsPerRow = 16

type config struct {
	devicePath *string
	csPin      *string
	outFile    *string
	timeout    *time.Duration
	start      *uint
	count      *uint
	sequential *bool
	debug      *bool
}

func parseFlags() *config {
	cfg := &config{
		devicePath: flag.String("device", "",
			"Device path (e.g., /dev/spidev0.0 or /dev/ttyUSB0). Leave empty for auto-detection."),
		csPin: flag.String("cs", "GPIO22",
			"GPIO name driving the chip's select line (SPI controllers only)"),
		outFile:    flag.String("out", "", "Write a big-endian binary image to this file"),
		timeout:    flag.Duration("timeout", 30*time.Second, "Connection timeout"),
		start:      flag.Uint("start", 0, "First word address to dump"),
		count:      flag.Uint("count", at93c.WordCount, "Number of words to dump"),
		sequential: flag.Bool("sequential", false, "Stream the whole range in one transaction (needs a gapless transport)"),
		debug:      flag.Bool("debug", false, "Enable debug output"),
	}
	flag.Parse()

	if *cfg.debug {
		at93c.SetDebugEnabled(true)
	}

	return cfg
}

// newTransport creates a transport from a device path.
func newTransport(path, csPin string) (at93c.Transport, error) {
	if path == "" {
		return nil, errors.New("empty device path")
	}

	// SPI controller nodes get the periph.io transport; anything else is
	// treated as a serial port with a Bus Pirate on the end.
	if strings.Contains(strings.ToLower(path), "spi") {
		transport, err := spidev.New(path, csPin)
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport: %w", err)
		}
		return transport, nil
	}

	transport, err := buspirate.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bus Pirate transport: %w", err)
	}
	return transport, nil
}

// newTransportFromDevice creates a transport from a detected device.
func newTransportFromDevice(csPin string) at93c.TransportFromDeviceFactory {
	return func(device detection.DeviceInfo) (at93c.Transport, error) {
		switch strings.ToLower(device.Transport) {
		case "spi":
			transport, err := spidev.New(device.Path, csPin)
			if err != nil {
				return nil, fmt.Errorf("failed to create SPI transport: %w", err)
			}
			return transport, nil
		case "buspirate":
			transport, err := buspirate.New(device.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to create Bus Pirate transport: %w", err)
			}
			return transport, nil
		default:
			return nil, fmt.Errorf("unsupported transport type: %s", device.Transport)
		}
	}
}

func buildConnectOptions(cfg *config) []at93c.ConnectOption {
	var connectOpts []at93c.ConnectOption

	if *cfg.devicePath == "" {
		connectOpts = append(connectOpts,
			at93c.WithAutoDetection(),
			at93c.WithTransportFromDeviceFactory(newTransportFromDevice(*cfg.csPin)))
		_, _ = fmt.Println("Auto-detecting EEPROM buses and bridges...")
	} else {
		connectOpts = append(connectOpts, at93c.WithTransportFactory(func(path string) (at93c.Transport, error) {
			return newTransport(path, *cfg.csPin)
		}))
		_, _ = fmt.Printf("Opening device: %s\n", *cfg.devicePath)
	}

	connectOpts = append(connectOpts, at93c.WithConnectTimeout(*cfg.timeout))
	return connectOpts
}

func readWords(device *at93c.Device, cfg *config) ([]uint16, error) {
	start := uint16(*cfg.start)
	count := int(*cfg.count)

	if *cfg.sequential {
		words, err := device.ReadRangeSequential(start, count)
		if err != nil {
			if errors.Is(err, at93c.ErrGaplessClockRequired) {
				return nil, fmt.Errorf("%w (drop -sequential for word-by-word reads)", err)
			}
			return nil, err
		}
		return words, nil
	}
	return device.ReadRange(start, count)
}

// printDump renders words the way the original bring-up tool did: sixteen
// words per row, addresses down the left edge.
func printDump(start uint16, words []uint16) {
	_, _ = fmt.Print("\nEEPROM Memory Dump:\n")
	_, _ = fmt.Print("Addr  | Data\n")
	_, _ = fmt.Print("------+-------\n")

	for i, word := range words {
		addr := int(start) + i
		if addr%wordsPerRow == 0 || i == 0 {
			_, _ = fmt.Printf("\n%04X  | ", addr)
		}
		_, _ = fmt.Printf("%04X ", word)
	}
	_, _ = fmt.Print("\n")
}

func writeImage(path string, words []uint16) error {
	buf := make([]byte, 2*len(words))
	for i, word := range words {
		binary.BigEndian.PutUint16(buf[2*i:], word)
	}
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

func run() int {
	cfg := parseFlags()

	if *cfg.start >= at93c.WordCount || *cfg.start+*cfg.count > at93c.WordCount {
		_, _ = fmt.Fprintf(os.Stderr, "dump range %#x+%d runs past the last word (%#x)\n",
			*cfg.start, *cfg.count, at93c.WordCount-1)
		return 1
	}

	device, err := at93c.ConnectDevice(*cfg.devicePath, buildConnectOptions(cfg)...)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		return 1
	}
	defer func() { _ = device.Close() }()

	words, err := readWords(device, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Read failed: %v\n", err)
		return 1
	}

	printDump(uint16(*cfg.start), words)

	if *cfg.outFile != "" {
		if err := writeImage(*cfg.outFile, words); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		_, _ = fmt.Printf("\nWrote %d words to %s\n", len(words), *cfg.outFile)
	}

	return 0
}

func main() {
	if run() != 0 {
		os.Exit(1)
	}
}
