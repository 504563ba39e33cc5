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

package main

import (
	"errors"
	"fmt"
	"strings"

	at93c "github.com/n573/spi-eeprom"
	"github.com/n573/spi-eeprom/detection"
	"github.com/n573/spi-eeprom/transport/buspirate"
	"github.com/n573/spi-eeprom/transport/spidev"
)

// newTransport creates a transport from a device path.
func newTransport(path, csPin string) (at93c.Transport, error) {
	if path == "" {
		return nil, errors.New("empty device path")
	}

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
		case TransportSPI:
			transport, err := spidev.New(device.Path, csPin)
			if err != nil {
				return nil, fmt.Errorf("failed to create SPI transport: %w", err)
			}
			return transport, nil
		case TransportBusPirate:
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

func deviceOptions(cfg *Config) []at93c.Option {
	var opts []at93c.Option
	if cfg.Mock {
		// A virtual chip has no program cycles to wait out.
		opts = append(opts, at93c.WithTiming(&at93c.TimingConfig{}))
	}
	if cfg.ReadyPoll > 0 {
		opts = append(opts, at93c.WithReadyPolling(cfg.ReadyPoll))
	}
	return opts
}

// connect opens the device under test. With cfg.Mock it wires the driver to
// an in-memory chip instead of hardware, which exercises the full instruction
// path without a board on the bench.
func connect(cfg *Config, out *Output) (*at93c.Device, error) {
	if cfg.Mock {
		out.Info("Using simulated EEPROM")
		device, err := at93c.New(at93c.NewMockTransport(), deviceOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create device: %w", err)
		}
		if err := device.Init(); err != nil {
			_ = device.Close()
			return nil, fmt.Errorf("failed to initialize device: %w", err)
		}
		return device, nil
	}

	connectOpts := []at93c.ConnectOption{
		at93c.WithConnectTimeout(cfg.ConnectTimeout),
		at93c.WithDeviceOptions(deviceOptions(cfg)...),
	}
	if cfg.Validate {
		connectOpts = append(connectOpts, at93c.WithValidation(nil))
	}

	if cfg.DevicePath == "" {
		connectOpts = append(connectOpts,
			at93c.WithAutoDetection(),
			at93c.WithTransportFromDeviceFactory(newTransportFromDevice(cfg.CSPin)))
		out.Info("Auto-detecting EEPROM buses and bridges...")
	} else {
		connectOpts = append(connectOpts, at93c.WithTransportFactory(func(path string) (at93c.Transport, error) {
			return newTransport(path, cfg.CSPin)
		}))
		out.Info("Opening device: %s", cfg.DevicePath)
	}

	return at93c.ConnectDevice(cfg.DevicePath, connectOpts...)
}
