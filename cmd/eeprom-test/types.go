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
	"context"
	"time"

	at93c "github.com/n573/spi-eeprom"
)

// Transport type constants for type-safe transport detection
const (
	TransportSPI       = "spi"
	TransportBusPirate = "buspirate"
)

// Config holds application configuration
type Config struct {
	DevicePath     string
	CSPin          string
	ConnectTimeout time.Duration
	ReadyPoll      time.Duration
	Mock           bool
	Validate       bool
	Wipe           bool
	Verbose        bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DevicePath:     "",
		CSPin:          "GPIO22",
		ConnectTimeout: 10 * time.Second,
		ReadyPoll:      0,
		Mock:           false,
		Validate:       false,
		Wipe:           false,
		Verbose:        false,
	}
}

// Step is a single exercise run against the chip. Steps run in order and
// later steps may depend on addresses written by earlier ones.
type Step struct {
	Run  func(ctx context.Context, device *at93c.Device, out *Output) error
	Name string
}

// Result records the outcome of one step.
type Result struct {
	Err  error
	Name string
}
