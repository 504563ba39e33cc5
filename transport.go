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

package at93c

import "time"

// Transport defines the interface for clocking bits to and from a Microwire
// EEPROM. This can be implemented by SPI controllers, serial bridges, or
// bit-banged GPIO backends.
//
// The chip only interprets clock edges while selected, so callers bracket
// Transfer and Receive calls with SetSelect. A transport must hold the
// select line steady between calls; it must never cycle the line on its own,
// since dropping select mid-instruction aborts the instruction and can start
// the chip's internal write cycle early.
type Transport interface {
	// Transfer clocks tx out MSB-first and returns the bytes captured on
	// the response line during the same clocks. The returned slice is the
	// same length as tx.
	Transfer(tx []byte) ([]byte, error)

	// Receive clocks out n bytes of zeros and returns the n bytes
	// captured on the response line.
	Receive(n int) ([]byte, error)

	// SetSelect drives the chip select line. The line idles deasserted;
	// the EEPROM selects on the asserted (high) level.
	SetSelect(asserted bool) error

	// Close releases the transport, deasserting select first.
	Close() error

	// SetTimeout sets the timeout for individual transport operations
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is usable
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportSPI represents a memory-mapped or spidev SPI controller.
	TransportSPI TransportType = "spi"
	// TransportBusPirate represents a Bus Pirate serial bridge.
	TransportBusPirate TransportType = "buspirate"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportCapability represents specific capabilities or behaviors of a transport
type TransportCapability string

const (
	// CapabilityGaplessClock indicates the transport can clock an entire
	// multi-word read in one uninterrupted burst. The EEPROM streams
	// consecutive words only while the clock keeps running; transports
	// that chunk transfers (and so pause the clock between chunks) must
	// not advertise this.
	CapabilityGaplessClock TransportCapability = "gapless_clock"

	// CapabilityNativeChipSelect indicates select is driven by the
	// transport's own hardware rather than a borrowed GPIO line.
	CapabilityNativeChipSelect TransportCapability = "native_chip_select"
)

// TransportCapabilityChecker defines an interface for querying transport capabilities
// This provides a clean, type-safe alternative to reflection-based backend detection
type TransportCapabilityChecker interface {
	// HasCapability returns true if the transport has the specified capability
	HasCapability(capability TransportCapability) bool
}

// HasCapability reports whether transport implements
// TransportCapabilityChecker and claims capability. Transports that do not
// implement the checker claim nothing.
func HasCapability(transport Transport, capability TransportCapability) bool {
	if checker, ok := transport.(TransportCapabilityChecker); ok {
		return checker.HasCapability(capability)
	}
	return false
}
