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

/*
Package at93c provides a pure Go driver for AT93C86A-class Microwire serial
EEPROMs.

The AT93C86A is a 16Kbit three-wire EEPROM organized as 1024 words of 16
bits. Its Microwire protocol is close enough to SPI to run over ordinary SPI
controllers, but not identical: the chip select is active high, instructions
are 13 or 29 bits left-justified in byte frames, and read responses come
back shifted by a dummy bit. This library handles all of that behind a small
word-oriented API and works across multiple transport layers.

Features:
  - Multiple transport support: Linux SPI controllers (periph.io), Bus
    Pirate bridges (go.bug.st/serial), and a behavioral mock
  - Word read/write/erase plus chip-wide erase and fill (ERAL/WRAL)
  - Bulk range, full-dump and restore helpers, packed string storage
  - Fixed-delay or ready-polling write cycle handling
  - Retry logic with configurable backoff
  - Transport auto-detection with Safe/Passive probing modes

Basic Usage:

	import (
	    at93c "github.com/n573/spi-eeprom"
	    "github.com/n573/spi-eeprom/transport/spidev"
	)

	// SPI bus plus the GPIO that drives the chip's active-high select
	transport, err := spidev.New("/dev/spidev0.0", "GPIO22")
	if err != nil {
	    log.Fatal(err)
	}
	defer transport.Close()

	device, err := at93c.New(transport)
	if err != nil {
	    log.Fatal(err)
	}
	if err := device.Init(); err != nil {
	    log.Fatal(err)
	}

	// Or create with custom options
	device, err = at93c.New(transport,
	    at93c.WithTimeout(2*time.Second),
	    at93c.WithReadyPolling(0),
	)

	// The write-enable latch gates every Write and Erase
	if err := device.WriteEnable(); err != nil {
	    log.Fatal(err)
	}
	if err := device.WriteWord(0x010, 0xDEAD); err != nil {
	    log.Fatal(err)
	}
	word, err := device.ReadWord(0x010)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Printf("word at 0x010: %04X\n", word)

Transport Selection:

The library supports multiple transport layers:

  - spidev: Linux SPI controllers through periph.io, with select on a GPIO
    line. Clocks whole transfers in one burst, so streaming reads work.
  - buspirate: a Bus Pirate in binary SPI mode over its serial port. Good
    for bench work on any host OS; no streaming reads.
  - MockTransport: a full behavioral model of the chip for tests.

Write Discipline:

The device powers up with its write-enable latch clear, and Write and Erase
instructions are silently ignored until WriteEnable is called. The driver
does not track the latch; call WriteEnable once before programming and
WriteDisable when done. Every write and erase is followed by the chip's
self-timed programming cycle, which the driver waits out with either a
fixed delay (the default) or by polling the chip's ready status
(WithReadyPolling).

Error Handling:

All operations return meaningful errors that can be inspected:

	if errors.Is(err, at93c.ErrWriteCycleTimeout) {
	    // Handle a stuck programming cycle
	}

Thread Safety:

Device operations are not thread-safe. If you need concurrent access,
implement appropriate synchronization in your application.
*/
package at93c
