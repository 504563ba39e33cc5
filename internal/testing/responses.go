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

package testing

import "github.com/n573/spi-eeprom/internal/microwire"

// BuildReadResponse packs word into the raw bytes a transport would return
// for a single-word read clocked with skewBits leading dummy bits. Dummy
// and trailing fill bits are zero; decoders must not depend on them.
func BuildReadResponse(word uint16, skewBits int) []byte {
	return BuildSequentialResponse([]uint16{word}, skewBits)
}

// BuildSequentialResponse packs words contiguously after skewBits dummy
// bits, the way the chip streams consecutive addresses under one select.
func BuildSequentialResponse(words []uint16, skewBits int) []byte {
	buf := make([]byte, microwire.SequentialResponseLen(skewBits, len(words)))
	for i, word := range words {
		for bit := 0; bit < microwire.WordBits; bit++ {
			if word>>(15-bit)&1 != 0 {
				pos := skewBits + i*microwire.WordBits + bit
				buf[pos/8] |= 0x80 >> (pos % 8)
			}
		}
	}
	return buf
}

// BuildBusyStatus returns the status byte read while a programming cycle
// is still running: data-out held low.
func BuildBusyStatus() []byte {
	return []byte{0x00}
}

// BuildReadyStatus returns the status byte read once a programming cycle
// has completed: data-out high.
func BuildReadyStatus() []byte {
	return []byte{0xFF}
}

// Well-known words used across tests.
const (
	// TestWordPattern is the word from the reference bring-up captures.
	TestWordPattern uint16 = 0xDEAD
	// TestWordAlt is a second distinct pattern for multi-word cases.
	TestWordAlt uint16 = 0xBEEF
)
