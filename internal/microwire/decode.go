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

package microwire

import "fmt"

// ReadResponseLen returns how many bytes must be clocked in to capture
// skewBits dummy bits followed by one 16-bit word.
func ReadResponseLen(skewBits int) int {
	return (skewBits + WordBits + 7) / 8
}

// SequentialResponseLen returns how many bytes must be clocked in to capture
// skewBits dummy bits followed by count contiguous 16-bit words.
func SequentialResponseLen(skewBits, count int) int {
	return (skewBits + count*WordBits + 7) / 8
}

// DecodeWord reassembles one word from raw, discarding skewBits leading
// dummy bits. For the default skew of one bit and a three-byte buffer this
// reduces to (raw[0]<<9)|(raw[1]<<1)|(raw[2]>>7).
func DecodeWord(raw []byte, skewBits int) (uint16, error) {
	words, err := DecodeWords(raw, skewBits, 1)
	if err != nil {
		return 0, err
	}
	return words[0], nil
}

// DecodeWords slices count contiguous MSB-first words out of raw after
// discarding skewBits leading dummy bits, as produced by a read whose clock
// keeps running past the first word.
func DecodeWords(raw []byte, skewBits, count int) ([]uint16, error) {
	if skewBits < 0 || count < 0 {
		return nil, fmt.Errorf("microwire: invalid decode parameters (skew %d, count %d)", skewBits, count)
	}
	needBits := skewBits + count*WordBits
	if len(raw)*8 < needBits {
		return nil, fmt.Errorf("microwire: response of %d bytes cannot hold %d bits", len(raw), needBits)
	}
	words := make([]uint16, count)
	for i := range words {
		words[i] = sliceWord(raw, skewBits+i*WordBits)
	}
	return words, nil
}

// sliceWord extracts the 16 bits starting at bit offset off, MSB-first.
func sliceWord(raw []byte, off int) uint16 {
	var w uint16
	for i := off; i < off+WordBits; i++ {
		w = w<<1 | uint16(raw[i/8]>>(7-i%8))&1
	}
	return w
}
