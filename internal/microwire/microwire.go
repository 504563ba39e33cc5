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

// Package microwire packs and unpacks AT93C86A (x16) instruction frames.
//
// The device speaks a three-wire protocol with non-byte-aligned fields: a
// start bit and a 2-bit opcode (folded here into 3-bit opcode constants, as
// transmitted), a 10-bit address, and for data-bearing instructions a 16-bit
// word. Frames are packed MSB-first and left-justified, then padded with
// trailing zero bits up to a whole number of bytes; the device latches the
// start bit and clocks in exactly the fields it expects, so trailing pad
// bits are ignored.
package microwire

// Field widths for the x16 organization.
const (
	// AddrBits is the width of the address field.
	AddrBits = 10
	// AddrMask keeps the low AddrBits of an address; wider input is
	// truncated silently rather than rejected.
	AddrMask = 1<<AddrBits - 1
	// WordBits is the width of one storage word.
	WordBits = 16

	// WordCount is the number of addressable words.
	WordCount = 1 << AddrBits

	// ErasedWord is the value a word holds after an erase cycle.
	ErasedWord uint16 = 0xFFFF
)

// Instruction opcodes as transmitted (start bit included).
const (
	OpRead    = 0b110
	OpWrite   = 0b101
	OpErase   = 0b111
	OpControl = 0b100
)

// Control-class instructions reuse the address field as a fixed pattern:
// the two high address bits select the instruction and the low eight are
// don't-care, transmitted as zero.
const (
	CtrlWriteEnable  = 0b1100000000 // EWEN
	CtrlWriteDisable = 0b0000000000 // EWDS
	CtrlEraseAll     = 0b1000000000 // ERAL
	CtrlWriteAll     = 0b0100000000 // WRAL
)

// Frame lengths in bytes.
const (
	// AddrFrameLen is the length of read/erase/control frames:
	// 3 opcode bits and 10 address bits padded to 16.
	AddrFrameLen = 2
	// DataFrameLen is the length of write and write-all frames:
	// 3 opcode bits, 10 address bits and a 16-bit word padded to 32.
	DataFrameLen = 4
)

// Calibration defaults. Both values were settled empirically against real
// hardware; treat alternates as per-unit calibration, not protocol variants.
const (
	// DefaultRxSkewBits is the number of dummy bits the device emits
	// before the first data bit of a read response.
	DefaultRxSkewBits = 1
	// DefaultWriteTrailingPad fully left-justifies the 29-bit write frame
	// within its 32 transmitted bits.
	DefaultWriteTrailingPad = 3
	// MaxWriteTrailingPad bounds the calibration range; pad bits beyond
	// the frame's three spare positions would drop address bits.
	MaxWriteTrailingPad = 3
)

// addrFrame packs [opcode:3][address:10][pad:3] MSB-first into two bytes.
func addrFrame(op, addr uint16) []byte {
	f := op<<13 | (addr&AddrMask)<<3
	return []byte{byte(f >> 8), byte(f)}
}

// ReadFrame builds the frame that starts a read at addr.
func ReadFrame(addr uint16) []byte {
	return addrFrame(OpRead, addr)
}

// EraseFrame builds the frame that erases the word at addr to ErasedWord.
func EraseFrame(addr uint16) []byte {
	return addrFrame(OpErase, addr)
}

// WriteEnableFrame builds the EWEN frame. The device's write-enable latch
// stays set until EWDS or power loss.
func WriteEnableFrame() []byte {
	return addrFrame(OpControl, CtrlWriteEnable)
}

// WriteDisableFrame builds the EWDS frame.
func WriteDisableFrame() []byte {
	return addrFrame(OpControl, CtrlWriteDisable)
}

// EraseAllFrame builds the ERAL frame, erasing every word to ErasedWord.
func EraseAllFrame() []byte {
	return addrFrame(OpControl, CtrlEraseAll)
}

// dataFrame packs [opcode:3][address:10][word:16] into four bytes with
// trailingPad zero bits after the word; the remaining 3-trailingPad pad bits
// lead the frame. trailingPad == MaxWriteTrailingPad is the canonical
// left-justified layout.
func dataFrame(op, addr, word uint16, trailingPad int) []byte {
	if trailingPad < 0 || trailingPad > MaxWriteTrailingPad {
		trailingPad = DefaultWriteTrailingPad
	}
	f := uint32(op&0b111)<<26 | uint32(addr&AddrMask)<<16 | uint32(word)
	f <<= uint(trailingPad)
	return []byte{byte(f >> 24), byte(f >> 16), byte(f >> 8), byte(f)}
}

// WriteFrame builds the frame that writes word at addr.
func WriteFrame(addr, word uint16, trailingPad int) []byte {
	return dataFrame(OpWrite, addr, word, trailingPad)
}

// WriteAllFrame builds the WRAL frame, writing word to every address.
func WriteAllFrame(word uint16, trailingPad int) []byte {
	return dataFrame(OpControl, CtrlWriteAll, word, trailingPad)
}
