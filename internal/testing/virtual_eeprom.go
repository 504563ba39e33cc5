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

// Package testing provides a behavioral AT93C86A model and raw response
// builders for tests. It deliberately has no dependency on the driver
// package so in-package driver tests can use it freely.
package testing

import (
	"github.com/n573/spi-eeprom/internal/microwire"
)

// VirtualEEPROM simulates an AT93C86A (x16) as seen from its three-wire
// bus. It decodes instructions bit by bit from the clocked-in stream, so it
// accepts any trailing-pad variant the driver is calibrated to transmit,
// and it streams read responses the way the chip does: dummy bits first,
// then consecutive words for as long as the clock runs.
type VirtualEEPROM struct {
	// Memory is the word array, addressable for test setup and asserts.
	Memory [microwire.WordCount]uint16
	// WriteEnabled mirrors the chip's write-enable latch.
	WriteEnabled bool
	// SkewBits is the number of dummy bits emitted before read data.
	SkewBits int
	// BusyPolls is how many status reads report a programming cycle
	// still running before the ready level appears. Instructions clocked
	// in while the simulated cycle is pending are ignored, as on
	// hardware, so tests that set this should poll until ready.
	BusyPolls int

	selected bool
	reading  bool
	readAddr uint16
	readBit  int
	busyLeft int
}

// NewVirtualEEPROM returns a model in the erased factory state with the
// reference calibration.
func NewVirtualEEPROM() *VirtualEEPROM {
	v := &VirtualEEPROM{SkewBits: microwire.DefaultRxSkewBits}
	for i := range v.Memory {
		v.Memory[i] = microwire.ErasedWord
	}
	return v
}

// SetSelect drives the chip-select level. A falling edge aborts any read
// stream in progress; a pending programming cycle keeps running.
func (v *VirtualEEPROM) SetSelect(level bool) {
	if !level {
		v.reading = false
	}
	v.selected = level
}

// Selected reports the current chip-select level.
func (v *VirtualEEPROM) Selected() bool {
	return v.selected
}

// Busy reports whether the simulated programming cycle is still pending.
func (v *VirtualEEPROM) Busy() bool {
	return v.busyLeft > 0
}

// Exchange clocks tx into the chip and returns what the data-out line
// carried during those clocks. While a read is streaming, data-in is
// ignored and the clocks advance the stream instead, which is how the
// hardware behaves when a command is clocked without toggling select.
func (v *VirtualEEPROM) Exchange(tx []byte) []byte {
	if !v.selected {
		return make([]byte, len(tx))
	}
	if v.reading {
		return v.stream(len(tx))
	}
	if v.busyLeft > 0 {
		// Data-out is the low busy level; the instruction is lost.
		return make([]byte, len(tx))
	}
	v.execute(tx)
	return make([]byte, len(tx))
}

// ReadOut clocks n bytes out of the chip with data-in idle. After a read
// instruction this is the skewed word stream; after a programming
// instruction it is the busy/ready status level.
func (v *VirtualEEPROM) ReadOut(n int) []byte {
	if !v.selected {
		return make([]byte, n)
	}
	if v.reading {
		return v.stream(n)
	}
	if v.busyLeft > 0 {
		v.busyLeft--
		return make([]byte, n)
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = 0xFF
	}
	return out
}

// stream returns the next n bytes of the read output: SkewBits dummy zero
// bits, then words MSB-first, advancing through addresses and wrapping at
// the top.
func (v *VirtualEEPROM) stream(n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n*8; i++ {
		if v.nextBit() != 0 {
			out[i/8] |= 0x80 >> (i % 8)
		}
	}
	return out
}

func (v *VirtualEEPROM) nextBit() byte {
	if v.readBit < 0 {
		v.readBit++
		return 0
	}
	b := byte(v.Memory[v.readAddr]>>(15-v.readBit)) & 1
	v.readBit++
	if v.readBit == microwire.WordBits {
		v.readBit = 0
		v.readAddr = (v.readAddr + 1) & microwire.AddrMask
	}
	return b
}

// execute decodes one instruction from the clocked-in bits. The chip hunts
// for the start bit, so leading zero bits are skipped and trailing pad bits
// beyond the instruction are ignored.
func (v *VirtualEEPROM) execute(tx []byte) {
	total := len(tx) * 8
	pos := 0
	for pos < total && bitAt(tx, pos) == 0 {
		pos++
	}
	if pos == total {
		return
	}
	pos++

	if total-pos < 2+microwire.AddrBits {
		return
	}
	op := 0b100 | int(takeBits(tx, &pos, 2))
	addr := uint16(takeBits(tx, &pos, microwire.AddrBits))

	switch op {
	case microwire.OpRead:
		v.reading = true
		v.readAddr = addr & microwire.AddrMask
		v.readBit = -v.SkewBits
	case microwire.OpErase:
		if v.WriteEnabled {
			v.Memory[addr&microwire.AddrMask] = microwire.ErasedWord
			v.busyLeft = v.BusyPolls
		}
	case microwire.OpWrite:
		if total-pos < microwire.WordBits {
			return
		}
		word := uint16(takeBits(tx, &pos, microwire.WordBits))
		if v.WriteEnabled {
			v.Memory[addr&microwire.AddrMask] = word
			v.busyLeft = v.BusyPolls
		}
	case microwire.OpControl:
		v.executeControl(tx, &pos, addr)
	}
}

// executeControl dispatches on the two high address bits; the low eight
// are don't-care.
func (v *VirtualEEPROM) executeControl(tx []byte, pos *int, addr uint16) {
	switch addr & 0x300 {
	case microwire.CtrlWriteEnable:
		v.WriteEnabled = true
	case microwire.CtrlWriteDisable:
		v.WriteEnabled = false
	case microwire.CtrlEraseAll:
		if v.WriteEnabled {
			for i := range v.Memory {
				v.Memory[i] = microwire.ErasedWord
			}
			v.busyLeft = v.BusyPolls
		}
	case microwire.CtrlWriteAll:
		if len(tx)*8-*pos < microwire.WordBits {
			return
		}
		word := uint16(takeBits(tx, pos, microwire.WordBits))
		if v.WriteEnabled {
			for i := range v.Memory {
				v.Memory[i] = word
			}
			v.busyLeft = v.BusyPolls
		}
	}
}

// PeekOpcode extracts the opcode of a framed instruction, including the
// start bit, regardless of how many leading pad bits the frame carries.
// Returns zero when the frame holds no start bit.
func PeekOpcode(frame []byte) byte {
	total := len(frame) * 8
	pos := 0
	for pos < total && bitAt(frame, pos) == 0 {
		pos++
	}
	if total-pos < 3 {
		return 0
	}
	pos++
	return byte(0b100 | takeBits(frame, &pos, 2))
}

func bitAt(buf []byte, pos int) byte {
	return buf[pos/8] >> (7 - pos%8) & 1
}

func takeBits(buf []byte, pos *int, n int) uint32 {
	var val uint32
	for i := 0; i < n; i++ {
		val = val<<1 | uint32(bitAt(buf, *pos))
		*pos++
	}
	return val
}
