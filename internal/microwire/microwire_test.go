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

import (
	"bytes"
	"testing"
)

func TestReadFrame(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want []byte
		addr uint16
	}{
		{
			name: "address zero",
			addr: 0x000,
			want: []byte{0xC0, 0x00},
		},
		{
			name: "address 0x010",
			addr: 0x010,
			want: []byte{0xC0, 0x80},
		},
		{
			name: "last address",
			addr: 0x3FF,
			want: []byte{0xDF, 0xF8},
		},
		{
			name: "address 0x220",
			addr: 0x220,
			want: []byte{0xD1, 0x00},
		},
		{
			name: "out-of-range address is masked",
			addr: 0x7FF, // truncates to 0x3FF
			want: []byte{0xDF, 0xF8},
		},
	}

	for _, tt := range tests {
		tt := tt // capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ReadFrame(tt.addr); !bytes.Equal(got, tt.want) {
				t.Errorf("ReadFrame(%#03x) = %X, want %X", tt.addr, got, tt.want)
			}
		})
	}
}

func TestEraseFrame(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want []byte
		addr uint16
	}{
		{
			name: "address zero",
			addr: 0x000,
			want: []byte{0xE0, 0x00},
		},
		{
			name: "address 0x010",
			addr: 0x010,
			want: []byte{0xE0, 0x80},
		},
		{
			name: "last address",
			addr: 0x3FF,
			want: []byte{0xFF, 0xF8},
		},
	}

	for _, tt := range tests {
		tt := tt // capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := EraseFrame(tt.addr); !bytes.Equal(got, tt.want) {
				t.Errorf("EraseFrame(%#03x) = %X, want %X", tt.addr, got, tt.want)
			}
		})
	}
}

func TestControlFrames(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{
			name: "write enable",
			got:  WriteEnableFrame(),
			want: []byte{0x98, 0x00}, // 10011 followed by don't-care bits
		},
		{
			name: "write disable",
			got:  WriteDisableFrame(),
			want: []byte{0x80, 0x00}, // 10000 followed by don't-care bits
		},
		{
			name: "erase all",
			got:  EraseAllFrame(),
			want: []byte{0x90, 0x00}, // 10010 followed by don't-care bits
		},
	}

	for _, tt := range tests {
		tt := tt // capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !bytes.Equal(tt.got, tt.want) {
				t.Errorf("frame = %X, want %X", tt.got, tt.want)
			}
		})
	}
}

func TestWriteFrame(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want []byte
		addr uint16
		word uint16
		pad  int
	}{
		{
			name: "reference vector",
			addr: 0x010,
			word: 0xDEAD,
			pad:  3,
			want: []byte{0xA0, 0x86, 0xF5, 0x68},
		},
		{
			name: "zero word at address zero",
			addr: 0x000,
			word: 0x0000,
			pad:  3,
			want: []byte{0xA0, 0x00, 0x00, 0x00},
		},
		{
			name: "right-justified calibration",
			addr: 0x010,
			word: 0xDEAD,
			pad:  0,
			want: []byte{0x14, 0x10, 0xDE, 0xAD},
		},
		{
			name: "single trailing pad bit",
			addr: 0x010,
			word: 0xDEAD,
			pad:  1,
			want: []byte{0x28, 0x21, 0xBD, 0x5A},
		},
		{
			name: "two trailing pad bits",
			addr: 0x010,
			word: 0xDEAD,
			pad:  2,
			want: []byte{0x50, 0x43, 0x7A, 0xB4},
		},
		{
			name: "out-of-range pad falls back to default",
			addr: 0x010,
			word: 0xDEAD,
			pad:  7,
			want: []byte{0xA0, 0x86, 0xF5, 0x68},
		},
		{
			name: "negative pad falls back to default",
			addr: 0x010,
			word: 0xDEAD,
			pad:  -1,
			want: []byte{0xA0, 0x86, 0xF5, 0x68},
		},
	}

	for _, tt := range tests {
		tt := tt // capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := WriteFrame(tt.addr, tt.word, tt.pad)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("WriteFrame(%#03x, %#04x, %d) = %X, want %X",
					tt.addr, tt.word, tt.pad, got, tt.want)
			}
		})
	}
}

func TestWriteAllFrame(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want []byte
		word uint16
	}{
		{
			name: "zero fill",
			word: 0x0000,
			want: []byte{0x88, 0x00, 0x00, 0x00},
		},
		{
			name: "pattern fill",
			word: 0xA5A5,
			want: []byte{0x88, 0x05, 0x2D, 0x28},
		},
	}

	for _, tt := range tests {
		tt := tt // capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := WriteAllFrame(tt.word, DefaultWriteTrailingPad)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("WriteAllFrame(%#04x) = %X, want %X", tt.word, got, tt.want)
			}
		})
	}
}

// TestAddrFrameFields verifies that every address survives the pack: the
// opcode occupies the top three bits and the address sits at bits 12..3.
func TestAddrFrameFields(t *testing.T) {
	t.Parallel()
	for addr := uint16(0); addr < WordCount; addr++ {
		raw := ReadFrame(addr)
		f := uint16(raw[0])<<8 | uint16(raw[1])
		if op := f >> 13; op != OpRead {
			t.Fatalf("ReadFrame(%#03x): opcode = %03b, want %03b", addr, op, OpRead)
		}
		if got := f >> 3 & AddrMask; got != addr {
			t.Fatalf("ReadFrame(%#03x): address field = %#03x", addr, got)
		}
		if f&0b111 != 0 {
			t.Fatalf("ReadFrame(%#03x): pad bits set: %016b", addr, f)
		}
	}
}

// TestWriteFrameFields verifies field placement for every pad calibration.
func TestWriteFrameFields(t *testing.T) {
	t.Parallel()
	const addr, word = 0x2A5, 0xC3E1
	for pad := 0; pad <= MaxWriteTrailingPad; pad++ {
		raw := WriteFrame(addr, word, pad)
		if len(raw) != DataFrameLen {
			t.Fatalf("pad %d: frame length = %d, want %d", pad, len(raw), DataFrameLen)
		}
		f := uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
		f >>= uint(pad)
		if op := f >> 26 & 0b111; op != OpWrite {
			t.Fatalf("pad %d: opcode = %03b, want %03b", pad, op, OpWrite)
		}
		if got := f >> 16 & AddrMask; got != addr {
			t.Fatalf("pad %d: address field = %#03x, want %#03x", pad, got, addr)
		}
		if got := uint16(f); got != word {
			t.Fatalf("pad %d: data field = %#04x, want %#04x", pad, got, word)
		}
	}
}
