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

import (
	"context"
	"fmt"
	"strings"
)

// WriteString stores text at start, packed two bytes per word with the
// first byte in the high half, always followed by a NUL terminator. Text is
// treated as raw bytes and cut at any embedded NUL. Requires the
// write-enable latch.
func (d *Device) WriteString(start uint16, text string) error {
	return d.WriteStringContext(context.Background(), start, text)
}

// WriteStringContext stores text at start with context support.
func (d *Device) WriteStringContext(ctx context.Context, start uint16, text string) error {
	if i := strings.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}

	words := packString(text)
	if err := d.WriteWordsContext(ctx, start, words); err != nil {
		return fmt.Errorf("write string: %w", err)
	}
	return nil
}

// packString packs text plus its terminator into words. An odd-length text
// carries the terminator in the low byte of its last word; an even-length
// text needs a whole extra word for it.
func packString(text string) []uint16 {
	words := make([]uint16, 0, (len(text)+2)/2)
	for i := 0; i < len(text); i += 2 {
		hi := uint16(text[i]) << 8
		if i+1 < len(text) {
			hi |= uint16(text[i+1])
		}
		words = append(words, hi)
	}
	if len(text)%2 == 0 {
		words = append(words, 0)
	}
	return words
}

// ReadString reads a NUL-terminated string from start. maxLen counts the
// terminator the way a C buffer would, so at most maxLen-1 bytes come back.
// Reading stops at a NUL in either byte of a word, at maxLen-1 bytes, or at
// the device's last word, whichever comes first; a missing terminator
// truncates rather than fails.
func (d *Device) ReadString(start uint16, maxLen int) (string, error) {
	return d.ReadStringContext(context.Background(), start, maxLen)
}

// ReadStringContext reads a NUL-terminated string from start with context
// support.
func (d *Device) ReadStringContext(ctx context.Context, start uint16, maxLen int) (string, error) {
	if maxLen < 0 {
		return "", fmt.Errorf("%w: negative max length %d", ErrInvalidParameter, maxLen)
	}
	if maxLen <= 1 {
		return "", nil
	}

	var sb strings.Builder
	for addr := int(start); addr < WordCount; addr++ {
		word, err := d.ReadWordContext(ctx, uint16(addr))
		if err != nil {
			return "", fmt.Errorf("read string failed at %#03x: %w", addr, err)
		}

		hi := byte(word >> 8)
		if hi == 0 {
			break
		}
		sb.WriteByte(hi)
		if sb.Len() == maxLen-1 {
			break
		}

		lo := byte(word)
		if lo == 0 {
			break
		}
		sb.WriteByte(lo)
		if sb.Len() == maxLen-1 {
			break
		}
	}
	return sb.String(), nil
}
