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

	"github.com/n573/spi-eeprom/internal/microwire"
)

// checkRange rejects spans that run past the last word. Single-word
// operations mask their address like the chip does; bulk operations refuse
// instead, because silent wraparound across a buffer is never what the
// caller meant.
func checkRange(start uint16, count int) error {
	if count < 0 {
		return fmt.Errorf("%w: negative count %d", ErrInvalidParameter, count)
	}
	if int(start)+count > WordCount {
		return fmt.Errorf("%w: %d words at %#03x run past the last address",
			ErrDataTooLarge, count, start)
	}
	return nil
}

// ReadRange reads count words starting at start, one transaction per word.
func (d *Device) ReadRange(start uint16, count int) ([]uint16, error) {
	return d.ReadRangeContext(context.Background(), start, count)
}

// ReadRangeContext reads count words starting at start with context
// support. Each word is its own select-to-deselect transaction; see
// ReadRangeSequential for why.
func (d *Device) ReadRangeContext(ctx context.Context, start uint16, count int) ([]uint16, error) {
	if err := checkRange(start, count); err != nil {
		return nil, err
	}

	words := make([]uint16, count)
	for i := range words {
		word, err := d.ReadWordContext(ctx, start+uint16(i))
		if err != nil {
			return nil, fmt.Errorf("read range failed at %#03x: %w", start+uint16(i), err)
		}
		words[i] = word
	}
	return words, nil
}

// ReadRangeSequential reads count words in a single transaction, letting
// the chip stream consecutive words under one select.
//
// The chip only streams correctly when the serial clock runs without gaps
// for the whole transfer. Most byte-oriented controllers pause the clock
// between chunks, which desynchronizes the stream and yields garbage words,
// so this path is refused with ErrGaplessClockRequired unless the transport
// advertises CapabilityGaplessClock. When in doubt, use ReadRange.
func (d *Device) ReadRangeSequential(start uint16, count int) ([]uint16, error) {
	return d.ReadRangeSequentialContext(context.Background(), start, count)
}

// ReadRangeSequentialContext reads count words in a single transaction with
// context support.
func (d *Device) ReadRangeSequentialContext(ctx context.Context, start uint16, count int) ([]uint16, error) {
	if !d.hasCapability(CapabilityGaplessClock) {
		return nil, fmt.Errorf("%w: %s transport cannot guarantee an unbroken clock",
			ErrGaplessClockRequired, d.transport.Type())
	}
	if err := checkRange(start, count); err != nil {
		return nil, err
	}
	if count == 0 {
		return []uint16{}, nil
	}

	skew := d.config.Calibration.RxSkewBits
	var words []uint16
	err := d.transactRetry(ctx, func() error {
		if _, err := d.transport.Transfer(microwire.ReadFrame(start)); err != nil {
			return fmt.Errorf("read command failed: %w", err)
		}

		raw, err := d.transport.Receive(microwire.SequentialResponseLen(skew, count))
		if err != nil {
			return fmt.Errorf("read response failed: %w", err)
		}

		decoded, err := microwire.DecodeWords(raw, skew, count)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFrameCorrupted, err)
		}
		words = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return words, nil
}

// WriteWords writes words starting at start, one transaction and one full
// write cycle per word. The chip has no multi-word write; a failure in the
// middle leaves everything before it written.
func (d *Device) WriteWords(start uint16, words []uint16) error {
	return d.WriteWordsContext(context.Background(), start, words)
}

// WriteWordsContext writes words starting at start with context support.
func (d *Device) WriteWordsContext(ctx context.Context, start uint16, words []uint16) error {
	if err := checkRange(start, len(words)); err != nil {
		return err
	}

	for i, word := range words {
		addr := start + uint16(i)
		if err := d.WriteWordContext(ctx, addr, word); err != nil {
			return fmt.Errorf("write failed at %#03x: %w", addr, err)
		}
	}
	return nil
}

// Dump reads the whole device into buf, which must hold exactly WordCount
// words.
func (d *Device) Dump(buf []uint16) error {
	return d.DumpContext(context.Background(), buf)
}

// DumpContext reads the whole device into buf with context support.
func (d *Device) DumpContext(ctx context.Context, buf []uint16) error {
	if len(buf) != WordCount {
		return fmt.Errorf("%w: dump buffer holds %d words, need %d",
			ErrInvalidParameter, len(buf), WordCount)
	}

	for addr := 0; addr < WordCount; addr++ {
		word, err := d.ReadWordContext(ctx, uint16(addr))
		if err != nil {
			return fmt.Errorf("dump failed at %#03x: %w", addr, err)
		}
		buf[addr] = word
	}
	return nil
}

// Restore writes buf, which must hold exactly WordCount words, over the
// whole device. With one write cycle per word this takes several seconds;
// there is no rollback if it fails partway.
func (d *Device) Restore(buf []uint16) error {
	return d.RestoreContext(context.Background(), buf)
}

// RestoreContext writes buf over the whole device with context support.
func (d *Device) RestoreContext(ctx context.Context, buf []uint16) error {
	if len(buf) != WordCount {
		return fmt.Errorf("%w: restore buffer holds %d words, need %d",
			ErrInvalidParameter, len(buf), WordCount)
	}

	for addr := 0; addr < WordCount; addr++ {
		if err := d.WriteWordContext(ctx, uint16(addr), buf[addr]); err != nil {
			return fmt.Errorf("restore failed at %#03x: %w", addr, err)
		}
	}
	return nil
}
