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
	"time"

	"github.com/n573/spi-eeprom/internal/microwire"
)

// WordCount is the number of addressable 16-bit words in the device.
const WordCount = microwire.WordCount

// ErasedWord is the value every word holds after an erase.
const ErasedWord = microwire.ErasedWord

// ReadWord reads the word at addr. Addresses wider than ten bits are
// truncated silently, matching the chip's own field width.
func (d *Device) ReadWord(addr uint16) (uint16, error) {
	return d.ReadWordContext(context.Background(), addr)
}

// ReadWordContext reads the word at addr with context support.
func (d *Device) ReadWordContext(ctx context.Context, addr uint16) (uint16, error) {
	var word uint16
	err := d.transactRetry(ctx, func() error {
		w, err := d.readWordFramed(addr)
		if err != nil {
			return err
		}
		word = w
		return nil
	})
	if err != nil {
		return 0, err
	}
	return word, nil
}

// ReadWordInTransaction reads the word at addr inside a transaction the
// caller opened with BeginTransaction. The caller keeps control of the
// select line, which allows several reads under one select for transports
// and wiring verified to tolerate it. No retry is attempted: re-clocking a
// command inside a caller-owned frame is not this method's call to make.
func (d *Device) ReadWordInTransaction(addr uint16) (uint16, error) {
	if !d.inTransaction {
		return 0, ErrNoTransaction
	}
	return d.readWordFramed(addr)
}

// readWordFramed clocks one READ instruction and its response inside an
// already-open transaction.
func (d *Device) readWordFramed(addr uint16) (uint16, error) {
	if _, err := d.transport.Transfer(microwire.ReadFrame(addr)); err != nil {
		return 0, fmt.Errorf("read command failed: %w", err)
	}

	skew := d.config.Calibration.RxSkewBits
	raw, err := d.transport.Receive(microwire.ReadResponseLen(skew))
	if err != nil {
		return 0, fmt.Errorf("read response failed: %w", err)
	}

	word, err := microwire.DecodeWord(raw, skew)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFrameCorrupted, err)
	}
	return word, nil
}

// WriteWord writes word at addr. The write-enable latch must be set or the
// chip ignores the instruction without any indication; use a VerifiedDevice
// when that silence is unacceptable. Blocks for the full write cycle.
func (d *Device) WriteWord(addr, word uint16) error {
	return d.WriteWordContext(context.Background(), addr, word)
}

// WriteWordContext writes word at addr with context support.
func (d *Device) WriteWordContext(ctx context.Context, addr, word uint16) error {
	frame := microwire.WriteFrame(addr, word, d.config.Calibration.WriteTrailingPad)
	err := d.transactRetry(ctx, func() error {
		if _, err := d.transport.Transfer(frame); err != nil {
			return fmt.Errorf("write command failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	debugf("WRITE %03X <- %04X", addr&microwire.AddrMask, word)
	return d.waitProgramCycle(ctx, d.config.Timing.WriteCycle)
}

// EraseWord resets the word at addr to ErasedWord. Requires the
// write-enable latch, like WriteWord. Blocks for the erase cycle.
func (d *Device) EraseWord(addr uint16) error {
	return d.EraseWordContext(context.Background(), addr)
}

// EraseWordContext resets the word at addr to ErasedWord with context
// support.
func (d *Device) EraseWordContext(ctx context.Context, addr uint16) error {
	err := d.transactRetry(ctx, func() error {
		if _, err := d.transport.Transfer(microwire.EraseFrame(addr)); err != nil {
			return fmt.Errorf("erase command failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	debugf("ERASE %03X", addr&microwire.AddrMask)
	return d.waitProgramCycle(ctx, d.config.Timing.EraseCycle)
}

// WriteEnable sets the chip's write-enable latch. The latch persists until
// WriteDisable or power loss; there is no way to read it back.
func (d *Device) WriteEnable() error {
	return d.WriteEnableContext(context.Background())
}

// WriteEnableContext sets the write-enable latch with context support.
func (d *Device) WriteEnableContext(ctx context.Context) error {
	err := d.transactRetry(ctx, func() error {
		if _, err := d.transport.Transfer(microwire.WriteEnableFrame()); err != nil {
			return fmt.Errorf("write enable failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	debugln("EWEN")
	return nil
}

// WriteDisable clears the chip's write-enable latch. Issuing it with the
// latch already clear is harmless; the instruction is idempotent.
func (d *Device) WriteDisable() error {
	return d.WriteDisableContext(context.Background())
}

// WriteDisableContext clears the write-enable latch with context support.
func (d *Device) WriteDisableContext(ctx context.Context) error {
	err := d.transactRetry(ctx, func() error {
		if _, err := d.transport.Transfer(microwire.WriteDisableFrame()); err != nil {
			return fmt.Errorf("write disable failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	debugln("EWDS")
	return nil
}

// EraseAll resets every word to ErasedWord in one chip-level instruction.
// Requires the write-enable latch. Blocks for the erase cycle.
func (d *Device) EraseAll() error {
	return d.EraseAllContext(context.Background())
}

// EraseAllContext resets every word to ErasedWord with context support.
func (d *Device) EraseAllContext(ctx context.Context) error {
	err := d.transactRetry(ctx, func() error {
		if _, err := d.transport.Transfer(microwire.EraseAllFrame()); err != nil {
			return fmt.Errorf("erase all failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	debugln("ERAL")
	return d.waitProgramCycle(ctx, d.config.Timing.EraseCycle)
}

// WriteAll writes word to every address in one chip-level instruction.
// Requires the write-enable latch. Blocks for the write cycle.
func (d *Device) WriteAll(word uint16) error {
	return d.WriteAllContext(context.Background(), word)
}

// WriteAllContext writes word to every address with context support.
func (d *Device) WriteAllContext(ctx context.Context, word uint16) error {
	frame := microwire.WriteAllFrame(word, d.config.Calibration.WriteTrailingPad)
	err := d.transactRetry(ctx, func() error {
		if _, err := d.transport.Transfer(frame); err != nil {
			return fmt.Errorf("write all failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	debugf("WRAL <- %04X", word)
	return d.waitProgramCycle(ctx, d.config.Timing.WriteCycle)
}

// waitProgramCycle blocks until the chip's self-timed programming cycle
// finishes. The cycle starts when select falls at the end of the write or
// erase transaction, so this always runs after EndTransaction. A canceled
// context stops the wait, not the chip: the cycle completes internally
// regardless.
func (d *Device) waitProgramCycle(ctx context.Context, cycle time.Duration) error {
	if d.config.ReadyPoll {
		return d.pollReady(ctx, cycle)
	}
	return sleepContext(ctx, cycle)
}

// pollReady watches the chip's ready status instead of sleeping the full
// worst-case cycle. While a cycle runs the chip drives its data-out line
// low whenever selected; it flips high the moment the cycle completes.
func (d *Device) pollReady(ctx context.Context, cycle time.Duration) error {
	timeout := d.config.ReadyPollTimeout
	if timeout <= 0 {
		timeout = 2 * cycle
	}
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ready poll aborted: %w", err)
		}

		var status byte
		err := d.transact(func() error {
			raw, err := d.transport.Receive(1)
			if err != nil {
				return fmt.Errorf("status read failed: %w", err)
			}
			status = raw[0]
			return nil
		})
		if err != nil {
			return err
		}

		// Any high bit means the busy phase ended within this byte.
		if status != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: still busy after %v", ErrWriteCycleTimeout, timeout)
		}

		time.Sleep(500 * time.Microsecond)
	}
}

// sleepContext sleeps for dur unless ctx ends first.
func sleepContext(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("cycle wait aborted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
