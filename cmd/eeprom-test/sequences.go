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

package main

import (
	"context"
	"fmt"

	at93c "github.com/n573/spi-eeprom"
)

// Scratch addresses used by the exercise. Everything below 0x3F0 is spaced
// out so a stuck address line shows up as cross-talk between steps.
const (
	addrFirst  = 0x000
	addrSecond = 0x010
	addrThird  = 0x020
	addrCycle  = 0x011
	addrString = 0x100
	addrLate   = 0x220
	addrRamp   = 0x3F0
	rampLen    = 16
)

const testString = "Hi NC"

func verifyWord(ctx context.Context, device *at93c.Device, out *Output, addr, want uint16) error {
	got, err := device.ReadWordContext(ctx, addr)
	if err != nil {
		return fmt.Errorf("read %#03x failed: %w", addr, err)
	}
	if got != want {
		return fmt.Errorf("[%03X] reads %04X, want %04X", addr, got, want)
	}
	out.Word(addr, got)
	return nil
}

func stepWriteEnable(ctx context.Context, device *at93c.Device, _ *Output) error {
	return device.WriteEnableContext(ctx)
}

func stepEraseWords(ctx context.Context, device *at93c.Device, out *Output) error {
	for _, addr := range []uint16{addrFirst, addrSecond, addrThird, addrCycle} {
		if err := device.EraseWordContext(ctx, addr); err != nil {
			return fmt.Errorf("erase %#03x failed: %w", addr, err)
		}
		if err := verifyWord(ctx, device, out, addr, at93c.ErasedWord); err != nil {
			return err
		}
	}
	return nil
}

func stepWriteWords(ctx context.Context, device *at93c.Device, out *Output) error {
	writes := []struct {
		addr uint16
		word uint16
	}{
		{addrFirst, 0xBABA},
		{addrSecond, 0xDEAD},
		{addrThird, 0xBEEF},
	}
	for _, w := range writes {
		if err := device.WriteWordContext(ctx, w.addr, w.word); err != nil {
			return fmt.Errorf("write %#03x failed: %w", w.addr, err)
		}
	}
	for _, w := range writes {
		if err := verifyWord(ctx, device, out, w.addr, w.word); err != nil {
			return err
		}
	}
	return nil
}

// stepEraseSingle erases one of the three written words and checks that its
// neighbors keep their data.
func stepEraseSingle(ctx context.Context, device *at93c.Device, out *Output) error {
	if err := device.EraseWordContext(ctx, addrSecond); err != nil {
		return fmt.Errorf("erase %#03x failed: %w", addrSecond, err)
	}
	if err := verifyWord(ctx, device, out, addrSecond, at93c.ErasedWord); err != nil {
		return err
	}
	if err := verifyWord(ctx, device, out, addrFirst, 0xBABA); err != nil {
		return err
	}
	return verifyWord(ctx, device, out, addrThird, 0xBEEF)
}

// stepRewriteCycles erases and rewrites the same word a few times. Flaky
// select timing tends to corrupt the second or third pass, not the first.
func stepRewriteCycles(ctx context.Context, device *at93c.Device, out *Output) error {
	for i := uint16(0); i < 3; i++ {
		if err := device.EraseWordContext(ctx, addrCycle); err != nil {
			return fmt.Errorf("erase pass %d failed: %w", i, err)
		}
		word := 0xF000 + i
		if err := device.WriteWordContext(ctx, addrCycle, word); err != nil {
			return fmt.Errorf("write pass %d failed: %w", i, err)
		}
		if err := verifyWord(ctx, device, out, addrCycle, word); err != nil {
			return fmt.Errorf("pass %d: %w", i, err)
		}
	}
	return nil
}

func stepRampFill(ctx context.Context, device *at93c.Device, _ *Output) error {
	words := make([]uint16, rampLen)
	for i := range words {
		words[i] = 0x0C00 + uint16(2*i)
	}
	if err := device.WriteWordsContext(ctx, addrRamp, words); err != nil {
		return err
	}

	got, err := device.ReadRangeContext(ctx, addrRamp, rampLen)
	if err != nil {
		return err
	}
	for i, want := range words {
		if got[i] != want {
			return fmt.Errorf("[%03X] reads %04X, want %04X", addrRamp+i, got[i], want)
		}
	}
	return nil
}

func stepEraseThenWrite(ctx context.Context, device *at93c.Device, out *Output) error {
	if err := device.EraseWordContext(ctx, addrLate); err != nil {
		return fmt.Errorf("erase %#03x failed: %w", addrLate, err)
	}
	if err := verifyWord(ctx, device, out, addrLate, at93c.ErasedWord); err != nil {
		return err
	}
	if err := device.WriteWordContext(ctx, addrLate, 0xF1C2); err != nil {
		return fmt.Errorf("write %#03x failed: %w", addrLate, err)
	}
	return verifyWord(ctx, device, out, addrLate, 0xF1C2)
}

func stepStringRoundTrip(ctx context.Context, device *at93c.Device, out *Output) error {
	if err := device.WriteStringContext(ctx, addrString, testString); err != nil {
		return fmt.Errorf("write string failed: %w", err)
	}
	// maxLen counts the terminator, like the C buffer it mirrors.
	got, err := device.ReadStringContext(ctx, addrString, len(testString)+1)
	if err != nil {
		return fmt.Errorf("read string failed: %w", err)
	}
	if got != testString {
		return fmt.Errorf("string reads %q, want %q", got, testString)
	}
	out.Verbose("   string: %q", got)
	return nil
}

// stepLatch clears the write-enable latch, attempts a write, and checks the
// chip ignored it. Re-enables writes afterwards so later steps still run.
func stepLatch(ctx context.Context, device *at93c.Device, out *Output) error {
	before, err := device.ReadWordContext(ctx, addrFirst)
	if err != nil {
		return fmt.Errorf("read %#03x failed: %w", addrFirst, err)
	}

	if err := device.WriteDisableContext(ctx); err != nil {
		return fmt.Errorf("write disable failed: %w", err)
	}
	// Disabling twice must be harmless.
	if err := device.WriteDisableContext(ctx); err != nil {
		return fmt.Errorf("second write disable failed: %w", err)
	}

	if err := device.WriteWordContext(ctx, addrFirst, before^0xFFFF); err != nil {
		return fmt.Errorf("write with latch clear failed: %w", err)
	}
	if err := verifyWord(ctx, device, out, addrFirst, before); err != nil {
		return fmt.Errorf("latch did not hold: %w", err)
	}

	return device.WriteEnableContext(ctx)
}

// wipeSteps are destructive: they rewrite the whole array. The image dumped
// first is restored at the end, so contents survive a clean run.
func wipeSteps() []Step {
	image := make([]uint16, at93c.WordCount)

	dump := func(ctx context.Context, device *at93c.Device, out *Output) error {
		if err := device.DumpContext(ctx, image); err != nil {
			return err
		}
		used := 0
		for _, word := range image {
			if word != at93c.ErasedWord {
				used++
			}
		}
		out.Info("%d of %d words in use", used, at93c.WordCount)
		return nil
	}

	fill := func(ctx context.Context, device *at93c.Device, out *Output) error {
		if err := device.WriteAllContext(ctx, 0xA5A5); err != nil {
			return err
		}
		for _, addr := range []uint16{0x000, 0x1FF, 0x3FF} {
			if err := verifyWord(ctx, device, out, addr, 0xA5A5); err != nil {
				return err
			}
		}
		return nil
	}

	erase := func(ctx context.Context, device *at93c.Device, out *Output) error {
		if err := device.EraseAllContext(ctx); err != nil {
			return err
		}
		for _, addr := range []uint16{0x000, 0x200, 0x3FF} {
			if err := verifyWord(ctx, device, out, addr, at93c.ErasedWord); err != nil {
				return err
			}
		}
		return nil
	}

	restore := func(ctx context.Context, device *at93c.Device, out *Output) error {
		if err := device.RestoreContext(ctx, image); err != nil {
			return err
		}
		if err := verifyWord(ctx, device, out, addrFirst, image[addrFirst]); err != nil {
			return err
		}
		return verifyWord(ctx, device, out, addrRamp, image[addrRamp])
	}

	return []Step{
		{Name: "dump image", Run: dump},
		{Name: "fill all", Run: fill},
		{Name: "chip erase", Run: erase},
		{Name: "restore image", Run: restore},
	}
}

// buildSteps assembles the exercise. Order matters: later steps verify data
// placed by earlier ones.
func buildSteps(cfg *Config) []Step {
	steps := []Step{
		{Name: "write enable", Run: stepWriteEnable},
		{Name: "erase words", Run: stepEraseWords},
		{Name: "write words", Run: stepWriteWords},
		{Name: "erase single word", Run: stepEraseSingle},
		{Name: "rewrite cycles", Run: stepRewriteCycles},
		{Name: "ramp fill", Run: stepRampFill},
		{Name: "erase then write", Run: stepEraseThenWrite},
		{Name: "string round-trip", Run: stepStringRoundTrip},
		{Name: "write disable latch", Run: stepLatch},
	}
	if cfg.Wipe {
		steps = append(steps, wipeSteps()...)
	}
	return steps
}
