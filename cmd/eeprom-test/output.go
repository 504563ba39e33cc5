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
	"fmt"
)

// Output handles consistent formatting of messages
type Output struct {
	verbose bool
}

// NewOutput creates a new output handler
func NewOutput(verbose bool) *Output {
	return &Output{verbose: verbose}
}

// StepHeader prints the banner for an exercise step
func (*Output) StepHeader(name string) {
	_, _ = fmt.Printf("\n=== %s ===\n", name)
}

// StepPass prints the pass marker for a step
func (*Output) StepPass(name string) {
	_, _ = fmt.Printf("PASS: %s\n", name)
}

// StepFail prints the failure marker for a step
func (*Output) StepFail(name string, err error) {
	_, _ = fmt.Printf("FAIL: %s: %v\n", name, err)
}

// Summary prints the final tally
func (*Output) Summary(passed, total int) {
	_, _ = fmt.Printf("\n%d/%d steps passed\n", passed, total)
}

// Word prints an address/value pair, verbose mode only
func (o *Output) Word(addr, word uint16) {
	if o.verbose {
		_, _ = fmt.Printf("   [%04X] = %04X\n", addr, word)
	}
}

// Error prints an error message
func (*Output) Error(format string, args ...any) {
	_, _ = fmt.Printf("ERROR: "+format+"\n", args...)
}

// Warning prints a warning message
func (*Output) Warning(format string, args ...any) {
	_, _ = fmt.Printf("WARNING: "+format+"\n", args...)
}

// Info prints an info message
func (*Output) Info(format string, args ...any) {
	_, _ = fmt.Printf("INFO: "+format+"\n", args...)
}

// OK prints a success message
func (*Output) OK(format string, args ...any) {
	_, _ = fmt.Printf("OK: "+format+"\n", args...)
}

// Verbose prints only if verbose mode is enabled
func (o *Output) Verbose(format string, args ...any) {
	if o.verbose {
		_, _ = fmt.Printf(format+"\n", args...)
	}
}
