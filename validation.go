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
	"fmt"
	"sync"
	"time"
)

// ValidationConfig holds configuration for data verification and reliability
type ValidationConfig struct {
	// RetryDelay specifies delay between retry attempts
	RetryDelay time.Duration

	// ReadRetries specifies max number of read retries on verification failure
	ReadRetries int

	// WriteRetries specifies max number of write retries on verification failure
	WriteRetries int

	// EnableReadVerification enables read-until-consistent
	EnableReadVerification bool

	// EnableWriteVerification enables read-back after every write
	EnableWriteVerification bool
}

// DefaultValidationConfig returns default verification configuration
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		EnableReadVerification:  true,
		ReadRetries:             3,
		EnableWriteVerification: true,
		WriteRetries:            3,
		RetryDelay:              10 * time.Millisecond,
	}
}

// ValidationMetrics tracks verification statistics
type ValidationMetrics struct {
	LastVerification    time.Time
	TotalOperations     uint64
	FailedVerifications uint64
}

// requiredConsecutiveMatches is how many identical re-reads make a read
// count as stable.
const requiredConsecutiveMatches = 2

// VerifiedDevice wraps a Device with read and write verification. The chip
// reports nothing when an instruction fails or a bit flips; the only way to
// know data landed is to read it back. A VerifiedDevice does that on every
// operation, at the cost of extra transactions.
type VerifiedDevice struct {
	*Device
	config  *ValidationConfig
	metrics *ValidationMetrics
	mu      sync.RWMutex
}

// NewVerifiedDevice wraps device with verification features. A nil config
// uses DefaultValidationConfig.
func NewVerifiedDevice(device *Device, config *ValidationConfig) *VerifiedDevice {
	if config == nil {
		config = DefaultValidationConfig()
	}
	return &VerifiedDevice{
		Device:  device,
		config:  config,
		metrics: &ValidationMetrics{},
	}
}

// GetValidationMetrics returns current verification metrics (thread-safe)
func (vd *VerifiedDevice) GetValidationMetrics() ValidationMetrics {
	vd.mu.RLock()
	defer vd.mu.RUnlock()
	return *vd.metrics
}

// recordResult updates metrics safely
func (vd *VerifiedDevice) recordResult(success bool) {
	vd.mu.Lock()
	defer vd.mu.Unlock()

	vd.metrics.TotalOperations++
	vd.metrics.LastVerification = time.Now()
	if !success {
		vd.metrics.FailedVerifications++
	}
}

// ReadWordVerified reads the word at addr and re-reads until two
// consecutive reads agree, so a marginal bus cannot hand back a
// single-sample glitch as data.
func (vd *VerifiedDevice) ReadWordVerified(addr uint16) (uint16, error) {
	word, err := vd.ReadWord(addr)
	if !vd.config.EnableReadVerification || err != nil {
		vd.recordResult(err == nil)
		return word, err
	}

	last := word
	matches := 0
	var lastErr error
	for retry := 0; retry < vd.config.ReadRetries; retry++ {
		if retry > 0 {
			time.Sleep(vd.config.RetryDelay)
		}

		verify, err := vd.ReadWord(addr)
		if err != nil {
			lastErr = err
			matches = 0
			continue
		}

		if verify == last {
			matches++
		} else {
			matches = 0
			last = verify
		}

		if matches >= requiredConsecutiveMatches {
			vd.recordResult(true)
			return verify, nil
		}
	}

	vd.recordResult(false)
	if lastErr != nil {
		return 0, fmt.Errorf("read verification failed after %d retries: %w",
			vd.config.ReadRetries, lastErr)
	}
	return 0, fmt.Errorf("read verification failed: inconsistent data after %d retries",
		vd.config.ReadRetries)
}

// WriteWordVerified writes word at addr and reads it back, retrying the
// whole write when the readback differs. WriteWord already blocks for the
// full programming cycle, so the readback needs no settle delay.
func (vd *VerifiedDevice) WriteWordVerified(addr, word uint16) error {
	var lastErr error
	for retry := 0; retry <= vd.config.WriteRetries; retry++ {
		if retry > 0 {
			time.Sleep(vd.config.RetryDelay)
		}

		if err := vd.WriteWord(addr, word); err != nil {
			lastErr = err
			continue
		}

		if !vd.config.EnableWriteVerification {
			vd.recordResult(true)
			return nil
		}

		readBack, err := vd.ReadWord(addr)
		if err != nil {
			lastErr = err
			continue
		}
		if readBack == word {
			vd.recordResult(true)
			return nil
		}

		lastErr = fmt.Errorf("wrote %04X, read back %04X (write-enable latch may be clear)",
			word, readBack)
	}

	vd.recordResult(false)
	return fmt.Errorf("write verification failed after %d retries: %w",
		vd.config.WriteRetries, lastErr)
}

// EraseWordVerified erases the word at addr and confirms it reads back as
// ErasedWord.
func (vd *VerifiedDevice) EraseWordVerified(addr uint16) error {
	var lastErr error
	for retry := 0; retry <= vd.config.WriteRetries; retry++ {
		if retry > 0 {
			time.Sleep(vd.config.RetryDelay)
		}

		if err := vd.EraseWord(addr); err != nil {
			lastErr = err
			continue
		}

		if !vd.config.EnableWriteVerification {
			vd.recordResult(true)
			return nil
		}

		readBack, err := vd.ReadWord(addr)
		if err != nil {
			lastErr = err
			continue
		}
		if readBack == ErasedWord {
			vd.recordResult(true)
			return nil
		}

		lastErr = fmt.Errorf("erased word reads back %04X (write-enable latch may be clear)",
			readBack)
	}

	vd.recordResult(false)
	return fmt.Errorf("erase verification failed after %d retries: %w",
		vd.config.WriteRetries, lastErr)
}
