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
	"time"

	"github.com/n573/spi-eeprom/internal/microwire"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithRetryConfig sets the retry configuration for the device
func WithRetryConfig(config *RetryConfig) Option {
	return func(d *Device) error {
		d.SetRetryConfig(config)
		return nil
	}
}

// WithTimeout sets the default timeout for device operations
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		return d.SetTimeout(timeout)
	}
}

// WithMaxRetries sets the maximum number of attempts for device transactions
func WithMaxRetries(maxAttempts int) Option {
	return func(device *Device) error {
		if device.config.RetryConfig == nil {
			device.config.RetryConfig = DefaultRetryConfig()
		}
		device.config.RetryConfig.MaxAttempts = maxAttempts
		return nil
	}
}

// WithRetryBackoff sets the initial backoff duration for retries
func WithRetryBackoff(initialBackoff time.Duration) Option {
	return func(device *Device) error {
		if device.config.RetryConfig == nil {
			device.config.RetryConfig = DefaultRetryConfig()
		}
		device.config.RetryConfig.InitialBackoff = initialBackoff
		return nil
	}
}

// WithTiming overrides the select and programming-cycle delays. Useful for
// derated parts and for tests that should not spend real milliseconds in
// cycle waits.
func WithTiming(timing *TimingConfig) Option {
	return func(d *Device) error {
		if timing == nil {
			return fmt.Errorf("%w: nil timing config", ErrInvalidParameter)
		}
		d.config.Timing = timing
		return nil
	}
}

// WithCalibration overrides the empirical framing constants. Change these
// only with hardware in hand; a wrong skew reads every word garbled.
func WithCalibration(cal *Calibration) Option {
	return func(d *Device) error {
		if cal == nil {
			return fmt.Errorf("%w: nil calibration", ErrInvalidParameter)
		}
		if cal.RxSkewBits < 0 {
			return fmt.Errorf("%w: negative rx skew", ErrInvalidParameter)
		}
		if cal.WriteTrailingPad < 0 || cal.WriteTrailingPad > microwire.MaxWriteTrailingPad {
			return fmt.Errorf("%w: write trailing pad %d outside 0..%d",
				ErrInvalidParameter, cal.WriteTrailingPad, microwire.MaxWriteTrailingPad)
		}
		d.config.Calibration = cal
		return nil
	}
}

// WithReadyPolling replaces the fixed post-write sleep with polling of the
// chip's ready status, bounded by maxWait (zero means twice the write cycle
// time). The chip reports busy on its data-out line while a programming
// cycle runs, so polling ends the wait as soon as the part is actually done.
func WithReadyPolling(maxWait time.Duration) Option {
	return func(d *Device) error {
		if maxWait < 0 {
			return fmt.Errorf("%w: negative ready poll timeout", ErrInvalidParameter)
		}
		d.config.ReadyPoll = true
		d.config.ReadyPollTimeout = maxWait
		return nil
	}
}
