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
	"math/rand"
	"time"
)

// RetryConfig configures how failed device transactions are retried.
//
// Retries always wrap a whole select-to-deselect transaction, never a single
// transfer inside one: re-clocking part of an instruction after the chip has
// already latched some of its bits would feed it garbage.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	// Values below one mean a single attempt.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
	// BackoffMultiplier scales the delay after each failed attempt.
	BackoffMultiplier float64
	// Jitter randomizes each delay by up to this fraction in either
	// direction.
	Jitter float64
	// RetryTimeout bounds the whole retry sequence; zero means no bound.
	RetryTimeout time.Duration
}

// DefaultRetryConfig returns the retry configuration used when none is
// supplied. The backoff floor sits near the chip's write cycle time so a
// retry never lands while the previous attempt's cycle is still running.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      time.Second,
	}
}

// RetryWithConfig runs fn until it succeeds, returns a non-retryable error,
// exhausts config.MaxAttempts, or ctx is done. A nil config uses
// DefaultRetryConfig.
func RetryWithConfig(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	backoff := config.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(jitteredBackoff(backoff, config.Jitter)):
		}

		backoff = nextBackoff(backoff, config)
	}

	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// jitteredBackoff spreads d by up to jitter in either direction, clamping at
// zero so hostile jitter values cannot produce a negative sleep.
func jitteredBackoff(d time.Duration, jitter float64) time.Duration {
	if d <= 0 || jitter == 0 {
		return d
	}
	spread := 1 + jitter*(rand.Float64()*2-1)
	if spread < 0 {
		return 0
	}
	return time.Duration(float64(d) * spread)
}

// nextBackoff grows the delay for the following attempt.
func nextBackoff(current time.Duration, config *RetryConfig) time.Duration {
	if config.BackoffMultiplier <= 0 {
		return current
	}
	next := time.Duration(float64(current) * config.BackoffMultiplier)
	if config.MaxBackoff > 0 && next > config.MaxBackoff {
		next = config.MaxBackoff
	}
	return next
}
