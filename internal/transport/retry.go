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

// Package transport carries retry loops shared by the transport
// implementations. Device-level retry lives in the root package; the
// helpers here cover the lower-level loops around bridge handshakes and
// partial serial reads, where an attempt that must be repeated is not an
// error yet.
package transport

import (
	"fmt"
	"time"

	at93c "github.com/n573/spi-eeprom"
)

// Operation is one retryable step. It reports its result, whether another
// attempt is worth making, and any error that must stop the loop at once.
type Operation[T any] func() (T, bool, error)

// RetryConfig bounds WithRetry.
type RetryConfig struct {
	// OnRetry runs between attempts, for recovery actions such as
	// resetting a bridge. An error from it stops the loop.
	OnRetry func() error
	// Description names the operation in the exhaustion error.
	Description string
	// MaxRetries is the number of attempts after the first.
	MaxRetries int
	// RetryDelay spaces attempts apart.
	RetryDelay time.Duration
}

// WithRetry runs op until it succeeds, returns an error, or 1+MaxRetries
// attempts are used up.
func WithRetry[T any](cfg RetryConfig, op Operation[T]) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, again, err := op()
		if err != nil {
			return zero, err
		}
		if !again {
			return result, nil
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		if cfg.OnRetry != nil {
			if err := cfg.OnRetry(); err != nil {
				return zero, err
			}
		}
		if cfg.RetryDelay > 0 {
			time.Sleep(cfg.RetryDelay)
		}
	}

	what := cfg.Description
	if what == "" {
		what = "retry"
	}
	return zero, at93c.NewTransportError(what, "",
		fmt.Errorf("%w: %d attempts exhausted", at93c.ErrCommunicationFailed, cfg.MaxRetries+1),
		at93c.ErrorTypeTransient)
}

// TimeoutRetry reruns op until it stops asking for another attempt or
// timeout elapses, polling once a millisecond. op always runs at least
// once.
func TimeoutRetry[T any](timeout time.Duration, op Operation[T]) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)

	for {
		result, again, err := op()
		if err != nil {
			return zero, err
		}
		if !again {
			return result, nil
		}
		if !time.Now().Before(deadline) {
			return zero, at93c.NewTimeoutError("poll", "")
		}
		time.Sleep(time.Millisecond)
	}
}
