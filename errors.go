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
	"errors"
	"fmt"
)

// ErrorType classifies an error by how a caller should react to it.
type ErrorType int

const (
	// ErrorTypePermanent indicates retrying will not help.
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient indicates a retry may succeed.
	ErrorTypeTransient
	// ErrorTypeTimeout indicates the operation ran out of time.
	ErrorTypeTimeout
)

// String returns a human-readable name for the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Sentinel errors returned by device and transport operations.
var (
	// ErrDeviceNotFound indicates no EEPROM responded on the transport.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrTransportTimeout indicates a transport operation timed out.
	ErrTransportTimeout = errors.New("transport timeout")

	// ErrTransportRead indicates the transport failed to clock data in.
	ErrTransportRead = errors.New("transport read failed")

	// ErrTransportWrite indicates the transport failed to clock data out.
	ErrTransportWrite = errors.New("transport write failed")

	// ErrTransportClosed indicates an operation on a closed transport.
	ErrTransportClosed = errors.New("transport closed")

	// ErrCommunicationFailed indicates communication with the device failed.
	ErrCommunicationFailed = errors.New("communication with device failed")

	// ErrFrameCorrupted indicates a response did not hold a whole frame.
	ErrFrameCorrupted = errors.New("response frame corrupted")

	// ErrInvalidParameter indicates an argument outside the device's
	// address space or a buffer of the wrong shape.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDataTooLarge indicates data that would run past the last word.
	ErrDataTooLarge = errors.New("data too large")

	// ErrGaplessClockRequired indicates the transport cannot keep the
	// serial clock running across a whole multi-word read.
	ErrGaplessClockRequired = errors.New("transport cannot clock a continuous read")

	// ErrWriteCycleTimeout indicates the device stayed busy past the
	// write cycle deadline.
	ErrWriteCycleTimeout = errors.New("write cycle did not complete")
)

// retryableSentinels are the sentinel errors a caller may retry.
var retryableSentinels = []error{
	ErrTransportTimeout,
	ErrTransportRead,
	ErrTransportWrite,
	ErrCommunicationFailed,
	ErrFrameCorrupted,
	ErrWriteCycleTimeout,
}

// TransportError records a failed transport operation with enough context
// to decide whether to retry it.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("transport %s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a TransportError. Retryability follows from the
// error type: transient and timeout errors are retryable.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Err:       err,
		Op:        op,
		Port:      port,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a TransportError for a timed-out operation.
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewFrameCorruptedError creates a TransportError for a response that was
// too short or otherwise unusable.
func NewFrameCorruptedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrFrameCorrupted, ErrorTypeTransient)
}

// NewDataTooLargeError creates a TransportError for a payload that cannot
// fit the device.
func NewDataTooLargeError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrDataTooLarge, ErrorTypePermanent)
}

// NewTransportClosedError creates a TransportError for an operation on a
// transport that has been closed.
func NewTransportClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}

// NewShortTransferError creates a TransportError for a transfer that moved
// fewer bytes than requested.
func NewShortTransferError(op, port string, got, want int) *TransportError {
	err := fmt.Errorf("%w: %d of %d bytes", ErrTransportRead, got, want)
	return NewTransportError(op, port, err, ErrorTypeTransient)
}

// NewInvalidResponseError creates a TransportError for a response that does
// not match what the protocol requires, such as a bridge answering a mode
// switch with the wrong banner.
func NewInvalidResponseError(message, port string) *TransportError {
	err := fmt.Errorf("invalid response: %s", message)
	return NewTransportError("response", port, err, ErrorTypePermanent)
}

// IsRetryable reports whether the operation that produced err is worth
// retrying. A TransportError speaks for itself; bare sentinels are matched
// through their wrap chain.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	for _, sentinel := range retryableSentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// GetErrorType classifies err. Unknown errors are treated as permanent so
// callers never spin on something they do not understand.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}

	switch {
	case errors.Is(err, ErrTransportTimeout), errors.Is(err, ErrWriteCycleTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrTransportRead), errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrCommunicationFailed), errors.Is(err, ErrFrameCorrupted):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}
