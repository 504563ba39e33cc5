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

// Package spidev drives the EEPROM through an SPI controller using
// periph.io, with chip select on a separate GPIO line.
//
// The controller's own chip select cannot be used: Microwire selects on a
// high level, and Linux SPI controllers assert their CS pin low around
// every transfer. The select line therefore has to be an ordinary GPIO that
// this transport drives itself, and the controller's CS pin is left
// unconnected.
package spidev

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	at93c "github.com/n573/spi-eeprom"
)

const (
	// defaultClockFreq keeps a comfortable margin below the chip's limit.
	defaultClockFreq = 1 * physic.MegaHertz

	// maxClockFreq is the fastest the chip is specified to clock at 5V.
	maxClockFreq = 2 * physic.MegaHertz
)

// Config holds optional controller settings for New.
type Config struct {
	// Speed is the SPI clock frequency. Zero means 1MHz; values above
	// 2MHz are rejected because the chip cannot follow them.
	Speed physic.Frequency

	// Mode selects the clock phase and polarity. The chip samples its
	// data-in pin on rising clock edges, which both Mode0 (the zero
	// value) and Mode3 provide. The default calibration constants were
	// taken in Mode0; switching modes can shift the receive skew by a
	// bit.
	Mode spi.Mode
}

// Transport implements the at93c.Transport interface on top of a periph.io
// SPI port and a GPIO select line.
type Transport struct {
	port     spi.PortCloser
	conn     spi.Conn
	csPin    gpio.PinOut
	portName string
	timeout  time.Duration
	closed   bool
}

// New opens an SPI port by its periph.io name (for example "SPI0.0" or
// "/dev/spidev0.0") and a GPIO select line by name (for example "GPIO22"),
// using the default 1MHz Mode0 configuration.
func New(portName, csPinName string) (*Transport, error) {
	return NewWithConfig(portName, csPinName, Config{})
}

// NewWithConfig opens an SPI port and GPIO select line with explicit
// controller settings.
func NewWithConfig(portName, csPinName string, cfg Config) (*Transport, error) {
	speed := cfg.Speed
	if speed == 0 {
		speed = defaultClockFreq
	}
	if speed > maxClockFreq {
		return nil, fmt.Errorf("%w: clock %s exceeds the chip's 2MHz limit",
			at93c.ErrInvalidParameter, speed)
	}
	if cfg.Mode != spi.Mode0 && cfg.Mode != spi.Mode3 {
		return nil, fmt.Errorf("%w: SPI mode %d (the chip needs Mode0 or Mode3)",
			at93c.ErrInvalidParameter, cfg.Mode)
	}

	// Initialize host
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	conn, err := port.Connect(speed, cfg.Mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to configure SPI port %s: %w", portName, err)
	}

	csPin := gpioreg.ByName(csPinName)
	if csPin == nil {
		_ = port.Close()
		return nil, fmt.Errorf("%w: no GPIO named %s for chip select",
			at93c.ErrDeviceNotFound, csPinName)
	}

	// Idle deselected before the first transaction.
	if err := csPin.Out(gpio.Low); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to drive chip select %s: %w", csPinName, err)
	}

	return &Transport{
		port:     port,
		conn:     conn,
		csPin:    csPin,
		portName: portName,
		timeout:  50 * time.Millisecond,
	}, nil
}

// Transfer clocks tx out MSB-first and returns the bytes captured on the
// response line during the same clocks.
func (t *Transport) Transfer(tx []byte) ([]byte, error) {
	if t.closed {
		return nil, at93c.NewTransportClosedError("Transfer", t.portName)
	}

	rx := make([]byte, len(tx))
	if err := t.conn.Tx(tx, rx); err != nil {
		return nil, at93c.NewTransportError("Transfer", t.portName,
			fmt.Errorf("%w: %w", at93c.ErrTransportWrite, err), at93c.ErrorTypeTransient)
	}
	return rx, nil
}

// Receive clocks out n bytes of zeros and returns the bytes captured on the
// response line. Zeros never form a start bit, so the chip's instruction
// register stays idle while its output is sampled.
func (t *Transport) Receive(n int) ([]byte, error) {
	if t.closed {
		return nil, at93c.NewTransportClosedError("Receive", t.portName)
	}

	rx := make([]byte, n)
	if err := t.conn.Tx(make([]byte, n), rx); err != nil {
		return nil, at93c.NewTransportError("Receive", t.portName,
			fmt.Errorf("%w: %w", at93c.ErrTransportRead, err), at93c.ErrorTypeTransient)
	}
	return rx, nil
}

// SetSelect drives the GPIO select line. The chip selects on high.
func (t *Transport) SetSelect(asserted bool) error {
	if t.closed {
		return at93c.NewTransportClosedError("SetSelect", t.portName)
	}

	level := gpio.Low
	if asserted {
		level = gpio.High
	}
	if err := t.csPin.Out(level); err != nil {
		return at93c.NewTransportError("SetSelect", t.portName,
			fmt.Errorf("%w: %w", at93c.ErrTransportWrite, err), at93c.ErrorTypeTransient)
	}
	return nil
}

// Close deselects the chip and releases the SPI port.
func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	// Best effort: leave the chip deselected even if the port is gone.
	_ = t.csPin.Out(gpio.Low)

	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close SPI port %s: %w", t.portName, err)
	}
	return nil
}

// SetTimeout sets the timeout for individual transport operations. The
// kernel driver blocks until a transfer completes, so the value only guards
// bookkeeping here.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.timeout = timeout
	return nil
}

// IsConnected returns true if the transport is usable
func (t *Transport) IsConnected() bool {
	return t.conn != nil && !t.closed
}

// Type returns the transport type
func (*Transport) Type() at93c.TransportType {
	return at93c.TransportSPI
}

// HasCapability reports controller capabilities. A single Tx clocks its
// whole buffer in one uninterrupted burst, so sequential reads are safe.
// Select is a borrowed GPIO, not the controller's own CS pin.
func (*Transport) HasCapability(capability at93c.TransportCapability) bool {
	switch capability {
	case at93c.CapabilityGaplessClock:
		return true
	case at93c.CapabilityNativeChipSelect:
		return false
	default:
		return false
	}
}

// Ensure Transport implements at93c.Transport
var _ at93c.Transport = (*Transport)(nil)
var _ at93c.TransportCapabilityChecker = (*Transport)(nil)
