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

package spidev

import (
	"bytes"
	"errors"
	"testing"

	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"

	at93c "github.com/n573/spi-eeprom"
)

// newPlaybackTransport builds a Transport over a scripted SPI port and a
// fake GPIO select pin, bypassing New so no hardware is touched.
func newPlaybackTransport(t *testing.T, ops []conntest.IO) (*Transport, *gpiotest.Pin) {
	t.Helper()

	port := &spitest.Playback{
		Playback: conntest.Playback{
			Ops:       ops,
			DontPanic: true,
		},
	}
	conn, err := port.Connect(1*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	pin := &gpiotest.Pin{N: "CS", Num: 22}
	return &Transport{
		port:     port,
		conn:     conn,
		csPin:    pin,
		portName: "playback",
	}, pin
}

// TestTransportCreation verifies basic transport creation and properties
func TestTransportCreation(t *testing.T) {
	t.Parallel()

	testPortName := "/dev/spidev0.0"
	transport := &Transport{
		portName: testPortName,
	}

	if transport.portName != testPortName {
		t.Errorf("Expected port name %s, got %s", testPortName, transport.portName)
	}

	expectedType := at93c.TransportSPI
	if transport.Type() != expectedType {
		t.Errorf("Expected transport type %v, got %v", expectedType, transport.Type())
	}

	if transport.IsConnected() {
		t.Error("Expected IsConnected() to return false for uninitialized transport")
	}
}

// TestConfigValidation verifies New rejects settings the chip cannot follow
func TestConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "clock above 2MHz",
			cfg:  Config{Speed: 4 * physic.MegaHertz},
		},
		{
			name: "unsupported SPI mode",
			cfg:  Config{Mode: spi.Mode1},
		},
	}

	for _, tt := range tests {
		tt := tt // capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewWithConfig("/dev/spidev0.0", "GPIO22", tt.cfg)
			if !errors.Is(err, at93c.ErrInvalidParameter) {
				t.Errorf("NewWithConfig() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

// TestTransfer verifies full-duplex exchange over a scripted port
func TestTransfer(t *testing.T) {
	t.Parallel()

	// Read instruction for address 0x005 answered by word 0x54AB with the
	// usual one dummy bit in front.
	tx := []byte{0xC0, 0x28}
	rx := []byte{0x2A, 0x55, 0x80}

	transport, _ := newPlaybackTransport(t, []conntest.IO{
		{W: tx, R: []byte{0x00, 0x00}},
		{W: []byte{0x00, 0x00, 0x00}, R: rx},
	})

	got, err := transport.Transfer(tx)
	if err != nil {
		t.Fatalf("Transfer() error: %v", err)
	}
	if !bytes.Equal(got, []byte{0x00, 0x00}) {
		t.Errorf("Transfer() = %X, want 0000", got)
	}

	got, err = transport.Receive(3)
	if err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	if !bytes.Equal(got, rx) {
		t.Errorf("Receive() = %X, want %X", got, rx)
	}
}

// TestTransferError verifies controller failures surface as transient
// transport errors
func TestTransferError(t *testing.T) {
	t.Parallel()

	// No scripted operations: the first Tx fails.
	transport, _ := newPlaybackTransport(t, nil)

	_, err := transport.Transfer([]byte{0xC0, 0x28})
	if err == nil {
		t.Fatal("Transfer() expected error on exhausted playback")
	}

	var transportErr *at93c.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Transfer() error type = %T, want *at93c.TransportError", err)
	}
	if !transportErr.Retryable {
		t.Error("Transfer() error should be retryable")
	}
}

// TestSetSelect verifies the GPIO line follows the requested level
func TestSetSelect(t *testing.T) {
	t.Parallel()

	transport, pin := newPlaybackTransport(t, nil)

	if err := transport.SetSelect(true); err != nil {
		t.Fatalf("SetSelect(true) error: %v", err)
	}
	if pin.L != gpio.High {
		t.Error("SetSelect(true) should drive the pin high")
	}

	if err := transport.SetSelect(false); err != nil {
		t.Fatalf("SetSelect(false) error: %v", err)
	}
	if pin.L != gpio.Low {
		t.Error("SetSelect(false) should drive the pin low")
	}
}

// TestClose verifies Close deselects, is idempotent, and poisons later calls
func TestClose(t *testing.T) {
	t.Parallel()

	transport, pin := newPlaybackTransport(t, nil)

	if err := transport.SetSelect(true); err != nil {
		t.Fatalf("SetSelect() error: %v", err)
	}
	if err := transport.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if pin.L != gpio.Low {
		t.Error("Close() should leave the chip deselected")
	}
	if transport.IsConnected() {
		t.Error("IsConnected() should be false after Close()")
	}
	if err := transport.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	if _, err := transport.Transfer([]byte{0x00}); !errors.Is(err, at93c.ErrTransportClosed) {
		t.Errorf("Transfer() after Close() error = %v, want ErrTransportClosed", err)
	}
	if _, err := transport.Receive(1); !errors.Is(err, at93c.ErrTransportClosed) {
		t.Errorf("Receive() after Close() error = %v, want ErrTransportClosed", err)
	}
	if err := transport.SetSelect(true); !errors.Is(err, at93c.ErrTransportClosed) {
		t.Errorf("SetSelect() after Close() error = %v, want ErrTransportClosed", err)
	}
}

// TestCapabilities verifies the capability split: one ioctl clocks the whole
// buffer without gaps, but select is a borrowed GPIO
func TestCapabilities(t *testing.T) {
	t.Parallel()

	transport := &Transport{}

	if !transport.HasCapability(at93c.CapabilityGaplessClock) {
		t.Error("SPI controller should claim CapabilityGaplessClock")
	}
	if transport.HasCapability(at93c.CapabilityNativeChipSelect) {
		t.Error("SPI controller should not claim CapabilityNativeChipSelect")
	}
}
