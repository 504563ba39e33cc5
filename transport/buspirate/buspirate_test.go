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

package buspirate

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"

	at93c "github.com/n573/spi-eeprom"
)

// fakePort is a scripted serial.Port. Reads are served from a queue of
// chunks; an empty queue behaves like a read timeout (zero bytes).
type fakePort struct {
	writeErr error
	writes   []byte
	reads    [][]byte
	mu       sync.Mutex
	closed   bool
}

func (p *fakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.reads) == 0 {
		return 0, nil
	}
	chunk := p.reads[0]
	n := copy(buf, chunk)
	if n < len(chunk) {
		p.reads[0] = chunk[n:]
	} else {
		p.reads = p.reads[1:]
	}
	return n, nil
}

func (p *fakePort) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.writes = append(p.writes, buf...)
	return len(buf), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (*fakePort) SetMode(*serial.Mode) error { return nil }

func (*fakePort) Drain() error { return nil }

func (*fakePort) ResetInputBuffer() error { return nil }

func (*fakePort) ResetOutputBuffer() error { return nil }

func (*fakePort) SetDTR(bool) error { return nil }

func (*fakePort) SetRTS(bool) error { return nil }

func (*fakePort) SetReadTimeout(time.Duration) error { return nil }

func (*fakePort) Break(time.Duration) error { return nil }
func (*fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

// newSPITransport returns a Transport already in SPI mode over a fake port.
// The short timeout keeps the silent-firmware tests quick.
func newSPITransport(reads ...[]byte) (*Transport, *fakePort) {
	port := &fakePort{reads: reads}
	return &Transport{
		port:     port,
		portName: "/dev/ttyUSB0",
		timeout:  50 * time.Millisecond,
		inSPI:    true,
	}, port
}

// TestTransportCreation verifies basic transport creation and properties
func TestTransportCreation(t *testing.T) {
	t.Parallel()

	testPortName := "/dev/ttyUSB0"
	transport := &Transport{
		portName: testPortName,
	}

	if transport.portName != testPortName {
		t.Errorf("Expected port name %s, got %s", testPortName, transport.portName)
	}

	expectedType := at93c.TransportBusPirate
	if transport.Type() != expectedType {
		t.Errorf("Expected transport type %v, got %v", expectedType, transport.Type())
	}

	if transport.IsConnected() {
		t.Error("Expected IsConnected() to return false for uninitialized transport")
	}
}

// TestInitialize verifies the full terminal-to-SPI handshake sequence
func TestInitialize(t *testing.T) {
	t.Parallel()

	port := &fakePort{reads: [][]byte{
		[]byte("BBIO1"), // enter binary mode
		[]byte("SPI1"),  // enter SPI mode
		{0x01},          // speed ack
		{0x01},          // SPI config ack
		{0x01},          // peripherals ack
		{0x01},          // deselect ack
	}}
	transport := &Transport{port: port, portName: "fake", timeout: 50 * time.Millisecond}

	if err := transport.initialize(Config{}); err != nil {
		t.Fatalf("initialize() error: %v", err)
	}

	want := []byte{
		0x00, // enter binary mode
		0x01, // enter SPI mode
		0x63, // 1MHz
		0x8A, // 3.3V output, mode 0
		0x48, // power on
		0x02, // CS low (deselected)
	}
	if !bytes.Equal(port.writes, want) {
		t.Errorf("initialize() wrote % X, want % X", port.writes, want)
	}
	if !transport.IsConnected() {
		t.Error("IsConnected() should be true after initialize")
	}
}

// TestInitializeConfig verifies peripheral bits follow the configuration
func TestInitializeConfig(t *testing.T) {
	t.Parallel()

	port := &fakePort{reads: [][]byte{
		[]byte("BBIO1"), []byte("SPI1"), {0x01}, {0x01}, {0x01}, {0x01},
	}}
	transport := &Transport{port: port, portName: "fake", timeout: 50 * time.Millisecond}

	err := transport.initialize(Config{PowerOff: true, Pullups: true})
	if err != nil {
		t.Fatalf("initialize() error: %v", err)
	}

	// Fifth write is the peripherals command: no power bit, pull-ups set.
	if got := port.writes[4]; got != 0x44 {
		t.Errorf("peripherals command = %#02x, want 0x44", got)
	}
}

// TestInitializeNoBanner verifies a silent or chatty port is not mistaken
// for a Bus Pirate
func TestInitializeNoBanner(t *testing.T) {
	t.Parallel()

	port := &fakePort{reads: [][]byte{[]byte("login:")}}
	transport := &Transport{port: port, portName: "fake", timeout: 50 * time.Millisecond}

	err := transport.initialize(Config{})
	if !errors.Is(err, at93c.ErrDeviceNotFound) {
		t.Errorf("initialize() error = %v, want ErrDeviceNotFound", err)
	}
	if transport.IsConnected() {
		t.Error("IsConnected() should stay false after a failed handshake")
	}
}

// TestTransferChunking verifies transfers split into 16-byte bulk commands
func TestTransferChunking(t *testing.T) {
	t.Parallel()

	tx := make([]byte, 20)
	for i := range tx {
		tx[i] = byte(i)
	}
	rxFirst := bytes.Repeat([]byte{0xAA}, 16)
	rxSecond := bytes.Repeat([]byte{0x55}, 4)

	transport, port := newSPITransport(
		append([]byte{0x01}, rxFirst...),
		append([]byte{0x01}, rxSecond...),
	)

	got, err := transport.Transfer(tx)
	if err != nil {
		t.Fatalf("Transfer() error: %v", err)
	}

	want := append(append([]byte{}, rxFirst...), rxSecond...)
	if !bytes.Equal(got, want) {
		t.Errorf("Transfer() = % X, want % X", got, want)
	}

	// First chunk: bulk command for 16 bytes, then the bytes themselves.
	if port.writes[0] != 0x1F {
		t.Errorf("first bulk command = %#02x, want 0x1F", port.writes[0])
	}
	if !bytes.Equal(port.writes[1:17], tx[:16]) {
		t.Errorf("first chunk payload = % X, want % X", port.writes[1:17], tx[:16])
	}
	// Second chunk: bulk command for the remaining 4 bytes.
	if port.writes[17] != 0x13 {
		t.Errorf("second bulk command = %#02x, want 0x13", port.writes[17])
	}
	if !bytes.Equal(port.writes[18:], tx[16:]) {
		t.Errorf("second chunk payload = % X, want % X", port.writes[18:], tx[16:])
	}
}

// TestTransferNack verifies an unacknowledged bulk command is an error
func TestTransferNack(t *testing.T) {
	t.Parallel()

	transport, _ := newSPITransport([]byte{0x00, 0xAA, 0xBB})

	_, err := transport.Transfer([]byte{0xC0, 0x28})
	if err == nil {
		t.Fatal("Transfer() expected error on nacked bulk command")
	}

	var transportErr *at93c.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Transfer() error type = %T, want *at93c.TransportError", err)
	}
	if transportErr.Retryable {
		t.Error("protocol violations should not be retryable")
	}
}

// TestTransferTimeout verifies a silent firmware surfaces as a timeout
func TestTransferTimeout(t *testing.T) {
	t.Parallel()

	transport, _ := newSPITransport() // nothing to read

	_, err := transport.Transfer([]byte{0xC0, 0x28})
	if !errors.Is(err, at93c.ErrTransportTimeout) {
		t.Errorf("Transfer() error = %v, want ErrTransportTimeout", err)
	}
}

// TestReceive verifies Receive clocks zeros
func TestReceive(t *testing.T) {
	t.Parallel()

	rx := []byte{0x2A, 0x55, 0x80}
	transport, port := newSPITransport(append([]byte{0x01}, rx...))

	got, err := transport.Receive(3)
	if err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	if !bytes.Equal(got, rx) {
		t.Errorf("Receive() = % X, want % X", got, rx)
	}

	want := []byte{0x12, 0x00, 0x00, 0x00}
	if !bytes.Equal(port.writes, want) {
		t.Errorf("Receive() wrote % X, want % X", port.writes, want)
	}
}

// TestSetSelect verifies CS commands and their polarity
func TestSetSelect(t *testing.T) {
	t.Parallel()

	transport, port := newSPITransport([]byte{0x01}, []byte{0x01})

	if err := transport.SetSelect(true); err != nil {
		t.Fatalf("SetSelect(true) error: %v", err)
	}
	if err := transport.SetSelect(false); err != nil {
		t.Fatalf("SetSelect(false) error: %v", err)
	}

	// The EEPROM selects on high: assert drives the pin high.
	want := []byte{0x03, 0x02}
	if !bytes.Equal(port.writes, want) {
		t.Errorf("SetSelect wrote % X, want % X", port.writes, want)
	}
}

// TestClose verifies the shutdown sequence and idempotence
func TestClose(t *testing.T) {
	t.Parallel()

	transport, port := newSPITransport([]byte{0x01})

	if err := transport.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !port.closed {
		t.Error("Close() should close the serial port")
	}

	// Deselect, drop to bitbang, reboot to terminal.
	want := []byte{0x02, 0x00, 0x0F}
	if !bytes.Equal(port.writes, want) {
		t.Errorf("Close() wrote % X, want % X", port.writes, want)
	}

	if err := transport.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	if _, err := transport.Transfer([]byte{0x00}); !errors.Is(err, at93c.ErrTransportClosed) {
		t.Errorf("Transfer() after Close() error = %v, want ErrTransportClosed", err)
	}
	if err := transport.SetSelect(true); !errors.Is(err, at93c.ErrTransportClosed) {
		t.Errorf("SetSelect() after Close() error = %v, want ErrTransportClosed", err)
	}
}

// TestCapabilities verifies the capability split: native CS pin, but the
// clock gaps between bulk commands
func TestCapabilities(t *testing.T) {
	t.Parallel()

	transport := &Transport{}

	if !transport.HasCapability(at93c.CapabilityNativeChipSelect) {
		t.Error("Bus Pirate should claim CapabilityNativeChipSelect")
	}
	if transport.HasCapability(at93c.CapabilityGaplessClock) {
		t.Error("Bus Pirate should not claim CapabilityGaplessClock")
	}
}
