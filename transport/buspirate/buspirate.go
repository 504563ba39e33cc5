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

// Package buspirate drives the EEPROM through a Bus Pirate's binary SPI
// mode over a serial port.
//
// The Bus Pirate clocks at most sixteen bytes per bulk command and pauses
// the clock between commands, so this transport does not advertise
// CapabilityGaplessClock; multi-word reads must go word by word. Its CS pin
// is driven by the firmware itself, inverted here because the EEPROM
// selects on high.
package buspirate

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"

	at93c "github.com/n573/spi-eeprom"
	itransport "github.com/n573/spi-eeprom/internal/transport"
)

// Binary mode commands, from the Bus Pirate binary protocol documentation.
const (
	cmdEnterBinary   = 0x00 // in terminal mode: enter raw bitbang
	cmdResetTerminal = 0x0F // in bitbang mode: reboot to the user terminal
	cmdEnterSPI      = 0x01 // in bitbang mode: enter raw SPI

	cmdSelectLow  = 0x02 // drive CS low
	cmdSelectHigh = 0x03 // drive CS high

	cmdBulkBase        = 0x10 // 0001xxxx, xxxx = byte count - 1
	cmdPeripheralsBase = 0x40 // 0100wxyz: power, pull-ups, AUX, CS
	cmdSpeedBase       = 0x60 // 01100xxx, xxx = speed index
	cmdConfigBase      = 0x80 // 1000wxyz: output, idle, edge, sample

	// speed1MHz selects the fastest rate still inside the chip's limit.
	speed1MHz = 0x03

	// configDefault: 3.3V push-pull output, clock idles low, data driven
	// on the active-to-idle edge, sampled in the middle. SPI mode 0.
	configDefault = 0x0A

	// bulkMax is the largest single bulk transfer the firmware accepts.
	bulkMax = 16

	// replyOK acknowledges every configuration and CS command.
	replyOK = 0x01

	bannerBitbang = "BBIO1"
	bannerSPI     = "SPI1"

	// enterBinaryAttempts is how many zero bytes it can take to fall out
	// of the terminal into bitbang mode.
	enterBinaryAttempts = 20

	defaultTimeout = 500 * time.Millisecond
)

// Config holds optional Bus Pirate settings for New.
type Config struct {
	// Power turns on the Bus Pirate's on-board supplies, for an EEPROM
	// wired directly to the probe cable. Default on; a chip that is
	// powered externally can leave this off.
	PowerOff bool

	// Pullups enables the on-board pull-up resistors. Needed when the
	// output drivers are set to open drain; harmless otherwise.
	Pullups bool
}

// Transport implements the at93c.Transport interface through a Bus Pirate
// in binary SPI mode.
type Transport struct {
	port     serial.Port
	portName string
	timeout  time.Duration
	inSPI    bool
	closed   bool
}

// New opens the serial port and brings the Bus Pirate from its user
// terminal into binary SPI mode with the default configuration.
func New(portName string) (*Transport, error) {
	return NewWithConfig(portName, Config{})
}

// NewWithConfig opens the serial port and brings the Bus Pirate into
// binary SPI mode with explicit peripheral settings.
func NewWithConfig(portName string, cfg Config) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	t := &Transport{
		port:     port,
		portName: portName,
		timeout:  defaultTimeout,
	}

	if err := t.port.SetReadTimeout(t.timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	// A board left in binary mode by a crashed session ignores the first
	// handshake; a reset between attempts recovers it.
	var lastErr error
	_, err = itransport.WithRetry(itransport.RetryConfig{
		Description: "bus pirate handshake",
		MaxRetries:  2,
		RetryDelay:  250 * time.Millisecond,
		OnRetry: func() error {
			_, _ = t.port.Write([]byte{cmdEnterBinary, cmdResetTerminal})
			time.Sleep(100 * time.Millisecond)
			_ = t.port.ResetInputBuffer()
			return nil
		},
	}, func() (struct{}, bool, error) {
		if err := t.initialize(cfg); err != nil {
			lastErr = err
			return struct{}{}, true, nil
		}
		return struct{}{}, false, nil
	})
	if err != nil {
		if lastErr != nil {
			err = lastErr
		}
		// Try to leave the board in its terminal rather than half-way
		// into binary mode.
		_, _ = t.port.Write([]byte{cmdEnterBinary, cmdResetTerminal})
		_ = port.Close()
		return nil, err
	}

	return t, nil
}

// initialize walks the board from the terminal into configured SPI mode.
func (t *Transport) initialize(cfg Config) error {
	if err := t.enterBinaryMode(); err != nil {
		return err
	}
	if err := t.enterSPIMode(); err != nil {
		return err
	}

	if err := t.command(cmdSpeedBase|speed1MHz, "set speed"); err != nil {
		return err
	}
	if err := t.command(cmdConfigBase|configDefault, "configure SPI"); err != nil {
		return err
	}

	peripherals := byte(cmdPeripheralsBase)
	if !cfg.PowerOff {
		peripherals |= 0x08
	}
	if cfg.Pullups {
		peripherals |= 0x04
	}
	if err := t.command(peripherals, "configure peripherals"); err != nil {
		return err
	}

	// Idle deselected. The EEPROM selects on high, so the pin rests low.
	if err := t.command(cmdSelectLow, "deselect"); err != nil {
		return err
	}

	t.inSPI = true
	return nil
}

// enterBinaryMode sends zero bytes until the firmware answers with its
// bitbang banner.
func (t *Transport) enterBinaryMode() error {
	_ = t.port.ResetInputBuffer()

	var window []byte
	for attempt := 0; attempt < enterBinaryAttempts; attempt++ {
		if _, err := t.port.Write([]byte{cmdEnterBinary}); err != nil {
			return fmt.Errorf("%w: %w", at93c.ErrTransportWrite, err)
		}

		buf := make([]byte, 16)
		n, err := t.port.Read(buf)
		if err != nil {
			return fmt.Errorf("%w: %w", at93c.ErrTransportRead, err)
		}
		window = append(window, buf[:n]...)
		if bytes.Contains(window, []byte(bannerBitbang)) {
			return nil
		}
	}

	return fmt.Errorf("%w: no %s banner on %s",
		at93c.ErrDeviceNotFound, bannerBitbang, t.portName)
}

// enterSPIMode switches from bitbang to raw SPI mode.
func (t *Transport) enterSPIMode() error {
	_ = t.port.ResetInputBuffer()

	if _, err := t.port.Write([]byte{cmdEnterSPI}); err != nil {
		return fmt.Errorf("%w: %w", at93c.ErrTransportWrite, err)
	}

	banner := make([]byte, len(bannerSPI))
	if err := t.readFull(banner); err != nil {
		return err
	}
	if !bytes.Equal(banner, []byte(bannerSPI)) {
		return at93c.NewInvalidResponseError(
			fmt.Sprintf("unexpected SPI mode banner %q", banner), t.portName)
	}
	return nil
}

// command sends a single configuration byte and checks the 0x01 ack.
func (t *Transport) command(cmd byte, op string) error {
	if _, err := t.port.Write([]byte{cmd}); err != nil {
		return at93c.NewTransportError(op, t.portName,
			fmt.Errorf("%w: %w", at93c.ErrTransportWrite, err), at93c.ErrorTypeTransient)
	}

	reply := make([]byte, 1)
	if err := t.readFull(reply); err != nil {
		return err
	}
	if reply[0] != replyOK {
		return at93c.NewInvalidResponseError(
			fmt.Sprintf("%s not acknowledged (got %#02x)", op, reply[0]), t.portName)
	}
	return nil
}

// readFull fills buf from the serial port, tolerating partial reads, until
// t.timeout expires.
func (t *Transport) readFull(buf []byte) error {
	off := 0
	_, err := itransport.TimeoutRetry(t.timeout, func() (struct{}, bool, error) {
		n, err := t.port.Read(buf[off:])
		if err != nil {
			return struct{}{}, false, at93c.NewTransportError("read", t.portName,
				fmt.Errorf("%w: %w", at93c.ErrTransportRead, err), at93c.ErrorTypeTransient)
		}
		off += n
		return struct{}{}, off < len(buf), nil
	})
	if err != nil && errors.Is(err, at93c.ErrTransportTimeout) {
		return at93c.NewTimeoutError("read", t.portName)
	}
	return err
}

// bulk clocks one chunk of at most sixteen bytes and returns what came
// back on the response line.
func (t *Transport) bulk(tx []byte) ([]byte, error) {
	if len(tx) == 0 || len(tx) > bulkMax {
		return nil, fmt.Errorf("%w: bulk transfer of %d bytes",
			at93c.ErrInvalidParameter, len(tx))
	}

	cmd := make([]byte, 0, len(tx)+1)
	cmd = append(cmd, byte(cmdBulkBase|(len(tx)-1)))
	cmd = append(cmd, tx...)
	if _, err := t.port.Write(cmd); err != nil {
		return nil, at93c.NewTransportError("Transfer", t.portName,
			fmt.Errorf("%w: %w", at93c.ErrTransportWrite, err), at93c.ErrorTypeTransient)
	}

	reply := make([]byte, len(tx)+1)
	if err := t.readFull(reply); err != nil {
		return nil, err
	}
	if reply[0] != replyOK {
		return nil, at93c.NewInvalidResponseError(
			fmt.Sprintf("bulk transfer not acknowledged (got %#02x)", reply[0]), t.portName)
	}
	return reply[1:], nil
}

// Transfer clocks tx out MSB-first and returns the bytes captured on the
// response line. Transfers longer than sixteen bytes are split into
// multiple bulk commands with clock gaps in between, which is fine for
// instructions but not for streamed reads.
func (t *Transport) Transfer(tx []byte) ([]byte, error) {
	if err := t.ready("Transfer"); err != nil {
		return nil, err
	}

	rx := make([]byte, 0, len(tx))
	for off := 0; off < len(tx); off += bulkMax {
		end := off + bulkMax
		if end > len(tx) {
			end = len(tx)
		}
		chunk, err := t.bulk(tx[off:end])
		if err != nil {
			return nil, err
		}
		rx = append(rx, chunk...)
	}
	return rx, nil
}

// Receive clocks out n bytes of zeros and returns the bytes captured on
// the response line.
func (t *Transport) Receive(n int) ([]byte, error) {
	if err := t.ready("Receive"); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative receive length %d",
			at93c.ErrInvalidParameter, n)
	}

	rx, err := t.Transfer(make([]byte, n))
	if err != nil {
		return nil, err
	}
	return rx, nil
}

// SetSelect drives the Bus Pirate's CS pin. The EEPROM selects on high.
func (t *Transport) SetSelect(asserted bool) error {
	if err := t.ready("SetSelect"); err != nil {
		return err
	}

	cmd := byte(cmdSelectLow)
	op := "deselect"
	if asserted {
		cmd = cmdSelectHigh
		op = "select"
	}
	return t.command(cmd, op)
}

// Close deselects the chip, drops the board back to its user terminal and
// closes the serial port.
func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	if t.inSPI {
		// Best effort: CS low, back to bitbang, reboot to terminal.
		_ = t.command(cmdSelectLow, "deselect")
		_, _ = t.port.Write([]byte{cmdEnterBinary})
		time.Sleep(10 * time.Millisecond)
		_, _ = t.port.Write([]byte{cmdResetTerminal})
		t.inSPI = false
	}

	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", t.portName, err)
	}
	return nil
}

// SetTimeout sets the timeout for individual transport operations
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.timeout = timeout
	if t.port != nil && !t.closed {
		if err := t.port.SetReadTimeout(timeout); err != nil {
			return fmt.Errorf("failed to set read timeout: %w", err)
		}
	}
	return nil
}

// IsConnected returns true if the transport is usable
func (t *Transport) IsConnected() bool {
	return t.port != nil && t.inSPI && !t.closed
}

// Type returns the transport type
func (*Transport) Type() at93c.TransportType {
	return at93c.TransportBusPirate
}

// ready rejects operations on a closed or half-initialized transport.
func (t *Transport) ready(op string) error {
	if t.closed {
		return at93c.NewTransportClosedError(op, t.portName)
	}
	if t.port == nil || !t.inSPI {
		return at93c.NewTransportError(op, t.portName,
			at93c.ErrCommunicationFailed, at93c.ErrorTypePermanent)
	}
	return nil
}

// HasCapability reports bridge capabilities. CS is the firmware's own pin,
// but bulk transfers chunk at sixteen bytes, so the clock always gaps on
// longer reads.
func (*Transport) HasCapability(capability at93c.TransportCapability) bool {
	switch capability {
	case at93c.CapabilityNativeChipSelect:
		return true
	case at93c.CapabilityGaplessClock:
		return false
	default:
		return false
	}
}

// Ensure Transport implements at93c.Transport
var _ at93c.Transport = (*Transport)(nil)
var _ at93c.TransportCapabilityChecker = (*Transport)(nil)
