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
	"testing"
	"time"

	"github.com/n573/spi-eeprom/internal/microwire"
)

func TestMockTransport_Type(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	if got := mock.Type(); got != TransportMock {
		t.Errorf("Type() = %v, want %v", got, TransportMock)
	}
	if !mock.IsConnected() {
		t.Error("IsConnected() = false for a fresh transport")
	}
	if err := mock.SetTimeout(time.Second); err != nil {
		t.Errorf("SetTimeout() error = %v", err)
	}
}

func TestMockTransport_Close(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	if err := mock.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if mock.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := mock.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := mock.Transfer(microwire.ReadFrame(0)); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Transfer after Close: error = %v, want ErrTransportClosed", err)
	}
	if _, err := mock.Receive(1); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Receive after Close: error = %v, want ErrTransportClosed", err)
	}
	if err := mock.SetSelect(true); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("SetSelect after Close: error = %v, want ErrTransportClosed", err)
	}
}

// TestMockTransport_FrameRoundTrip drives the transport with raw frames the
// way the device layer does: select, clock the instruction, clock out the
// skewed response.
func TestMockTransport_FrameRoundTrip(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.EEPROM().Memory[0x02A] = 0x1234

	if err := mock.SetSelect(true); err != nil {
		t.Fatalf("SetSelect() error = %v", err)
	}
	if _, err := mock.Transfer(microwire.ReadFrame(0x02A)); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	raw, err := mock.Receive(microwire.ReadResponseLen(microwire.DefaultRxSkewBits))
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	word, err := microwire.DecodeWord(raw, microwire.DefaultRxSkewBits)
	if err != nil {
		t.Fatalf("DecodeWord() error = %v", err)
	}
	if word != 0x1234 {
		t.Errorf("word = %04X, want 1234", word)
	}
}

// TestMockTransport_UnselectedInstructionIgnored mirrors the hardware: with
// select low the chip never sees its start bit, so instructions are inert.
func TestMockTransport_UnselectedInstructionIgnored(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	if _, err := mock.Transfer(microwire.WriteEnableFrame()); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if mock.EEPROM().WriteEnabled {
		t.Error("write-enable latch set by an unselected instruction")
	}
	if got := mock.GetCallCount(microwire.OpControl); got != 1 {
		t.Errorf("GetCallCount(OpControl) = %d, want 1: bookkeeping should see dropped frames too", got)
	}
}

func TestMockTransport_ErrorInjectionOrder(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	if err := mock.SetSelect(true); err != nil {
		t.Fatalf("SetSelect() error = %v", err)
	}

	persistent := NewTransportError("transfer", "mock", errors.New("stuck bus"), ErrorTypePermanent)
	once := NewTimeoutError("transfer", "mock")
	mock.SetError(microwire.OpRead, persistent)
	mock.SetErrorOnce(microwire.OpRead, once)

	// The queued one-shot error outranks the persistent one.
	if _, err := mock.Transfer(microwire.ReadFrame(0)); !errors.Is(err, ErrTransportTimeout) {
		t.Errorf("first Transfer: error = %v, want the one-shot timeout", err)
	}
	if _, err := mock.Transfer(microwire.ReadFrame(0)); !errors.Is(err, persistent) {
		t.Errorf("second Transfer: error = %v, want the persistent error", err)
	}

	// Other opcodes are unaffected.
	if _, err := mock.Transfer(microwire.WriteEnableFrame()); err != nil {
		t.Errorf("Transfer(control) error = %v, injection must stay per-opcode", err)
	}

	// Clearing with nil restores normal operation.
	mock.SetError(microwire.OpRead, nil)
	if _, err := mock.Transfer(microwire.ReadFrame(0)); err != nil {
		t.Errorf("Transfer after clear: error = %v", err)
	}

	if got := mock.GetCallCount(microwire.OpRead); got != 3 {
		t.Errorf("GetCallCount(OpRead) = %d, want 3: failed transfers still count", got)
	}
}

func TestMockTransport_ReceiveErrorInjection(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	if err := mock.SetSelect(true); err != nil {
		t.Fatalf("SetSelect() error = %v", err)
	}

	mock.SetReceiveErrorOnce(NewTimeoutError("receive", "mock"))
	if _, err := mock.Receive(1); !errors.Is(err, ErrTransportTimeout) {
		t.Errorf("first Receive: error = %v, want injected timeout", err)
	}
	if _, err := mock.Receive(1); err != nil {
		t.Errorf("second Receive: error = %v, one-shot injection must clear", err)
	}

	mock.SetReceiveError(NewTransportError("receive", "mock", errors.New("floating miso"), ErrorTypeTransient))
	if _, err := mock.Receive(1); err == nil {
		t.Error("Receive with persistent error returned nil")
	}
	mock.SetReceiveError(nil)
	if _, err := mock.Receive(1); err != nil {
		t.Errorf("Receive after clear: error = %v", err)
	}

	if got := mock.ReceiveCount(); got != 4 {
		t.Errorf("ReceiveCount() = %d, want 4", got)
	}
}

func TestMockTransport_SelectLog(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	for _, level := range []bool{true, false, true} {
		if err := mock.SetSelect(level); err != nil {
			t.Fatalf("SetSelect(%v) error = %v", level, err)
		}
	}

	mock.SetSelectError(NewTransportError("select", "mock", errors.New("cs pin busy"), ErrorTypePermanent))
	if err := mock.SetSelect(false); err == nil {
		t.Error("SetSelect with injected error returned nil")
	}
	mock.SetSelectError(nil)

	got := mock.SelectTransitions()
	want := []bool{true, false, true}
	if len(got) != len(want) {
		t.Fatalf("SelectTransitions() = %v, want %v: failed transitions must not be recorded", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SelectTransitions()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMockTransport_Capabilities(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	if !mock.HasCapability(CapabilityGaplessClock) {
		t.Error("fresh mock should claim a gapless clock")
	}
	if !mock.HasCapability(CapabilityNativeChipSelect) {
		t.Error("fresh mock should claim native chip select")
	}
	if mock.HasCapability(TransportCapability("unknown")) {
		t.Error("unknown capability reported as present")
	}

	mock.SetGapless(false)
	mock.SetNativeChipSelect(false)
	if mock.HasCapability(CapabilityGaplessClock) || mock.HasCapability(CapabilityNativeChipSelect) {
		t.Error("capability overrides not honored")
	}
}

func TestMockTransport_SetDelay(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetDelay(20 * time.Millisecond)

	start := time.Now()
	if _, err := mock.Transfer(microwire.ReadFrame(0)); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Transfer returned after %v, want at least the injected 20ms", elapsed)
	}
}
