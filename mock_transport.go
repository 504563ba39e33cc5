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
	"sync"
	"time"

	testutil "github.com/n573/spi-eeprom/internal/testing"
)

// MockTransport is a Transport backed by a behavioral EEPROM model. It is
// used throughout the driver's own tests and exported so downstream code
// can run against a fake chip: instructions clocked through it land in the
// model's memory with the same framing rules real hardware applies.
//
// Error injection is keyed by instruction opcode, so a test can fail only
// writes, only reads, and so on, and verify retry behavior through the
// per-opcode call counts.
type MockTransport struct {
	eeprom      *testutil.VirtualEEPROM
	errors      map[byte]error
	onceErrors  map[byte][]error
	callCounts  map[byte]int
	receiveErr  error
	receiveOnce []error
	selectErr   error
	selectLog   []bool
	receives    int
	delay       time.Duration
	timeout     time.Duration
	gapless     bool
	nativeCS    bool
	closed      bool
	mu          sync.Mutex
}

// Interface conformance.
var (
	_ Transport                  = (*MockTransport)(nil)
	_ TransportCapabilityChecker = (*MockTransport)(nil)
)

// NewMockTransport creates a mock transport over a factory-fresh model. It
// claims every capability; use SetGapless and SetNativeChipSelect to model
// a more limited backend.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		eeprom:     testutil.NewVirtualEEPROM(),
		errors:     make(map[byte]error),
		onceErrors: make(map[byte][]error),
		callCounts: make(map[byte]int),
		timeout:    time.Second,
		gapless:    true,
		nativeCS:   true,
	}
}

// EEPROM exposes the underlying model for seeding memory and asserting on
// the state instructions left behind.
func (m *MockTransport) EEPROM() *testutil.VirtualEEPROM {
	return m.eeprom
}

// Transfer clocks tx into the model and returns what its data-out line
// carried, honoring any injected delay or error for the frame's opcode.
func (m *MockTransport) Transfer(tx []byte) ([]byte, error) {
	m.sleepDelay()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, NewTransportClosedError("transfer", "mock")
	}

	op := testutil.PeekOpcode(tx)
	m.callCounts[op]++

	if errs := m.onceErrors[op]; len(errs) > 0 {
		err := errs[0]
		m.onceErrors[op] = errs[1:]
		return nil, err
	}
	if err := m.errors[op]; err != nil {
		return nil, err
	}
	return m.eeprom.Exchange(tx), nil
}

// Receive clocks n bytes out of the model.
func (m *MockTransport) Receive(n int) ([]byte, error) {
	m.sleepDelay()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, NewTransportClosedError("receive", "mock")
	}

	m.receives++

	if len(m.receiveOnce) > 0 {
		err := m.receiveOnce[0]
		m.receiveOnce = m.receiveOnce[1:]
		return nil, err
	}
	if m.receiveErr != nil {
		return nil, m.receiveErr
	}
	return m.eeprom.ReadOut(n), nil
}

// SetSelect drives the model's select line and records the transition.
func (m *MockTransport) SetSelect(asserted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return NewTransportClosedError("select", "mock")
	}
	if m.selectErr != nil {
		return m.selectErr
	}
	m.selectLog = append(m.selectLog, asserted)
	m.eeprom.SetSelect(asserted)
	return nil
}

// Close deasserts select and marks the transport closed. Closing twice is
// harmless.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.eeprom.SetSelect(false)
		m.closed = true
	}
	return nil
}

// SetTimeout records the timeout; the mock never actually waits on it.
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// IsConnected reports whether the transport is still open.
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock.
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// HasCapability reports the capabilities configured on the mock.
func (m *MockTransport) HasCapability(capability TransportCapability) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch capability {
	case CapabilityGaplessClock:
		return m.gapless
	case CapabilityNativeChipSelect:
		return m.nativeCS
	default:
		return false
	}
}

// SetGapless configures whether the mock claims an uninterrupted clock.
func (m *MockTransport) SetGapless(gapless bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gapless = gapless
}

// SetNativeChipSelect configures whether the mock claims hardware select.
func (m *MockTransport) SetNativeChipSelect(native bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nativeCS = native
}

// SetError makes every Transfer of the given opcode fail with err until
// cleared with a nil err.
func (m *MockTransport) SetError(op byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, op)
		return
	}
	m.errors[op] = err
}

// SetErrorOnce queues err for the next Transfer of the given opcode only.
// Queued errors fire in order before any persistent SetError error.
func (m *MockTransport) SetErrorOnce(op byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onceErrors[op] = append(m.onceErrors[op], err)
}

// SetReceiveError makes every Receive fail with err until cleared with nil.
func (m *MockTransport) SetReceiveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiveErr = err
}

// SetReceiveErrorOnce queues err for the next Receive only.
func (m *MockTransport) SetReceiveErrorOnce(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiveOnce = append(m.receiveOnce, err)
}

// SetSelectError makes every SetSelect fail with err until cleared with nil.
func (m *MockTransport) SetSelectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectErr = err
}

// SetDelay makes every Transfer and Receive sleep for d first.
func (m *MockTransport) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// GetCallCount returns how many Transfer calls carried the given opcode.
func (m *MockTransport) GetCallCount(op byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCounts[op]
}

// ReceiveCount returns how many Receive calls were made.
func (m *MockTransport) ReceiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receives
}

// SelectTransitions returns the sequence of levels SetSelect was driven to.
func (m *MockTransport) SelectTransitions() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bool, len(m.selectLog))
	copy(out, m.selectLog)
	return out
}

func (m *MockTransport) sleepDelay() {
	m.mu.Lock()
	delay := m.delay
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
}
