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
)

// BlockingMockTransport is a mock transport that can hold operations until
// released. It is used for testing timeout handling and context
// cancellation: a Transfer or Receive parks until Unblock() is called, the
// transport's own timeout expires, or the transport is closed.
type BlockingMockTransport struct {
	blockChan   chan struct{}
	ReceiveFunc func(n int) ([]byte, error)
	Response    []byte
	timeout     time.Duration
	mu          sync.Mutex
	closed      bool
}

var _ Transport = (*BlockingMockTransport)(nil)

// NewBlockingMockTransport creates a new blocking mock transport.
func NewBlockingMockTransport() *BlockingMockTransport {
	return &BlockingMockTransport{
		blockChan: make(chan struct{}),
		timeout:   5 * time.Second, // Default timeout
	}
}

// Transfer blocks until Unblock() is called, the timeout expires, or the
// transport is closed. On unblock it echoes a zeroed response of the same
// length, which is what an idle data-out line reads as.
func (m *BlockingMockTransport) Transfer(tx []byte) ([]byte, error) {
	if err := m.block("transfer"); err != nil {
		return nil, err
	}
	return make([]byte, len(tx)), nil
}

// Receive blocks like Transfer, then serves the configured response.
func (m *BlockingMockTransport) Receive(n int) ([]byte, error) {
	if err := m.block("receive"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	receiveFunc := m.ReceiveFunc
	response := m.Response
	m.mu.Unlock()

	if receiveFunc != nil {
		return receiveFunc(n)
	}
	if response != nil {
		out := make([]byte, n)
		copy(out, response)
		return out, nil
	}

	// Idle line reads high.
	out := make([]byte, n)
	for i := range out {
		out[i] = 0xFF
	}
	return out, nil
}

// block waits for an unblock signal, a timeout, or Close.
func (m *BlockingMockTransport) block(op string) error {
	m.mu.Lock()
	blockChan := m.blockChan
	closed := m.closed
	timeout := m.timeout
	m.mu.Unlock()

	if closed {
		return NewTransportClosedError(op, "mock")
	}

	select {
	case <-blockChan:
		// Operation was unblocked, proceed normally
	case <-time.After(timeout):
		return NewTimeoutError(op, "mock")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return NewTransportClosedError(op, "mock")
	}
	return nil
}

// SetSelect succeeds without blocking; framing is not what this mock tests.
func (m *BlockingMockTransport) SetSelect(bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return NewTransportClosedError("select", "mock")
	}
	return nil
}

// Unblock allows one blocked operation to proceed.
func (m *BlockingMockTransport) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		close(m.blockChan)
		m.blockChan = make(chan struct{})
	}
}

// Close unblocks all operations and marks the transport as closed.
func (m *BlockingMockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.blockChan)
	}
	return nil
}

// SetResponse configures a fixed response served after each unblocked
// Receive.
func (m *BlockingMockTransport) SetResponse(response []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Response = response
	m.ReceiveFunc = nil
}

// SetReceiveFunc configures a dynamic response function for Receive calls.
func (m *BlockingMockTransport) SetReceiveFunc(fn func(n int) ([]byte, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReceiveFunc = fn
	m.Response = nil
}

// SetTimeout configures the timeout for blocking operations.
func (m *BlockingMockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// IsConnected reports whether the transport is still open.
func (m *BlockingMockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock.
func (*BlockingMockTransport) Type() TransportType {
	return TransportMock
}
