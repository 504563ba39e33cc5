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
	"errors"
	"fmt"
	"time"

	"github.com/n573/spi-eeprom/detection"
	"github.com/n573/spi-eeprom/internal/microwire"
)

// Device errors
var (
	ErrTransactionOpen = errors.New("transaction already open")
	ErrNoTransaction   = errors.New("no open transaction")
)

// TimingConfig holds the chip-select and programming-cycle delays. The
// defaults match the AT93C86A datasheet with the margins the original
// bring-up settled on; slower or off-brand parts may need more.
type TimingConfig struct {
	// SelectSetup is the minimum delay between asserting select and the
	// first clock edge (tCSS).
	SelectSetup time.Duration
	// SelectHold is the minimum delay after deasserting select before it
	// may rise again (tCSH).
	SelectHold time.Duration
	// WriteCycle is the self-timed programming wait after a write
	// instruction's select line falls.
	WriteCycle time.Duration
	// EraseCycle is the programming wait after an erase instruction.
	EraseCycle time.Duration
}

// DefaultTimingConfig returns the timing used when none is configured.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		SelectSetup: 250 * time.Nanosecond,
		SelectHold:  250 * time.Nanosecond,
		WriteCycle:  7 * time.Millisecond,
		EraseCycle:  4 * time.Millisecond,
	}
}

// Calibration holds the empirically determined framing constants. Both were
// settled by trial against real hardware and may differ between device
// revisions, so they are configuration rather than protocol facts.
type Calibration struct {
	// RxSkewBits is the number of dummy bits the device emits before the
	// first valid data bit of a read response.
	RxSkewBits int
	// WriteTrailingPad is the number of zero bits transmitted after the
	// data field of a write frame.
	WriteTrailingPad int
}

// DefaultCalibration returns the calibration for the reference device.
func DefaultCalibration() *Calibration {
	return &Calibration{
		RxSkewBits:       microwire.DefaultRxSkewBits,
		WriteTrailingPad: microwire.DefaultWriteTrailingPad,
	}
}

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// RetryConfig configures retry behavior for device transactions
	RetryConfig *RetryConfig
	// Timing configures select and programming-cycle delays
	Timing *TimingConfig
	// Calibration configures the empirical framing constants
	Calibration *Calibration
	// Timeout is the default timeout for operations
	Timeout time.Duration
	// ReadyPollTimeout bounds ready polling; zero means twice the write
	// cycle time
	ReadyPollTimeout time.Duration
	// ReadyPoll switches the post-write wait from a fixed sleep to
	// polling the chip's ready status
	ReadyPoll bool
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		RetryConfig: DefaultRetryConfig(),
		Timing:      DefaultTimingConfig(),
		Calibration: DefaultCalibration(),
		Timeout:     1 * time.Second,
	}
}

// Device represents an AT93C86A-class Microwire EEPROM behind a Transport
//
// Thread Safety: Device is NOT thread-safe. All methods must be called from
// a single goroutine or protected with external synchronization. The select
// line and the bus belong exclusively to this driver for the lifetime of a
// transaction; a second goroutine toggling select mid-instruction corrupts
// the frame. For concurrent access, wrap the Device with a mutex or use
// separate Device instances with separate transports.
type Device struct {
	transport     Transport
	config        *DeviceConfig
	inTransaction bool
}

// New creates a new device with the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	return device, nil
}

// hasCapability checks if the transport has the specified capability
func (d *Device) hasCapability(capability TransportCapability) bool {
	if checker, ok := d.transport.(TransportCapabilityChecker); ok {
		return checker.HasCapability(capability)
	}
	return false
}

// TransportFactory is a function type for creating transports
type TransportFactory func(path string) (Transport, error)

// TransportFromDeviceFactory is a function type for creating transports from detected devices
type TransportFromDeviceFactory func(device detection.DeviceInfo) (Transport, error)

// ConnectOption represents a functional option for ConnectDevice
type ConnectOption func(*connectConfig) error

// connectConfig holds configuration options for device connection
type connectConfig struct {
	validationConfig       *ValidationConfig
	transportFactory       TransportFactory
	transportDeviceFactory TransportFromDeviceFactory
	deviceOptions          []Option
	timeout                time.Duration
	autoDetect             bool
	enableValidation       bool
}

// WithAutoDetection enables automatic device detection instead of using a specific path
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithValidation probes the freshly connected device with a verified read
// before ConnectDevice returns, using the given configuration (nil for
// defaults). An EEPROM cannot identify itself, so a stable read of the
// first word is the closest thing to a handshake this chip offers.
func WithValidation(config *ValidationConfig) ConnectOption {
	return func(c *connectConfig) error {
		c.enableValidation = true
		c.validationConfig = config
		return nil
	}
}

// WithDeviceOptions adds device-level options
func WithDeviceOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceOptions = append(c.deviceOptions, opts...)
		return nil
	}
}

// WithConnectTimeout sets the device connection timeout
func WithConnectTimeout(timeout time.Duration) ConnectOption {
	return func(c *connectConfig) error {
		c.timeout = timeout
		return nil
	}
}

// WithTransportFactory sets the transport factory function
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithTransportFromDeviceFactory sets the transport from device factory function
func WithTransportFromDeviceFactory(factory TransportFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportDeviceFactory = factory
		return nil
	}
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{
		autoDetect:             false,
		enableValidation:       false,
		validationConfig:       nil,
		deviceOptions:          nil,
		timeout:                10 * time.Second,
		transportFactory:       nil,
		transportDeviceFactory: nil,
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}

	return config, nil
}

func createTransport(path string, config *connectConfig) (Transport, error) {
	if config.autoDetect || path == "" {
		return createAutoDetectedTransport(config.transportDeviceFactory)
	}
	return createManualTransport(path, config.transportFactory)
}

func setupDevice(transport Transport, config *connectConfig) (*Device, error) {
	device, err := New(transport, config.deviceOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	if config.timeout > 0 {
		if err := device.SetTimeout(config.timeout); err != nil {
			return nil, fmt.Errorf("failed to set timeout: %w", err)
		}
	}

	if err := device.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize device: %w", err)
	}

	return device, nil
}

func validateConnection(device *Device, config *connectConfig) error {
	if !config.enableValidation {
		return nil
	}

	validationConfig := config.validationConfig
	if validationConfig == nil {
		validationConfig = DefaultValidationConfig()
	}
	verified := NewVerifiedDevice(device, validationConfig)
	if _, err := verified.ReadWordVerified(0); err != nil {
		return fmt.Errorf("connection validation failed: %w", err)
	}
	return nil
}

// ConnectDevice creates and initializes an EEPROM device from a path or
// auto-detection. This is a high-level convenience function that handles
// transport creation, device initialization, and optional validation.
//
// Example usage:
//
//	// Connect to a specific SPI bus
//	device, err := at93c.ConnectDevice("/dev/spidev0.0",
//		at93c.WithTransportFactory(func(path string) (at93c.Transport, error) {
//			return spidev.New(path, "GPIO22")
//		}))
//
//	// Auto-detect a bridge or bus
//	device, err := at93c.ConnectDevice("", at93c.WithAutoDetection(),
//		at93c.WithTransportFromDeviceFactory(factory))
func ConnectDevice(path string, opts ...ConnectOption) (*Device, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to apply connect options: %w", err)
	}

	transport, err := createTransport(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	device, err := setupDevice(transport, config)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	if err := validateConnection(device, config); err != nil {
		_ = device.Close()
		return nil, err
	}
	return device, nil
}

// createManualTransport handles creation of transport for a specific path
func createManualTransport(path string, factory TransportFactory) (Transport, error) {
	if factory == nil {
		return nil, errors.New("transport factory not provided")
	}

	transport, err := factory(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for path %s: %w", path, err)
	}

	return transport, nil
}

// createAutoDetectedTransport handles auto-detection of devices
func createAutoDetectedTransport(factory TransportFromDeviceFactory) (Transport, error) {
	opts := detection.DefaultOptions()
	opts.Mode = detection.Safe

	devices, err := detection.DetectAll(&opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no candidate buses or bridges", ErrDeviceNotFound)
	}

	// Use the first detected device
	device := devices[0]
	if factory == nil {
		return nil, errors.New("transport device factory not provided")
	}
	return factory(device)
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Init initializes the device connection
func (d *Device) Init() error {
	return d.InitContext(context.Background())
}

// InitContext verifies the transport clocks data by reading the first word.
// The chip has no identity register, so the probe proves only that select
// and transfer plumbing work, not that the right part sits on the bus. The
// probe is read-only: Init never touches the write-enable latch, since a
// caller may have deliberately enabled writes before handing the transport
// over.
func (d *Device) InitContext(ctx context.Context) error {
	if !d.transport.IsConnected() {
		return fmt.Errorf("%w: transport not connected", ErrDeviceNotFound)
	}

	word, err := d.ReadWordContext(ctx, 0)
	if err != nil {
		return fmt.Errorf("probe read failed: %w", err)
	}

	debugf("initialized %s transport, word[0]=%04X, gapless=%v",
		d.transport.Type(), word, d.hasCapability(CapabilityGaplessClock))
	return nil
}

// SetTimeout sets the default timeout for operations
func (d *Device) SetTimeout(timeout time.Duration) error {
	d.config.Timeout = timeout
	if err := d.transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set timeout on transport: %w", err)
	}
	return nil
}

// SetRetryConfig updates the retry configuration
func (d *Device) SetRetryConfig(config *RetryConfig) {
	d.config.RetryConfig = config
}

// Close closes the device connection
func (d *Device) Close() error {
	if d.transport != nil {
		if err := d.transport.Close(); err != nil {
			return fmt.Errorf("failed to close transport: %w", err)
		}
	}
	return nil
}

// InTransaction reports whether a select-to-deselect transaction is open.
func (d *Device) InTransaction() bool {
	return d.inTransaction
}

// BeginTransaction asserts chip select and waits out the setup time so the
// first clock edge arrives no sooner than tCSS after the rising edge. The
// line is first forced down and held for tCSH in case a previous transaction
// leaked a stale level.
func (d *Device) BeginTransaction() error {
	if d.inTransaction {
		return ErrTransactionOpen
	}

	if err := d.transport.SetSelect(false); err != nil {
		return fmt.Errorf("failed to clear select: %w", err)
	}
	spinWait(d.config.Timing.SelectHold)

	if err := d.transport.SetSelect(true); err != nil {
		return fmt.Errorf("failed to assert select: %w", err)
	}
	spinWait(d.config.Timing.SelectSetup)

	d.inTransaction = true
	return nil
}

// EndTransaction deasserts chip select and waits out the hold time. For
// write and erase instructions the chip's self-timed programming cycle
// starts at this falling edge; the word operations add the cycle wait on
// top of this call.
func (d *Device) EndTransaction() error {
	if !d.inTransaction {
		return ErrNoTransaction
	}
	d.inTransaction = false

	if err := d.transport.SetSelect(false); err != nil {
		return fmt.Errorf("failed to deassert select: %w", err)
	}
	spinWait(d.config.Timing.SelectHold)
	return nil
}

// transact brackets fn between BeginTransaction and EndTransaction. The
// deassert runs even when fn fails so the chip never sits selected with a
// half-clocked instruction.
func (d *Device) transact(fn func() error) error {
	if err := d.BeginTransaction(); err != nil {
		return err
	}

	opErr := fn()
	endErr := d.EndTransaction()
	if opErr != nil {
		return opErr
	}
	return endErr
}

// transactRetry retries whole transactions. Each attempt re-frames the
// instruction from the select edge up, which is the only safe retry unit on
// this bus.
func (d *Device) transactRetry(ctx context.Context, fn func() error) error {
	return RetryWithConfig(ctx, d.config.RetryConfig, func() error {
		return d.transact(fn)
	})
}

// spinWait busy-loops for at least dur. Select setup and hold are a few
// hundred nanoseconds, far below timer sleep resolution; sleeping here would
// stretch every transaction by orders of magnitude.
func spinWait(dur time.Duration) {
	if dur <= 0 {
		return
	}
	start := time.Now()
	for time.Since(start) < dur {
	}
}
