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

// Package detection discovers buses and bridges that can reach a Microwire
// EEPROM: spidev controllers and serial SPI bridges. The chip itself has no
// identity register, so detection reports candidate transports with a
// confidence level; only a driver-level read confirms a part is actually
// wired to one.
//
// Transport packages register their detectors on import:
//
//	import (
//		_ "github.com/n573/spi-eeprom/detection/buspirate"
//		_ "github.com/n573/spi-eeprom/detection/spidev"
//	)
//
//	devices, err := detection.DetectAll(nil)
package detection

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Detection errors.
var (
	// ErrNoDevicesFound indicates no candidate device was found.
	ErrNoDevicesFound = errors.New("no devices found")

	// ErrDetectionTimeout indicates detection ran out of time.
	ErrDetectionTimeout = errors.New("detection timed out")

	// ErrUnsupportedPlatform indicates the detector cannot run on this
	// operating system.
	ErrUnsupportedPlatform = errors.New("platform not supported")
)

// Mode selects how intrusive detection may be.
type Mode int

const (
	// Safe probes only candidates that look right, using probes that
	// cannot disturb other hardware on the same port.
	Safe Mode = iota
	// Passive never opens a device; it enumerates and scores candidates
	// from system information alone.
	Passive
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case Safe:
		return "safe"
	case Passive:
		return "passive"
	default:
		return "unknown"
	}
}

// Confidence grades how likely a candidate is to carry the expected wiring.
type Confidence int

const (
	// Low marks a candidate that merely exists.
	Low Confidence = iota
	// Medium marks a candidate whose identifiers match known hardware.
	Medium
	// High marks a candidate that answered a probe.
	High
)

// String returns a human-readable name for the confidence level.
func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo describes one detected candidate.
type DeviceInfo struct {
	// Metadata carries detector-specific findings, such as VID:PID or
	// probe results.
	Metadata map[string]string
	// Transport names the transport package that can open this device.
	Transport string
	// Path is what to pass to that transport's constructor.
	Path string
	// Name is a human-readable description.
	Name string
	// Confidence grades the candidate.
	Confidence Confidence
}

// Options configures a detection pass.
type Options struct {
	// IgnorePaths lists device paths detection must skip.
	IgnorePaths []string
	// Blocklist lists VID:PID pairs detection must never probe.
	Blocklist []string
	// Timeout bounds the whole pass. Zero means DefaultTimeout.
	Timeout time.Duration
	// Mode selects how intrusive detection may be.
	Mode Mode
}

// DefaultTimeout bounds a detection pass when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// DefaultOptions returns the options used when nil is passed to DetectAll.
func DefaultOptions() Options {
	return Options{
		Mode:      Safe,
		Timeout:   DefaultTimeout,
		Blocklist: DefaultBlocklist(),
	}
}

// Detector finds candidate devices for one transport.
type Detector interface {
	// Transport returns the transport name this detector serves.
	Transport() string
	// Detect searches for candidates. It returns ErrUnsupportedPlatform
	// when the detector cannot run on this system and ErrNoDevicesFound
	// when it ran and found nothing.
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var (
	registryMu sync.RWMutex
	registry   []Detector
)

// RegisterDetector adds a detector to the registry. Transport packages call
// this from init; importing a detection subpackage is what enables its
// transport in DetectAll.
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, d)
}

// RegisteredTransports returns the transport names with a registered
// detector, in registration order.
func RegisteredTransports() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for _, d := range registry {
		names = append(names, d.Transport())
	}
	return names
}

// DetectAll runs every registered detector and returns all candidates,
// highest confidence first. A nil opts uses DefaultOptions.
func DetectAll(opts *Options) ([]DeviceInfo, error) {
	return DetectAllContext(context.Background(), opts)
}

// DetectAllContext runs every registered detector with context support.
func DetectAllContext(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	registryMu.RLock()
	detectors := make([]Detector, len(registry))
	copy(detectors, registry)
	registryMu.RUnlock()

	var devices []DeviceInfo
	for _, detector := range detectors {
		select {
		case <-ctx.Done():
			return devices, ErrDetectionTimeout
		default:
		}

		found, err := detector.Detect(ctx, opts)
		if err != nil {
			// A detector that cannot run or found nothing does not
			// fail the pass; others may still deliver.
			if errors.Is(err, ErrUnsupportedPlatform) || errors.Is(err, ErrNoDevicesFound) {
				continue
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrDetectionTimeout) {
				return devices, ErrDetectionTimeout
			}
			continue
		}
		devices = append(devices, found...)
	}

	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	return devices, nil
}

// DetectFirst returns the single best candidate.
func DetectFirst(ctx context.Context, opts *Options) (*DeviceInfo, error) {
	devices, err := DetectAllContext(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &devices[0], nil
}
