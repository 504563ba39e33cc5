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

package detection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	err     error
	name    string
	devices []DeviceInfo
}

func (f *fakeDetector) Transport() string {
	return f.name
}

func (f *fakeDetector) Detect(_ context.Context, _ *Options) ([]DeviceInfo, error) {
	return f.devices, f.err
}

// withCleanRegistry swaps in an empty detector registry for one test.
// Tests using it mutate global state and must not run in parallel.
func withCleanRegistry(t *testing.T) {
	t.Helper()
	registryMu.Lock()
	saved := registry
	registry = nil
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		registry = saved
		registryMu.Unlock()
	})
}

func TestDetectAllEmptyRegistry(t *testing.T) {
	withCleanRegistry(t)

	devices, err := DetectAll(nil)
	require.ErrorIs(t, err, ErrNoDevicesFound)
	assert.Empty(t, devices)
}

func TestDetectAllSortsByConfidence(t *testing.T) {
	withCleanRegistry(t)

	RegisterDetector(&fakeDetector{
		name: "spi",
		devices: []DeviceInfo{
			{Transport: "spi", Path: "/dev/spidev0.0", Confidence: Low},
			{Transport: "spi", Path: "/dev/spidev0.1", Confidence: High},
		},
	})
	RegisterDetector(&fakeDetector{
		name: "buspirate",
		devices: []DeviceInfo{
			{Transport: "buspirate", Path: "/dev/ttyUSB0", Confidence: Medium},
		},
	})

	devices, err := DetectAll(nil)
	require.NoError(t, err)
	require.Len(t, devices, 3)

	assert.Equal(t, "/dev/spidev0.1", devices[0].Path)
	assert.Equal(t, "/dev/ttyUSB0", devices[1].Path)
	assert.Equal(t, "/dev/spidev0.0", devices[2].Path)
}

func TestDetectAllSkipsFailingDetectors(t *testing.T) {
	withCleanRegistry(t)

	RegisterDetector(&fakeDetector{name: "unsupported", err: ErrUnsupportedPlatform})
	RegisterDetector(&fakeDetector{name: "empty", err: ErrNoDevicesFound})
	RegisterDetector(&fakeDetector{name: "broken", err: errors.New("bus scan exploded")})
	RegisterDetector(&fakeDetector{
		name:    "spi",
		devices: []DeviceInfo{{Transport: "spi", Path: "/dev/spidev1.0", Confidence: Medium}},
	})

	devices, err := DetectAll(nil)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/spidev1.0", devices[0].Path)
}

func TestDetectAllCanceledContext(t *testing.T) {
	withCleanRegistry(t)

	RegisterDetector(&fakeDetector{
		name:    "spi",
		devices: []DeviceInfo{{Transport: "spi", Path: "/dev/spidev0.0"}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DetectAllContext(ctx, nil)
	require.ErrorIs(t, err, ErrDetectionTimeout)
}

func TestDetectFirst(t *testing.T) {
	withCleanRegistry(t)

	RegisterDetector(&fakeDetector{
		name: "buspirate",
		devices: []DeviceInfo{
			{Transport: "buspirate", Path: "/dev/ttyUSB0", Confidence: Low},
			{Transport: "buspirate", Path: "/dev/ttyUSB1", Confidence: High},
		},
	})

	device, err := DetectFirst(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", device.Path)
	assert.Equal(t, High, device.Confidence)
}

func TestRegisteredTransports(t *testing.T) {
	withCleanRegistry(t)

	RegisterDetector(&fakeDetector{name: "spi"})
	RegisterDetector(&fakeDetector{name: "buspirate"})

	assert.Equal(t, []string{"spi", "buspirate"}, RegisteredTransports())
}

func TestModeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "safe", Safe.String())
	assert.Equal(t, "passive", Passive.String())
	assert.Equal(t, "unknown", Mode(99).String())
}

func TestConfidenceString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "low", Low.String())
	assert.Equal(t, "medium", Medium.String())
	assert.Equal(t, "high", High.String())
	assert.Equal(t, "unknown", Confidence(99).String())
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	assert.Equal(t, Safe, opts.Mode)
	assert.Equal(t, DefaultTimeout, opts.Timeout)
	assert.NotNil(t, opts.Blocklist)
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		vidpid    string
		blocklist []string
		want      bool
	}{
		{
			name:      "empty blocklist",
			vidpid:    "0403:6001",
			blocklist: nil,
			want:      false,
		},
		{
			name:      "exact match",
			vidpid:    "0403:6001",
			blocklist: []string{"0403:6001"},
			want:      true,
		},
		{
			name:      "case insensitive",
			vidpid:    "04d8:fb00",
			blocklist: []string{"04D8:FB00"},
			want:      true,
		},
		{
			name:      "whitespace tolerated",
			vidpid:    " 0403:6001 ",
			blocklist: []string{"0403:6001"},
			want:      true,
		},
		{
			name:      "no match",
			vidpid:    "1A86:7523",
			blocklist: []string{"0403:6001"},
			want:      false,
		},
	}

	for _, tt := range tests {
		tt := tt // capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsBlocked(tt.vidpid, tt.blocklist))
		})
	}
}

func TestParseVIDPID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		descriptor string
		want       string
	}{
		{
			name:       "plain pair",
			descriptor: "0403:6001",
			want:       "0403:6001",
		},
		{
			name:       "vid pid labels",
			descriptor: "VID:0403 PID:6001",
			want:       "0403:6001",
		},
		{
			name:       "vendor product labels",
			descriptor: "vendor=04d8 product=fb00",
			want:       "04D8:FB00",
		},
		{
			name:       "lowercase plain pair is uppercased",
			descriptor: "04d8:fb00",
			want:       "04D8:FB00",
		},
		{
			name:       "garbage",
			descriptor: "not a descriptor",
			want:       "",
		},
		{
			name:       "empty",
			descriptor: "",
			want:       "",
		},
	}

	for _, tt := range tests {
		tt := tt // capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseVIDPID(tt.descriptor))
		})
	}
}
