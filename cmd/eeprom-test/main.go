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

// eeprom-test exercises an AT93C86A-class EEPROM end to end: latch control,
// word erase/write/read, bulk fills, string storage, and optionally a full
// chip wipe. It doubles as a bring-up tool for new boards.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	at93c "github.com/n573/spi-eeprom"
	// Import detection packages to register detectors
	_ "github.com/n573/spi-eeprom/detection/buspirate"
	_ "github.com/n573/spi-eeprom/detection/spidev"
)

func main() {
	if run() != 0 {
		os.Exit(1)
	}
}

func parseFlags() *Config {
	devicePath := flag.String("device", "",
		"Device path (e.g., /dev/spidev0.0 or /dev/ttyUSB0). Leave empty for auto-detection.")
	csPin := flag.String("cs", "GPIO22",
		"GPIO name driving the chip's select line (SPI controllers only)")
	mock := flag.Bool("mock", false, "Run against a simulated chip instead of hardware")
	wipe := flag.Bool("wipe", false, "Include destructive whole-chip steps (dumps and restores contents)")
	validate := flag.Bool("validate", false, "Probe the connection with verified reads before testing")
	readyPoll := flag.Duration("poll-ready", 0,
		"Poll the ready/busy line with this limit instead of fixed write-cycle delays (0 disables)")
	connectTimeout := flag.Duration("connect-timeout", 10*time.Second, "Device connection timeout")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	debug := flag.Bool("debug", false, "Enable debug output")

	flag.Parse()

	if *debug {
		at93c.SetDebugEnabled(true)
	}

	cfg := DefaultConfig()
	cfg.DevicePath = *devicePath
	cfg.CSPin = *csPin
	cfg.Mock = *mock
	cfg.Wipe = *wipe
	cfg.Validate = *validate
	cfg.ReadyPoll = *readyPoll
	cfg.ConnectTimeout = *connectTimeout
	cfg.Verbose = *verbose
	return cfg
}

func run() int {
	cfg := parseFlags()
	output := NewOutput(cfg.Verbose)

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	device, err := connect(cfg, output)
	if err != nil {
		output.Error("Failed to connect: %v", err)
		return 1
	}
	defer func() {
		if err := device.Close(); err != nil {
			output.Warning("close failed: %v", err)
		}
	}()

	results := runSteps(ctx, device, output, buildSteps(cfg))

	passed := 0
	for _, result := range results {
		if result.Err == nil {
			passed++
		}
	}
	output.Summary(passed, len(results))

	if passed != len(results) {
		return 1
	}
	return 0
}

// runSteps executes each step in order, stopping early only if the context
// is canceled. A failed step does not block the rest: independent failures
// are worth more than one stack of cascading ones.
func runSteps(ctx context.Context, device *at93c.Device, out *Output, steps []Step) []Result {
	results := make([]Result, 0, len(steps))
	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}

		out.StepHeader(step.Name)
		err := step.Run(ctx, device, out)
		if err != nil {
			out.StepFail(step.Name, err)
		} else {
			out.StepPass(step.Name)
		}
		results = append(results, Result{Name: step.Name, Err: err})
	}
	return results
}
