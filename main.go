// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Multibat - master for a chain of BMS slaves on a shared RS485 bus.
//
// Polls battery telemetry, writes single registers, switches MOSFETs and
// shows slave identifiers on the pack displays.

package main

import (
	"os"

	"github.com/RoXxIV/multi-bat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
