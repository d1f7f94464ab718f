// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bus

import (
	"io"
	"time"
)

// Port is a byte stream to the RS485 bus. go.bug.st/serial ports satisfy it
// directly; WebSocketPort adapts a serial-over-websocket bridge.
type Port interface {
	io.Reader
	io.Writer
	io.Closer

	// SetReadTimeout bounds a single Read. A Read that times out returns 0, nil.
	SetReadTimeout(t time.Duration) error
	// ResetInputBuffer discards received bytes not yet read
	ResetInputBuffer() error
	// Drain blocks until everything written has left the transmitter
	Drain() error
}

// Direction switches a half-duplex transceiver between transmit and receive
type Direction interface {
	Transmit() error
	Receive() error
}

// NoDirection is used with adapters that switch direction on their own
type NoDirection struct{}

func (NoDirection) Transmit() error { return nil }
func (NoDirection) Receive() error  { return nil }

// Clock is the time source used for response deadlines and bus delays
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
