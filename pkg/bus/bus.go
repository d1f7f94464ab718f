// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bus

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Window is a sliding response deadline. Collection waits up to Initial for
// the first byte; every byte received moves the deadline to now + PerByte.
type Window struct {
	Initial time.Duration
	PerByte time.Duration
}

// Response windows used by the master
var (
	TelemetryWindow = Window{Initial: 500 * time.Millisecond, PerByte: 50 * time.Millisecond}
	ParamWindow     = Window{Initial: 300 * time.Millisecond, PerByte: 50 * time.Millisecond}
	AckWindow       = Window{Initial: 200 * time.Millisecond, PerByte: 30 * time.Millisecond}
)

// DefaultPollInterval is the per-Read timeout used while collecting
const DefaultPollInterval = 5 * time.Millisecond

// Bus runs request/response exchanges over a half-duplex port. It is not safe
// for concurrent use; callers serialize exchanges.
type Bus struct {
	port         Port
	dir          Direction
	clock        Clock
	pollInterval time.Duration
	log          zerolog.Logger
}

// Option configures a Bus
type Option func(*Bus)

// WithDirection sets the transceiver direction control
func WithDirection(d Direction) Option {
	return func(b *Bus) { b.dir = d }
}

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(b *Bus) { b.clock = c }
}

// WithLogger sets the logger frames are traced to
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bus) { b.log = l }
}

// WithPollInterval sets the per-Read timeout used while collecting
func WithPollInterval(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

// New creates a bus on port. Without options it assumes an auto-direction
// adapter and the wall clock.
func New(port Port, opts ...Option) *Bus {
	b := &Bus{
		port:         port,
		dir:          NoDirection{},
		clock:        SystemClock{},
		pollInterval: DefaultPollInterval,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Clock returns the bus time source
func (b *Bus) Clock() Clock {
	return b.clock
}

// Close releases the port
func (b *Bus) Close() error {
	return b.port.Close()
}

// Transact sends frame and collects the reply within window, up to max bytes.
// An empty result with a nil error means nothing arrived before the deadline.
func (b *Bus) Transact(frame []byte, w Window, max int) ([]byte, error) {
	if err := b.Send(frame); err != nil {
		return nil, err
	}
	return b.Collect(w, max)
}

// Send discards stale input and transmits frame. The transceiver is returned
// to receive only after the frame has been flushed.
func (b *Bus) Send(frame []byte) error {
	if err := b.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to discard stale input: %w", err)
	}

	if err := b.dir.Transmit(); err != nil {
		return fmt.Errorf("failed to enable transmit: %w", err)
	}

	b.log.Debug().Hex("tx", frame).Msg("send")
	_, werr := b.port.Write(frame)
	if werr == nil {
		werr = b.port.Drain()
	}

	// Always fall back to receive, even after a failed write
	rerr := b.dir.Receive()

	if werr != nil {
		return fmt.Errorf("failed to write frame: %w", werr)
	}
	if rerr != nil {
		return fmt.Errorf("failed to enable receive: %w", rerr)
	}
	return nil
}

// Collect reads until the sliding deadline expires or max bytes are held
func (b *Bus) Collect(w Window, max int) ([]byte, error) {
	if max <= 0 {
		return nil, nil
	}
	if err := b.port.SetReadTimeout(b.pollInterval); err != nil {
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	buf := make([]byte, 0, max)
	chunk := make([]byte, max)
	deadline := b.clock.Now().Add(w.Initial)

	for len(buf) < max && b.clock.Now().Before(deadline) {
		n, err := b.port.Read(chunk[:max-len(buf)])
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			deadline = b.clock.Now().Add(w.PerByte)
		}
		if err != nil {
			return buf, fmt.Errorf("failed to read response: %w", err)
		}
	}

	if len(buf) > 0 {
		b.log.Debug().Hex("rx", buf).Int("bytes", len(buf)).Msg("receive")
	} else {
		b.log.Debug().Dur("window", w.Initial).Msg("no response")
	}
	return buf, nil
}

// Sleep pauses on the bus clock
func (b *Bus) Sleep(d time.Duration) {
	if d > 0 {
		b.clock.Sleep(d)
	}
}
