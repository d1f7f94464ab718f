// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bustest provides a scripted bus port and a manual clock so bus
// timing can be tested without real elapsed time.
package bustest

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// FakeClock is a manually advanced clock. Sleep advances it immediately.
type FakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

// NewFakeClock returns a clock starting at a fixed instant
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleep records d and advances the clock by it
func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Slept returns every duration passed to Sleep
func (c *FakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

// Chunk is part of a scripted reply arriving After the previous chunk (or
// after the request for the first chunk)
type Chunk struct {
	After time.Duration
	Data  []byte
}

type arrival struct {
	at   time.Time
	data byte
}

// ErrClosed is returned by a FakePort after Close
var ErrClosed = errors.New("fake port closed")

// FakePort is a scripted Port. Every Write consumes the next queued reply and
// schedules its bytes on the clock. Read delivers bytes whose time has come;
// when none are due it advances the clock by the read timeout and returns 0.
type FakePort struct {
	clock *FakeClock

	mu       sync.Mutex
	replies  [][]Chunk
	pending  []arrival
	written  [][]byte
	events   []string
	timeout  time.Duration
	closed   bool
	writeErr error
}

// NewFakePort creates a port driven by clock
func NewFakePort(clock *FakeClock) *FakePort {
	return &FakePort{clock: clock, timeout: time.Millisecond}
}

// Reply queues a reply for the next write
func (p *FakePort) Reply(chunks ...Chunk) {
	p.mu.Lock()
	p.replies = append(p.replies, chunks)
	p.mu.Unlock()
}

// ReplyBytes queues a reply delivered in one piece right after the request
func (p *FakePort) ReplyBytes(data []byte) {
	p.Reply(Chunk{Data: data})
}

// Silence queues no reply for the next write
func (p *FakePort) Silence() {
	p.Reply()
}

// Inject makes data readable immediately, as if it were already on the wire
func (p *FakePort) Inject(data []byte) {
	p.mu.Lock()
	now := p.clock.Now()
	for _, b := range data {
		p.pending = append(p.pending, arrival{at: now, data: b})
	}
	p.mu.Unlock()
}

// FailWrites makes every following Write return err
func (p *FakePort) FailWrites(err error) {
	p.mu.Lock()
	p.writeErr = err
	p.mu.Unlock()
}

// Written returns the frames written so far
func (p *FakePort) Written() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.written))
	for i, w := range p.written {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Events returns the ordered log of port and direction operations
func (p *FakePort) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// Pending returns how many scripted bytes have not been read
func (p *FakePort) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *FakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrClosed
	}

	now := p.clock.Now()
	n := 0
	for n < len(b) && len(p.pending) > 0 && !p.pending[0].at.After(now) {
		b[n] = p.pending[0].data
		p.pending = p.pending[1:]
		n++
	}
	if n > 0 {
		p.events = append(p.events, fmt.Sprintf("read %d", n))
		p.mu.Unlock()
		return n, nil
	}

	wait := p.timeout
	if len(p.pending) > 0 {
		if until := p.pending[0].at.Sub(now); until < wait {
			wait = until
		}
	}
	p.mu.Unlock()

	p.clock.Advance(wait)
	return 0, nil
}

func (p *FakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}
	if p.writeErr != nil {
		p.events = append(p.events, "write failed")
		return 0, p.writeErr
	}

	p.written = append(p.written, append([]byte(nil), b...))
	p.events = append(p.events, fmt.Sprintf("write %d", len(b)))

	if len(p.replies) == 0 {
		return len(b), nil
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]

	at := p.clock.Now()
	for _, c := range reply {
		at = at.Add(c.After)
		for _, d := range c.Data {
			p.pending = append(p.pending, arrival{at: at, data: d})
		}
	}
	return len(b), nil
}

// Close marks the port closed
func (p *FakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.events = append(p.events, "close")
	p.mu.Unlock()
	return nil
}

// SetReadTimeout sets how far an idle Read advances the clock
func (p *FakePort) SetReadTimeout(t time.Duration) error {
	if t <= 0 {
		return fmt.Errorf("fake port needs a positive read timeout, got %v", t)
	}
	p.mu.Lock()
	p.timeout = t
	p.mu.Unlock()
	return nil
}

// ResetInputBuffer drops bytes that are already due
func (p *FakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	kept := p.pending[:0]
	dropped := 0
	for _, a := range p.pending {
		if a.at.After(now) {
			kept = append(kept, a)
		} else {
			dropped++
		}
	}
	p.pending = kept
	p.events = append(p.events, fmt.Sprintf("reset %d", dropped))
	return nil
}

// Drain records the flush
func (p *FakePort) Drain() error {
	p.mu.Lock()
	p.events = append(p.events, "drain")
	p.mu.Unlock()
	return nil
}

// SetRTS records the RTS level so direction switching can be checked
func (p *FakePort) SetRTS(rts bool) error {
	p.mu.Lock()
	if rts {
		p.events = append(p.events, "rts on")
	} else {
		p.events = append(p.events, "rts off")
	}
	p.mu.Unlock()
	return nil
}
