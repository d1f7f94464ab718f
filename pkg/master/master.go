// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package master polls and commands BMS slaves over a shared half-duplex bus.
//
// Every exchange follows the same path: build the frame, send it, collect the
// reply under a sliding deadline, validate it and, for reads, decode it into
// the slave's record. A failed exchange leaves the record untouched. There is
// no retry inside an exchange.
package master

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/RoXxIV/multi-bat/pkg/bmsrtu"
	"github.com/RoXxIV/multi-bat/pkg/bus"
)

// Transport runs one request/response exchange at a time
type Transport interface {
	Transact(frame []byte, w bus.Window, max int) ([]byte, error)
	Sleep(d time.Duration)
	Clock() bus.Clock
}

// Config holds the compiled-in bus parameters
type Config struct {
	// Slaves is the number of slaves polled, ids 1..Slaves
	Slaves int
	// VerifyCRC rejects replies with a bad CRC. Off reproduces slaves that
	// are accepted on address and function alone.
	VerifyCRC bool
	// InterPollDelay separates consecutive exchanges of ReadAll so a late
	// reply is not taken for the next slave's answer
	InterPollDelay time.Duration
	// DisplayDelay separates display identifier commands sent to all slaves
	DisplayDelay time.Duration
	// VerifyDisplay reads the display register back after an identifier
	// command. Slaves do not reliably report the value they show.
	VerifyDisplay bool
}

// MinInterPollDelay is the shortest accepted InterPollDelay. Below it a slow
// slave's late reply can land in the next slave's exchange.
const MinInterPollDelay = 50 * time.Millisecond

// DefaultConfig returns the bus defaults
func DefaultConfig() Config {
	return Config{
		Slaves:         bmsrtu.MaxSlaves,
		InterPollDelay: 100 * time.Millisecond,
		DisplayDelay:   2 * time.Second,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Slaves < 1 || c.Slaves > bmsrtu.MaxSlaves {
		return fmt.Errorf("slaves must be between 1 and %d, got %d", bmsrtu.MaxSlaves, c.Slaves)
	}
	if c.InterPollDelay < MinInterPollDelay {
		return fmt.Errorf("inter-poll delay must be at least %v, got %v", MinInterPollDelay, c.InterPollDelay)
	}
	if c.DisplayDelay < 0 {
		return fmt.Errorf("display delay must not be negative")
	}
	return nil
}

// Master owns the bus and the battery store. Methods are safe for concurrent
// use; exchanges are serialized so only one request is ever outstanding.
type Master struct {
	mu    sync.Mutex
	t     Transport
	cfg   Config
	store *Store
	stats *Statistics
	log   zerolog.Logger
}

// Option configures a Master
type Option func(*Master)

// WithLogger sets the logger exchanges are reported to
func WithLogger(l zerolog.Logger) Option {
	return func(m *Master) { m.log = l }
}

// New creates a master on t
func New(t Transport, cfg Config, opts ...Option) (*Master, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Master{
		t:     t,
		cfg:   cfg,
		store: NewStore(cfg.Slaves),
		stats: NewStatistics(t.Clock().Now()),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the master configuration
func (m *Master) Config() Config {
	return m.cfg
}

// Clock returns the clock of the transport
func (m *Master) Clock() bus.Clock {
	return m.t.Clock()
}

// Store returns the battery store
func (m *Master) Store() *Store {
	return m.store
}

// Stats returns a copy of the exchange statistics
func (m *Master) Stats() StatsSnapshot {
	return m.stats.Snapshot(m.t.Clock().Now())
}

// ResetStats clears the exchange statistics
func (m *Master) ResetStats() {
	m.stats.Reset(m.t.Clock().Now())
}

func (m *Master) checkSlave(id int) error {
	if id < 1 || id > m.cfg.Slaves {
		return fmt.Errorf("%w: %d (want 1..%d)", bmsrtu.ErrInvalidSlaveID, id, m.cfg.Slaves)
	}
	return nil
}

func (m *Master) options() bmsrtu.ValidateOptions {
	return bmsrtu.ValidateOptions{VerifyCRC: m.cfg.VerifyCRC}
}

// finish records the outcome of an exchange and logs failures
func (m *Master) finish(id int, op string, err error) error {
	if bmsrtu.ReasonOf(err) != bmsrtu.ReasonInvalidSlaveID {
		m.stats.Update(id, err, m.t.Clock().Now())
	}
	if err != nil {
		m.log.Warn().Int("slave", id).Str("op", op).Stringer("reason", bmsrtu.ReasonOf(err)).Err(err).Msg("exchange failed")
		return err
	}
	m.log.Debug().Int("slave", id).Str("op", op).Msg("exchange ok")
	return nil
}

// ReadTelemetry reads a whole category from slave id into the store
func (m *Master) ReadTelemetry(id int, c bmsrtu.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readTelemetry(id, c)
}

func (m *Master) readTelemetry(id int, c bmsrtu.Category) error {
	op := "read " + c.String()
	if !c.Valid() {
		return fmt.Errorf("invalid category %d", int(c))
	}
	start, count := c.Range()
	err := m.read(id, start, count, bus.TelemetryWindow, func(prev bmsrtu.Record, payload []byte) bmsrtu.Record {
		return bmsrtu.Decode(prev, c, payload)
	})
	return m.finish(id, op, err)
}

// ReadParam reads a single field group from slave id into the store
func (m *Master) ReadParam(id int, p bmsrtu.Param) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op := "read " + p.String()
	if !p.Valid() {
		return fmt.Errorf("invalid parameter %d", int(p))
	}
	start, count := p.Range()
	err := m.read(id, start, count, bus.ParamWindow, func(prev bmsrtu.Record, payload []byte) bmsrtu.Record {
		return bmsrtu.DecodeRealtime(prev, payload, start)
	})
	return m.finish(id, op, err)
}

// read runs one read exchange; on success the decoded record replaces the
// stored one with Valid set and LastUpdate stamped
func (m *Master) read(id int, start, count uint16, w bus.Window, decode func(bmsrtu.Record, []byte) bmsrtu.Record) error {
	if err := m.checkSlave(id); err != nil {
		return err
	}
	frame, err := bmsrtu.BuildReadRequest(id, start, count)
	if err != nil {
		return err
	}

	raw, err := m.t.Transact(frame, w, bmsrtu.ResponseSize(count))
	if err != nil {
		return fmt.Errorf("slave %d: %w", id, err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("slave %d: %w within %v", id, bmsrtu.ErrTimeout, w.Initial)
	}

	resp, err := bmsrtu.ValidateResponse(raw, id, bmsrtu.FuncReadRegisters, m.options())
	if err != nil {
		return fmt.Errorf("slave %d: %w", id, err)
	}

	prev, _ := m.store.Get(id)
	rec := decode(prev, resp.Payload)
	rec.ID = id
	rec.Valid = true
	rec.LastUpdate = m.t.Clock().Now()
	m.store.replace(rec)

	m.log.Debug().Int("slave", id).Int("declared", resp.Length).Int("payload", len(resp.Payload)).Msg("record updated")
	return nil
}

// SlaveResult is the outcome for one slave of a bus-wide operation
type SlaveResult struct {
	ID  int
	Err error
}

// PollSummary aggregates a bus-wide operation
type PollSummary struct {
	Operation string
	Results   []SlaveResult
}

// Attempted returns how many slaves were addressed
func (s PollSummary) Attempted() int {
	return len(s.Results)
}

// Succeeded returns how many slaves answered correctly
func (s PollSummary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// OK reports whether every slave succeeded
func (s PollSummary) OK() bool {
	return s.Succeeded() == s.Attempted()
}

// Failed returns the results that failed
func (s PollSummary) Failed() []SlaveResult {
	var out []SlaveResult
	for _, r := range s.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

func (s PollSummary) String() string {
	return fmt.Sprintf("%s: %d of %d succeeded", s.Operation, s.Succeeded(), s.Attempted())
}

// ReadAll reads category c from every slave in id order. Each exchange is
// followed by the inter-poll delay, and failures do not stop the cycle.
func (m *Master) ReadAll(c bmsrtu.Category) PollSummary {
	summary := PollSummary{Operation: "read " + c.String()}
	for id := 1; id <= m.cfg.Slaves; id++ {
		m.mu.Lock()
		err := m.readTelemetry(id, c)
		m.t.Sleep(m.cfg.InterPollDelay)
		m.mu.Unlock()

		summary.Results = append(summary.Results, SlaveResult{ID: id, Err: err})
	}
	m.log.Info().Str("category", c.String()).Int("ok", summary.Succeeded()).Int("total", summary.Attempted()).Msg("poll cycle")
	return summary
}

// WriteParam writes one register of slave id and waits for its ack
func (m *Master) WriteParam(id int, reg, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op := fmt.Sprintf("write 0x%04X", reg)
	err := m.writeParam(id, reg, value)
	return m.finish(id, op, err)
}

func (m *Master) writeParam(id int, reg, value uint16) error {
	if err := m.checkSlave(id); err != nil {
		return err
	}
	frame, err := bmsrtu.BuildWriteSingleRequest(id, reg, value)
	if err != nil {
		return err
	}
	return m.awaitAck(id, frame)
}

func (m *Master) awaitAck(id int, frame []byte) error {
	raw, err := m.t.Transact(frame, bus.AckWindow, bmsrtu.AckBufferSize)
	if err != nil {
		return fmt.Errorf("slave %d: %w", id, err)
	}
	if err := bmsrtu.ValidateAck(raw, id, m.options()); err != nil {
		return fmt.Errorf("slave %d ack: %w", id, err)
	}
	return nil
}

func boolValue(on bool) uint16 {
	if on {
		return 1
	}
	return 0
}

// SetChargeMosfet switches the charge MOSFET of slave id
func (m *Master) SetChargeMosfet(id int, on bool) error {
	return m.WriteParam(id, bmsrtu.RegChargeControl, boolValue(on))
}

// SetDischargeMosfet switches the discharge MOSFET of slave id
func (m *Master) SetDischargeMosfet(id int, on bool) error {
	return m.WriteParam(id, bmsrtu.RegDischargeControl, boolValue(on))
}

// SendDisplayIdentifier sends the vendor display command to slave id and
// waits for its ack. With VerifyDisplay the display register is read back
// and compared; slaves do not always report it, so a verify failure does
// not mean the command was ignored.
func (m *Master) SendDisplayIdentifier(id int, ascii byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op := fmt.Sprintf("display %d", ascii)
	return m.finish(id, op, m.sendDisplayIdentifier(id, ascii))
}

func (m *Master) sendDisplayIdentifier(id int, ascii byte) error {
	if err := m.checkSlave(id); err != nil {
		return err
	}
	frame, err := bmsrtu.BuildDisplayIdentifierRequest(id, ascii)
	if err != nil {
		return err
	}
	if err := m.awaitAck(id, frame); err != nil {
		return err
	}
	if !m.cfg.VerifyDisplay {
		return nil
	}
	return m.verifyDisplay(id, ascii)
}

func (m *Master) verifyDisplay(id int, ascii byte) error {
	frame, err := bmsrtu.BuildReadRequest(id, bmsrtu.RegDisplay, 1)
	if err != nil {
		return err
	}
	raw, err := m.t.Transact(frame, bus.ParamWindow, bmsrtu.ResponseSize(1))
	if err != nil {
		return fmt.Errorf("slave %d: %w", id, err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("slave %d display read-back: %w", id, bmsrtu.ErrTimeout)
	}
	resp, err := bmsrtu.ValidateResponse(raw, id, bmsrtu.FuncReadRegisters, m.options())
	if err != nil {
		return fmt.Errorf("slave %d display read-back: %w", id, err)
	}
	if len(resp.Payload) < 1 || resp.Payload[0] != ascii {
		return fmt.Errorf("%w: slave %d display register % X, want %02X", bmsrtu.ErrVerifyMismatch, id, resp.Payload, ascii)
	}
	return nil
}

// SendDisplayIdentifierAll sends the display command to every slave, waiting
// DisplayDelay after each one
func (m *Master) SendDisplayIdentifierAll(ascii byte) PollSummary {
	summary := PollSummary{Operation: fmt.Sprintf("display %d", ascii)}
	for id := 1; id <= m.cfg.Slaves; id++ {
		m.mu.Lock()
		err := m.finish(id, summary.Operation, m.sendDisplayIdentifier(id, ascii))
		m.t.Sleep(m.cfg.DisplayDelay)
		m.mu.Unlock()

		summary.Results = append(summary.Results, SlaveResult{ID: id, Err: err})
	}
	return summary
}
