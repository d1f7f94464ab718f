// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package master

import (
	"sync"
	"time"

	"github.com/RoXxIV/multi-bat/pkg/bmsrtu"
)

// Store holds the latest record of every slave. Records are replaced whole;
// readers always see either the previous or the new record.
type Store struct {
	mu      sync.RWMutex
	records []bmsrtu.Record
}

// NewStore creates records for slaves 1..n, all invalid
func NewStore(n int) *Store {
	s := &Store{records: make([]bmsrtu.Record, n)}
	for i := range s.records {
		s.records[i] = bmsrtu.NewRecord(i + 1)
	}
	return s
}

// Len returns the number of slaves tracked
func (s *Store) Len() int {
	return len(s.records)
}

func (s *Store) index(id int) (int, bool) {
	if id < 1 || id > len(s.records) {
		return 0, false
	}
	return id - 1, true
}

// Get returns a copy of the record of slave id. ok is false for ids the
// store does not track.
func (s *Store) Get(id int) (rec bmsrtu.Record, ok bool) {
	i, ok := s.index(id)
	if !ok {
		return bmsrtu.Record{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[i].Clone(), true
}

// SOC returns the state of charge, or -1 without valid data
func (s *Store) SOC(id int) float64 {
	rec, ok := s.Get(id)
	if !ok || !rec.Valid {
		return -1
	}
	return rec.SOC
}

// Voltage returns the total voltage, or -1 without valid data
func (s *Store) Voltage(id int) float64 {
	rec, ok := s.Get(id)
	if !ok || !rec.Valid {
		return -1
	}
	return rec.TotalVoltage
}

// Current returns the pack current, or 0 without valid data
func (s *Store) Current(id int) float64 {
	rec, ok := s.Get(id)
	if !ok || !rec.Valid {
		return 0
	}
	return rec.Current
}

// IsValid reports whether slave id has been read successfully
func (s *Store) IsValid(id int) bool {
	rec, ok := s.Get(id)
	return ok && rec.Valid
}

// Age returns the time since slave id was last refreshed. ok is false when
// it never was.
func (s *Store) Age(id int, now time.Time) (time.Duration, bool) {
	rec, ok := s.Get(id)
	if !ok || !rec.Valid {
		return 0, false
	}
	return rec.Age(now), true
}

// Snapshot returns a copy of every record in id order
func (s *Store) Snapshot() []bmsrtu.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]bmsrtu.Record, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.Clone()
	}
	return out
}

// replace stores rec as the record of rec.ID
func (s *Store) replace(rec bmsrtu.Record) {
	i, ok := s.index(rec.ID)
	if !ok {
		return
	}
	s.mu.Lock()
	s.records[i] = rec
	s.mu.Unlock()
}
