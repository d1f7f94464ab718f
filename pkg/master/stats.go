// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package master

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RoXxIV/multi-bat/pkg/bmsrtu"
)

// SlaveStats is the exchange history of one slave
type SlaveStats struct {
	Exchanges    uint64
	Successes    uint64
	LastReason   bmsrtu.Reason
	LastExchange time.Time
	LastSuccess  time.Time
}

// StatsSnapshot is a copy of the counters at one instant
type StatsSnapshot struct {
	StartTime time.Time
	Now       time.Time

	Exchanges uint64
	Successes uint64
	Failures  map[bmsrtu.Reason]uint64
	Slaves    map[int]SlaveStats
}

// Statistics tracks exchange outcomes per reason and per slave
type Statistics struct {
	mu        sync.Mutex
	startTime time.Time
	exchanges uint64
	successes uint64
	failures  map[bmsrtu.Reason]uint64
	slaves    map[int]*SlaveStats
}

// NewStatistics creates a statistics tracker starting at now
func NewStatistics(now time.Time) *Statistics {
	return &Statistics{
		startTime: now,
		failures:  make(map[bmsrtu.Reason]uint64),
		slaves:    make(map[int]*SlaveStats),
	}
}

// Update records the outcome of one exchange with slave id
func (s *Statistics) Update(id int, err error, now time.Time) {
	reason := bmsrtu.ReasonOf(err)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.exchanges++
	if reason == bmsrtu.ReasonOK {
		s.successes++
	} else {
		s.failures[reason]++
	}

	ss, ok := s.slaves[id]
	if !ok {
		ss = &SlaveStats{}
		s.slaves[id] = ss
	}
	ss.Exchanges++
	ss.LastReason = reason
	ss.LastExchange = now
	if reason == bmsrtu.ReasonOK {
		ss.Successes++
		ss.LastSuccess = now
	}
}

// Snapshot copies the counters
func (s *Statistics) Snapshot(now time.Time) StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		StartTime: s.startTime,
		Now:       now,
		Exchanges: s.exchanges,
		Successes: s.successes,
		Failures:  make(map[bmsrtu.Reason]uint64, len(s.failures)),
		Slaves:    make(map[int]SlaveStats, len(s.slaves)),
	}
	for r, n := range s.failures {
		snap.Failures[r] = n
	}
	for id, ss := range s.slaves {
		snap.Slaves[id] = *ss
	}
	return snap
}

// Reset clears all counters
func (s *Statistics) Reset(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime = now
	s.exchanges = 0
	s.successes = 0
	s.failures = make(map[bmsrtu.Reason]uint64)
	s.slaves = make(map[int]*SlaveStats)
}

// SuccessRate returns the fraction of successful exchanges (0 when none ran)
func (s StatsSnapshot) SuccessRate() float64 {
	if s.Exchanges == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Exchanges)
}

// String returns a formatted statistics summary
func (s StatsSnapshot) String() string {
	elapsed := s.Now.Sub(s.StartTime)

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	fmt.Fprintf(&sb, "Exchanges:       %8d\n", s.Exchanges)
	fmt.Fprintf(&sb, "Successful:      %8d (%.1f%%)\n", s.Successes, s.SuccessRate()*100)

	for _, r := range bmsrtu.Reasons() {
		n := s.Failures[r]
		if n == 0 {
			continue
		}
		pct := float64(n) * 100 / float64(s.Exchanges)
		fmt.Fprintf(&sb, "%-17s%8d (%.1f%%)\n", r.String()+":", n, pct)
	}

	ids := make([]int, 0, len(s.Slaves))
	for id := range s.Slaves {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		ss := s.Slaves[id]
		fmt.Fprintf(&sb, "  Slave %d: %d/%d ok, last %s\n", id, ss.Successes, ss.Exchanges, ss.LastReason)
	}

	sb.WriteString("================================\n")
	return sb.String()
}
