// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bmsrtu

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// SnapshotVersion is the first element of every encoded snapshot
const SnapshotVersion = 1

// Snapshot is a point-in-time copy of every battery record
type Snapshot struct {
	Taken   time.Time `json:"taken" yaml:"taken" cbor:"0,keyasint"`
	Records []Record  `json:"records" yaml:"records" cbor:"1,keyasint"`
}

// EncodeSnapshot encodes a snapshot as CBOR: [version, snapshot].
// Timestamps are written as RFC 3339 strings to keep sub-second precision.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, err
	}
	data, err := em.Marshal([]interface{}{uint64(SnapshotVersion), s})
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot produced by EncodeSnapshot
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if len(data) == 0 {
		return Snapshot{}, fmt.Errorf("empty snapshot")
	}

	var msg []cbor.RawMessage
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if len(msg) != 2 {
		return Snapshot{}, fmt.Errorf("expected 2-element array, got %d elements", len(msg))
	}

	var version uint64
	if err := cbor.Unmarshal(msg[0], &version); err != nil {
		return Snapshot{}, fmt.Errorf("expected uint for snapshot version: %w", err)
	}
	if version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", version)
	}

	var s Snapshot
	if err := cbor.Unmarshal(msg[1], &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot body: %w", err)
	}
	return s, nil
}
