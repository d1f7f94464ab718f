// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bmsrtu

import (
	"fmt"
	"strings"
	"time"
)

// Record is the decoded state of one battery
type Record struct {
	ID         int       `json:"id" yaml:"id" cbor:"0,keyasint"`
	Valid      bool      `json:"valid" yaml:"valid" cbor:"1,keyasint"`
	LastUpdate time.Time `json:"last_update" yaml:"last_update" cbor:"2,keyasint"`

	SOC            float64 `json:"soc" yaml:"soc" cbor:"3,keyasint"`
	TotalVoltage   float64 `json:"total_voltage" yaml:"total_voltage" cbor:"4,keyasint"`
	Current        float64 `json:"current" yaml:"current" cbor:"5,keyasint"` // negative while charging
	MosTemperature float64 `json:"mos_temperature" yaml:"mos_temperature" cbor:"6,keyasint"`

	ChargeMosfet    bool `json:"charge_mosfet" yaml:"charge_mosfet" cbor:"7,keyasint"`
	DischargeMosfet bool `json:"discharge_mosfet" yaml:"discharge_mosfet" cbor:"8,keyasint"`

	// Counts as reported by the BMS itself
	CellCount int `json:"cell_count" yaml:"cell_count" cbor:"9,keyasint"`
	TempCount int `json:"temp_count" yaml:"temp_count" cbor:"10,keyasint"`

	// A cell reading of 0 mV means the cell is absent
	CellVoltages   [MaxCells]uint16 `json:"cell_voltages" yaml:"cell_voltages" cbor:"11,keyasint"`
	ValidCellCount int              `json:"valid_cell_count" yaml:"valid_cell_count" cbor:"12,keyasint"`

	Temperatures   [MaxTemps]float64 `json:"temperatures" yaml:"temperatures" cbor:"13,keyasint"`
	TempPresent    [MaxTemps]bool    `json:"temp_present" yaml:"temp_present" cbor:"14,keyasint"`
	ValidTempCount int               `json:"valid_temp_count" yaml:"valid_temp_count" cbor:"15,keyasint"`

	FaultStatus [3]uint16 `json:"fault_status" yaml:"fault_status" cbor:"16,keyasint"`

	// Raw registers of the settings blocks, keyed by category
	Settings map[Category][]uint16 `json:"settings,omitempty" yaml:"settings,omitempty" cbor:"17,keyasint,omitempty"`
}

// NewRecord returns the initial, not yet valid record of a slave
func NewRecord(id int) Record {
	return Record{ID: id}
}

// Clone returns a deep copy of r
func (r Record) Clone() Record {
	if r.Settings != nil {
		settings := make(map[Category][]uint16, len(r.Settings))
		for c, regs := range r.Settings {
			settings[c] = append([]uint16(nil), regs...)
		}
		r.Settings = settings
	}
	return r
}

// Cells returns the present cell voltages in mV
func (r Record) Cells() []uint16 {
	cells := make([]uint16, 0, r.ValidCellCount)
	for _, mv := range r.CellVoltages {
		if mv != 0 {
			cells = append(cells, mv)
		}
	}
	return cells
}

// CellSpread returns the lowest and highest present cell voltage in mV
func (r Record) CellSpread() (lowest, highest uint16, ok bool) {
	for _, mv := range r.CellVoltages {
		if mv == 0 {
			continue
		}
		if !ok || mv < lowest {
			lowest = mv
		}
		if !ok || mv > highest {
			highest = mv
		}
		ok = true
	}
	return lowest, highest, ok
}

// HasFault reports whether any fault bit is set
func (r Record) HasFault() bool {
	return r.FaultStatus[0] != 0 || r.FaultStatus[1] != 0 || r.FaultStatus[2] != 0
}

// Age returns how long ago the record was last refreshed
func (r Record) Age(now time.Time) time.Duration {
	if r.LastUpdate.IsZero() {
		return 0
	}
	return now.Sub(r.LastUpdate)
}

// MarshalText implements encoding.TextMarshaler
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
