// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bmsrtu

import (
	"fmt"
	"strings"
)

// Category selects one of the fixed register blocks a read can target
type Category int

const (
	Realtime Category = iota
	Setting1
	Setting2
	Setting3
)

type registerRange struct {
	start uint16
	count uint16
}

var categoryRanges = map[Category]registerRange{
	Realtime: {start: 0x0000, count: 0x0080},
	Setting1: {start: 0x0080, count: 0x0040},
	Setting2: {start: 0x00C0, count: 0x0040},
	Setting3: {start: 0x0100, count: 0x0040},
}

var categoryNames = map[Category]string{
	Realtime: "realtime",
	Setting1: "setting1",
	Setting2: "setting2",
	Setting3: "setting3",
}

// Categories returns every category in register order
func Categories() []Category {
	return []Category{Realtime, Setting1, Setting2, Setting3}
}

// Range returns the first register and register count of the block
func (c Category) Range() (start, count uint16) {
	r := categoryRanges[c]
	return r.start, r.count
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	_, ok := categoryRanges[c]
	return ok
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CATEGORY_%d", int(c))
}

// ParseCategory resolves a category by name (case-insensitive)
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories() {
		if categoryNames[c] == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q (want realtime, setting1, setting2 or setting3)", s)
}

// Param selects a single field group inside the real-time block
type Param int

const (
	ParamSOC Param = iota
	ParamVoltage
	ParamCurrent
	ParamMosTemperature
	ParamChargeMosfet
	ParamDischargeMosfet
	ParamCellVoltages
	ParamTemperatures
	ParamFaultStatus
)

var paramRanges = map[Param]registerRange{
	ParamSOC:             {start: RegSOC, count: 1},
	ParamVoltage:         {start: RegTotalVoltage, count: 1},
	ParamCurrent:         {start: RegCurrent, count: 1},
	ParamMosTemperature:  {start: RegMosTemperature, count: 1},
	ParamChargeMosfet:    {start: RegChargeMosfet, count: 1},
	ParamDischargeMosfet: {start: RegDischargeMosfet, count: 1},
	ParamCellVoltages:    {start: RegCellVoltages, count: MaxCells},
	ParamTemperatures:    {start: RegTemperatures, count: MaxTemps},
	ParamFaultStatus:     {start: RegFaultStatus1, count: 3},
}

var paramNames = map[Param]string{
	ParamSOC:             "soc",
	ParamVoltage:         "voltage",
	ParamCurrent:         "current",
	ParamMosTemperature:  "mos-temp",
	ParamChargeMosfet:    "charge-mosfet",
	ParamDischargeMosfet: "discharge-mosfet",
	ParamCellVoltages:    "cells",
	ParamTemperatures:    "temps",
	ParamFaultStatus:     "faults",
}

// Params returns every parameter
func Params() []Param {
	return []Param{
		ParamSOC,
		ParamVoltage,
		ParamCurrent,
		ParamMosTemperature,
		ParamChargeMosfet,
		ParamDischargeMosfet,
		ParamCellVoltages,
		ParamTemperatures,
		ParamFaultStatus,
	}
}

// Range returns the first register and register count of the parameter
func (p Param) Range() (start, count uint16) {
	r := paramRanges[p]
	return r.start, r.count
}

// Valid reports whether p is a known parameter
func (p Param) Valid() bool {
	_, ok := paramRanges[p]
	return ok
}

func (p Param) String() string {
	if name, ok := paramNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PARAM_%d", int(p))
}

// ParseParam resolves a parameter by name (case-insensitive)
func ParseParam(s string) (Param, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range Params() {
		if paramNames[p] == s {
			return p, nil
		}
	}
	names := make([]string, 0, len(paramNames))
	for _, p := range Params() {
		names = append(names, paramNames[p])
	}
	return 0, fmt.Errorf("unknown parameter %q (want one of %s)", s, strings.Join(names, ", "))
}
