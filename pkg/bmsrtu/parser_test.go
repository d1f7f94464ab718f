// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bmsrtu

import (
	"math"
	"reflect"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// sampleRegisters is a plausible 16-cell pack
func sampleRegisters() map[uint16]uint16 {
	regs := map[uint16]uint16{
		RegTemperatures:     65, // 25 °C
		RegTemperatures + 1: 60, // 20 °C
		RegTotalVoltage:     532,
		RegCurrent:          29000,
		RegSOC:              800,
		RegCellCount:        16,
		RegTempCount:        2,
		RegChargeMosfet:     1,
		RegDischargeMosfet:  0,
		RegMosTemperature:   75,
		RegFaultStatus1:     0x0001,
		RegFaultStatus3:     0x8000,
	}
	for i := uint16(0); i < 16; i++ {
		regs[RegCellVoltages+i] = 3300 + i
	}
	return regs
}

func TestDecodeRealtime_FieldMap(t *testing.T) {
	_, count := Realtime.Range()
	payload := buildPayload(int(count), sampleRegisters())

	rec := DecodeRealtime(NewRecord(1), payload, 0)

	if !approx(rec.SOC, 0.8) {
		t.Errorf("SOC = %v, want 0.8", rec.SOC)
	}
	if !approx(rec.TotalVoltage, 53.2) {
		t.Errorf("TotalVoltage = %v, want 53.2", rec.TotalVoltage)
	}
	if !approx(rec.Current, -100) {
		t.Errorf("Current = %v, want -100", rec.Current)
	}
	if !rec.ChargeMosfet {
		t.Error("ChargeMosfet = false, want true")
	}
	if rec.DischargeMosfet {
		t.Error("DischargeMosfet = true, want false")
	}
	if rec.CellCount != 16 || rec.TempCount != 2 {
		t.Errorf("counts = %d/%d, want 16/2", rec.CellCount, rec.TempCount)
	}
	if !approx(rec.MosTemperature, 35) {
		t.Errorf("MosTemperature = %v, want 35", rec.MosTemperature)
	}
	if rec.ValidCellCount != 16 {
		t.Errorf("ValidCellCount = %d, want 16", rec.ValidCellCount)
	}
	for i := 0; i < 16; i++ {
		if rec.CellVoltages[i] != uint16(3300+i) {
			t.Errorf("CellVoltages[%d] = %d, want %d", i, rec.CellVoltages[i], 3300+i)
		}
	}
	if rec.ValidTempCount != 2 {
		t.Errorf("ValidTempCount = %d, want 2", rec.ValidTempCount)
	}
	if !approx(rec.Temperatures[0], 25) || !approx(rec.Temperatures[1], 20) {
		t.Errorf("Temperatures = %v, want [25 20 ...]", rec.Temperatures[:2])
	}
	if rec.FaultStatus != [3]uint16{0x0001, 0x0000, 0x8000} {
		t.Errorf("FaultStatus = %04X, want [0001 0000 8000]", rec.FaultStatus)
	}
	if rec.Valid {
		t.Error("decoder must not set Valid")
	}
}

func TestDecodeRealtime_CurrentScaling(t *testing.T) {
	tests := []struct {
		name string
		raw  uint16
		want float64
	}{
		{"idle", 30000, 0},
		{"charging", 29000, -100},
		{"discharging", 31000, 100},
		{"small discharge", 30015, 1.5},
		{"above int16 range", 40000, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := buildPayload(0x80, map[uint16]uint16{RegCurrent: tt.raw})
			rec := DecodeRealtime(NewRecord(1), payload, 0)
			if !approx(rec.Current, tt.want) {
				t.Errorf("Current(%d) = %v, want %v", tt.raw, rec.Current, tt.want)
			}
		})
	}
}

// The SOC and voltage factors are kept as deployed masters apply them:
// raw 800 gives 0.8 (not 80 %), and voltage is raw/10 even though the vendor
// notes describe 0.01 V units. Changing either factor must fail here.
func TestDecodeRealtime_CodedScaleFactors(t *testing.T) {
	payload := buildPayload(0x80, map[uint16]uint16{RegSOC: 800, RegTotalVoltage: 5320})
	rec := DecodeRealtime(NewRecord(1), payload, 0)

	if !approx(rec.SOC, 0.8) {
		t.Errorf("SOC(800) = %v, want 0.8 (raw x 0.001)", rec.SOC)
	}
	if !approx(rec.TotalVoltage, 532) {
		t.Errorf("TotalVoltage(5320) = %v, want 532 (raw / 10)", rec.TotalVoltage)
	}
}

func TestDecodeRealtime_Idempotent(t *testing.T) {
	payload := buildPayload(0x80, sampleRegisters())
	prev := NewRecord(4)

	first := DecodeRealtime(prev, payload, 0)
	second := DecodeRealtime(prev, payload, 0)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same input decoded differently:\n%+v\n%+v", first, second)
	}

	again := DecodeRealtime(first, payload, 0)
	if !reflect.DeepEqual(first, again) {
		t.Errorf("decoding onto its own result drifted:\n%+v\n%+v", first, again)
	}
}

func TestDecodeRealtime_ZeroCellIsAbsent(t *testing.T) {
	for slot := 0; slot < MaxCells; slot++ {
		regs := map[uint16]uint16{}
		for i := 0; i < MaxCells; i++ {
			regs[RegCellVoltages+uint16(i)] = 3250
		}
		regs[RegCellVoltages+uint16(slot)] = 0

		rec := DecodeRealtime(NewRecord(1), buildPayload(0x80, regs), 0)
		if rec.ValidCellCount != MaxCells-1 {
			t.Errorf("slot %d: ValidCellCount = %d, want %d", slot, rec.ValidCellCount, MaxCells-1)
		}
		if rec.CellVoltages[slot] != 0 {
			t.Errorf("slot %d: CellVoltages = %d, want 0", slot, rec.CellVoltages[slot])
		}
		if len(rec.Cells()) != rec.ValidCellCount {
			t.Errorf("slot %d: Cells() has %d entries, want %d", slot, len(rec.Cells()), rec.ValidCellCount)
		}
	}
}

func TestDecodeRealtime_ZeroTempIsAbsent(t *testing.T) {
	prev := NewRecord(1)
	prev.Temperatures[2] = 30
	prev.TempPresent[2] = true
	prev.ValidTempCount = 1

	regs := map[uint16]uint16{RegTemperatures: 40} // 0 °C is a real reading
	rec := DecodeRealtime(prev, buildPayload(0x80, regs), 0)

	if !rec.TempPresent[0] || rec.Temperatures[0] != 0 {
		t.Errorf("sensor 0 = %v present=%v, want 0 present", rec.Temperatures[0], rec.TempPresent[0])
	}
	if rec.TempPresent[2] {
		t.Error("sensor 2 reported raw 0 but is still present")
	}
	if rec.ValidTempCount != 1 {
		t.Errorf("ValidTempCount = %d, want 1", rec.ValidTempCount)
	}
}

// Fields past the end of a short payload keep their previous value
func TestDecodeRealtime_PartialPayload(t *testing.T) {
	prev := NewRecord(1)
	prev.MosTemperature = 42
	prev.FaultStatus = [3]uint16{7, 8, 9}
	prev.ChargeMosfet = true

	full := buildPayload(0x80, sampleRegisters())
	rec := DecodeRealtime(prev, full[:118], 0)

	if !approx(rec.SOC, 0.8) {
		t.Errorf("SOC = %v, want 0.8", rec.SOC)
	}
	if rec.MosTemperature != 42 {
		t.Errorf("MosTemperature = %v, want previous 42", rec.MosTemperature)
	}
	if rec.FaultStatus != prev.FaultStatus {
		t.Errorf("FaultStatus = %v, want previous %v", rec.FaultStatus, prev.FaultStatus)
	}
	if !rec.ChargeMosfet {
		t.Error("ChargeMosfet lost its previous value")
	}
	if rec.CellCount != 0 {
		t.Errorf("CellCount = %d, want 0 (field at 120 not received)", rec.CellCount)
	}
}

// A single-parameter reply decodes at the register it was requested from
func TestDecodeRealtime_SingleParam(t *testing.T) {
	prev := NewRecord(1)
	prev.CellVoltages[0] = 3311
	prev.ValidCellCount = 1

	start, count := ParamCurrent.Range()
	payload := []byte{0x75, 0x94} // 30100
	if count != 1 {
		t.Fatalf("ParamCurrent count = %d, want 1", count)
	}

	rec := DecodeRealtime(prev, payload, start)
	if !approx(rec.Current, 10) {
		t.Errorf("Current = %v, want 10", rec.Current)
	}
	if rec.CellVoltages[0] != 3311 || rec.ValidCellCount != 1 {
		t.Errorf("cell 0 = %d (valid %d), want untouched 3311 (1)", rec.CellVoltages[0], rec.ValidCellCount)
	}
}

func TestDecodeRealtime_FaultParam(t *testing.T) {
	start, _ := ParamFaultStatus.Range()
	payload := []byte{0x00, 0x01, 0x00, 0x02, 0x00, 0x04}
	rec := DecodeRealtime(NewRecord(1), payload, start)
	if rec.FaultStatus != [3]uint16{1, 2, 4} {
		t.Errorf("FaultStatus = %v, want [1 2 4]", rec.FaultStatus)
	}
	if !rec.HasFault() {
		t.Error("HasFault() = false, want true")
	}
}

func TestDecodeSettings(t *testing.T) {
	prev := NewRecord(2)
	prev.SOC = 0.5

	rec := DecodeSettings(prev, Setting1, []byte{0x01, 0x02, 0x03, 0x04, 0xFF})
	regs := rec.Settings[Setting1]
	if !reflect.DeepEqual(regs, []uint16{0x0102, 0x0304}) {
		t.Errorf("Settings[setting1] = %04X, want [0102 0304]", regs)
	}
	if rec.SOC != 0.5 {
		t.Errorf("SOC = %v, settings decode must not touch telemetry", rec.SOC)
	}
	if prev.Settings != nil {
		t.Error("DecodeSettings modified the previous record")
	}

	next := DecodeSettings(rec, Setting2, []byte{0x00, 0x09})
	next.Settings[Setting1][0] = 0
	if rec.Settings[Setting1][0] != 0x0102 {
		t.Error("records share settings storage")
	}
}

func TestDecode_Dispatch(t *testing.T) {
	payload := buildPayload(0x80, map[uint16]uint16{RegSOC: 500})
	rec := Decode(NewRecord(1), Realtime, payload)
	if !approx(rec.SOC, 0.5) {
		t.Errorf("Realtime dispatch SOC = %v, want 0.5", rec.SOC)
	}

	rec = Decode(NewRecord(1), Setting3, []byte{0x12, 0x34})
	if got := rec.Settings[Setting3]; len(got) != 1 || got[0] != 0x1234 {
		t.Errorf("Setting3 dispatch = %v, want [0x1234]", got)
	}
}
