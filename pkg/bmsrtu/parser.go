// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bmsrtu

// registerReader reads big-endian registers out of a payload that starts at
// register start.
type registerReader struct {
	payload []byte
	start   uint16
}

func (r registerReader) word(reg uint16) (uint16, bool) {
	if reg < r.start {
		return 0, false
	}
	off := int(reg-r.start) * 2
	if off+1 >= len(r.payload) {
		return 0, false
	}
	return uint16(r.payload[off])<<8 | uint16(r.payload[off+1]), true
}

// DecodeRealtime decodes the real-time fields present in payload and returns
// them overlaid on a copy of prev. The payload begins at register start, so a
// full block read uses start 0 and a single parameter read uses that
// parameter's register. Fields beyond the payload keep their previous value.
// Valid and LastUpdate are left for the caller to set.
func DecodeRealtime(prev Record, payload []byte, start uint16) Record {
	rec := prev.Clone()
	rd := registerReader{payload: payload, start: start}

	if v, ok := rd.word(RegSOC); ok {
		rec.SOC = float64(v) * SOCFactor
	}
	if v, ok := rd.word(RegTotalVoltage); ok {
		rec.TotalVoltage = float64(v) / VoltageDivisor
	}
	if v, ok := rd.word(RegCurrent); ok {
		rec.Current = float64(int(v)-CurrentOffset) / CurrentDivisor
	}
	if v, ok := rd.word(RegChargeMosfet); ok {
		rec.ChargeMosfet = v&0x0001 != 0
	}
	if v, ok := rd.word(RegDischargeMosfet); ok {
		rec.DischargeMosfet = v&0x0001 != 0
	}
	if v, ok := rd.word(RegCellCount); ok {
		rec.CellCount = int(v & 0xFF)
	}
	if v, ok := rd.word(RegTempCount); ok {
		rec.TempCount = int(v & 0xFF)
	}
	if v, ok := rd.word(RegMosTemperature); ok {
		rec.MosTemperature = float64(int(v) - TemperatureOffset)
	}

	for i := 0; i < MaxCells; i++ {
		if v, ok := rd.word(RegCellVoltages + uint16(i)); ok {
			rec.CellVoltages[i] = v
		}
	}
	rec.ValidCellCount = 0
	for _, mv := range rec.CellVoltages {
		if mv != 0 {
			rec.ValidCellCount++
		}
	}

	for i := 0; i < MaxTemps; i++ {
		v, ok := rd.word(RegTemperatures + uint16(i))
		if !ok {
			continue
		}
		if v == 0 {
			rec.Temperatures[i] = 0
			rec.TempPresent[i] = false
			continue
		}
		rec.Temperatures[i] = float64(int(v) - TemperatureOffset)
		rec.TempPresent[i] = true
	}
	rec.ValidTempCount = 0
	for _, present := range rec.TempPresent {
		if present {
			rec.ValidTempCount++
		}
	}

	for i, reg := range []uint16{RegFaultStatus1, RegFaultStatus2, RegFaultStatus3} {
		if v, ok := rd.word(reg); ok {
			rec.FaultStatus[i] = v
		}
	}

	return rec
}

// DecodeSettings stores the raw registers of a settings block on a copy of prev
func DecodeSettings(prev Record, c Category, payload []byte) Record {
	rec := prev.Clone()
	regs := make([]uint16, len(payload)/2)
	for i := range regs {
		regs[i] = uint16(payload[i*2])<<8 | uint16(payload[i*2+1])
	}
	if rec.Settings == nil {
		rec.Settings = make(map[Category][]uint16)
	}
	rec.Settings[c] = regs
	return rec
}

// Decode dispatches a validated payload of category c to its decoder
func Decode(prev Record, c Category, payload []byte) Record {
	if c == Realtime {
		start, _ := c.Range()
		return DecodeRealtime(prev, payload, start)
	}
	return DecodeSettings(prev, c, payload)
}
