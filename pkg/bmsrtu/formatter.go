// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bmsrtu

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FormatHex renders bytes as space separated hex, grouped by eight
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
			if i%8 == 0 {
				sb.WriteByte(' ')
			}
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// FormatFrame formats a labelled frame dump
func FormatFrame(label string, frame []byte) string {
	return fmt.Sprintf("%s [%d bytes]: %s", label, len(frame), FormatHex(frame))
}

// FormatFunction returns the human-readable name of a function code
func FormatFunction(fn byte) string {
	switch fn {
	case FuncReadRegisters:
		return "READ_REGISTERS"
	case FuncWriteSingle:
		return "WRITE_SINGLE"
	case FuncWriteMultiple:
		return "WRITE_MULTIPLE"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", fn)
	}
}

// DescribeFrame classifies a frame seen on the bus by its address byte
func DescribeFrame(frame []byte) string {
	if len(frame) < 2 {
		return fmt.Sprintf("FRAGMENT len=%d", len(frame))
	}
	addr, fn := frame[0], frame[1]
	crc := "crc=ok"
	if !CheckCRC(frame) {
		crc = "crc=BAD"
	}

	switch {
	case addr == MasterAddress && fn != FuncWriteMultiple && len(frame) >= 6:
		reg := uint16(frame[2])<<8 | uint16(frame[3])
		val := uint16(frame[4])<<8 | uint16(frame[5])
		if fn == FuncReadRegisters {
			return fmt.Sprintf("REQUEST %s start=0x%04X count=%d %s", FormatFunction(fn), reg, val, crc)
		}
		return fmt.Sprintf("REQUEST %s reg=0x%04X value=%d %s", FormatFunction(fn), reg, val, crc)

	case addr > DisplayAddressBase && addr <= DisplayAddressBase+MaxSlaves && len(frame) >= 7:
		return fmt.Sprintf("DISPLAY slave=%d %s ascii=%d %s", int(addr-DisplayAddressBase), FormatFunction(fn), frame[6], crc)

	case addr > ResponseAddressBase && addr <= ResponseAddressBase+MaxSlaves:
		length := -1
		if len(frame) >= ResponseHeader {
			length = int(frame[2])
		}
		return fmt.Sprintf("RESPONSE slave=%d %s len=%d %s", int(addr-ResponseAddressBase), FormatFunction(fn), length, crc)
	}

	return fmt.Sprintf("UNKNOWN addr=0x%02X %s %s", addr, FormatFunction(fn), crc)
}

// FormatCurrent renders a current with its direction
func FormatCurrent(amps float64) string {
	switch {
	case amps < 0:
		return fmt.Sprintf("%.1fA (charge)", math.Abs(amps))
	case amps > 0:
		return fmt.Sprintf("%.1fA (discharge)", amps)
	default:
		return "0.0A"
	}
}

// FormatOnOff renders a MOSFET state
func FormatOnOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// FormatRecord formats a record into a human-readable block
func FormatRecord(r Record, now time.Time) string {
	if !r.Valid {
		return fmt.Sprintf("Battery %d: no valid data\n", r.ID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Battery %d ===\n", r.ID)
	fmt.Fprintf(&sb, "  SOC:             %.3f\n", r.SOC)
	fmt.Fprintf(&sb, "  Total voltage:   %.1fV\n", r.TotalVoltage)
	fmt.Fprintf(&sb, "  Current:         %s\n", FormatCurrent(r.Current))
	fmt.Fprintf(&sb, "  Charge MOSFET:   %s\n", FormatOnOff(r.ChargeMosfet))
	fmt.Fprintf(&sb, "  Discharge MOSFET: %s\n", FormatOnOff(r.DischargeMosfet))
	fmt.Fprintf(&sb, "  MOS temperature: %.0f°C\n", r.MosTemperature)
	fmt.Fprintf(&sb, "  Cells:           %d valid (BMS reports %d)\n", r.ValidCellCount, r.CellCount)
	fmt.Fprintf(&sb, "  Temp sensors:    %d valid (BMS reports %d)\n", r.ValidTempCount, r.TempCount)

	if cells := r.Cells(); len(cells) > 0 {
		shown := cells
		if len(shown) > 8 {
			shown = shown[:8]
		}
		parts := make([]string, len(shown))
		for i, mv := range shown {
			parts[i] = fmt.Sprintf("%d", mv)
		}
		line := strings.Join(parts, " ")
		if len(cells) > 8 {
			line += " ..."
		}
		fmt.Fprintf(&sb, "  Cell mV:         %s\n", line)
		if lo, hi, ok := r.CellSpread(); ok {
			fmt.Fprintf(&sb, "  Cell spread:     %d..%d mV (%d mV)\n", lo, hi, hi-lo)
		}
	}

	if r.HasFault() {
		fmt.Fprintf(&sb, "  FAULTS:          0x%04X 0x%04X 0x%04X\n", r.FaultStatus[0], r.FaultStatus[1], r.FaultStatus[2])
	} else {
		sb.WriteString("  Faults:          none\n")
	}

	for _, c := range Categories() {
		regs, ok := r.Settings[c]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "  %s:        %d registers\n", c, len(regs))
	}

	fmt.Fprintf(&sb, "  Last update:     %s ago\n", r.Age(now).Truncate(time.Millisecond))
	return sb.String()
}
