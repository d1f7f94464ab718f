// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bmsrtu

import (
	"bytes"
	"errors"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

// buildPayload creates a big-endian register payload of count registers with
// the given register values set.
func buildPayload(count int, regs map[uint16]uint16) []byte {
	payload := make([]byte, count*2)
	for reg, v := range regs {
		off := int(reg) * 2
		payload[off] = byte(v >> 8)
		payload[off+1] = byte(v)
	}
	return payload
}

// buildResponse wraps a payload into a slave reply with a trailing CRC
func buildResponse(slave int, fn byte, payload []byte) []byte {
	frame := []byte{ResponseAddress(slave), fn, byte(len(payload))}
	frame = append(frame, payload...)
	return AppendCRC(frame)
}

// ============================================================
// CRC Tests
// ============================================================

func TestCalculateCRC_Empty(t *testing.T) {
	crc := CalculateCRC([]byte{})
	if crc != crcInitial {
		t.Errorf("CRC of empty data should be initial value, got 0x%04X", crc)
	}
}

func TestCalculateCRC_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{
			name:     "ASCII '123456789'",
			data:     []byte("123456789"),
			expected: 0x4B37, // Standard CRC-16/MODBUS check value
		},
		{
			name:     "realtime read header",
			data:     []byte{0x81, 0x03, 0x00, 0x00, 0x00, 0x80},
			expected: 0xAA5B,
		},
		{
			name:     "charge MOSFET on",
			data:     []byte{0x81, 0x06, 0x00, 0x52, 0x00, 0x01},
			expected: 0x1BF6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crc := CalculateCRC(tt.data)
			if crc != tt.expected {
				t.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", tt.expected, crc)
			}
		})
	}
}

func TestCalculateCRC_Deterministic(t *testing.T) {
	data := []byte{0x51, 0x03, 0x04, 0x01, 0x02, 0x03, 0x04}
	crc1 := CalculateCRC(data)
	crc2 := CalculateCRC(data)
	if crc1 != crc2 {
		t.Errorf("CRC should be deterministic: 0x%04X != 0x%04X", crc1, crc2)
	}
}

func TestCheckCRC(t *testing.T) {
	frame := AppendCRC([]byte{0x81, 0x03, 0x00, 0x00, 0x00, 0x80})
	if !CheckCRC(frame) {
		t.Error("CheckCRC rejected a frame built by AppendCRC")
	}

	frame[3] ^= 0xFF
	if CheckCRC(frame) {
		t.Error("CheckCRC accepted a corrupted frame")
	}

	if CheckCRC([]byte{0x01, 0x02}) {
		t.Error("CheckCRC accepted a frame with no body")
	}
}

// ============================================================
// Frame Builder Tests
// ============================================================

func TestBuildReadRequest_RealtimeVector(t *testing.T) {
	frame, err := BuildReadRequest(1, 0x0000, 0x0080)
	if err != nil {
		t.Fatalf("BuildReadRequest: %v", err)
	}
	expected := []byte{0x81, 0x03, 0x00, 0x00, 0x00, 0x80, 0x5B, 0xAA}
	if !bytes.Equal(frame, expected) {
		t.Errorf("frame = % X, want % X", frame, expected)
	}
}

func TestBuildReadRequest_SameForEverySlave(t *testing.T) {
	first, _ := BuildReadRequest(1, 0x0000, 0x0080)
	for id := 2; id <= MaxSlaves; id++ {
		frame, err := BuildReadRequest(id, 0x0000, 0x0080)
		if err != nil {
			t.Fatalf("slave %d: %v", id, err)
		}
		if !bytes.Equal(frame, first) {
			t.Errorf("slave %d: frame % X differs from slave 1 % X", id, frame, first)
		}
	}
}

func TestBuildWriteSingleRequest(t *testing.T) {
	frame, err := BuildWriteSingleRequest(3, RegChargeControl, 1)
	if err != nil {
		t.Fatalf("BuildWriteSingleRequest: %v", err)
	}
	expected := []byte{0x81, 0x06, 0x00, 0x52, 0x00, 0x01, 0xF6, 0x1B}
	if !bytes.Equal(frame, expected) {
		t.Errorf("frame = % X, want % X", frame, expected)
	}
}

func TestBuildDisplayIdentifierRequest(t *testing.T) {
	for id := 1; id <= MaxSlaves; id++ {
		frame, err := BuildDisplayIdentifierRequest(id, DisplayIDShow)
		if err != nil {
			t.Fatalf("slave %d: %v", id, err)
		}
		if len(frame) != DisplayFrameSize {
			t.Fatalf("slave %d: length = %d, want %d", id, len(frame), DisplayFrameSize)
		}
		if frame[0] != byte(0x80+id) {
			t.Errorf("slave %d: address = 0x%02X, want 0x%02X", id, frame[0], 0x80+id)
		}
		header := []byte{0x10, 0x01, 0xF1, 0x00, 0x04, DisplayIDShow, 0, 0, 0, 0, 0, 0, 0}
		if !bytes.Equal(frame[1:14], header) {
			t.Errorf("slave %d: body = % X, want % X", id, frame[1:14], header)
		}
		crc := CalculateCRC(frame[:14])
		if frame[14] != byte(crc) || frame[15] != byte(crc>>8) {
			t.Errorf("slave %d: CRC bytes % X, want %02X %02X", id, frame[14:], byte(crc), byte(crc>>8))
		}
	}
}

func TestBuilders_InvalidSlave(t *testing.T) {
	for _, id := range []int{-1, 0, MaxSlaves + 1, 255} {
		if frame, err := BuildReadRequest(id, 0, 1); !errors.Is(err, ErrInvalidSlaveID) || frame != nil {
			t.Errorf("BuildReadRequest(%d) = % X, %v; want nil, ErrInvalidSlaveID", id, frame, err)
		}
		if frame, err := BuildWriteSingleRequest(id, 0, 1); !errors.Is(err, ErrInvalidSlaveID) || frame != nil {
			t.Errorf("BuildWriteSingleRequest(%d) = % X, %v; want nil, ErrInvalidSlaveID", id, frame, err)
		}
		if frame, err := BuildDisplayIdentifierRequest(id, DisplayIDShow); !errors.Is(err, ErrInvalidSlaveID) || frame != nil {
			t.Errorf("BuildDisplayIdentifierRequest(%d) = % X, %v; want nil, ErrInvalidSlaveID", id, frame, err)
		}
	}
}

func TestResponseSize(t *testing.T) {
	tests := []struct {
		count uint16
		want  int
	}{
		{1, 7},
		{0x40, 133},
		{0x80, 261},
		{0x100, 261},
	}

	for _, tt := range tests {
		if got := ResponseSize(tt.count); got != tt.want {
			t.Errorf("ResponseSize(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
	if _, count := Realtime.Range(); ResponseSize(count) != ReceiveBufferSize {
		t.Errorf("a full realtime reply does not fill the receive buffer")
	}
}

// ============================================================
// Category / Param Tests
// ============================================================

func TestCategoryRanges(t *testing.T) {
	tests := []struct {
		category Category
		start    uint16
		count    uint16
	}{
		{Realtime, 0x0000, 0x0080},
		{Setting1, 0x0080, 0x0040},
		{Setting2, 0x00C0, 0x0040},
		{Setting3, 0x0100, 0x0040},
	}

	for _, tt := range tests {
		t.Run(tt.category.String(), func(t *testing.T) {
			start, count := tt.category.Range()
			if start != tt.start || count != tt.count {
				t.Errorf("Range() = 0x%04X/%d, want 0x%04X/%d", start, count, tt.start, tt.count)
			}
		})
	}
}

func TestCategories_Exhaustive(t *testing.T) {
	for _, c := range Categories() {
		if !c.Valid() {
			t.Errorf("%v listed but not valid", c)
		}
		parsed, err := ParseCategory(c.String())
		if err != nil || parsed != c {
			t.Errorf("ParseCategory(%q) = %v, %v", c.String(), parsed, err)
		}
	}
	if Category(99).Valid() {
		t.Error("Category(99) should not be valid")
	}
	if _, err := ParseCategory("bogus"); err == nil {
		t.Error("ParseCategory(bogus) should fail")
	}
}

func TestParams_InsideRealtimeBlock(t *testing.T) {
	_, blockCount := Realtime.Range()
	for _, p := range Params() {
		start, count := p.Range()
		if count == 0 {
			t.Errorf("%v: zero register count", p)
		}
		if int(start)+int(count) > int(blockCount) {
			t.Errorf("%v: 0x%04X+%d runs past the real-time block", p, start, count)
		}
		parsed, err := ParseParam(p.String())
		if err != nil || parsed != p {
			t.Errorf("ParseParam(%q) = %v, %v", p.String(), parsed, err)
		}
	}
}

func TestCategoryText(t *testing.T) {
	text, err := Setting2.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var c Category
	if err := c.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if c != Setting2 {
		t.Errorf("UnmarshalText(%q) = %v, want %v", text, c, Setting2)
	}
}

func TestReasonOf(t *testing.T) {
	tests := []struct {
		err  error
		want Reason
	}{
		{nil, ReasonOK},
		{ErrInvalidSlaveID, ReasonInvalidSlaveID},
		{ErrTimeout, ReasonTimeout},
		{ErrAddressMismatch, ReasonAddressMismatch},
		{ErrFunctionMismatch, ReasonFunctionMismatch},
		{ErrShortFrame, ReasonShortFrame},
		{ErrCRCMismatch, ReasonCRCMismatch},
		{ErrVerifyMismatch, ReasonVerifyMismatch},
		{errors.New("port closed"), ReasonTransport},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := ReasonOf(tt.err); got != tt.want {
				t.Errorf("ReasonOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
