// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bmsrtu

import (
	"bytes"
	"errors"
	"testing"
)

func TestValidateResponse_Accepts(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	raw := buildResponse(1, FuncReadRegisters, payload)

	resp, err := ValidateResponse(raw, 1, FuncReadRegisters, ValidateOptions{})
	if err != nil {
		t.Fatalf("ValidateResponse: %v", err)
	}
	if resp.Address != 0x51 {
		t.Errorf("Address = 0x%02X, want 0x51", resp.Address)
	}
	if resp.Length != len(payload) {
		t.Errorf("Length = %d, want %d", resp.Length, len(payload))
	}
	if !bytes.Equal(resp.Payload, payload) {
		t.Errorf("Payload = % X, want % X", resp.Payload, payload)
	}
}

func TestValidateResponse_RejectsEveryWrongAddress(t *testing.T) {
	for id := 1; id <= MaxSlaves; id++ {
		for first := 0; first <= 0xFF; first++ {
			if byte(first) == ResponseAddress(id) {
				continue
			}
			raw := buildResponse(id, FuncReadRegisters, []byte{0x00, 0x01})
			raw[0] = byte(first)
			_, err := ValidateResponse(raw, id, FuncReadRegisters, ValidateOptions{})
			if !errors.Is(err, ErrAddressMismatch) {
				t.Fatalf("slave %d first byte 0x%02X: err = %v, want ErrAddressMismatch", id, first, err)
			}
		}
	}
}

func TestValidateResponse_Errors(t *testing.T) {
	good := buildResponse(2, FuncReadRegisters, []byte{0x00, 0x10})
	badCRC := append([]byte(nil), good...)
	badCRC[len(badCRC)-1] ^= 0xFF

	tests := []struct {
		name string
		raw  []byte
		opts ValidateOptions
		want error
	}{
		{"empty is a timeout", nil, ValidateOptions{}, ErrTimeout},
		{"address only", []byte{0x52}, ValidateOptions{}, ErrShortFrame},
		{"function mismatch", []byte{0x52, 0x06, 0x02, 0x00, 0x10}, ValidateOptions{}, ErrFunctionMismatch},
		{"no length byte", []byte{0x52, 0x03}, ValidateOptions{}, ErrShortFrame},
		{"bad CRC with verification", badCRC, ValidateOptions{VerifyCRC: true}, ErrCRCMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateResponse(tt.raw, 2, FuncReadRegisters, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

// A corrupted CRC is accepted unless verification is enabled
func TestValidateResponse_CRCIgnoredByDefault(t *testing.T) {
	raw := buildResponse(2, FuncReadRegisters, []byte{0x00, 0x10})
	raw[len(raw)-2] ^= 0xFF

	if _, err := ValidateResponse(raw, 2, FuncReadRegisters, ValidateOptions{}); err != nil {
		t.Errorf("default options rejected a CRC-corrupted frame: %v", err)
	}
	if _, err := ValidateResponse(raw, 2, FuncReadRegisters, ValidateOptions{VerifyCRC: true}); !errors.Is(err, ErrCRCMismatch) {
		t.Errorf("VerifyCRC err = %v, want ErrCRCMismatch", err)
	}
}

func TestValidateResponse_PayloadBounds(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want int
	}{
		{"declared fits", []byte{0x51, 0x03, 0x02, 0xAA, 0xBB, 0x00, 0x00}, 2},
		{"declared longer than received", []byte{0x51, 0x03, 0x10, 0xAA, 0xBB, 0xCC}, 3},
		{"zero length with body", append([]byte{0x51, 0x03, 0x00}, make([]byte, 252)...), 250},
		{"zero length, CRC only", []byte{0x51, 0x03, 0x00, 0x12, 0x34}, 0},
		{"header only", []byte{0x51, 0x03, 0x04}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ValidateResponse(tt.raw, 1, FuncReadRegisters, ValidateOptions{})
			if err != nil {
				t.Fatalf("ValidateResponse: %v", err)
			}
			if len(resp.Payload) != tt.want {
				t.Errorf("payload length = %d, want %d", len(resp.Payload), tt.want)
			}
		})
	}
}

func TestValidateResponse_InvalidSlave(t *testing.T) {
	_, err := ValidateResponse([]byte{0x50, 0x03, 0x00}, 0, FuncReadRegisters, ValidateOptions{})
	if !errors.Is(err, ErrInvalidSlaveID) {
		t.Errorf("err = %v, want ErrInvalidSlaveID", err)
	}
}

func TestValidateAck(t *testing.T) {
	echo := []byte{0x53, 0x06, 0x00, 0x52, 0x00, 0x01}
	echo = AppendCRC(echo)

	tests := []struct {
		name string
		raw  []byte
		opts ValidateOptions
		want error
	}{
		{"echo", echo, ValidateOptions{}, nil},
		{"address only", []byte{0x53}, ValidateOptions{}, nil},
		{"function is not checked", []byte{0x53, 0x99}, ValidateOptions{}, nil},
		{"wrong address", []byte{0x51, 0x06}, ValidateOptions{}, ErrAddressMismatch},
		{"silence", nil, ValidateOptions{}, ErrTimeout},
		{"CRC verified", echo, ValidateOptions{VerifyCRC: true}, nil},
		{"CRC missing", []byte{0x53, 0x06}, ValidateOptions{VerifyCRC: true}, ErrCRCMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAck(tt.raw, 3, tt.opts)
			if tt.want == nil {
				if err != nil {
					t.Errorf("err = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
