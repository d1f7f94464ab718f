// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bmsrtu

import "fmt"

// ValidSlave reports whether id addresses a slave on the bus
func ValidSlave(id int) bool {
	return id >= 1 && id <= MaxSlaves
}

func checkSlave(id int) error {
	if !ValidSlave(id) {
		return fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidSlaveID, id, MaxSlaves)
	}
	return nil
}

// BuildReadRequest builds a read-registers frame. The address byte is always
// the master address; the slave id only gates which reply is accepted.
func BuildReadRequest(slave int, start, count uint16) ([]byte, error) {
	if err := checkSlave(slave); err != nil {
		return nil, err
	}
	frame := make([]byte, 0, RequestFrameSize)
	frame = append(frame,
		MasterAddress,
		FuncReadRegisters,
		byte(start>>8), byte(start),
		byte(count>>8), byte(count),
	)
	return AppendCRC(frame), nil
}

// BuildCategoryRequest builds a read request covering a whole category
func BuildCategoryRequest(slave int, c Category) ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	start, count := c.Range()
	return BuildReadRequest(slave, start, count)
}

// BuildWriteSingleRequest builds a write-single-register frame
func BuildWriteSingleRequest(slave int, reg, value uint16) ([]byte, error) {
	if err := checkSlave(slave); err != nil {
		return nil, err
	}
	frame := make([]byte, 0, RequestFrameSize)
	frame = append(frame,
		MasterAddress,
		FuncWriteSingle,
		byte(reg>>8), byte(reg),
		byte(value>>8), byte(value),
	)
	return AppendCRC(frame), nil
}

// BuildDisplayIdentifierRequest builds the vendor write-multiple frame that
// makes a slave show its identifier. Unlike the other requests it is addressed
// to 0x80+id. The 8 payload bytes are the ASCII command followed by zeros.
func BuildDisplayIdentifierRequest(slave int, ascii byte) ([]byte, error) {
	if err := checkSlave(slave); err != nil {
		return nil, err
	}
	frame := make([]byte, DisplayFrameSize-CRCSize, DisplayFrameSize)
	frame[0] = byte(DisplayAddressBase + slave)
	frame[1] = FuncWriteMultiple
	frame[2] = byte(RegDisplay >> 8)
	frame[3] = byte(RegDisplay & 0xFF)
	frame[4] = byte(RegDisplayWords >> 8)
	frame[5] = byte(RegDisplayWords & 0xFF)
	frame[6] = ascii
	return AppendCRC(frame), nil
}

// ResponseSize is the length of a complete reply to a read of count
// registers, capped at ReceiveBufferSize
func ResponseSize(count uint16) int {
	if count > MaxReadRegisters {
		count = MaxReadRegisters
	}
	return ResponseHeader + 2*int(count) + CRCSize
}

// ResponseAddress returns the address byte a slave uses in its replies
func ResponseAddress(slave int) byte {
	return byte(ResponseAddressBase + slave)
}
