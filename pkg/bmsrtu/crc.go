// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bmsrtu

// CalculateCRC computes the Modbus CRC-16 of data
func CalculateCRC(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ crcPolynomial
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// AppendCRC appends the CRC of frame to it, low byte first
func AppendCRC(frame []byte) []byte {
	crc := CalculateCRC(frame)
	return append(frame, byte(crc), byte(crc>>8))
}

// CheckCRC reports whether the last two bytes of frame are a valid CRC of the rest
func CheckCRC(frame []byte) bool {
	if len(frame) < CRCSize+1 {
		return false
	}
	n := len(frame) - CRCSize
	crc := CalculateCRC(frame[:n])
	return frame[n] == byte(crc) && frame[n+1] == byte(crc>>8)
}
