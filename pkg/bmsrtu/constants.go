// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bmsrtu

// Addressing
const (
	MasterAddress       = 0x81 // Address byte of every read/write-single request
	ResponseAddressBase = 0x50 // Slave replies with ResponseAddressBase + id
	DisplayAddressBase  = 0x80 // Display identifier frames go to DisplayAddressBase + id
)

// Function codes
const (
	FuncReadRegisters = 0x03
	FuncWriteSingle   = 0x06
	FuncWriteMultiple = 0x10
)

// Bus limits
const (
	MaxSlaves = 9

	MaxCells = 48
	MaxTemps = 8

	MaxReadRegisters = 0x80

	// ReceiveBufferSize holds the reply to a MaxReadRegisters read
	ReceiveBufferSize = ResponseHeader + 2*MaxReadRegisters + CRCSize
	AckBufferSize     = 16
)

// Frame sizes
const (
	RequestFrameSize = 8
	DisplayFrameSize = 16
	ResponseHeader   = 3 // address, function, length
	CRCSize          = 2
)

// Real-time block register map. Registers are two bytes wide, so the payload
// offset of a field is (register - start of the read) * 2.
const (
	RegCellVoltages    = 0x0000 // 48 registers, mV
	RegTemperatures    = 0x0030 // 8 registers, raw-40 °C
	RegTotalVoltage    = 0x0038
	RegCurrent         = 0x0039
	RegSOC             = 0x003A
	RegCellCount       = 0x003C
	RegTempCount       = 0x003D
	RegChargeMosfet    = 0x0052
	RegDischargeMosfet = 0x0053
	RegMosTemperature  = 0x005A
	RegFaultStatus1    = 0x0066
	RegFaultStatus2    = 0x0067
	RegFaultStatus3    = 0x0068
)

// Command registers
const (
	RegBatteryID        = 0x0100
	RegDisplay          = 0x01F1
	RegDisplayWords     = 0x0004
	RegChargeControl    = 0x0052
	RegDischargeControl = 0x0053
)

// Display identifier command values
const (
	DisplayIDShow    = 7
	DisplayIDConfirm = 9
)

// Field scaling
const (
	TemperatureOffset = 40
	CurrentOffset     = 30000
	VoltageDivisor    = 10.0
	CurrentDivisor    = 10.0
	SOCFactor         = 0.001
)

// Modbus CRC-16
const (
	crcInitial    = 0xFFFF
	crcPolynomial = 0xA001
)
