// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bus

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// Serial line defaults of the BMS bus: 9600 baud, 8E1
const (
	DefaultBaudRate = 9600
	DefaultDataBits = 8
	DefaultParity   = "even"
	DefaultStopBits = 1
)

// SerialConfig describes a serial line
type SerialConfig struct {
	Name     string
	BaudRate int
	DataBits int
	Parity   string
	StopBits int
}

// DefaultSerialConfig returns the bus defaults for device name
func DefaultSerialConfig(name string) SerialConfig {
	return SerialConfig{
		Name:     name,
		BaudRate: DefaultBaudRate,
		DataBits: DefaultDataBits,
		Parity:   DefaultParity,
		StopBits: DefaultStopBits,
	}
}

// ParseParity maps a parity name to its serial setting
func ParseParity(s string) (serial.Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "n":
		return serial.NoParity, nil
	case "even", "e":
		return serial.EvenParity, nil
	case "odd", "o":
		return serial.OddParity, nil
	case "mark", "m":
		return serial.MarkParity, nil
	case "space", "s":
		return serial.SpaceParity, nil
	default:
		return 0, fmt.Errorf("unknown parity %q (use none, even, odd, mark or space)", s)
	}
}

// ParseStopBits maps 1 or 2 to its serial setting
func ParseStopBits(n int) (serial.StopBits, error) {
	switch n {
	case 1:
		return serial.OneStopBit, nil
	case 2:
		return serial.TwoStopBits, nil
	default:
		return 0, fmt.Errorf("unsupported stop bits %d (use 1 or 2)", n)
	}
}

// Mode converts the config to a serial mode
func (c SerialConfig) Mode() (*serial.Mode, error) {
	parity, err := ParseParity(c.Parity)
	if err != nil {
		return nil, err
	}
	stopBits, err := ParseStopBits(c.StopBits)
	if err != nil {
		return nil, err
	}
	if c.BaudRate <= 0 {
		return nil, fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return nil, fmt.Errorf("invalid data bits %d", c.DataBits)
	}
	return &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		Parity:   parity,
		StopBits: stopBits,
	}, nil
}

// String describes the line, e.g. "/dev/ttyUSB0 @ 9600 8E1"
func (c SerialConfig) String() string {
	p := "?"
	if c.Parity != "" {
		p = strings.ToUpper(c.Parity[:1])
	}
	return fmt.Sprintf("%s @ %d %d%s%d", c.Name, c.BaudRate, c.DataBits, p, c.StopBits)
}

// OpenSerial opens a serial port
func OpenSerial(c SerialConfig) (serial.Port, error) {
	mode, err := c.Mode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(c.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", c.Name, err)
	}
	return port, nil
}

// ListPorts returns the serial ports present on the system
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

// RTSSetter is the part of a serial port that drives the RTS line
type RTSSetter interface {
	SetRTS(rts bool) error
}

// RTSDirection drives the DE/RE pins of an RS485 transceiver from RTS.
// RTS high enables the driver unless Invert is set.
type RTSDirection struct {
	Port   RTSSetter
	Invert bool
}

// Transmit enables the driver
func (d RTSDirection) Transmit() error {
	return d.Port.SetRTS(!d.Invert)
}

// Receive enables the receiver
func (d RTSDirection) Receive() error {
	return d.Port.SetRTS(d.Invert)
}
