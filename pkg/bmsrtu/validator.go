// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bmsrtu

import "fmt"

// ValidateOptions controls optional response checks
type ValidateOptions struct {
	// VerifyCRC rejects replies whose trailing CRC does not match. Slaves
	// are accepted on address and function alone when it is false.
	VerifyCRC bool
}

// Response is a reply that passed validation
type Response struct {
	Address  byte
	Function byte
	Length   int    // declared payload length
	Payload  []byte // payload bounded by the declared length and the bytes received
}

// ValidateResponse checks a read reply from slave and extracts its payload.
// Checks run in order: address (0x50+id), function, then the optional CRC.
// The declared length only bounds the payload; a short frame is not rejected.
func ValidateResponse(raw []byte, slave int, function byte, opts ValidateOptions) (*Response, error) {
	if err := checkSlave(slave); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrTimeout
	}

	want := ResponseAddress(slave)
	if raw[0] != want {
		return nil, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrAddressMismatch, raw[0], want)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(raw))
	}
	if raw[1] != function {
		return nil, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrFunctionMismatch, raw[1], function)
	}
	if len(raw) < ResponseHeader {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(raw))
	}

	declared := int(raw[2])
	n := payloadLength(declared, len(raw)-ResponseHeader)

	if opts.VerifyCRC {
		end := ResponseHeader + n + CRCSize
		if end > len(raw) || !CheckCRC(raw[:end]) {
			return nil, fmt.Errorf("%w: slave %d", ErrCRCMismatch, slave)
		}
	}

	return &Response{
		Address:  raw[0],
		Function: raw[1],
		Length:   declared,
		Payload:  raw[ResponseHeader : ResponseHeader+n],
	}, nil
}

// payloadLength bounds the payload by what was actually received. The length
// byte wraps to 0 for a full 128-register block, in which case everything up
// to the trailing CRC is taken as payload.
func payloadLength(declared, available int) int {
	if available <= 0 {
		return 0
	}
	if declared == 0 {
		if available > CRCSize {
			return available - CRCSize
		}
		return 0
	}
	if declared > available {
		return available
	}
	return declared
}

// ValidateAck checks a write acknowledgement. Only the address byte is
// significant; the function byte of an ack is not checked.
func ValidateAck(raw []byte, slave int, opts ValidateOptions) error {
	if err := checkSlave(slave); err != nil {
		return err
	}
	if len(raw) == 0 {
		return ErrTimeout
	}
	want := ResponseAddress(slave)
	if raw[0] != want {
		return fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrAddressMismatch, raw[0], want)
	}
	if opts.VerifyCRC && !CheckCRC(raw) {
		return fmt.Errorf("%w: slave %d ack", ErrCRCMismatch, slave)
	}
	return nil
}
