// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bmsrtu

import "errors"

// Sentinel errors returned by frame builders, the validator and the master.
// Callers match them with errors.Is.
var (
	ErrInvalidSlaveID   = errors.New("invalid slave id")
	ErrTimeout          = errors.New("no response")
	ErrAddressMismatch  = errors.New("response address mismatch")
	ErrFunctionMismatch = errors.New("response function mismatch")
	ErrShortFrame       = errors.New("response too short")
	ErrCRCMismatch      = errors.New("response CRC mismatch")
	ErrVerifyMismatch   = errors.New("read-back value mismatch")
)

// Reason classifies the outcome of one exchange for diagnostics
type Reason int

const (
	ReasonOK Reason = iota
	ReasonInvalidSlaveID
	ReasonTimeout
	ReasonAddressMismatch
	ReasonFunctionMismatch
	ReasonShortFrame
	ReasonCRCMismatch
	ReasonVerifyMismatch
	ReasonTransport
)

var reasonNames = map[Reason]string{
	ReasonOK:               "ok",
	ReasonInvalidSlaveID:   "invalid_slave_id",
	ReasonTimeout:          "timeout",
	ReasonAddressMismatch:  "address_mismatch",
	ReasonFunctionMismatch: "function_mismatch",
	ReasonShortFrame:       "short_frame",
	ReasonCRCMismatch:      "crc_mismatch",
	ReasonVerifyMismatch:   "verify_mismatch",
	ReasonTransport:        "transport",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// Reasons returns every reason code in order
func Reasons() []Reason {
	return []Reason{
		ReasonOK,
		ReasonInvalidSlaveID,
		ReasonTimeout,
		ReasonAddressMismatch,
		ReasonFunctionMismatch,
		ReasonShortFrame,
		ReasonCRCMismatch,
		ReasonVerifyMismatch,
		ReasonTransport,
	}
}

// ReasonOf maps an error to its reason code. Errors that are not one of the
// protocol sentinels are reported as transport failures.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonOK
	case errors.Is(err, ErrInvalidSlaveID):
		return ReasonInvalidSlaveID
	case errors.Is(err, ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, ErrAddressMismatch):
		return ReasonAddressMismatch
	case errors.Is(err, ErrFunctionMismatch):
		return ReasonFunctionMismatch
	case errors.Is(err, ErrShortFrame):
		return ReasonShortFrame
	case errors.Is(err, ErrCRCMismatch):
		return ReasonCRCMismatch
	case errors.Is(err, ErrVerifyMismatch):
		return ReasonVerifyMismatch
	default:
		return ReasonTransport
	}
}
