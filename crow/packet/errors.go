// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package packet

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("crow: invalid transaction argument")
	ErrInsufficientData = errors.New("crow: insufficient response data")
	ErrOutOfBounds      = errors.New("crow: ascii descriptor out of bounds")
	ErrChecksum         = errors.New("crow: checksum mismatch")
	ErrInvalidHeader    = errors.New("crow: invalid header")
	ErrRequestTimedOut  = errors.New("crow: request timed out")
	ErrNoResponse       = errors.New("crow: transaction has no response")
)

// ValidationError describes an encode argument outside its allowed range.
type ValidationError struct {
	Field string
	Value int
	Min   int
	Max   int
	// Reason replaces the range in the message when set.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("crow: invalid %s %d: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("crow: invalid %s %d: must be in [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DecodeError reports a response read that cannot be satisfied by the buffer.
type DecodeError struct {
	Err    error
	Offset int
	Length int
	Size   int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: need %d bytes at offset %d, response has %d", e.Err, e.Length, e.Offset, e.Size)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ChecksumError identifies which part of a frame failed verification.
type ChecksumError struct {
	// Chunk is -1 for the header.
	Chunk int
}

func (e *ChecksumError) Error() string {
	if e.Chunk < 0 {
		return "crow: header checksum mismatch"
	}
	return fmt.Sprintf("crow: checksum mismatch in chunk %d", e.Chunk)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksum }
