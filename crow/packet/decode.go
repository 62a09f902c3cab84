// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package packet

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ByteOrder selects how a fixed-width integer argument is laid out.
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "little"
	}
	return "big"
}

// SetResponse installs the response payload and rewinds the argument cursor.
// The buffer must not be modified afterwards.
func (tx *Transaction) SetResponse(response []byte) {
	tx.response = response
	tx.hasResponse = true
	tx.argIndex = 0
}

// Response returns the response payload, or nil if none was received.
func (tx *Transaction) Response() []byte {
	return tx.response
}

// HasResponse reports whether a response has been installed.
func (tx *Transaction) HasResponse() bool {
	return tx.hasResponse
}

// ArgIndex returns the position of the next argument in the response.
func (tx *Transaction) ArgIndex() int {
	return tx.argIndex
}

// Remaining returns the number of unread response bytes.
func (tx *Transaction) Remaining() int {
	return len(tx.response) - tx.argIndex
}

// take returns the next n bytes without advancing the cursor.
func (tx *Transaction) take(n int) ([]byte, error) {
	if !tx.hasResponse {
		return nil, ErrNoResponse
	}
	if n > tx.Remaining() {
		return nil, &DecodeError{Err: ErrInsufficientData, Offset: tx.argIndex, Length: n, Size: len(tx.response)}
	}
	return tx.response[tx.argIndex : tx.argIndex+n], nil
}

// UnpackInt reads a numBytes wide integer at the cursor and advances past
// it. numBytes must be in [1, 8]; eight-byte unsigned values above
// math.MaxInt64 wrap. The cursor is unchanged on error.
func (tx *Transaction) UnpackInt(numBytes int, order ByteOrder, signed bool) (int64, error) {
	if numBytes < 1 || numBytes > 8 {
		return 0, &ValidationError{Field: "integer width", Value: numBytes, Min: 1, Max: 8}
	}
	b, err := tx.take(numBytes)
	if err != nil {
		return 0, err
	}

	var buf [8]byte
	var v uint64
	if order == LittleEndian {
		copy(buf[:], b)
		v = binary.LittleEndian.Uint64(buf[:])
	} else {
		copy(buf[8-numBytes:], b)
		v = binary.BigEndian.Uint64(buf[:])
	}
	tx.argIndex += numBytes

	if signed && numBytes < 8 {
		shift := uint(64 - 8*numBytes)
		return int64(v<<shift) >> shift, nil
	}
	return int64(v), nil
}

// UnpackASCII reads an offset+length descriptor at the cursor and returns
// the string it points to. numArgBytes is 3 (2-byte offset, 1-byte length)
// or 4 (2-byte offset, 2-byte length), both big-endian, offsets relative to
// the start of the response. Bytes outside 7-bit ASCII decode to U+FFFD.
// The cursor is unchanged on error.
func (tx *Transaction) UnpackASCII(numArgBytes int) (string, error) {
	if numArgBytes != 3 && numArgBytes != 4 {
		return "", &ValidationError{Field: "ascii descriptor width", Value: numArgBytes, Min: 3, Max: 4}
	}
	b, err := tx.take(numArgBytes)
	if err != nil {
		return "", err
	}

	offset := int(binary.BigEndian.Uint16(b[0:2]))
	var length int
	if numArgBytes == 3 {
		length = int(b[2])
	} else {
		length = int(binary.BigEndian.Uint16(b[2:4]))
	}
	if offset+length > len(tx.response) {
		return "", &DecodeError{Err: ErrOutOfBounds, Offset: offset, Length: length, Size: len(tx.response)}
	}
	tx.argIndex += numArgBytes
	return decodeASCII(tx.response[offset : offset+length]), nil
}

func decodeASCII(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c < utf8.RuneSelf {
			sb.WriteByte(c)
		} else {
			sb.WriteRune(utf8.RuneError)
		}
	}
	return sb.String()
}

// UnpackBytes reads n raw bytes at the cursor.
func (tx *Transaction) UnpackBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrValidation, n)
	}
	b, err := tx.take(n)
	if err != nil {
		return nil, err
	}
	tx.argIndex += n
	return b, nil
}
