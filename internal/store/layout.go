// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ffutop/crow-host/crow/packet"
	"github.com/ffutop/crow-host/internal/host"
)

// Layout:
// - Magic "CRW1": 4 bytes (Offset 0)
// - 32 slots of 12 bytes (Offset 4):
//   flags(1) baudrate(4, BE) timeout ms(4, BE) propcr(1) reserved(2)
// Total Size: 388 bytes
const (
	sizeMagic = 4
	sizeSlot  = 12
	totalSize = sizeMagic + packet.NumAddresses*sizeSlot
)

const (
	flagBaudrate = 1 << iota
	flagTimeout
	flagPropCR
)

var magic = [sizeMagic]byte{'C', 'R', 'W', '1'}

var ErrBadMagic = errors.New("store: unrecognised settings file")

type slots = [packet.NumAddresses]host.HostSerialSettings

func encodeSlots(dst []byte, s slots) {
	copy(dst[:sizeMagic], magic[:])
	for i, set := range s {
		b := dst[sizeMagic+i*sizeSlot : sizeMagic+(i+1)*sizeSlot]
		for j := range b {
			b[j] = 0
		}
		if set.Baudrate != nil {
			b[0] |= flagBaudrate
			binary.BigEndian.PutUint32(b[1:5], uint32(*set.Baudrate))
		}
		if set.TransactionTimeout != nil {
			b[0] |= flagTimeout
			binary.BigEndian.PutUint32(b[5:9], timeoutMillis(*set.TransactionTimeout))
		}
		if set.PropCROrder != nil {
			b[0] |= flagPropCR
			if *set.PropCROrder {
				b[9] = 1
			}
		}
	}
}

// timeoutMillis rounds up to whole milliseconds so that a positive timeout
// never persists as zero.
func timeoutMillis(d time.Duration) uint32 {
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms < 1 {
		return 1
	}
	if ms > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}

// decodeSlots parses src. empty is true for a zero-filled (new) file.
func decodeSlots(src []byte) (s slots, empty bool, err error) {
	if len(src) < totalSize {
		return s, false, fmt.Errorf("store: settings file is %d bytes, want %d", len(src), totalSize)
	}
	if [sizeMagic]byte(src[:sizeMagic]) != magic {
		for _, b := range src[:totalSize] {
			if b != 0 {
				return s, false, ErrBadMagic
			}
		}
		return s, true, nil
	}
	for i := range s {
		b := src[sizeMagic+i*sizeSlot : sizeMagic+(i+1)*sizeSlot]
		if b[0]&flagBaudrate != 0 {
			v := int(binary.BigEndian.Uint32(b[1:5]))
			s[i].Baudrate = &v
		}
		if b[0]&flagTimeout != 0 {
			v := time.Duration(binary.BigEndian.Uint32(b[5:9])) * time.Millisecond
			s[i].TransactionTimeout = &v
		}
		if b[0]&flagPropCR != 0 {
			v := b[9] != 0
			s[i].PropCROrder = &v
		}
	}
	return s, false, nil
}
