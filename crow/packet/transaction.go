// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package packet

import (
	"github.com/ffutop/crow-host/crow/fletcher"
)

// Transaction is one command, and its optional response, exchanged with a
// single addressed device.
//
// The packet buffer is owned by the transaction and sized for the largest
// possible packet. A Transaction must not be shared between goroutines
// without external synchronization.
type Transaction struct {
	Address          int
	Port             int
	Token            int
	Command          []byte
	ResponseExpected bool
	PropCROrder      bool

	packet     [MaxPacketSize]byte
	packetSize int

	response    []byte
	hasResponse bool
	argIndex    int
}

// NewTransaction validates its arguments and encodes the command packet.
// Nothing is allocated or written when validation fails.
func NewTransaction(address, port int, command []byte, responseExpected bool, token int, propcrOrder bool) (*Transaction, error) {
	if err := Validate(address, port, len(command), responseExpected, token); err != nil {
		return nil, err
	}
	tx := &Transaction{
		Address:          address,
		Port:             port,
		Token:            token,
		Command:          command,
		ResponseExpected: responseExpected,
		PropCROrder:      propcrOrder,
	}
	tx.encode()
	return tx, nil
}

// Validate checks the encode arguments of a command.
func Validate(address, port, size int, responseExpected bool, token int) error {
	if address < BroadcastAddress || address > MaxAddress {
		return &ValidationError{Field: "address", Value: address, Min: BroadcastAddress, Max: MaxAddress}
	}
	if port < 0 || port > MaxPort {
		return &ValidationError{Field: "port", Value: port, Min: 0, Max: MaxPort}
	}
	if token < 0 || token > MaxToken {
		return &ValidationError{Field: "token", Value: token, Min: 0, Max: MaxToken}
	}
	if address == BroadcastAddress && responseExpected {
		return &ValidationError{Field: "address", Value: address, Reason: "broadcast commands cannot expect a response"}
	}
	if size > MaxPayloadSize {
		return &ValidationError{Field: "command size", Value: size, Min: 0, Max: MaxPayloadSize}
	}
	return nil
}

// BodySize returns the number of body bytes, check bytes included, that
// carry a payload of the given size.
func BodySize(size int) int {
	full, rem := size/MaxChunkSize, size%MaxChunkSize
	n := full * FullChunkSize
	if rem > 0 {
		n += rem + ChecksumSize
	}
	return n
}

// PacketSize returns the total frame size for a payload of the given size.
func PacketSize(size int) int {
	return HeaderSize + BodySize(size)
}

// Packet returns the encoded command packet. The slice aliases the
// transaction's buffer.
func (tx *Transaction) Packet() []byte {
	return tx.packet[:tx.packetSize]
}

func (tx *Transaction) encode() {
	flags := byte(0)
	if tx.ResponseExpected {
		flags = responseExpectedFlag
	}
	putHeader(tx.packet[:HeaderSize], KindCommand, len(tx.Command), byte(tx.Address)|flags, byte(tx.Port), byte(tx.Token))
	n := HeaderSize + putBody(tx.packet[HeaderSize:], tx.Command, tx.PropCROrder)
	tx.packetSize = n
}

// putHeader writes a 7-byte header for a payload of the given size.
//
//	H0: size bits 10..8 in bits 5..3, protocol bits 2..0
//	H1: size bits 7..0
//	H2: address (command: bit 7 set when a response is expected)
//	H3: port
//	H4: token
//	H5, H6: Fletcher-16 check bytes over H0..H4
func putHeader(dst []byte, kind Kind, size int, h2, port, token byte) {
	dst[0] = byte(size>>8)<<3 | kind.protocolBits()
	dst[1] = byte(size)
	dst[2] = h2
	dst[3] = port
	dst[4] = token
	dst[5], dst[6] = fletcher.CheckBytes(dst[:5])
}

// putBody writes payload into dst in chunks, each followed by its check
// bytes, and returns the number of bytes written. dst must hold at least
// BodySize(len(payload)) bytes.
func putBody(dst, payload []byte, propcrOrder bool) int {
	n := 0
	for start := 0; start < len(payload); start += MaxChunkSize {
		end := start + MaxChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := dst[n : n+end-start]
		copy(chunk, payload[start:end])
		if propcrOrder {
			reorderPropCR(chunk)
		}
		n += len(chunk)
		dst[n], dst[n+1] = fletcher.CheckBytes(chunk)
		n += ChecksumSize
	}
	return n
}

// reorderPropCR reverses each group of up to four bytes in place. The
// operation is its own inverse.
func reorderPropCR(b []byte) {
	for start := 0; start < len(b); start += propcrGroupSize {
		end := start + propcrGroupSize
		if end > len(b) {
			end = len(b)
		}
		for i, j := start, end-1; i < j; i, j = i+1, j-1 {
			b[i], b[j] = b[j], b[i]
		}
	}
}
