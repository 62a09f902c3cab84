// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package packet

const (
	HeaderSize = 7

	MaxChunkSize   = 128
	ChecksumSize   = 2
	FullChunkSize  = MaxChunkSize + ChecksumSize
	MaxPayloadSize = 2047

	// 15 full chunks plus a 127-byte tail: 2086 bytes.
	MaxPacketSize = HeaderSize + (MaxPayloadSize/MaxChunkSize)*FullChunkSize + MaxPayloadSize%MaxChunkSize + ChecksumSize

	propcrGroupSize = 4
)

// Address, port and token ranges.
const (
	BroadcastAddress = 0
	MaxAddress       = 31
	NumAddresses     = MaxAddress + 1
	MaxPort          = 255
	MaxToken         = 255
)

// Low three bits of the first header byte.
const (
	protocolCommand  = 0b001
	protocolResponse = 0b010
	protocolMask     = 0b111

	responseExpectedFlag = 0x80
	addressMask          = 0x1f
)

// Kind selects which of the two frame layouts is being read.
type Kind int

const (
	KindCommand Kind = iota
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindResponse:
		return "response"
	}
	return "unknown"
}

func (k Kind) protocolBits() byte {
	if k == KindResponse {
		return protocolResponse
	}
	return protocolCommand
}
