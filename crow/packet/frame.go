// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package packet

import (
	"fmt"
	"io"
	"time"

	"github.com/ffutop/crow-host/crow/fletcher"
)

// Header is the decoded form of a command or response header.
type Header struct {
	Kind             Kind
	Size             int
	Address          int
	Port             int
	Token            int
	ResponseExpected bool
}

// Frame is one complete command or response read from the wire.
type Frame struct {
	Header  Header
	Payload []byte
}

// ParseHeader decodes and verifies a 7-byte header of the given kind.
func ParseHeader(b []byte, kind Kind) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, fmt.Errorf("%w: length %d", ErrInvalidHeader, len(b))
	}
	if !fletcher.Verify(b[:5], b[5], b[6]) {
		return Header{}, &ChecksumError{Chunk: -1}
	}
	if b[0]&protocolMask != kind.protocolBits() {
		return Header{}, fmt.Errorf("%w: protocol bits %03b, want %s", ErrInvalidHeader, b[0]&protocolMask, kind)
	}
	if b[0]&0xc0 != 0 {
		return Header{}, fmt.Errorf("%w: reserved bits set in 0x%02X", ErrInvalidHeader, b[0])
	}

	h := Header{
		Kind:  kind,
		Size:  int(b[0]>>3)<<8 | int(b[1]),
		Port:  int(b[3]),
		Token: int(b[4]),
	}
	if kind == KindCommand {
		h.ResponseExpected = b[2]&responseExpectedFlag != 0
		if b[2]&0x60 != 0 {
			return Header{}, fmt.Errorf("%w: reserved address bits set in 0x%02X", ErrInvalidHeader, b[2])
		}
		h.Address = int(b[2] & addressMask)
		if h.Address == BroadcastAddress && h.ResponseExpected {
			return Header{}, fmt.Errorf("%w: broadcast command expects a response", ErrInvalidHeader)
		}
	} else {
		if b[2] > MaxAddress {
			return Header{}, fmt.Errorf("%w: address %d", ErrInvalidHeader, b[2])
		}
		h.Address = int(b[2])
	}
	return h, nil
}

// DecodeBody verifies every chunk of body and returns the reassembled
// payload of the given size, undoing PropCR reordering when requested.
func DecodeBody(body []byte, size int, propcrOrder bool) ([]byte, error) {
	if want := BodySize(size); len(body) != want {
		return nil, fmt.Errorf("%w: body length %d, want %d for size %d", ErrInsufficientData, len(body), want, size)
	}
	payload := make([]byte, 0, size)
	for i, n := 0, 0; n < len(body); i++ {
		end := n + FullChunkSize
		if end > len(body) {
			end = len(body)
		}
		chunk := body[n : end-ChecksumSize]
		if !fletcher.Verify(chunk, body[end-2], body[end-1]) {
			return nil, &ChecksumError{Chunk: i}
		}
		start := len(payload)
		payload = append(payload, chunk...)
		if propcrOrder {
			reorderPropCR(payload[start:])
		}
		n = end
	}
	return payload, nil
}

// EncodeResponse builds a response frame as a device sends it. Response
// bodies are never PropCR-reordered.
func EncodeResponse(address, port, token int, payload []byte) ([]byte, error) {
	if err := Validate(address, port, len(payload), false, token); err != nil {
		return nil, err
	}
	raw := make([]byte, PacketSize(len(payload)))
	putHeader(raw[:HeaderSize], KindResponse, len(payload), byte(address), byte(port), byte(token))
	putBody(raw[HeaderSize:], payload, false)
	return raw, nil
}

// ReadFrame reads one frame of the given kind from r. Bytes that do not
// start a valid header are skipped one at a time, so the reader
// resynchronises after line noise. A read error after the deadline is
// reported as ErrRequestTimedOut. Header bytes read before a timeout are
// lost; use a FrameReader to keep them across calls.
func ReadFrame(r io.Reader, kind Kind, propcrOrder bool, deadline time.Time) (Frame, error) {
	if r == nil {
		return Frame{}, fmt.Errorf("reader is nil")
	}
	return NewFrameReader(r, kind, propcrOrder).Next(deadline)
}

// FrameReader reads consecutive frames of one kind from a stream. A
// partially received header survives a timeout and is completed by the
// next call to Next.
type FrameReader struct {
	r           io.Reader
	kind        Kind
	propcrOrder bool

	window [HeaderSize]byte
	n      int
	buf    [1]byte
}

// NewFrameReader returns a reader of kind frames from r.
func NewFrameReader(r io.Reader, kind Kind, propcrOrder bool) *FrameReader {
	return &FrameReader{r: r, kind: kind, propcrOrder: propcrOrder}
}

// Next reads the next frame. It returns ErrRequestTimedOut once the
// deadline passes without a complete header.
func (fr *FrameReader) Next(deadline time.Time) (Frame, error) {
	hdr, err := fr.header(deadline)
	if err != nil {
		return Frame{}, err
	}

	body := make([]byte, BodySize(hdr.Size))
	if len(body) > 0 {
		if _, err := io.ReadFull(fr.r, body); err != nil {
			return Frame{Header: hdr}, readErr(err, deadline)
		}
	}
	payload, err := DecodeBody(body, hdr.Size, fr.propcrOrder)
	if err != nil {
		return Frame{Header: hdr}, err
	}
	return Frame{Header: hdr, Payload: payload}, nil
}

func (fr *FrameReader) header(deadline time.Time) (Header, error) {
	for {
		if fr.n == HeaderSize {
			h, err := ParseHeader(fr.window[:], fr.kind)
			if err == nil {
				fr.n = 0
				return h, nil
			}
			copy(fr.window[:], fr.window[1:])
			fr.n--
		}
		if time.Now().After(deadline) {
			return Header{}, ErrRequestTimedOut
		}
		if _, err := io.ReadAtLeast(fr.r, fr.buf[:], 1); err != nil {
			return Header{}, readErr(err, deadline)
		}
		fr.window[fr.n] = fr.buf[0]
		fr.n++
	}
}

func readErr(err error, deadline time.Time) error {
	if time.Now().After(deadline) {
		return fmt.Errorf("%w: %v", ErrRequestTimedOut, err)
	}
	return err
}
