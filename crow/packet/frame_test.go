// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package packet

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseHeaderErrors(t *testing.T) {
	tx, err := NewTransaction(1, 32, []byte("PING"), true, 7, false)
	require.NoError(t, err)
	good := append([]byte{}, tx.Packet()[:HeaderSize]...)

	_, err = ParseHeader(good[:6], KindCommand)
	require.ErrorIs(t, err, ErrInvalidHeader)

	bad := append([]byte{}, good...)
	bad[3] ^= 0xff
	_, err = ParseHeader(bad, KindCommand)
	require.ErrorIs(t, err, ErrChecksum)

	_, err = ParseHeader(good, KindResponse)
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestResponseRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 30)
	raw, err := EncodeResponse(5, 40, 99, payload)
	require.NoError(t, err)
	require.Len(t, raw, PacketSize(len(payload)))

	h, err := ParseHeader(raw[:HeaderSize], KindResponse)
	require.NoError(t, err)
	require.Equal(t, Header{Kind: KindResponse, Size: 300, Address: 5, Port: 40, Token: 99}, h)

	got, err := DecodeBody(raw[HeaderSize:], h.Size, false)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDecodeBodyPropCR(t *testing.T) {
	payload := make([]byte, 200)
	for i := range payload {
		payload[i] = byte(i)
	}
	tx, err := NewTransaction(9, 1, payload, false, 3, true)
	require.NoError(t, err)

	got, err := DecodeBody(tx.Packet()[HeaderSize:], len(payload), true)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDecodeBodyCorruptChunk(t *testing.T) {
	tx, err := NewTransaction(9, 1, make([]byte, 200), false, 3, false)
	require.NoError(t, err)
	body := append([]byte{}, tx.Packet()[HeaderSize:]...)
	body[140] ^= 0x01

	_, err = DecodeBody(body, 200, false)
	require.ErrorIs(t, err, ErrChecksum)
	var cerr *ChecksumError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, 1, cerr.Chunk)

	_, err = DecodeBody(body[:10], 200, false)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestReadFrameResync(t *testing.T) {
	raw, err := EncodeResponse(3, 7, 42, []byte("pong"))
	require.NoError(t, err)

	// Leading line noise must be skipped.
	input := append([]byte{0xFF, 0x00, 0x13}, raw...)
	f, err := ReadFrame(bytes.NewReader(input), KindResponse, false, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, 3, f.Header.Address)
	require.Equal(t, 7, f.Header.Port)
	require.Equal(t, 42, f.Header.Token)
	require.Equal(t, []byte("pong"), f.Payload)
}

func TestReadFrameCommand(t *testing.T) {
	tx, err := NewTransaction(12, 200, []byte("hello, device"), true, 17, true)
	require.NoError(t, err)

	f, err := ReadFrame(bytes.NewReader(tx.Packet()), KindCommand, true, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.True(t, f.Header.ResponseExpected)
	require.Equal(t, []byte("hello, device"), f.Payload)
}

func TestReadFrameTimeout(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x01}), KindResponse, false, time.Now().Add(-time.Millisecond))
	require.ErrorIs(t, err, ErrRequestTimedOut)
}

func TestReadFrameTruncated(t *testing.T) {
	raw, err := EncodeResponse(3, 7, 42, []byte("pong"))
	require.NoError(t, err)
	_, err = ReadFrame(bytes.NewReader(raw[:len(raw)-1]), KindResponse, false, time.Now().Add(time.Second))
	require.Error(t, err)
}

// lateReader delays its first byte, like a line that was idle until
// after the caller's deadline.
type lateReader struct {
	delay time.Duration
	r     io.Reader
	woke  bool
}

func (l *lateReader) Read(p []byte) (int, error) {
	if !l.woke {
		time.Sleep(l.delay)
		l.woke = true
	}
	return l.r.Read(p[:1])
}

func TestFrameReaderKeepsHeaderAcrossTimeout(t *testing.T) {
	first, err := NewTransaction(2, 5, []byte("first"), false, 1, false)
	require.NoError(t, err)
	second, err := NewTransaction(2, 5, []byte("second"), false, 2, false)
	require.NoError(t, err)

	input := append(append([]byte{}, first.Packet()...), second.Packet()...)
	fr := NewFrameReader(&lateReader{delay: 20 * time.Millisecond, r: bytes.NewReader(input)}, KindCommand, false)

	_, err = fr.Next(time.Now().Add(5 * time.Millisecond))
	require.ErrorIs(t, err, ErrRequestTimedOut)

	f, err := fr.Next(time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, f.Header.Token)
	require.Equal(t, []byte("first"), f.Payload)

	f, err = fr.Next(time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, []byte("second"), f.Payload)
}

func TestFrameReaderNoiseTimesOut(t *testing.T) {
	noise := bytes.Repeat([]byte{0xFF}, 64)
	fr := NewFrameReader(&lateReader{delay: 10 * time.Millisecond, r: bytes.NewReader(noise)}, KindResponse, false)
	_, err := fr.Next(time.Now().Add(5 * time.Millisecond))
	require.ErrorIs(t, err, ErrRequestTimedOut)
}
