// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ffutop/crow-host/crow/packet"
	"github.com/ffutop/crow-host/internal/config"
	"github.com/ffutop/crow-host/transport"
	"github.com/grid-x/serial"
	"github.com/stretchr/testify/require"
)

type mockPort struct {
	io.Reader
	io.Writer
	closed bool
}

func (m *mockPort) Close() error {
	m.closed = true
	return nil
}

// slowReader blocks like a serial port with nothing to read.
type slowReader struct {
	delay time.Duration
}

func (r slowReader) Read(p []byte) (int, error) {
	time.Sleep(r.delay)
	return 0, errors.New("serial: timeout")
}

func newMockClient(t *testing.T, port *mockPort) (*Client, *[]serial.Config) {
	t.Helper()
	var opened []serial.Config
	c := NewClient(config.SerialConfig{Device: "/dev/ttyMOCK", BaudRate: 115200, Timeout: 100 * time.Millisecond})
	c.IdleTimeout = 0
	c.open = func(cfg *serial.Config) (io.ReadWriteCloser, error) {
		opened = append(opened, *cfg)
		return port, nil
	}
	return c, &opened
}

func TestClient_Transact(t *testing.T) {
	resp, err := packet.EncodeResponse(1, 32, 7, []byte("PONG"))
	require.NoError(t, err)

	writer := &bytes.Buffer{}
	port := &mockPort{Reader: bytes.NewReader(resp), Writer: writer}
	client, opened := newMockClient(t, port)

	tx, err := packet.NewTransaction(1, 32, []byte("PING"), true, 7, false)
	require.NoError(t, err)

	err = client.Transact(context.Background(), tx, transport.LinkParams{BaudRate: 9600, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	require.Equal(t, tx.Packet(), writer.Bytes())
	require.Equal(t, []byte("PONG"), tx.Response())
	require.Len(t, *opened, 1)
	require.Equal(t, 9600, (*opened)[0].BaudRate)
	require.Equal(t, 50*time.Millisecond, (*opened)[0].Timeout)
}

func TestClient_TokenMismatch(t *testing.T) {
	resp, err := packet.EncodeResponse(1, 32, 8, nil)
	require.NoError(t, err)

	port := &mockPort{Reader: bytes.NewReader(resp), Writer: &bytes.Buffer{}}
	client, _ := newMockClient(t, port)

	tx, err := packet.NewTransaction(1, 32, nil, true, 7, false)
	require.NoError(t, err)

	err = client.Transact(context.Background(), tx, transport.LinkParams{})
	require.ErrorIs(t, err, transport.ErrResponseMismatch)
	require.False(t, tx.HasResponse())
}

func TestClient_ChecksumError(t *testing.T) {
	resp, err := packet.EncodeResponse(1, 32, 7, []byte("PONG"))
	require.NoError(t, err)
	resp[len(resp)-1] ^= 0xff

	port := &mockPort{Reader: bytes.NewReader(resp), Writer: &bytes.Buffer{}}
	client, _ := newMockClient(t, port)

	tx, err := packet.NewTransaction(1, 32, []byte("PING"), true, 7, false)
	require.NoError(t, err)

	err = client.Transact(context.Background(), tx, transport.LinkParams{})
	require.ErrorIs(t, err, packet.ErrChecksum)
}

func TestClient_Timeout(t *testing.T) {
	port := &mockPort{Reader: slowReader{delay: 30 * time.Millisecond}, Writer: &bytes.Buffer{}}
	client, _ := newMockClient(t, port)

	tx, err := packet.NewTransaction(1, 32, nil, true, 7, false)
	require.NoError(t, err)

	err = client.Transact(context.Background(), tx, transport.LinkParams{Timeout: 10 * time.Millisecond})
	require.ErrorIs(t, err, packet.ErrRequestTimedOut)
}

func TestClient_NoResponseExpected(t *testing.T) {
	writer := &bytes.Buffer{}
	port := &mockPort{Reader: slowReader{delay: time.Second}, Writer: writer}
	client, _ := newMockClient(t, port)

	tx, err := packet.NewTransaction(0, 1, []byte{0xAA}, false, 3, false)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, client.Transact(context.Background(), tx, transport.LinkParams{}))
	require.Less(t, time.Since(start), 500*time.Millisecond, "broadcast must not wait for a response")
	require.Equal(t, tx.Packet(), writer.Bytes())
}

func TestClient_ReopensOnBaudChange(t *testing.T) {
	port := &mockPort{Reader: bytes.NewReader(nil), Writer: &bytes.Buffer{}}
	client, opened := newMockClient(t, port)

	send := func(params transport.LinkParams) {
		tx, err := packet.NewTransaction(2, 1, nil, false, 1, false)
		require.NoError(t, err)
		require.NoError(t, client.Transact(context.Background(), tx, params))
	}

	send(transport.LinkParams{BaudRate: 9600, Timeout: time.Second})
	send(transport.LinkParams{BaudRate: 9600, Timeout: time.Second})
	require.Len(t, *opened, 1)
	require.False(t, port.closed)

	send(transport.LinkParams{BaudRate: 115200, Timeout: time.Second})
	require.Len(t, *opened, 2)
	require.True(t, port.closed)
	require.Equal(t, 115200, (*opened)[1].BaudRate)

	require.NoError(t, client.Close())
}
