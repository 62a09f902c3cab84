// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package local

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/ffutop/crow-host/crow/packet"
	"github.com/ffutop/crow-host/transport"
)

// Client is an in-process transport.Link. Commands still pass through the
// wire encoding, so checksums and PropCR ordering are exercised exactly as
// on a serial line.
type Client struct {
	handler transport.CommandHandler
}

var _ transport.Link = (*Client)(nil)

// NewClient creates a loopback link delivering commands to handler.
func NewClient(handler transport.CommandHandler) *Client {
	return &Client{handler: handler}
}

// Transact decodes tx's packet as a device would, calls the handler and
// installs the encoded-then-decoded response.
func (c *Client) Transact(ctx context.Context, tx *packet.Transaction, params transport.LinkParams) error {
	if params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.Timeout)
		defer cancel()
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(time.Minute)
	}

	cmd, err := packet.ReadFrame(bytes.NewReader(tx.Packet()), packet.KindCommand, tx.PropCROrder, deadline)
	if err != nil {
		return err
	}
	h := cmd.Header

	resp, err := c.handler(ctx, h.Address, h.Port, cmd.Payload)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return packet.ErrRequestTimedOut
	}
	if !h.ResponseExpected {
		return nil
	}

	raw, err := packet.EncodeResponse(h.Address, h.Port, h.Token, resp)
	if err != nil {
		return err
	}
	f, err := packet.ReadFrame(bytes.NewReader(raw), packet.KindResponse, false, deadline)
	if err != nil {
		return err
	}
	slog.Debug("local crow transaction", "address", h.Address, "port", h.Port, "token", h.Token, "response", len(f.Payload))
	tx.SetResponse(f.Payload)
	return nil
}

// Close is a no-op for the loopback link.
func (c *Client) Close() error {
	return nil
}

// Echo is a CommandHandler that answers every command with its payload.
func Echo(ctx context.Context, address, port int, payload []byte) ([]byte, error) {
	return payload, nil
}
