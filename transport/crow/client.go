// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crow

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/ffutop/crow-host/crow/packet"
	"github.com/ffutop/crow-host/internal/config"
	"github.com/ffutop/crow-host/transport"
)

// Used when neither the transaction nor the port configures a timeout.
const defaultResponseTimeout = 500 * time.Millisecond

// Client implements transport.Link over one physical serial port. It is
// safe for use by several hosts; transactions are serialised.
type Client struct {
	serialPort
}

var _ transport.Link = (*Client)(nil)

// NewClient allocates a Client. The port is opened on the first transaction.
func NewClient(cfg config.SerialConfig) *Client {
	client := &Client{}

	// Map internal config to serial.Config
	client.serialPort.Config.Address = cfg.Device
	client.serialPort.Config.BaudRate = cfg.BaudRate
	client.serialPort.Config.DataBits = cfg.DataBits
	client.serialPort.Config.StopBits = cfg.StopBits
	client.serialPort.Config.Parity = cfg.Parity
	client.serialPort.Config.Timeout = cfg.Timeout
	if cfg.RS485 {
		client.serialPort.Config.RS485.Enabled = true
		client.serialPort.Config.RS485.DelayRtsBeforeSend = cfg.DelayRtsBeforeSend
		client.serialPort.Config.RS485.DelayRtsAfterSend = cfg.DelayRtsAfterSend
		client.serialPort.Config.RS485.RtsHighDuringSend = cfg.RtsHighDuringSend
		client.serialPort.Config.RS485.RtsHighAfterSend = cfg.RtsHighAfterSend
		client.serialPort.Config.RS485.RxDuringTx = cfg.RxDuringTx
	}

	client.IdleTimeout = serialIdleTimeout
	return client
}

// Transact writes the transaction's packet and, if a response is expected,
// reads it, checks that it answers this transaction and installs its
// payload into tx.
func (c *Client) Transact(ctx context.Context, tx *packet.Transaction, params transport.LinkParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(ctx, params); err != nil {
		return err
	}
	c.lastActivity = time.Now()
	c.startCloseTimer()

	raw := tx.Packet()
	slog.Debug("send crow command", "device", c.Address, "address", tx.Address, "port", tx.Port,
		"token", tx.Token, "packet", hex.EncodeToString(raw))
	if _, err := c.port.Write(raw); err != nil {
		return err
	}
	if !tx.ResponseExpected {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = c.Timeout
	}
	if timeout <= 0 {
		timeout = defaultResponseTimeout
	}
	frame, err := packet.ReadFrame(c.port, packet.KindResponse, false, time.Now().Add(timeout))
	if err != nil {
		return err
	}
	h := frame.Header
	slog.Debug("recv crow response", "device", c.Address, "address", h.Address, "port", h.Port,
		"token", h.Token, "payload", hex.EncodeToString(frame.Payload))

	if h.Address != tx.Address || h.Port != tx.Port || h.Token != tx.Token {
		return fmt.Errorf("%w: got address %d port %d token %d, sent address %d port %d token %d",
			transport.ErrResponseMismatch, h.Address, h.Port, h.Token, tx.Address, tx.Port, tx.Token)
	}
	tx.SetResponse(frame.Payload)
	return nil
}
