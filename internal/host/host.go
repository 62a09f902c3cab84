// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ffutop/crow-host/crow/packet"
	"github.com/ffutop/crow-host/transport"
)

var ErrNoLink = errors.New("crow: serial port has no link")

// Host is one logical user of a shared serial port. It allocates tokens,
// applies the per-address settings and retries failed transactions.
type Host struct {
	port *HostSerialPort

	// MaxRetries is the number of extra attempts after a checksum failure,
	// a response mismatch or a timeout.
	MaxRetries int

	token atomic.Uint32
}

// NewHost creates a host on port. The first token is derived from the clock
// so that consecutive processes do not reuse the same token sequence.
func NewHost(port *HostSerialPort, maxRetries int) *Host {
	h := &Host{port: port, MaxRetries: max(maxRetries, 0)}
	h.token.Store(uint32(time.Now().UnixNano()))
	return h
}

// Port returns the settings registry this host uses.
func (h *Host) Port() *HostSerialPort { return h.port }

func (h *Host) nextToken() int {
	return int(h.token.Add(1) & packet.MaxToken)
}

// Send performs one transaction with the device at address and returns it,
// with the response installed when one was expected. Each retry is
// re-encoded with a new token.
func (h *Host) Send(ctx context.Context, address, port int, command []byte, responseExpected bool) (*packet.Transaction, error) {
	link := h.port.Link()
	if link == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoLink, h.port.Name())
	}
	settings, err := h.port.Resolve(address)
	if err != nil {
		return nil, err
	}

	retries := max(h.MaxRetries, 0)
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tx, err := packet.NewTransaction(address, port, command, responseExpected, h.nextToken(), settings.PropCROrder)
		if err != nil {
			return nil, err
		}

		lastErr = link.Transact(ctx, tx, settings.LinkParams())
		if lastErr == nil {
			return tx, nil
		}
		if !retryable(lastErr) {
			return nil, lastErr
		}
		slog.Warn("crow transaction failed, retrying",
			"port", h.port.Name(), "address", address, "crowPort", port,
			"token", tx.Token, "attempt", attempt+1, "err", lastErr)
	}
	return nil, fmt.Errorf("transaction to address %d failed after %d attempts: %w", address, retries+1, lastErr)
}

func retryable(err error) bool {
	return errors.Is(err, packet.ErrChecksum) ||
		errors.Is(err, packet.ErrRequestTimedOut) ||
		errors.Is(err, transport.ErrResponseMismatch)
}
