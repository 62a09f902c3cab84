// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
	"errors"
	"time"

	"github.com/ffutop/crow-host/crow/packet"
)

// ErrResponseMismatch is returned when a response frame does not answer
// the transaction that was sent.
var ErrResponseMismatch = errors.New("crow: response does not match request")

// LinkParams are the line settings resolved for one addressed device.
type LinkParams struct {
	BaudRate int
	// Timeout bounds the wait for a response once the command is written.
	Timeout time.Duration
}

// Link carries encoded transactions over one physical port.
// Implementations serialise transactions; several logical hosts may share a Link.
type Link interface {
	// Transact writes tx's packet and, when tx expects one, reads the
	// response into tx.
	Transact(ctx context.Context, tx *packet.Transaction, params LinkParams) error
	Close() error
}

// CommandHandler handles one command addressed to an emulated device and
// returns the response payload. The payload is ignored for commands that
// do not expect a response.
type CommandHandler func(ctx context.Context, address, port int, payload []byte) ([]byte, error)

// Device represents the device side of a link, answering commands.
type Device interface {
	// Start serves commands and blocks. It should be called in a goroutine.
	Start(ctx context.Context, handler CommandHandler) error
	Close() error
}
