// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/crow-host/transport"
	"github.com/grid-x/serial"
)

const (
	serialIdleTimeout = 60 * time.Second
)

// openFunc opens the physical port. Tests replace it.
type openFunc func(cfg *serial.Config) (io.ReadWriteCloser, error)

func openSerial(cfg *serial.Config) (io.ReadWriteCloser, error) {
	p, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// serialPort has configuration and I/O controller.
type serialPort struct {
	// Serial port configuration. BaudRate and Timeout follow the addressed
	// device and may change between transactions.
	serial.Config

	IdleTimeout time.Duration

	open openFunc

	mu sync.Mutex
	// port is platform-dependent data structure for serial port.
	port         io.ReadWriteCloser
	lastActivity time.Time
	closeTimer   *time.Timer
}

func (sp *serialPort) Connect(ctx context.Context, params transport.LinkParams) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	return sp.connect(ctx, params)
}

// connect opens the port with params, reopening it when the line settings
// differ from the open ones. Caller must hold the mutex.
func (sp *serialPort) connect(ctx context.Context, params transport.LinkParams) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if sp.port != nil && !sp.matches(params) {
		slog.Debug("crow: reopening serial port for new line settings",
			"device", sp.Address, "baudrate", params.BaudRate, "timeout", params.Timeout)
		if err := sp.close(); err != nil {
			return err
		}
	}
	if params.BaudRate > 0 {
		sp.BaudRate = params.BaudRate
	}
	if params.Timeout > 0 {
		sp.Timeout = params.Timeout
	}
	if sp.port == nil {
		open := sp.open
		if open == nil {
			open = openSerial
		}
		port, err := open(&sp.Config)
		if err != nil {
			return fmt.Errorf("could not open %s: %w", sp.Address, err)
		}
		sp.port = port
	}
	return nil
}

func (sp *serialPort) matches(params transport.LinkParams) bool {
	return (params.BaudRate <= 0 || params.BaudRate == sp.BaudRate) &&
		(params.Timeout <= 0 || params.Timeout == sp.Timeout)
}

func (sp *serialPort) Close() (err error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	return sp.close()
}

// close closes the serial port if it is connected. Caller must hold the mutex.
func (sp *serialPort) close() (err error) {
	if sp.port != nil {
		err = sp.port.Close()
		sp.port = nil
	}
	return
}

func (sp *serialPort) startCloseTimer() {
	if sp.IdleTimeout <= 0 {
		return
	}
	if sp.closeTimer == nil {
		sp.closeTimer = time.AfterFunc(sp.IdleTimeout, sp.closeIdle)
	} else {
		sp.closeTimer.Reset(sp.IdleTimeout)
	}
}

// closeIdle closes the connection if last activity is passed behind IdleTimeout.
func (sp *serialPort) closeIdle() {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.IdleTimeout <= 0 {
		return
	}

	if idle := time.Since(sp.lastActivity); idle >= sp.IdleTimeout {
		slog.Debug("crow: closing serial port due to idle timeout", "device", sp.Address, "idle", idle)
		sp.close()
	}
}
