// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ffutop/crow-host/crow/packet"
	"github.com/ffutop/crow-host/internal/config"
	"github.com/ffutop/crow-host/transport"
	"github.com/grid-x/serial"
)

// How often the serve loop stops waiting to check for cancellation.
const frameWindow = time.Second

// Server emulates one or more Crow devices on a serial port.
// It answers commands addressed to any of its addresses; broadcasts are
// handled but never answered.
type Server struct {
	Config      config.SerialConfig
	Addresses   []int
	PropCROrder bool

	open openFunc
}

var _ transport.Device = (*Server)(nil)

// NewServer creates a device emulator. With no addresses it answers every
// non-broadcast address.
func NewServer(cfg config.SerialConfig, addresses []int, propcrOrder bool) *Server {
	return &Server{
		Config:      cfg,
		Addresses:   addresses,
		PropCROrder: propcrOrder,
	}
}

// Start opens the serial port and serves commands until ctx is done.
func (s *Server) Start(ctx context.Context, handler transport.CommandHandler) error {
	open := s.open
	if open == nil {
		open = openSerial
	}
	port, err := open(&serial.Config{
		Address:  s.Config.Device,
		BaudRate: s.Config.BaudRate,
		DataBits: s.Config.DataBits,
		StopBits: s.Config.StopBits,
		Parity:   s.Config.Parity,
		Timeout:  s.Config.Timeout, // Read timeout
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.Config.Device, err)
	}
	defer port.Close()
	slog.Info("crow device emulator listening", "device", s.Config.Device, "addresses", s.Addresses)

	// handle close
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	return s.serve(ctx, port, handler)
}

func (s *Server) serve(ctx context.Context, port io.ReadWriter, handler transport.CommandHandler) error {
	frames := packet.NewFrameReader(port, packet.KindCommand, s.PropCROrder)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := frames.Next(time.Now().Add(frameWindow))
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			if !errors.Is(err, packet.ErrRequestTimedOut) {
				slog.Debug("crow: dropped command frame", "device", s.Config.Device, "err", err)
			}
			continue
		}

		h := frame.Header
		if h.Address != packet.BroadcastAddress && !s.accepts(h.Address) {
			continue
		}

		resp, err := handler(ctx, h.Address, h.Port, frame.Payload)
		if err != nil {
			slog.Error("crow command handler failed", "address", h.Address, "port", h.Port, "err", err)
			continue
		}
		if !h.ResponseExpected {
			continue
		}

		raw, err := packet.EncodeResponse(h.Address, h.Port, h.Token, resp)
		if err != nil {
			slog.Error("failed to encode crow response", "address", h.Address, "port", h.Port, "err", err)
			continue
		}
		if _, err := port.Write(raw); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
}

func (s *Server) accepts(address int) bool {
	if len(s.Addresses) == 0 {
		return true
	}
	for _, a := range s.Addresses {
		if a == address {
			return true
		}
	}
	return false
}

func (s *Server) Close() error {
	return nil
}
