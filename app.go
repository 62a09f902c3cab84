// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ffutop/crow-host/internal/config"
	"github.com/ffutop/crow-host/internal/host"
	"github.com/ffutop/crow-host/internal/store"
	"github.com/ffutop/crow-host/transport"
	crowtransport "github.com/ffutop/crow-host/transport/crow"
	"github.com/ffutop/crow-host/transport/local"
)

// app wires configuration, the port registry and the settings stores.
type app struct {
	cfg      *config.Config
	registry *host.PortRegistry
	stores   map[string]store.Storage
}

func newApp(cfg *config.Config, loopback bool) *app {
	a := &app{cfg: cfg, stores: make(map[string]store.Storage)}
	a.registry = host.NewPortRegistry(func(name string) transport.Link {
		if loopback {
			return local.NewClient(local.Echo)
		}
		pc, _ := a.portConfig(name)
		return crowtransport.NewClient(pc.Serial)
	})
	return a
}

// portConfig returns the configuration for device. An empty device selects
// the only configured port.
func (a *app) portConfig(device string) (config.PortConfig, error) {
	if device == "" {
		if len(a.cfg.Ports) == 1 {
			return a.cfg.Ports[0], nil
		}
		return config.PortConfig{}, errors.New("no --device given and config does not name exactly one port")
	}
	if pc, ok := a.cfg.Port(device); ok {
		return pc, nil
	}
	return config.NewPortConfig(device), nil
}

// openPort returns the shared settings registry for device with configured
// and persisted overrides applied.
func (a *app) openPort(device string) (*host.HostSerialPort, config.PortConfig, error) {
	pc, err := a.portConfig(device)
	if err != nil {
		return nil, pc, err
	}
	name := pc.Serial.Device
	if _, loaded := a.stores[name]; loaded {
		p, _ := a.registry.Lookup(name)
		return p, pc, nil
	}

	p := a.registry.Port(name, host.Defaults{
		Baudrate:           pc.Serial.BaudRate,
		TransactionTimeout: pc.TransactionTimeout,
		PropCROrder:        pc.PropCROrder,
	})
	if err := applyDevices(p, pc.Devices); err != nil {
		return nil, pc, err
	}

	st := store.New(pc.Store.Type, pc.Store.Path)
	if err := st.Load(p); err != nil {
		st.Close()
		return nil, pc, fmt.Errorf("failed to load settings for %s: %w", name, err)
	}
	a.stores[name] = st
	return p, pc, nil
}

func (a *app) save(p *host.HostSerialPort) error {
	st, ok := a.stores[p.Name()]
	if !ok {
		return fmt.Errorf("no settings store for %s", p.Name())
	}
	return st.Save(p)
}

func (a *app) Close() {
	for name, st := range a.stores {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close settings store", "port", name, "err", err)
		}
	}
	if err := a.registry.Close(); err != nil {
		slog.Error("Failed to close serial ports", "err", err)
	}
}

func applyDevices(p *host.HostSerialPort, devices []config.DeviceConfig) error {
	for _, d := range devices {
		if d.BaudRate != nil {
			if err := p.SetBaudrate(d.Address, *d.BaudRate); err != nil {
				return err
			}
		}
		if d.TransactionTimeout != nil {
			if err := p.SetTransactionTimeout(d.Address, *d.TransactionTimeout); err != nil {
				return err
			}
		}
		if d.PropCROrder != nil {
			if err := p.SetPropCROrder(d.Address, *d.PropCROrder); err != nil {
				return err
			}
		}
	}
	return nil
}
