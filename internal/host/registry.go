// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package host

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/ffutop/crow-host/transport"
)

// LinkOpener creates the transport for a physical port name. It is called
// at most once per name.
type LinkOpener func(name string) transport.Link

// PortRegistry maps physical port names to their single HostSerialPort so
// that settings changes are seen by every user of the same port.
type PortRegistry struct {
	open LinkOpener

	mu    sync.Mutex
	ports map[string]*HostSerialPort
}

// NewPortRegistry creates an empty registry. open may be nil for
// settings-only use, in which case ports have no link.
func NewPortRegistry(open LinkOpener) *PortRegistry {
	return &PortRegistry{
		open:  open,
		ports: make(map[string]*HostSerialPort),
	}
}

// Port returns the registry entry for name, creating it with defaults if it
// does not exist yet. defaults are ignored for an existing entry.
func (r *PortRegistry) Port(name string, defaults Defaults) *HostSerialPort {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.ports[name]; ok {
		return p
	}
	var link transport.Link
	if r.open != nil {
		link = r.open(name)
	}
	p := NewHostSerialPort(name, defaults, link)
	r.ports[name] = p
	slog.Debug("registered serial port", "port", name, "baudrate", defaults.Baudrate, "timeout", defaults.TransactionTimeout)
	return p
}

// Lookup returns the entry for name if one exists.
func (r *PortRegistry) Lookup(name string) (*HostSerialPort, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.ports[name]
	return p, ok
}

// Names returns the registered port names in sorted order.
func (r *PortRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.ports))
	for name := range r.ports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every link and empties the registry.
func (r *PortRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, p := range r.ports {
		if p.link != nil {
			if err := p.link.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		delete(r.ports, name)
	}
	return errors.Join(errs...)
}
