// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package store

import (
	"log/slog"

	"github.com/ffutop/crow-host/internal/host"
)

// Storage persists the per-address overrides of one serial port.
type Storage interface {
	// Load restores the stored overrides into p. A store with no data
	// leaves p unchanged.
	Load(p *host.HostSerialPort) error

	// Save writes the current overrides of p.
	Save(p *host.HostSerialPort) error

	Close() error
}

// New returns the storage backend named by kind ("memory", "file" or
// "mmap"). Unknown kinds fall back to memory.
func New(kind, path string) Storage {
	switch kind {
	case "file":
		slog.Debug("using file settings store", "path", path)
		return NewFileStorage(path)
	case "mmap":
		slog.Debug("using mmap settings store", "path", path)
		return NewMmapStorage(path)
	case "", "memory":
	default:
		slog.Warn("unknown settings store type, falling back to memory", "type", kind)
	}
	return NewMemoryStorage()
}
