// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package store

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/ffutop/crow-host/internal/host"
)

// MmapStorage persists overrides in a memory-mapped file.
type MmapStorage struct {
	path string
	file *os.File
	data mmap.MMap
}

// NewMmapStorage creates a new MmapStorage.
func NewMmapStorage(path string) *MmapStorage {
	return &MmapStorage{
		path: path,
	}
}

func (ms *MmapStorage) open() error {
	if ms.data != nil {
		return nil
	}
	// Open file, creating if necessary
	f, err := os.OpenFile(ms.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open mmap file: %w", err)
	}

	// Ensure file size
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if fi.Size() != int64(totalSize) {
		if err := f.Truncate(int64(totalSize)); err != nil {
			f.Close()
			return fmt.Errorf("failed to resize mmap file: %w", err)
		}
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("mmap failed: %w", err)
	}
	ms.file = f
	ms.data = data
	return nil
}

// Load restores overrides from the mapped file.
func (ms *MmapStorage) Load(p *host.HostSerialPort) error {
	if err := ms.open(); err != nil {
		return err
	}
	s, empty, err := decodeSlots(ms.data)
	if err != nil {
		return fmt.Errorf("%s: %w", ms.path, err)
	}
	if !empty {
		p.Restore(s)
	}
	return nil
}

// Save writes the overrides into the mapping and flushes it to disk.
func (ms *MmapStorage) Save(p *host.HostSerialPort) error {
	if err := ms.open(); err != nil {
		return err
	}
	encodeSlots(ms.data, p.Overrides())
	return ms.data.Flush()
}

// Close unmaps and closes the file.
func (ms *MmapStorage) Close() error {
	var err error
	if ms.data != nil {
		if e := ms.data.Unmap(); e != nil {
			err = e
		}
		ms.data = nil
	}
	if ms.file != nil {
		if e := ms.file.Close(); e != nil {
			err = e
		}
		ms.file = nil
	}
	return err
}
