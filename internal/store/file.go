// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package store

import (
	"fmt"
	"io"
	"os"

	"github.com/ffutop/crow-host/internal/host"
)

// FileStorage persists overrides with plain file operations.
type FileStorage struct {
	path string
	file *os.File
	data []byte
}

// NewFileStorage creates a new FileStorage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path: path,
	}
}

func (fs *FileStorage) open() error {
	if fs.file != nil {
		return nil
	}
	// Open file, creating if necessary
	f, err := os.OpenFile(fs.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
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
			return fmt.Errorf("failed to resize file: %w", err)
		}
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to read file: %w", err)
	}
	fs.file = f
	fs.data = data
	return nil
}

// Load restores overrides from the file.
func (fs *FileStorage) Load(p *host.HostSerialPort) error {
	if err := fs.open(); err != nil {
		return err
	}
	s, empty, err := decodeSlots(fs.data)
	if err != nil {
		return fmt.Errorf("%s: %w", fs.path, err)
	}
	if !empty {
		p.Restore(s)
	}
	return nil
}

// Save writes the overrides and syncs the file to disk.
func (fs *FileStorage) Save(p *host.HostSerialPort) error {
	if err := fs.open(); err != nil {
		return err
	}
	encodeSlots(fs.data, p.Overrides())
	if _, err := fs.file.WriteAt(fs.data, 0); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := fs.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file to disk: %w", err)
	}
	return nil
}

// Close the file.
func (fs *FileStorage) Close() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	fs.data = nil
	return err
}
