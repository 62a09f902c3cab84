// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ffutop/crow-host/internal/host"
	"github.com/stretchr/testify/require"
)

var defaults = host.Defaults{Baudrate: 115200, TransactionTimeout: 250 * time.Millisecond}

func TestPersistentStores(t *testing.T) {
	for _, kind := range []string{"file", "mmap"} {
		t.Run(kind, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.bin")

			p := host.NewHostSerialPort("/dev/ttyTEST", defaults, nil)
			require.NoError(t, p.SetBaudrate(host.All, 9600))
			require.NoError(t, p.SetBaudrate(5, 57600))
			require.NoError(t, p.SetTransactionTimeout(6, 1500*time.Millisecond))
			require.NoError(t, p.SetPropCROrder(31, false))
			require.NoError(t, p.SetPropCROrder(30, true))

			s := New(kind, path)
			require.NoError(t, s.Load(p), "new file must load cleanly")
			require.NoError(t, s.Save(p))
			require.NoError(t, s.Close())

			fi, err := os.Stat(path)
			require.NoError(t, err)
			require.Equal(t, int64(totalSize), fi.Size())

			q := host.NewHostSerialPort("/dev/ttyTEST", defaults, nil)
			s = New(kind, path)
			require.NoError(t, s.Load(q))
			require.NoError(t, s.Close())

			require.Equal(t, p.Overrides(), q.Overrides())
			b, _ := q.Baudrate(5)
			require.Equal(t, 57600, b)
			b, _ = q.Baudrate(0)
			require.Equal(t, 9600, b)
			timeout, _ := q.TransactionTimeout(6)
			require.Equal(t, 1500*time.Millisecond, timeout)
			timeout, _ = q.TransactionTimeout(7)
			require.Equal(t, defaults.TransactionTimeout, timeout)
			propcr, _ := q.PropCROrder(30)
			require.True(t, propcr)
		})
	}
}

func TestBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bin")
	junk := make([]byte, totalSize)
	copy(junk, "JUNK")
	require.NoError(t, os.WriteFile(path, junk, 0644))

	s := NewFileStorage(path)
	defer s.Close()
	err := s.Load(host.NewHostSerialPort("x", defaults, nil))
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestMemoryStorage(t *testing.T) {
	s := New("", "")
	p := host.NewHostSerialPort("x", defaults, nil)
	require.NoError(t, s.Load(p))
	require.NoError(t, s.Save(p))
	require.NoError(t, s.Close())

	_, ok := New("bogus", "").(*MemoryStorage)
	require.True(t, ok)
}

func TestSubMillisecondTimeoutRoundsUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.bin")
	p := host.NewHostSerialPort("/dev/ttyTEST", defaults, nil)
	require.NoError(t, p.SetTransactionTimeout(3, 500*time.Microsecond))
	require.NoError(t, p.SetTransactionTimeout(4, 1500*time.Microsecond))

	s := NewFileStorage(path)
	require.NoError(t, s.Save(p))
	require.NoError(t, s.Close())

	q := host.NewHostSerialPort("/dev/ttyTEST", defaults, nil)
	s = NewFileStorage(path)
	defer s.Close()
	require.NoError(t, s.Load(q))

	timeout, err := q.TransactionTimeout(3)
	require.NoError(t, err)
	require.Equal(t, time.Millisecond, timeout)
	timeout, err = q.TransactionTimeout(4)
	require.NoError(t, err)
	require.Equal(t, 2*time.Millisecond, timeout)
}
