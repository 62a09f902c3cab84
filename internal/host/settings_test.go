// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package host

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testDefaults = Defaults{Baudrate: 115200, TransactionTimeout: 250 * time.Millisecond}

func TestDefaultsFallback(t *testing.T) {
	p := NewHostSerialPort("/dev/ttyTEST", testDefaults, nil)
	for addr := 0; addr < 32; addr++ {
		r, err := p.Resolve(addr)
		require.NoError(t, err)
		require.Equal(t, Resolved(testDefaults), r)
	}
}

func TestSetAllThenOne(t *testing.T) {
	p := NewHostSerialPort("/dev/ttyTEST", testDefaults, nil)

	require.NoError(t, p.SetBaudrate(All, 9600))
	for addr := 0; addr < 32; addr++ {
		b, err := p.Baudrate(addr)
		require.NoError(t, err)
		require.Equal(t, 9600, b)
	}

	require.NoError(t, p.SetBaudrate(5, 115200))
	for addr := 0; addr < 32; addr++ {
		b, err := p.Baudrate(addr)
		require.NoError(t, err)
		if addr == 5 {
			require.Equal(t, 115200, b)
		} else {
			require.Equal(t, 9600, b)
		}
	}
}

func TestSettersAreIndependent(t *testing.T) {
	p := NewHostSerialPort("/dev/ttyTEST", testDefaults, nil)

	require.NoError(t, p.SetTransactionTimeout(3, time.Second))
	require.NoError(t, p.SetPropCROrder(3, true))

	timeout, err := p.TransactionTimeout(3)
	require.NoError(t, err)
	require.Equal(t, time.Second, timeout)

	propcr, err := p.PropCROrder(3)
	require.NoError(t, err)
	require.True(t, propcr)

	b, err := p.Baudrate(3)
	require.NoError(t, err)
	require.Equal(t, testDefaults.Baudrate, b)

	propcr, err = p.PropCROrder(4)
	require.NoError(t, err)
	require.False(t, propcr)
}

func TestOverrideSurvivesDefaultChange(t *testing.T) {
	p := NewHostSerialPort("/dev/ttyTEST", testDefaults, nil)
	require.NoError(t, p.SetBaudrate(7, 57600))
	require.NoError(t, p.SetDefaults(Defaults{Baudrate: 19200, TransactionTimeout: time.Second}))

	b, _ := p.Baudrate(7)
	require.Equal(t, 57600, b)
	b, _ = p.Baudrate(8)
	require.Equal(t, 19200, b)
}

func TestReset(t *testing.T) {
	p := NewHostSerialPort("/dev/ttyTEST", testDefaults, nil)
	require.NoError(t, p.SetBaudrate(All, 9600))
	require.NoError(t, p.Reset(2))

	b, _ := p.Baudrate(2)
	require.Equal(t, testDefaults.Baudrate, b)
	b, _ = p.Baudrate(3)
	require.Equal(t, 9600, b)

	require.NoError(t, p.Reset(All))
	b, _ = p.Baudrate(3)
	require.Equal(t, testDefaults.Baudrate, b)
}

func TestAddressOutOfRange(t *testing.T) {
	p := NewHostSerialPort("/dev/ttyTEST", testDefaults, nil)

	for _, addr := range []int{-2, 32, 100} {
		_, err := p.Baudrate(addr)
		require.ErrorIs(t, err, ErrAddressOutOfRange)
		require.ErrorIs(t, p.SetBaudrate(addr, 9600), ErrAddressOutOfRange)
		require.ErrorIs(t, p.SetPropCROrder(addr, true), ErrAddressOutOfRange)
	}

	_, err := p.TransactionTimeout(All)
	require.ErrorIs(t, err, ErrAddressOutOfRange)

	var cerr *ConfigurationError
	require.ErrorAs(t, p.SetTransactionTimeout(40, time.Second), &cerr)
	require.Equal(t, "address", cerr.Field)
	require.Equal(t, 40, cerr.Value)
	require.Equal(t, SettingTransactionTimeout, cerr.Setting)
}

func TestInvalidValues(t *testing.T) {
	p := NewHostSerialPort("/dev/ttyTEST", testDefaults, nil)
	require.ErrorIs(t, p.SetBaudrate(1, 0), ErrInvalidSetting)
	require.ErrorIs(t, p.SetTransactionTimeout(1, -time.Second), ErrInvalidSetting)
	require.ErrorIs(t, p.SetDefaults(Defaults{}), ErrInvalidSetting)
}

func TestOverridesSnapshot(t *testing.T) {
	p := NewHostSerialPort("/dev/ttyTEST", testDefaults, nil)
	require.NoError(t, p.SetBaudrate(1, 9600))

	snap := p.Overrides()
	require.NotNil(t, snap[1].Baudrate)
	*snap[1].Baudrate = 1
	b, _ := p.Baudrate(1)
	require.Equal(t, 9600, b, "snapshot must not alias registry state")

	q := NewHostSerialPort("/dev/ttyOTHER", testDefaults, nil)
	q.Restore(p.Overrides())
	b, _ = q.Baudrate(1)
	require.Equal(t, 9600, b)
}

func TestConcurrentAccess(t *testing.T) {
	p := NewHostSerialPort("/dev/ttyTEST", testDefaults, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				_ = p.SetBaudrate(All, 9600+i)
				_ = p.SetPropCROrder(n%32, n%2 == 0)
			}
		}(i)
		go func() {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				if _, err := p.Resolve(n % 32); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	b, _ := p.Baudrate(0)
	require.GreaterOrEqual(t, b, 9600)
	require.Less(t, b, 9608)
}
