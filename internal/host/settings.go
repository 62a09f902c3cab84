// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package host

import (
	"sync"
	"time"

	"github.com/ffutop/crow-host/crow/packet"
	"github.com/ffutop/crow-host/transport"
)

// All addresses every slot in a settings setter.
const All = -1

// Setting names, used in errors and logs.
const (
	SettingBaudrate           = "baudrate"
	SettingTransactionTimeout = "transaction_timeout"
	SettingPropCROrder        = "propcr_order"
)

// Defaults are the port-wide values used when an address has no override.
type Defaults struct {
	Baudrate           int
	TransactionTimeout time.Duration
	PropCROrder        bool
}

// HostSerialSettings holds the overrides of one address. A nil field
// inherits the port default.
type HostSerialSettings struct {
	Baudrate           *int
	TransactionTimeout *time.Duration
	PropCROrder        *bool
}

func (s HostSerialSettings) clone() HostSerialSettings {
	var c HostSerialSettings
	if s.Baudrate != nil {
		c.Baudrate = ptr(*s.Baudrate)
	}
	if s.TransactionTimeout != nil {
		c.TransactionTimeout = ptr(*s.TransactionTimeout)
	}
	if s.PropCROrder != nil {
		c.PropCROrder = ptr(*s.PropCROrder)
	}
	return c
}

// Resolved is the effective configuration of one address.
type Resolved struct {
	Baudrate           int
	TransactionTimeout time.Duration
	PropCROrder        bool
}

// LinkParams returns the line parameters a transport needs.
func (r Resolved) LinkParams() transport.LinkParams {
	return transport.LinkParams{BaudRate: r.Baudrate, Timeout: r.TransactionTimeout}
}

// HostSerialPort is the settings registry of one physical serial port,
// shared by every logical host using that port.
type HostSerialPort struct {
	name string
	link transport.Link

	mu       sync.RWMutex
	defaults Defaults
	slots    [packet.NumAddresses]HostSerialSettings
}

// NewHostSerialPort creates a registry for the named port. Use a
// PortRegistry to guarantee one instance per name.
func NewHostSerialPort(name string, defaults Defaults, link transport.Link) *HostSerialPort {
	return &HostSerialPort{
		name:     name,
		link:     link,
		defaults: defaults,
	}
}

// Name returns the physical port name.
func (p *HostSerialPort) Name() string { return p.name }

// Link returns the transport bound to the port.
func (p *HostSerialPort) Link() transport.Link { return p.link }

// Defaults returns the port-wide defaults.
func (p *HostSerialPort) Defaults() Defaults {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.defaults
}

// SetDefaults replaces the port-wide defaults.
func (p *HostSerialPort) SetDefaults(d Defaults) error {
	if err := validateBaudrate(d.Baudrate); err != nil {
		return err
	}
	if err := validateTimeout(d.TransactionTimeout); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaults = d
	return nil
}

// Baudrate returns the baud rate used for address.
func (p *HostSerialPort) Baudrate(address int) (int, error) {
	r, err := p.resolve(address, SettingBaudrate)
	return r.Baudrate, err
}

// TransactionTimeout returns the response timeout used for address.
func (p *HostSerialPort) TransactionTimeout(address int) (time.Duration, error) {
	r, err := p.resolve(address, SettingTransactionTimeout)
	return r.TransactionTimeout, err
}

// PropCROrder reports whether command payloads to address are PropCR-reordered.
func (p *HostSerialPort) PropCROrder(address int) (bool, error) {
	r, err := p.resolve(address, SettingPropCROrder)
	return r.PropCROrder, err
}

// Resolve returns all effective settings of address under one lock.
func (p *HostSerialPort) Resolve(address int) (Resolved, error) {
	return p.resolve(address, "settings")
}

func (p *HostSerialPort) resolve(address int, setting string) (Resolved, error) {
	if address < 0 || address > packet.MaxAddress {
		return Resolved{}, &ConfigurationError{Setting: setting, Field: "address", Value: address, Err: ErrAddressOutOfRange}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.slots[address]
	r := Resolved(p.defaults)
	if s.Baudrate != nil {
		r.Baudrate = *s.Baudrate
	}
	if s.TransactionTimeout != nil {
		r.TransactionTimeout = *s.TransactionTimeout
	}
	if s.PropCROrder != nil {
		r.PropCROrder = *s.PropCROrder
	}
	return r, nil
}

// SetBaudrate overrides the baud rate of address, or of every address
// when address is All.
func (p *HostSerialPort) SetBaudrate(address, baudrate int) error {
	if err := validateBaudrate(baudrate); err != nil {
		return err
	}
	return p.update(address, SettingBaudrate, func(s *HostSerialSettings) {
		s.Baudrate = ptr(baudrate)
	})
}

// SetTransactionTimeout overrides the response timeout of address, or of
// every address when address is All.
func (p *HostSerialPort) SetTransactionTimeout(address int, timeout time.Duration) error {
	if err := validateTimeout(timeout); err != nil {
		return err
	}
	return p.update(address, SettingTransactionTimeout, func(s *HostSerialSettings) {
		s.TransactionTimeout = ptr(timeout)
	})
}

// SetPropCROrder overrides the byte order mode of address, or of every
// address when address is All.
func (p *HostSerialPort) SetPropCROrder(address int, propcrOrder bool) error {
	return p.update(address, SettingPropCROrder, func(s *HostSerialSettings) {
		s.PropCROrder = ptr(propcrOrder)
	})
}

// Reset drops every override of address, or of every address when
// address is All, so the port defaults apply again.
func (p *HostSerialPort) Reset(address int) error {
	return p.update(address, "settings", func(s *HostSerialSettings) {
		*s = HostSerialSettings{}
	})
}

// Overrides returns a copy of all 32 override slots.
func (p *HostSerialPort) Overrides() [packet.NumAddresses]HostSerialSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out [packet.NumAddresses]HostSerialSettings
	for i, s := range p.slots {
		out[i] = s.clone()
	}
	return out
}

// Restore replaces all 32 override slots.
func (p *HostSerialPort) Restore(slots [packet.NumAddresses]HostSerialSettings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range slots {
		p.slots[i] = s.clone()
	}
}

func (p *HostSerialPort) update(address int, setting string, fn func(*HostSerialSettings)) error {
	if address != All && (address < 0 || address > packet.MaxAddress) {
		return &ConfigurationError{Setting: setting, Field: "address", Value: address, Err: ErrAddressOutOfRange}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if address == All {
		for i := range p.slots {
			fn(&p.slots[i])
		}
		return nil
	}
	fn(&p.slots[address])
	return nil
}

func validateBaudrate(baudrate int) error {
	if baudrate <= 0 {
		return &ConfigurationError{Setting: SettingBaudrate, Field: "value", Value: baudrate, Err: ErrInvalidSetting}
	}
	return nil
}

func validateTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return &ConfigurationError{Setting: SettingTransactionTimeout, Field: "value", Value: timeout, Err: ErrInvalidSetting}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
