// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultBaudRate           = 115200
	DefaultTransactionTimeout = 500 * time.Millisecond
	DefaultMaxRetries         = 2
)

// Config defines the global configuration structure
type Config struct {
	Ports []PortConfig `mapstructure:"ports"`
	Log   LogConfig    `mapstructure:"log"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// PortConfig defines one physical serial port shared by up to 32 devices.
type PortConfig struct {
	Serial SerialConfig `mapstructure:"serial"`

	// Port-wide defaults; BaudRate comes from Serial.
	TransactionTimeout time.Duration `mapstructure:"transaction_timeout"`
	PropCROrder        bool          `mapstructure:"propcr_order"`

	MaxRetries int            `mapstructure:"max_retries"`
	Store      StoreConfig    `mapstructure:"store"`
	Devices    []DeviceConfig `mapstructure:"devices"`
}

// DeviceConfig holds per-address overrides. Unset fields inherit the port defaults.
type DeviceConfig struct {
	Address            int            `mapstructure:"address"`
	BaudRate           *int           `mapstructure:"baud_rate"`
	TransactionTimeout *time.Duration `mapstructure:"transaction_timeout"`
	PropCROrder        *bool          `mapstructure:"propcr_order"`
}

// StoreConfig defines where per-address overrides are persisted
type StoreConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap"
	Path string `mapstructure:"path"` // File path for "file/mmap" type
}

// SerialConfig defines serial line settings
type SerialConfig struct {
	Device   string        `mapstructure:"device"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"`
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// LoadConfig loads configuration from file. With no explicit file, a
// missing config.yaml in the search path yields an empty configuration.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/crow/")
		v.AddConfigPath("$HOME/.crow")
		v.AddConfigPath(".")
	}

	// Set defaults
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate / Fixups
	for i := range config.Ports {
		if err := config.Ports[i].fixup(); err != nil {
			return nil, fmt.Errorf("ports[%d]: %w", i, err)
		}
	}

	return &config, nil
}

// Port returns the configuration of the named device, if present.
func (c *Config) Port(device string) (PortConfig, bool) {
	for _, p := range c.Ports {
		if p.Serial.Device == device {
			return p, true
		}
	}
	return PortConfig{}, false
}

// NewPortConfig returns a port configuration with defaults applied, for
// ports that are not listed in the config file.
func NewPortConfig(device string) PortConfig {
	p := PortConfig{Serial: SerialConfig{Device: device}, MaxRetries: DefaultMaxRetries}
	_ = p.fixup()
	return p
}

func (p *PortConfig) fixup() error {
	if p.Serial.Device == "" {
		return fmt.Errorf("serial.device is required")
	}
	FixupSerial(&p.Serial)
	if p.TransactionTimeout <= 0 {
		p.TransactionTimeout = DefaultTransactionTimeout
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}

	seen := make(map[int]bool)
	for _, d := range p.Devices {
		if d.Address < 0 || d.Address > 31 {
			return fmt.Errorf("device address %d out of range [0, 31]", d.Address)
		}
		if seen[d.Address] {
			return fmt.Errorf("device address %d configured twice", d.Address)
		}
		seen[d.Address] = true
		if d.BaudRate != nil && *d.BaudRate <= 0 {
			return fmt.Errorf("device %d: invalid baud_rate %d", d.Address, *d.BaudRate)
		}
		if d.TransactionTimeout != nil && *d.TransactionTimeout <= 0 {
			return fmt.Errorf("device %d: invalid transaction_timeout %v", d.Address, *d.TransactionTimeout)
		}
	}
	return nil
}

// FixupSerial fills unset serial line settings with 8N1 at the default rate.
func FixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Parity == "" {
		s.Parity = "N"
	}
	if s.BaudRate == 0 {
		s.BaudRate = DefaultBaudRate
	}
	if s.DataBits == 0 {
		s.DataBits = 8
	}
	if s.StopBits == 0 {
		s.StopBits = 1
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultTransactionTimeout
	}
}
