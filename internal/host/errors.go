// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package host

import (
	"errors"
	"fmt"
)

var (
	ErrAddressOutOfRange = errors.New("crow: address out of range")
	ErrInvalidSetting    = errors.New("crow: invalid setting value")
)

// ConfigurationError reports a rejected settings call.
type ConfigurationError struct {
	Setting string
	Field   string
	Value   any
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s=%v (%s)", e.Err, e.Field, e.Value, e.Setting)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
