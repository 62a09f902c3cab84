// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAddresses(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int
		wantErr bool
	}{
		{"Empty", "", nil, false},
		{"Single", "5", []int{5}, false},
		{"List", "1, 2,31", []int{1, 2, 31}, false},
		{"Range", "3-6", []int{3, 4, 5, 6}, false},
		{"Mixed", "0,8-9", []int{0, 8, 9}, false},
		{"OutOfRange", "32", nil, true},
		{"RangeOutOfRange", "30-33", nil, true},
		{"Reversed", "6-3", nil, true},
		{"Garbage", "x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddresses(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
