// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package fletcher implements the Fletcher-16 checksum used by Crow headers
// and payload chunks.
package fletcher

// Sums returns the Fletcher-16 lower and upper sums of data.
//
// Both sums are reduced modulo 255 after every byte. The result is identical
// to accumulating first and reducing once, but holds for inputs of any length.
func Sums(data []byte) (lower, upper byte) {
	var lo, up uint32
	for _, b := range data {
		lo = (lo + uint32(b)) % 255
		up = (up + lo) % 255
	}
	return byte(lo), byte(up)
}

// CheckBytes returns the two bytes which, appended to data, make the
// Fletcher-16 sums of the extended buffer cancel.
func CheckBytes(data []byte) (c0, c1 byte) {
	lo, up := Sums(data)
	c0 = 0xff - byte((uint32(lo)+uint32(up))%255)
	c1 = 0xff - byte((uint32(lo)+uint32(c0))%255)
	return
}

// Verify reports whether c0 and c1 are valid check bytes for data.
func Verify(data []byte, c0, c1 byte) bool {
	lo, up := Sums(data)
	l := (uint32(lo) + uint32(c0)) % 255
	u := (uint32(up) + l) % 255
	l = (l + uint32(c1)) % 255
	u = (u + l) % 255
	return l == 0 && u == 0
}
