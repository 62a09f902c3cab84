// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ffutop/crow-host/crow/packet"
)

// parseSchema turns a field list like "u16be,i8,ascii3,ascii4" into a
// response schema. Integer fields are [iu]<bits>[be|le], big-endian by
// default; ascii3 and ascii4 select the string descriptor width.
func parseSchema(s string) (packet.Schema, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var schema packet.Schema
	for i, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		name := "arg" + strconv.Itoa(i)

		switch part {
		case "ascii3":
			schema = append(schema, packet.ASCII(name, 3))
			continue
		case "ascii4":
			schema = append(schema, packet.ASCII(name, 4))
			continue
		}
		if part == "" || (part[0] != 'i' && part[0] != 'u') {
			return nil, fmt.Errorf("invalid field %q", part)
		}

		order := packet.BigEndian
		width := part[1:]
		switch {
		case strings.HasSuffix(width, "le"):
			order = packet.LittleEndian
			width = strings.TrimSuffix(width, "le")
		case strings.HasSuffix(width, "be"):
			width = strings.TrimSuffix(width, "be")
		}
		bits, err := strconv.Atoi(width)
		if err != nil || bits <= 0 || bits%8 != 0 || bits > 64 {
			return nil, fmt.Errorf("invalid field %q: width must be 8..64 bits in whole bytes", part)
		}

		if part[0] == 'i' {
			schema = append(schema, packet.Int(name, bits/8, order))
		} else {
			schema = append(schema, packet.Uint(name, bits/8, order))
		}
	}
	return schema, nil
}

func printResponse(w io.Writer, tx *packet.Transaction, schema packet.Schema) error {
	if len(schema) == 0 {
		fmt.Fprintf(w, "%d bytes: % X\n", len(tx.Response()), tx.Response())
		fmt.Fprintf(w, "%q\n", tx.Response())
		return nil
	}

	values, err := schema.Decode(tx)
	for i, v := range values {
		switch schema[i].Type {
		case packet.FieldASCII8, packet.FieldASCII16:
			fmt.Fprintf(w, "%s = %q\n", v.Name, v.Str)
		default:
			fmt.Fprintf(w, "%s = %d\n", v.Name, v.Int)
		}
	}
	if err != nil {
		return err
	}
	if tx.Remaining() > 0 {
		rest, _ := tx.UnpackBytes(tx.Remaining())
		fmt.Fprintf(w, "trailing %d bytes: %s\n", len(rest), hex.EncodeToString(rest))
	}
	return nil
}
