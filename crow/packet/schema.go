// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package packet

import "fmt"

// FieldType names how one response argument is laid out on the wire.
type FieldType int

const (
	FieldInt FieldType = iota
	FieldUint
	// FieldASCII8 is a 2-byte offset plus 1-byte length descriptor.
	FieldASCII8
	// FieldASCII16 is a 2-byte offset plus 2-byte length descriptor.
	FieldASCII16
)

// Field is one argument of a response schema.
type Field struct {
	Name  string
	Type  FieldType
	Width int // integer fields only
	Order ByteOrder
}

// Value is a decoded field. Exactly one of Int or Str is meaningful,
// depending on the field type.
type Value struct {
	Name string
	Int  int64
	Str  string
}

// Schema is the ordered list of arguments a device sends in reply to a
// particular command.
type Schema []Field

// Int declares a signed integer field.
func Int(name string, width int, order ByteOrder) Field {
	return Field{Name: name, Type: FieldInt, Width: width, Order: order}
}

// Uint declares an unsigned integer field.
func Uint(name string, width int, order ByteOrder) Field {
	return Field{Name: name, Type: FieldUint, Width: width, Order: order}
}

// ASCII declares a string field. Descriptor width is 3 or 4 bytes.
func ASCII(name string, descriptorWidth int) Field {
	if descriptorWidth == 4 {
		return Field{Name: name, Type: FieldASCII16}
	}
	return Field{Name: name, Type: FieldASCII8}
}

// Decode reads every field of s from the transaction's response, starting
// at the current cursor.
func (s Schema) Decode(tx *Transaction) ([]Value, error) {
	values := make([]Value, 0, len(s))
	for _, f := range s {
		v := Value{Name: f.Name}
		var err error
		switch f.Type {
		case FieldInt:
			v.Int, err = tx.UnpackInt(f.Width, f.Order, true)
		case FieldUint:
			v.Int, err = tx.UnpackInt(f.Width, f.Order, false)
		case FieldASCII8:
			v.Str, err = tx.UnpackASCII(3)
		case FieldASCII16:
			v.Str, err = tx.UnpackASCII(4)
		default:
			err = fmt.Errorf("%w: unknown field type %d", ErrValidation, f.Type)
		}
		if err != nil {
			return values, fmt.Errorf("field %q: %w", f.Name, err)
		}
		values = append(values, v)
	}
	return values, nil
}
