// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ir

import (
	"fmt"
	"strings"
)

type (
	// Type of a value.
	Type interface {
		fmt.Stringer
		typeNode()
	}

	// IndexType is the type of integers used to index memory.
	IndexType struct{}

	// IntType is a signless integer of a given bit width.
	IntType struct {
		Width int
	}

	// FloatType is a floating point number of a given bit width.
	FloatType struct {
		Width int
	}

	// PtrType is an opaque pointer in an address space.
	PtrType struct {
		AddrSpace int
	}

	// MemRefType is a typed view on memory.
	// A negative dimension is dynamic.
	MemRefType struct {
		Shape     []int64
		Elem      Type
		AddrSpace int
	}

	// VectorType is a fixed-length vector.
	VectorType struct {
		Len  int64
		Elem Type
	}

	// ArrayType is a fixed-length array stored in memory.
	ArrayType struct {
		Len  int64
		Elem Type
	}

	// StructType is a record of fields.
	// Packed structures have no padding.
	StructType struct {
		Fields []Type
		Packed bool
	}
)

// DynamicSize marks a dynamic memref dimension.
const DynamicSize = -1

var (
	// Index type.
	Index Type = IndexType{}
	// I1 is the boolean type.
	I1 Type = IntType{Width: 1}
	// I8 is the 8-bit integer type.
	I8 Type = IntType{Width: 8}
	// I16 is the 16-bit integer type.
	I16 Type = IntType{Width: 16}
	// I32 is the 32-bit integer type.
	I32 Type = IntType{Width: 32}
	// I64 is the 64-bit integer type.
	I64 Type = IntType{Width: 64}
	// F32 is the single precision floating point type.
	F32 Type = FloatType{Width: 32}
	// F64 is the double precision floating point type.
	F64 Type = FloatType{Width: 64}
	// Ptr is the pointer type in the default address space.
	Ptr Type = PtrType{}
)

func (IndexType) typeNode()  {}
func (IntType) typeNode()    {}
func (FloatType) typeNode()  {}
func (PtrType) typeNode()    {}
func (MemRefType) typeNode() {}
func (VectorType) typeNode() {}
func (ArrayType) typeNode()  {}
func (StructType) typeNode() {}

func (IndexType) String() string   { return "index" }
func (t IntType) String() string   { return fmt.Sprintf("i%d", t.Width) }
func (t FloatType) String() string { return fmt.Sprintf("f%d", t.Width) }

func (t PtrType) String() string {
	if t.AddrSpace == 0 {
		return "ptr"
	}
	return fmt.Sprintf("ptr<%d>", t.AddrSpace)
}

func (t MemRefType) String() string {
	var b strings.Builder
	b.WriteString("memref<")
	for _, d := range t.Shape {
		if d < 0 {
			b.WriteString("?x")
		} else {
			fmt.Fprintf(&b, "%dx", d)
		}
	}
	b.WriteString(t.Elem.String())
	if t.AddrSpace != 0 {
		fmt.Fprintf(&b, ", %d", t.AddrSpace)
	}
	b.WriteString(">")
	return b.String()
}

func (t VectorType) String() string {
	return fmt.Sprintf("vector<%dx%s>", t.Len, t.Elem)
}

func (t ArrayType) String() string {
	return fmt.Sprintf("array<%d x %s>", t.Len, t.Elem)
}

func (t StructType) String() string {
	fields := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = f.String()
	}
	packed := ""
	if t.Packed {
		packed = "packed "
	}
	return fmt.Sprintf("struct<%s(%s)>", packed, strings.Join(fields, ", "))
}

// TypeEqual returns true if two types are structurally equal.
func TypeEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// IsIndex returns true if the type is the index type.
func IsIndex(t Type) bool {
	_, ok := t.(IndexType)
	return ok
}

// IntWidth returns the width of an integer type.
func IntWidth(t Type) (int, bool) {
	it, ok := t.(IntType)
	if !ok {
		return 0, false
	}
	return it.Width, true
}

// IsIntOrIndex returns true for integer and index types.
func IsIntOrIndex(t Type) bool {
	switch t.(type) {
	case IndexType, IntType:
		return true
	}
	return false
}

// IsPtr returns true for pointer types.
func IsPtr(t Type) bool {
	_, ok := t.(PtrType)
	return ok
}

// DynamicMemRef returns a one dimensional memref of dynamic size.
func DynamicMemRef(elem Type, addrSpace int) MemRefType {
	return MemRefType{Shape: []int64{DynamicSize}, Elem: elem, AddrSpace: addrSpace}
}
