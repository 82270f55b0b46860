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

package layout_test

import (
	"testing"

	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/layout"
	"github.com/pkg/errors"
)

func TestSizeAndAlignment(t *testing.T) {
	tests := []struct {
		typ   ir.Type
		size  int64
		align int64
	}{
		{typ: ir.I1, size: 1, align: 1},
		{typ: ir.IntType{Width: 24}, size: 3, align: 4},
		{typ: ir.I32, size: 4, align: 4},
		{typ: ir.Index, size: 8, align: 8},
		{typ: ir.F64, size: 8, align: 8},
		{typ: ir.Ptr, size: 8, align: 8},
		{typ: ir.VectorType{Len: 4, Elem: ir.F32}, size: 16, align: 16},
		{typ: ir.ArrayType{Len: 3, Elem: ir.IntType{Width: 24}}, size: 12, align: 4},
		{
			typ:   ir.StructType{Fields: []ir.Type{ir.I8, ir.I32, ir.I8}},
			size:  12,
			align: 4,
		},
		{
			typ:   ir.StructType{Fields: []ir.Type{ir.I8, ir.I32, ir.I8}, Packed: true},
			size:  6,
			align: 1,
		},
		{
			typ:   ir.ArrayType{Len: 2, Elem: ir.StructType{Fields: []ir.Type{ir.I64, ir.I8}}},
			size:  32,
			align: 8,
		},
	}
	l := layout.Default()
	for i, test := range tests {
		size, err := l.Size(test.typ)
		if err != nil {
			t.Errorf("test %d: %v", i, err)
			continue
		}
		if size != test.size {
			t.Errorf("test %d: size of %s is %d but want %d", i, test.typ, size, test.size)
		}
		align, err := l.ABIAlignment(test.typ)
		if err != nil {
			t.Errorf("test %d: %v", i, err)
			continue
		}
		if align != test.align {
			t.Errorf("test %d: alignment of %s is %d but want %d", i, test.typ, align, test.align)
		}
	}
}

func TestFieldOffset(t *testing.T) {
	st := ir.StructType{Fields: []ir.Type{ir.I8, ir.I64, ir.I16, ir.I32}}
	packed := ir.StructType{Fields: st.Fields, Packed: true}
	tests := []struct {
		st    ir.StructType
		field int
		want  int64
	}{
		{st: st, field: 0, want: 0},
		{st: st, field: 1, want: 8},
		{st: st, field: 2, want: 16},
		{st: st, field: 3, want: 20},
		{st: st, field: 4, want: 24},
		{st: packed, field: 1, want: 1},
		{st: packed, field: 2, want: 9},
		{st: packed, field: 3, want: 11},
	}
	l := layout.Default()
	for i, test := range tests {
		got, err := l.FieldOffset(test.st, test.field)
		if err != nil {
			t.Errorf("test %d: %v", i, err)
			continue
		}
		if got != test.want {
			t.Errorf("test %d: offset of field %d in %s is %d but want %d", i, test.field, test.st, got, test.want)
		}
	}
	if _, err := l.FieldOffset(st, 5); err == nil {
		t.Errorf("expected an error for a field out of range")
	}
}

func TestNotSized(t *testing.T) {
	_, err := layout.Default().Size(ir.DynamicMemRef(ir.F32, 0))
	if !errors.Is(err, layout.ErrNotSized) {
		t.Errorf("got error %v but want %v", err, layout.ErrNotSized)
	}
}

func TestPointerSize(t *testing.T) {
	l := layout.Layout{PointerSize: 4, IndexWidth: 32}
	st := ir.StructType{Fields: []ir.Type{ir.I8, ir.Ptr, ir.Index}}
	got, err := l.Size(st)
	if err != nil {
		t.Fatal(err)
	}
	if got != 12 {
		t.Errorf("got size %d but want 12", got)
	}
}
