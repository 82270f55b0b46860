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

// Package layout computes the size and the alignment of types stored in memory.
package layout

import (
	"github.com/gx-org/affinecfg/ir"
	"github.com/pkg/errors"
)

// Layout is a data layout.
type Layout struct {
	// PointerSize is the size of a pointer in bytes.
	PointerSize int64
	// IndexWidth is the width of the index type in bits.
	IndexWidth int
}

// Default returns the layout of a 64-bit target.
func Default() Layout {
	return Layout{PointerSize: 8, IndexWidth: 64}
}

// ErrNotSized is returned for types without a memory representation.
var ErrNotSized = errors.New("type has no size")

// Size returns the number of bytes read or written when storing a value of type t.
// Arrays and structures include the padding of their elements.
func (l Layout) Size(t ir.Type) (int64, error) {
	switch tT := t.(type) {
	case ir.IndexType:
		return bytesOf(l.IndexWidth), nil
	case ir.IntType:
		return bytesOf(tT.Width), nil
	case ir.FloatType:
		return bytesOf(tT.Width), nil
	case ir.PtrType:
		return l.PointerSize, nil
	case ir.VectorType:
		elem, err := l.Size(tT.Elem)
		if err != nil {
			return 0, err
		}
		return tT.Len * elem, nil
	case ir.ArrayType:
		stride, err := l.Stride(tT.Elem)
		if err != nil {
			return 0, err
		}
		return tT.Len * stride, nil
	case ir.StructType:
		size, err := l.FieldOffset(tT, len(tT.Fields))
		if err != nil {
			return 0, err
		}
		align, err := l.ABIAlignment(tT)
		if err != nil {
			return 0, err
		}
		return AlignTo(size, align), nil
	}
	return 0, errors.Wrapf(ErrNotSized, "%s", t)
}

// Stride returns the distance in bytes between two consecutive elements of type t in an array.
func (l Layout) Stride(t ir.Type) (int64, error) {
	size, err := l.Size(t)
	if err != nil {
		return 0, err
	}
	align, err := l.ABIAlignment(t)
	if err != nil {
		return 0, err
	}
	return AlignTo(size, align), nil
}

// ABIAlignment returns the alignment in bytes required by a type.
func (l Layout) ABIAlignment(t ir.Type) (int64, error) {
	switch tT := t.(type) {
	case ir.IndexType, ir.IntType, ir.FloatType, ir.PtrType, ir.VectorType:
		size, err := l.Size(t)
		if err != nil {
			return 0, err
		}
		return powerOf2Ceil(size), nil
	case ir.ArrayType:
		return l.ABIAlignment(tT.Elem)
	case ir.StructType:
		if tT.Packed {
			return 1, nil
		}
		align := int64(1)
		for _, f := range tT.Fields {
			fa, err := l.ABIAlignment(f)
			if err != nil {
				return 0, err
			}
			align = max(align, fa)
		}
		return align, nil
	}
	return 0, errors.Wrapf(ErrNotSized, "%s", t)
}

// FieldOffset returns the offset in bytes of field i of a structure.
// Passing the number of fields returns the size of the fields with their padding,
// without the trailing padding of the structure.
func (l Layout) FieldOffset(st ir.StructType, i int) (int64, error) {
	if i < 0 || i > len(st.Fields) {
		return 0, errors.Errorf("field %d out of range for %s", i, st)
	}
	var offset int64
	for fi, f := range st.Fields {
		if !st.Packed {
			align, err := l.ABIAlignment(f)
			if err != nil {
				return 0, err
			}
			offset = AlignTo(offset, align)
		}
		if fi == i {
			return offset, nil
		}
		size, err := l.Size(f)
		if err != nil {
			return 0, err
		}
		offset += size
	}
	return offset, nil
}

// AlignTo rounds n up to the nearest multiple of align.
func AlignTo(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

func bytesOf(bits int) int64 {
	return (int64(bits) + 7) / 8
}

func powerOf2Ceil(n int64) int64 {
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}
