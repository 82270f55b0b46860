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

package exprbuild

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/layout"
)

// AccessBuilder builds the byte offset of a pointer from a base pointer.
type AccessBuilder struct {
	*Builder
	base *ir.Value
}

// NewAccess returns a builder for the address accessed by user.
func NewAccess(user *ir.Operation, legalizeSymbols bool) *AccessBuilder {
	return &AccessBuilder{Builder: New(user, legalizeSymbols)}
}

// Build the offset of addr from its base pointer.
// The base pointer is the first pointer which is neither computed
// by a getelementptr nor by an address space cast.
func (b *AccessBuilder) Build(l layout.Layout, addr *ir.Value) error {
	offset := affine.Const(0)
	for {
		def := addr.DefiningOp()
		if def == nil {
			break
		}
		if def.Kind() == ir.LLVMAddrSpaceCast {
			addr = def.Operand(0)
			continue
		}
		if def.Kind() != ir.LLVMGEP {
			break
		}
		gep := ir.GEPOp{Operation: def}
		e, err := b.gepOffset(l, gep)
		if err != nil {
			return err
		}
		offset = affine.Add(offset, e)
		addr = gep.Base()
	}
	b.base = addr
	b.expr = affine.Simplify(offset)
	log.Debugf("offset of access at %s: %s from %%%s", b.user.Pos, b.expr, addr.Name)
	return nil
}

// Base returns the base pointer of the access.
func (b *AccessBuilder) Base() *ir.Value {
	return b.base
}

func (b *AccessBuilder) index(i ir.GEPIndex) (affine.Expr, error) {
	if i.Value == nil {
		return affine.Const(i.Const), nil
	}
	return b.build(i.Value)
}

// gepOffset returns the byte offset computed by a getelementptr.
func (b *AccessBuilder) gepOffset(l layout.Layout, gep ir.GEPOp) (affine.Expr, error) {
	indices := gep.Indices()
	if len(indices) == 0 {
		return nil, errors.Errorf("%s at %s has no index", gep.Name(), gep.Pos)
	}
	current := gep.ElemType()
	first, err := b.index(indices[0])
	if err != nil {
		return nil, err
	}
	size, err := l.Size(current)
	if err != nil {
		return nil, errors.Wrapf(ErrNotAffine, "%v", err)
	}
	offset := affine.Mul(first, affine.Const(size))
	for _, index := range indices[1:] {
		switch currentT := current.(type) {
		case ir.ArrayType:
			e, err := b.index(index)
			if err != nil {
				return nil, err
			}
			size, err := l.Size(currentT.Elem)
			if err != nil {
				return nil, errors.Wrapf(ErrNotAffine, "%v", err)
			}
			offset = affine.Add(offset, affine.Mul(e, affine.Const(size)))
			current = currentT.Elem
		case ir.StructType:
			if index.Value != nil {
				return nil, errors.Wrapf(ErrNotAffine, "dynamic index into %s", currentT)
			}
			field := int(index.Const)
			if field < 0 || field >= len(currentT.Fields) {
				return nil, errors.Errorf("field %d out of range for %s", field, currentT)
			}
			fieldOffset, err := l.FieldOffset(currentT, field)
			if err != nil {
				return nil, errors.Wrapf(ErrNotAffine, "%v", err)
			}
			offset = affine.Add(offset, affine.Const(fieldOffset))
			current = currentT.Fields[field]
		default:
			log.Debugf("unsupported type %s for offset computations", current)
			return nil, errors.Wrapf(ErrNotAffine, "offset into %s", current)
		}
	}
	return offset, nil
}
