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
	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/ir/fmterr"
)

// Listener is notified of the structural changes made through a builder.
type Listener interface {
	// NotifyInserted is called after an operation has been inserted.
	NotifyInserted(op *Operation)
	// NotifyModified is called after an operation has been modified in place.
	NotifyModified(op *Operation)
	// NotifyErased is called before an operation is erased.
	NotifyErased(op *Operation)
	// NotifyReplaced is called before the results of an operation are replaced.
	NotifyReplaced(op *Operation, with []*Value)
}

// InsertPoint is a position in a block.
// New operations are inserted before Before or at the end of the block if Before is nil.
type InsertPoint struct {
	Block  *Block
	Before *Operation
}

// Builder creates operations at an insertion point.
type Builder struct {
	ip       InsertPoint
	listener Listener

	// Pos is assigned to every operation created by the builder.
	Pos fmterr.Pos
}

// NewBuilder returns a builder without insertion point.
func NewBuilder(l Listener) *Builder {
	return &Builder{listener: l}
}

// Listener returns the listener of the builder.
func (b *Builder) Listener() Listener {
	return b.listener
}

// InsertionPoint returns the current insertion point.
func (b *Builder) InsertionPoint() InsertPoint {
	return b.ip
}

// RestoreInsertionPoint sets the insertion point.
func (b *Builder) RestoreInsertionPoint(ip InsertPoint) {
	b.ip = ip
}

// SetInsertionPointBefore inserts new operations right before op.
func (b *Builder) SetInsertionPointBefore(op *Operation) {
	b.ip = InsertPoint{Block: op.block, Before: op}
}

// SetInsertionPointAfter inserts new operations right after op.
func (b *Builder) SetInsertionPointAfter(op *Operation) {
	b.ip = InsertPoint{Block: op.block, Before: op.Next()}
}

// SetInsertionPointAfterValue inserts new operations right after the definition of v,
// or at the start of its block if v is a block argument.
func (b *Builder) SetInsertionPointAfterValue(v *Value) {
	if def := v.DefiningOp(); def != nil {
		b.SetInsertionPointAfter(def)
		return
	}
	b.SetInsertionPointToStart(v.OwnerBlock())
}

// SetInsertionPointToStart inserts new operations at the start of a block.
func (b *Builder) SetInsertionPointToStart(blk *Block) {
	b.ip = InsertPoint{Block: blk, Before: blk.Front()}
}

// SetInsertionPointToEnd inserts new operations at the end of a block.
func (b *Builder) SetInsertionPointToEnd(blk *Block) {
	b.ip = InsertPoint{Block: blk}
}

// Insert an operation at the insertion point.
func (b *Builder) Insert(op *Operation) *Operation {
	if b.ip.Before != nil {
		op.MoveBefore(b.ip.Before)
	} else {
		b.ip.Block.Append(op)
	}
	if !op.Pos.IsValid() {
		op.Pos = b.Pos
	}
	if b.listener != nil {
		op.Walk(func(o *Operation) { b.listener.NotifyInserted(o) })
	}
	return op
}

// Create builds an operation and inserts it at the insertion point.
func (b *Builder) Create(kind Kind, operands []*Value, resultTypes []Type, attrs ...NamedAttr) *Operation {
	op := NewOp(kind, operands, resultTypes, numRegions(kind))
	for _, a := range attrs {
		op.SetAttr(a.Name, a.Attr)
	}
	return b.Insert(op)
}

// NamedAttr is an attribute with its name.
type NamedAttr struct {
	Name string
	Attr Attr
}

// Named returns a named attribute.
func Named(name string, a Attr) NamedAttr {
	return NamedAttr{Name: name, Attr: a}
}

func numRegions(k Kind) int {
	switch k {
	case Module, FuncFunc, SCFFor, SCFParallel, AffineFor, AffineParallel, AffineScope:
		return 1
	case SCFIf, AffineIf:
		return 2
	}
	return 0
}

// ConstantInt creates an integer constant of a given type.
func (b *Builder) ConstantInt(t Type, v int64) *Value {
	return b.Create(ArithConstant, nil, []Type{t}, Named(AttrValue, IntAttr{Value: v})).Result(0)
}

// ConstantIndex creates a constant of index type.
func (b *Builder) ConstantIndex(v int64) *Value {
	return b.ConstantInt(Index, v)
}

// Binary creates a binary arithmetic operation.
func (b *Builder) Binary(kind Kind, x, y *Value) *Value {
	return b.Create(kind, []*Value{x, y}, []Type{x.Type()}).Result(0)
}

// Cast creates a cast operation.
func (b *Builder) Cast(kind Kind, v *Value, t Type) *Value {
	return b.Create(kind, []*Value{v}, []Type{t}).Result(0)
}

// IndexCast casts a value from or to the index type.
func (b *Builder) IndexCast(v *Value, t Type) *Value {
	return b.Cast(ArithIndexCast, v, t)
}

// Cmp creates an integer comparison.
func (b *Builder) Cmp(pred Predicate, x, y *Value) *Value {
	return b.Create(ArithCmpI, []*Value{x, y}, []Type{I1}, Named(AttrPredicate, PredicateAttr{Pred: pred})).Result(0)
}

// Select creates a select operation.
func (b *Builder) Select(cond, t, f *Value) *Value {
	return b.Create(ArithSelect, []*Value{cond, t, f}, []Type{t.Type()}).Result(0)
}

// Apply creates an affine.apply operation for a single result map.
func (b *Builder) Apply(m affine.Map, operands []*Value) *Value {
	return b.Create(AffineApply, operands, []Type{Index}, Named(AttrMap, MapAttr{Map: m})).Result(0)
}

// Yield creates a terminator of a given kind.
func (b *Builder) Yield(kind Kind, operands ...*Value) *Operation {
	return b.Create(kind, operands, nil)
}
