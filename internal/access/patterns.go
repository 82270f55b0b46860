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

package access

import (
	log "github.com/sirupsen/logrus"

	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/internal/exprbuild"
	"github.com/gx-org/affinecfg/internal/legality"
	"github.com/gx-org/affinecfg/internal/normalize"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/layout"
	"github.com/gx-org/affinecfg/rewrite"
)

// Patterns returns the patterns cleaning up the memref accesses created by Convert.
func Patterns(l layout.Layout) []rewrite.Pattern {
	return []rewrite.Pattern{
		AllocaToMemRef(l),
		GEPOfMemRefAccess,
		IndexCastAddSub,
		MemRefAccessApply,
		SelectCSE,
		TypedMemRef(l),
	}
}

// AllocaToMemRef replaces a stack allocation of a constant number of
// elements, only used by a memref view, by a memref allocation.
func AllocaToMemRef(l layout.Layout) rewrite.Pattern {
	return rewrite.NewPattern("AllocaToMemRef", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
		users := op.Result(0).Users()
		if op.NumOperands() != 1 || len(users) != 1 || users[0].Kind() != ir.PtrToMemRef {
			return false, nil
		}
		view := users[0]
		mt, ok := view.Result(0).Type().(ir.MemRefType)
		if !ok {
			return false, nil
		}
		count, ok := legality.Constant(op.Operand(0))
		if !ok || count <= 0 {
			return false, nil
		}
		elem, ok := op.TypeAttr(ir.AttrElemType)
		if !ok {
			return false, nil
		}
		size, err := l.Size(elem)
		if err != nil {
			return false, nil
		}
		viewSize, err := l.Size(mt.Elem)
		if err != nil || viewSize == 0 || (size*count)%viewSize != 0 {
			return false, nil
		}
		rw.SetInsertionPointBefore(view)
		t := ir.MemRefType{Shape: []int64{size * count / viewSize}, Elem: mt.Elem, AddrSpace: mt.AddrSpace}
		alloca := rw.Create(ir.MemRefAlloca, nil, []ir.Type{t})
		rw.ReplaceOp(view, alloca.Results())
		rw.EraseOp(op)
		return true, nil
	}, ir.LLVMAlloca)
}

// GEPOfMemRefAccess folds a getelementptr with a single index over the
// element type of a memref view into the index of the access.
var GEPOfMemRefAccess = rewrite.NewPattern("GEPOfMemRefAccess", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	acc := ir.AccessOp{Operation: op}
	indices := acc.Indices()
	view := acc.MemRef().DefiningOp()
	if len(indices) != 1 || view == nil || view.Kind() != ir.PtrToMemRef {
		return false, nil
	}
	mt, ok := view.Result(0).Type().(ir.MemRefType)
	if !ok || len(mt.Shape) != 1 {
		return false, nil
	}
	def := view.Operand(0).DefiningOp()
	if def == nil || def.Kind() != ir.LLVMGEP {
		return false, nil
	}
	gep := ir.GEPOp{Operation: def}
	gepIndices := gep.Indices()
	if len(gepIndices) != 1 || !ir.TypeEqual(gep.ElemType(), mt.Elem) {
		return false, nil
	}
	var offset *ir.Value
	if i := gepIndices[0]; i.Value != nil {
		offset = exprbuild.NewIndexConverter(rw).Convert(i.Value)
	} else {
		offset = rw.ConstantIndex(i.Const)
	}
	mem := toMemRef(rw, gep.Base(), mt.Elem)
	index := rw.Binary(ir.ArithAddI, indices[0], offset)
	rw.ModifyInPlace(op, func() {
		op.SetOperand(op.NumOperands()-2, mem)
		op.SetOperand(op.NumOperands()-1, index)
	})
	return true, nil
}, ir.MemRefLoad, ir.MemRefStore)

// IndexCastAddSub distributes an index cast over an addition or a subtraction
// of integers of at least 32 bits.
var IndexCastAddSub = rewrite.NewPattern("IndexCastAddSub", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	if !ir.IsIndex(op.Result(0).Type()) {
		return false, nil
	}
	def := op.Operand(0).DefiningOp()
	if def == nil || (def.Kind() != ir.ArithAddI && def.Kind() != ir.ArithSubI) {
		return false, nil
	}
	if w, ok := ir.IntWidth(def.Result(0).Type()); !ok || w < 32 {
		return false, nil
	}
	x := rw.IndexCast(def.Operand(0), ir.Index)
	y := rw.IndexCast(def.Operand(1), ir.Index)
	rw.ReplaceOp(op, []*ir.Value{rw.Binary(def.Kind(), x, y)})
	return true, nil
}, ir.ArithIndexCast)

type term struct {
	v   *ir.Value
	neg bool
}

// decompose splits a sum of values into its terms which are valid
// affine indices and the remaining terms.
func decompose(v *ir.Value) (affines, rest []term) {
	todo := []term{{v: v}}
	for len(todo) > 0 {
		t := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		if legality.IsValidIndex(t.v) {
			affines = append(affines, t)
			continue
		}
		def := t.v.DefiningOp()
		switch {
		case def == nil:
			rest = append(rest, t)
		case def.Kind() == ir.ArithAddI:
			todo = append(todo, term{def.Operand(1), t.neg}, term{def.Operand(0), t.neg})
		case def.Kind() == ir.ArithSubI:
			todo = append(todo, term{def.Operand(1), !t.neg}, term{def.Operand(0), t.neg})
		default:
			rest = append(rest, t)
		}
	}
	return affines, rest
}

// normalized returns true if the terms consist of a single value which
// cannot be simplified further.
func normalized(affines []term) bool {
	if len(affines) != 1 || affines[0].neg {
		return false
	}
	def := affines[0].v.DefiningOp()
	if def == nil {
		return true
	}
	return def.Kind() == ir.AffineApply || def.HasTrait(ir.ConstantLike)
}

// MemRefAccessApply computes the affine part of the index of a
// one-dimensional memref access with a single affine.apply operation.
var MemRefAccessApply = rewrite.NewPattern("MemRefAccessApply", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	indices := ir.AccessOp{Operation: op}.Indices()
	if len(indices) != 1 {
		return false, nil
	}
	affines, rest := decompose(indices[0])
	if len(affines) == 0 || normalized(affines) {
		return false, nil
	}
	var (
		sum      = affine.Const(0)
		operands = make([]*ir.Value, len(affines))
	)
	for i, t := range affines {
		s := affine.S(i)
		if t.neg {
			s = affine.Neg(s)
		}
		sum = affine.Add(sum, s)
		operands[i] = t.v
	}
	m, operands, err := normalize.New(rw, op).FullyCompose(affine.NewMap(0, len(affines), sum), operands)
	if err != nil {
		return false, err
	}
	if m, operands, err = normalize.Canonicalize(m, operands); err != nil {
		return false, err
	}
	var index *ir.Value
	if c, ok := m.SingleConstant(); ok {
		index = rw.ConstantIndex(c)
	} else {
		index = rw.Apply(m, operands)
	}
	for _, t := range rest {
		kind := ir.ArithAddI
		if t.neg {
			kind = ir.ArithSubI
		}
		index = rw.Binary(kind, index, t.v)
	}
	log.Debugf("index of %s at %s computed by %s", op.Name(), op.Pos, m)
	rw.ModifyInPlace(op, func() {
		op.SetOperand(op.NumOperands()-1, index)
	})
	return true, nil
}, ir.MemRefLoad, ir.MemRefStore)

// SelectCSE moves a select between two additions, or two subtractions,
// to their operands.
var SelectCSE = rewrite.NewPattern("SelectCSE", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	t, f := op.Operand(1).DefiningOp(), op.Operand(2).DefiningOp()
	if t == nil || f == nil || t.Kind() != f.Kind() {
		return false, nil
	}
	if t.Kind() != ir.ArithAddI && t.Kind() != ir.ArithSubI {
		return false, nil
	}
	cond := op.Operand(0)
	x := rw.Select(cond, t.Operand(0), f.Operand(0))
	y := rw.Select(cond, t.Operand(1), f.Operand(1))
	rw.ReplaceOp(op, []*ir.Value{rw.Binary(t.Kind(), x, y)})
	return true, nil
}, ir.ArithSelect)

// typedAccess is a byte vector access of a view converted to a scalar
// by an llvm.bitcast operation.
type typedAccess struct {
	op   ir.AccessOp
	cast *ir.Operation
}

// typedAccesses returns the accesses of a byte view if all of them are
// byte vector accesses converted from or to the same scalar type at
// offsets which are multiples of the size of the type.
func typedAccesses(l layout.Layout, view *ir.Value) ([]typedAccess, ir.Type, bool) {
	var (
		accesses []typedAccess
		scalar   ir.Type
	)
	for _, use := range view.Uses() {
		user := use.Owner
		acc := ir.AccessOp{Operation: user}
		var (
			vt, t ir.Type
			cast  *ir.Operation
		)
		switch {
		case user.Kind() == ir.AffineVectorLoad:
			vt = user.Result(0).Type()
			users := user.Result(0).Users()
			if len(users) != 1 || users[0].Kind() != ir.LLVMBitcast {
				return nil, nil, false
			}
			cast, t = users[0], users[0].Result(0).Type()
		case user.Kind() == ir.AffineVectorStore && use.Index == 1:
			vt = acc.StoredValue().Type()
			cast = acc.StoredValue().DefiningOp()
			if cast == nil || cast.Kind() != ir.LLVMBitcast {
				return nil, nil, false
			}
			t = cast.Operand(0).Type()
		default:
			return nil, nil, false
		}
		v, ok := vt.(ir.VectorType)
		if !ok || !ir.TypeEqual(v.Elem, ir.I8) || ir.TypeEqual(t, ir.I8) {
			return nil, nil, false
		}
		if scalar != nil && !ir.TypeEqual(scalar, t) {
			return nil, nil, false
		}
		scalar = t
		if size, err := l.Size(t); err != nil || size != v.Len {
			return nil, nil, false
		}
		m := acc.Map()
		if len(m.Results) != 1 || !affine.IsMultipleOf(m.Results[0], v.Len) {
			return nil, nil, false
		}
		accesses = append(accesses, typedAccess{op: acc, cast: cast})
	}
	return accesses, scalar, scalar != nil
}

// TypedMemRef replaces a byte view of a pointer, only accessed by byte
// vectors immediately converted from or to a scalar type, by a view of
// the scalar type.
func TypedMemRef(l layout.Layout) rewrite.Pattern {
	return rewrite.NewPattern("TypedMemRef", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
		mt, ok := op.Result(0).Type().(ir.MemRefType)
		if !ok || len(mt.Shape) != 1 || !ir.TypeEqual(mt.Elem, ir.I8) {
			return false, nil
		}
		accesses, scalar, ok := typedAccesses(l, op.Result(0))
		if !ok {
			return false, nil
		}
		size, err := l.Size(scalar)
		if err != nil {
			return false, err
		}
		rw.SetInsertionPointAfter(op)
		mem := toMemRef(rw, op.Operand(0), scalar)
		for _, acc := range accesses {
			m := acc.op.Map()
			m = affine.NewMap(m.NumDims, m.NumSymbols, affine.FloorDiv(m.Results[0], affine.Const(size)))
			rw.SetInsertionPointBefore(acc.op.Operation)
			rw.Pos = acc.op.Pos
			if acc.op.IsStore() {
				operands := append([]*ir.Value{acc.cast.Operand(0), mem}, acc.op.Indices()...)
				rw.Create(ir.AffineStore, operands, nil, ir.Named(ir.AttrMap, ir.MapAttr{Map: m}))
				rw.EraseOp(acc.op.Operation)
				continue
			}
			operands := append([]*ir.Value{mem}, acc.op.Indices()...)
			load := rw.Create(ir.AffineLoad, operands, []ir.Type{scalar}, ir.Named(ir.AttrMap, ir.MapAttr{Map: m}))
			rw.ReplaceOp(acc.cast, load.Results())
			rw.EraseOp(acc.op.Operation)
		}
		log.Debugf("typed %d access(es) of the byte view at %s as %s", len(accesses), op.Pos, scalar)
		return true, nil
	}, ir.PtrToMemRef)
}
