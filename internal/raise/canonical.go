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

package raise

import (
	"slices"

	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/internal/legality"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/rewrite"
)

func sameMap(m affine.Map, ops []*ir.Value, n affine.Map, nops []*ir.Value) bool {
	return m.Equal(n) && slices.Equal(ops, nops)
}

// CanonicalizeApply composes affine.apply operations with the computation
// of their operands. An application reduced to a constant or to one of its
// operands is replaced by it.
var CanonicalizeApply = rewrite.NewPattern("canonicalize-apply", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	m, _ := op.MapAttr(ir.AttrMap)
	ops := op.Operands()
	n, nops, err := normalizeMap(rw, op, m, ops)
	if err != nil {
		return false, err
	}
	n = n.RemoveDuplicateResults()
	if len(n.Results) == 1 {
		if c, ok := affine.AsConstant(n.Results[0]); ok {
			rw.ReplaceOp(op, []*ir.Value{rw.ConstantIndex(c)})
			return true, nil
		}
		if v := forwarded(n, nops); v != nil {
			rw.ReplaceOp(op, []*ir.Value{v})
			return true, nil
		}
	}
	if sameMap(m, ops, n, nops) {
		return false, nil
	}
	rw.ModifyInPlace(op, func() {
		op.SetAttr(ir.AttrMap, ir.MapAttr{Map: n})
		op.SetOperands(nops)
	})
	return true, nil
}, ir.AffineApply)

// forwarded returns the operand returned unchanged by a single result map.
func forwarded(m affine.Map, operands []*ir.Value) *ir.Value {
	var v *ir.Value
	switch r := m.Results[0].(type) {
	case affine.Dim:
		v = operands[r.Pos]
	case affine.Symbol:
		v = operands[m.NumDims+r.Pos]
	default:
		return nil
	}
	if !ir.IsIndex(v.Type()) {
		return nil
	}
	return v
}

// CanonicalizeForBounds normalizes the bound maps of affine.for operations.
var CanonicalizeForBounds = rewrite.NewPattern("canonicalize-for-bounds", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	loop := ir.AffineForOp{Operation: op}
	lb, lbOps := loop.LowerMap(), loop.LowerOperands()
	ub, ubOps := loop.UpperMap(), loop.UpperOperands()
	nlb, nlbOps, err := normalizeMap(rw, op, lb, lbOps)
	if err != nil {
		return false, err
	}
	nub, nubOps, err := normalizeMap(rw, op, ub, ubOps)
	if err != nil {
		return false, err
	}
	nlb, nub = nlb.RemoveDuplicateResults(), nub.RemoveDuplicateResults()
	if sameMap(lb, lbOps, nlb, nlbOps) && sameMap(ub, ubOps, nub, nubOps) {
		return false, nil
	}
	rw.ModifyInPlace(op, func() {
		loop.SetBounds(nlb, nlbOps, nub, nubOps)
	})
	return true, nil
}, ir.AffineFor)

// CanonicalizeIfSet normalizes the condition of affine.if operations.
var CanonicalizeIfSet = rewrite.NewPattern("canonicalize-if-set", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	s, _ := op.SetAttrOf(ir.AttrCondition)
	ops := op.Operands()
	n, nops, err := normalizeSet(rw, op, s, ops)
	if err != nil {
		return false, err
	}
	if s.Equal(n) && slices.Equal(ops, nops) {
		return false, nil
	}
	rw.ModifyInPlace(op, func() {
		op.SetAttr(ir.AttrCondition, ir.SetAttr{Set: n})
		op.SetOperands(nops)
	})
	return true, nil
}, ir.AffineIf)

// AffineAccessFixup normalizes the maps of affine loads and stores.
var AffineAccessFixup = rewrite.NewPattern("affine-access-fixup", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	access := ir.AccessOp{Operation: op}
	m, ops := access.Map(), access.Indices()
	n, nops, err := normalizeMap(rw, op, m, ops)
	if err != nil {
		return false, err
	}
	if sameMap(m, ops, n, nops) {
		return false, nil
	}
	rw.ModifyInPlace(op, func() {
		access.SetIndices(n, nops)
	})
	return true, nil
}, ir.AffineLoad, ir.AffineStore, ir.AffineVectorLoad, ir.AffineVectorStore)

// CanonicalizeIndexCast folds index casts of constants and round trips
// of integers through the index type.
var CanonicalizeIndexCast = rewrite.NewPattern("canonicalize-index-cast", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	input := op.Operand(0)
	t := op.Result(0).Type()
	if def := input.DefiningOp(); def != nil && def.Kind() == op.Kind() && !ir.IsIndex(t) && ir.TypeEqual(def.Operand(0).Type(), t) {
		rw.ReplaceOp(op, []*ir.Value{def.Operand(0)})
		return true, nil
	}
	c, ok := ir.ConstantValue(input)
	if !ok {
		return false, nil
	}
	if w, isInt := ir.IntWidth(input.Type()); isInt && op.Kind() == ir.ArithIndexCastUI && w < 64 && c < 0 {
		c += 1 << w
	}
	rw.ReplaceOp(op, []*ir.Value{rw.ConstantInt(t, c)})
	return true, nil
}, ir.ArithIndexCast, ir.ArithIndexCastUI)

// LoadRaising replaces memref.load operations with valid indices by affine.load.
var LoadRaising = rewrite.NewPattern("load-raising", raiseAccess, ir.MemRefLoad)

// StoreRaising replaces memref.store operations with valid indices by affine.store.
var StoreRaising = rewrite.NewPattern("store-raising", raiseAccess, ir.MemRefStore)

func raiseAccess(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	access := ir.AccessOp{Operation: op}
	indices := access.Indices()
	for _, v := range indices {
		if !legality.IsValidIndex(v) {
			return false, nil
		}
	}
	rw.SetInsertionPointBefore(op)
	m, operands, err := normalizeMap(rw, op, affine.MultiSymbolIdentityMap(len(indices)), indices)
	if err != nil {
		return false, err
	}
	kind, prefix := ir.AffineLoad, []*ir.Value{access.MemRef()}
	if access.IsStore() {
		kind, prefix = ir.AffineStore, []*ir.Value{access.StoredValue(), access.MemRef()}
	}
	r := newOp(kind, op, concat(prefix, operands), op.ResultTypes(), 0)
	for name, a := range op.Attrs().Iter() {
		r.SetAttr(name, a)
	}
	r.SetAttr(ir.AttrMap, ir.MapAttr{Map: m})
	rw.Insert(r)
	rw.ReplaceOp(op, r.Results())
	return true, nil
}
