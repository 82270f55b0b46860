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
	log "github.com/sirupsen/logrus"

	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/internal/legality"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/rewrite"
)

// IfOpRaising replaces an scf.if nested in an affine loop by an affine.if.
var IfOpRaising = rewrite.NewPattern("if-op-raising", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	r, err := If(rw, op)
	return r != op, err
}, ir.SCFIf)

// If raises an scf.if nested in an affine loop into an affine.if with the same results.
// It returns the new conditional, or op if the conditional cannot be raised.
func If(rw *rewrite.Rewriter, op *ir.Operation) (*ir.Operation, error) {
	if op.ParentOfKind(ir.AffineFor) == nil && op.ParentOfKind(ir.AffineParallel) == nil {
		return op, nil
	}
	constraints, ok := decomposeCondition(op)
	if !ok {
		return op, nil
	}
	var (
		exprs    []affine.Expr
		eqs      []bool
		operands []*ir.Value
	)
	for _, c := range constraints {
		x, y := affine.S(len(operands)), affine.S(len(operands)+1)
		e := affine.Sub(x, y)
		if c.strict {
			e = affine.Sub(e, affine.Const(1))
		}
		exprs = append(exprs, e)
		eqs = append(eqs, c.eq)
		operands = append(operands, c.x, c.y)
	}
	rw.SetInsertionPointBefore(op)
	rw.Pos = op.Pos
	set, operands, err := normalizeSet(rw, op, affine.NewSet(0, len(operands), exprs, eqs), operands)
	if err != nil {
		return nil, err
	}
	return replaceIf(rw, op, set, operands), nil
}

// replaceIf moves the regions of an scf.if into a new affine.if.
func replaceIf(rw *rewrite.Rewriter, op *ir.Operation, set affine.Set, operands []*ir.Value) *ir.Operation {
	r := newOp(ir.AffineIf, op, operands, op.ResultTypes(), 2,
		ir.Named(ir.AttrCondition, ir.SetAttr{Set: set}))
	rw.SetInsertionPointBefore(op)
	rw.Insert(r)
	for i := 0; i < 2; i++ {
		if i < len(op.Regions()) {
			rw.InlineRegion(op.Region(i), r.Region(i))
		}
		blocks := r.Region(i).Blocks()
		if len(blocks) == 0 {
			blk := ir.NewBlock()
			r.Region(i).AppendBlock(blk)
			rw.SetInsertionPointToEnd(blk)
			rw.Yield(ir.AffineYield)
			continue
		}
		for _, blk := range blocks {
			term := blk.Terminator()
			if term == nil || term.Kind() != ir.SCFYield {
				continue
			}
			rw.SetInsertionPointBefore(term)
			yield := rw.Yield(ir.AffineYield, term.Operands()...)
			yield.Pos = term.Pos
			rw.EraseOp(term)
		}
	}
	rw.ReplaceOp(op, r.Results())
	log.Debugf("raised scf.if at %s", r.Pos)
	return r
}

// constraint is x - y >= 0, x - y - 1 >= 0 if strict, or x - y == 0 if eq.
type constraint struct {
	x, y       *ir.Value
	strict, eq bool
}

// decomposeCondition returns the constraints whose conjunction is the
// condition of an scf.if.
func decomposeCondition(op *ir.Operation) ([]constraint, bool) {
	cmps, ok := legality.Conjuncts(op.Operand(0))
	if !ok {
		log.Debugf("illegal condition of scf.if at %s", op.Pos)
		return nil, false
	}
	var constraints []constraint
	for _, c := range cmps {
		cs, ok := compare(c.Cmp, c.Pred)
		if !ok {
			return nil, false
		}
		constraints = append(constraints, cs...)
	}
	return constraints, true
}

// compare returns the constraints equivalent to a comparison.
// Each side is decomposed into a minimum or maximum of valid indices.
func compare(cmp *ir.Operation, pred ir.Predicate) ([]constraint, bool) {
	lhs, ok := decompose(cmp.Operand(0), minimum|maximum)
	if !ok {
		return nil, false
	}
	rhs, ok := decompose(cmp.Operand(1), minimum|maximum)
	if !ok {
		return nil, false
	}
	if pred.IsUnsigned() {
		for _, v := range append(append([]*ir.Value(nil), lhs.values...), rhs.values...) {
			if !legality.ValueCmp(legality.GE, v, 0) {
				log.Debugf("illegal unsigned comparison %s at %s: %%%s may be negative", pred, cmp.Pos, v.Name)
				return nil, false
			}
		}
		pred = pred.Signed()
	}
	// Express every comparison as x >= y, x > y or x == y.
	switch pred {
	case ir.PredSLE, ir.PredSLT:
		pred = pred.Swapped()
		lhs, rhs = rhs, lhs
	case ir.PredNE:
		log.Debugf("illegal comparison %s at %s", pred, cmp.Pos)
		return nil, false
	}
	switch {
	case pred == ir.PredEQ && (lhs.kind != 0 || rhs.kind != 0):
		log.Debugf("illegal equality of a minimum or maximum at %s", cmp.Pos)
		return nil, false
	case lhs.isMax() || rhs.isMin():
		// max(a, b) >= c is a disjunction.
		log.Debugf("illegal comparison %s of a maximum or with a minimum at %s", pred, cmp.Pos)
		return nil, false
	}
	var r []constraint
	for _, x := range lhs.values {
		for _, y := range rhs.values {
			r = append(r, constraint{x: x, y: y, strict: pred == ir.PredSGT, eq: pred == ir.PredEQ})
		}
	}
	return r, true
}
