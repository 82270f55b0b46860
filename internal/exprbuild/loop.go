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
	"github.com/gx-org/affinecfg/internal/legality"
	"github.com/gx-org/affinecfg/internal/normalize"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/ir/fmterr"
)

// ForBuilder builds the bounds of an scf.for loop.
type ForBuilder struct {
	Lower, Upper *Builder

	loop ir.SCFForOp
	step int64
}

// NewFor returns a builder for the bounds of an scf.for operation.
func NewFor(loop *ir.Operation, legalizeSymbols bool) *ForBuilder {
	return &ForBuilder{
		Lower: New(loop, legalizeSymbols),
		Upper: New(loop, legalizeSymbols),
		loop:  ir.SCFForOp{Operation: loop},
	}
}

// Build the bounds of the loop. The step of the loop must be a positive constant.
func (b *ForBuilder) Build() error {
	step, ok := legality.Constant(b.loop.Step())
	if !ok || step <= 0 {
		return errors.Wrapf(ErrNotAffine, "step of the loop at %s is not a positive constant", b.loop.Pos)
	}
	b.step = step
	if err := b.Upper.Build(b.loop.UpperBound()); err != nil {
		return err
	}
	return b.Lower.Build(b.loop.LowerBound())
}

// Step returns the constant step of the loop.
func (b *ForBuilder) Step() int64 {
	return b.step
}

// LowerMap returns the map of the lower bound and its operands.
func (b *ForBuilder) LowerMap() (affine.Map, []*ir.Value, error) {
	return b.Lower.Map()
}

// UpperMap returns the map of the upper bound and its operands.
func (b *ForBuilder) UpperMap() (affine.Map, []*ir.Value, error) {
	return b.Upper.Map()
}

// IsLegal returns true if both bounds are legal.
func (b *ForBuilder) IsLegal() bool {
	return b.Lower.IsLegal() && b.Upper.IsLegal()
}

// Builders returns the builders of the lower and upper bounds.
func (b *ForBuilder) Builders() []*Builder {
	return []*Builder{b.Lower, b.Upper}
}

// Constraint is a comparison of two affine expressions.
type Constraint struct {
	Pred     ir.Predicate
	LHS, RHS *Builder
}

// IfBuilder builds the integer set of the condition of an scf.if operation.
type IfBuilder struct {
	op       *ir.Operation
	legalize bool

	constraints []Constraint
}

// NewIf returns a builder for the condition of an scf.if operation.
func NewIf(op *ir.Operation, legalizeSymbols bool) *IfBuilder {
	return &IfBuilder{op: op, legalize: legalizeSymbols}
}

// Build decomposes the condition into a conjunction of comparisons
// and builds the expressions of both sides of every comparison.
func (b *IfBuilder) Build() error {
	cmps, ok := legality.Conjuncts(b.op.Operand(0))
	if !ok {
		return errors.Wrapf(ErrNotAffine, "condition %%%s of %s at %s", b.op.Operand(0).Name, b.op.Name(), b.op.Pos)
	}
	for _, c := range cmps {
		if err := b.leaf(c.Cmp, c.Pred); err != nil {
			return err
		}
	}
	return nil
}

func (b *IfBuilder) leaf(cmp *ir.Operation, pred ir.Predicate) error {
	lhs, rhs := cmp.Operand(0), cmp.Operand(1)
	if pred == ir.PredNE {
		log.Debugf("illegal comparison %s at %s", pred, cmp.Pos)
		return errors.Wrapf(ErrNotAffine, "comparison %s at %s", pred, cmp.Pos)
	}
	if pred.IsUnsigned() {
		if !legality.ValueCmp(legality.GE, lhs, 0) || !legality.ValueCmp(legality.GE, rhs, 0) {
			log.Debugf("illegal unsigned comparison %s at %s", pred, cmp.Pos)
			return errors.Wrapf(ErrNotAffine, "unsigned comparison %s at %s of values which may be negative", pred, cmp.Pos)
		}
		pred = pred.Signed()
	}
	c := Constraint{Pred: pred, LHS: New(b.op, b.legalize), RHS: New(b.op, b.legalize)}
	if err := c.LHS.Build(lhs); err != nil {
		return err
	}
	if err := c.RHS.Build(rhs); err != nil {
		return err
	}
	b.constraints = append(b.constraints, c)
	return nil
}

// Constraints returns the comparisons of the condition.
func (b *IfBuilder) Constraints() []Constraint {
	return b.constraints
}

// IsLegal returns true if the expressions of all the comparisons are legal.
func (b *IfBuilder) IsLegal() bool {
	for _, sub := range b.Builders() {
		if !sub.IsLegal() {
			return false
		}
	}
	return true
}

// Builders returns the builders of both sides of every comparison.
func (b *IfBuilder) Builders() []*Builder {
	var r []*Builder
	for _, c := range b.constraints {
		r = append(r, c.LHS, c.RHS)
	}
	return r
}

// Set returns the canonical integer set of the condition and its operands.
func (b *IfBuilder) Set() (affine.Set, []*ir.Value, error) {
	if !b.IsLegal() {
		return affine.Set{}, nil, fmterr.InternalAt(b.op.Pos, "integer set requested for a condition with illegal symbols")
	}
	var (
		numDims, numSyms int
		dims, syms       []*ir.Value
		exprs            []affine.Expr
		eqs              []bool
	)
	shifted := func(sub *Builder) affine.Expr {
		e := affine.ShiftSymbols(affine.ShiftDims(sub.expr, numDims), numSyms)
		numDims += sub.dims.Len()
		numSyms += sub.syms.Len()
		dims = append(dims, sub.dims.Keys()...)
		syms = append(syms, sub.syms.Keys()...)
		return e
	}
	for _, c := range b.constraints {
		lhs, rhs := shifted(c.LHS), shifted(c.RHS)
		var e affine.Expr
		switch c.Pred {
		case ir.PredEQ, ir.PredSGE:
			e = affine.Sub(lhs, rhs)
		case ir.PredSGT:
			e = affine.Sub(affine.Sub(lhs, rhs), affine.Const(1))
		case ir.PredSLE:
			e = affine.Sub(rhs, lhs)
		case ir.PredSLT:
			e = affine.Sub(affine.Sub(rhs, lhs), affine.Const(1))
		default:
			return affine.Set{}, nil, fmterr.InternalAt(b.op.Pos, "unexpected predicate %s in a constraint", c.Pred)
		}
		exprs = append(exprs, e)
		eqs = append(eqs, c.Pred == ir.PredEQ)
	}
	s := affine.NewSet(numDims, numSyms, exprs, eqs)
	return normalize.CanonicalizeSet(s, append(dims, syms...))
}
