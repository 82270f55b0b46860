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

// ForOpRaising replaces an scf.for by an affine.for.
var ForOpRaising = rewrite.NewPattern("for-op-raising", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	r, err := For(rw, op)
	return r != op, err
}, ir.SCFFor)

// ParallelOpRaising replaces an scf.parallel without results by an affine.parallel.
var ParallelOpRaising = rewrite.NewPattern("parallel-op-raising", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	p, ok := planParallel(ir.SCFParallelOp{Operation: op})
	if !ok {
		return false, nil
	}
	_, err := p.apply(rw)
	return err == nil, err
}, ir.SCFParallel)

// For raises an scf.for into an affine.for with the same results.
// It returns the new loop, or op if the loop cannot be raised.
func For(rw *rewrite.Rewriter, op *ir.Operation) (*ir.Operation, error) {
	p, ok := planFor(ir.SCFForOp{Operation: op})
	if !ok {
		return op, nil
	}
	r, err := p.apply(rw)
	if err != nil {
		return nil, err
	}
	return r, nil
}

type forPlan struct {
	loop         ir.SCFForOp
	lower, upper bound
	// step is the constant step of the loop,
	// or 0 if the loop is rewritten with a unit step.
	step int64
}

// planFor checks that a loop can be raised.
// The lower bound must be a maximum of valid indices, the upper bound a minimum.
// A step which is a valid symbol but not a constant requires rewriting the loop
// to start at 0 with a unit step.
func planFor(loop ir.SCFForOp) (forPlan, bool) {
	p := forPlan{loop: loop}
	step := loop.Step()
	if c, ok := legality.Constant(step); ok {
		if c <= 0 {
			log.Debugf("scf.for at %s: non-positive step %d", loop.Pos, c)
			return forPlan{}, false
		}
		p.step = c
	} else if !legality.IsValidSymbol(step, true) {
		log.Debugf("scf.for at %s: step %%%s is not a valid symbol", loop.Pos, step.Name)
		return forPlan{}, false
	}
	var ok bool
	if p.lower, ok = decompose(loop.LowerBound(), maximum); !ok {
		return forPlan{}, false
	}
	if p.upper, ok = decompose(loop.UpperBound(), minimum); !ok {
		return forPlan{}, false
	}
	if p.step != 0 {
		return p, true
	}
	if len(p.lower.values) != 1 || len(p.upper.values) != 1 {
		log.Debugf("scf.for at %s: a symbolic step requires single bounds", loop.Pos)
		return forPlan{}, false
	}
	if !legality.IsValidSymbol(loop.LowerBound(), true) || !legality.IsValidSymbol(loop.UpperBound(), true) {
		log.Debugf("scf.for at %s: a symbolic step requires symbolic bounds", loop.Pos)
		return forPlan{}, false
	}
	return p, true
}

func (p forPlan) apply(rw *rewrite.Rewriter) (*ir.Operation, error) {
	loop := p.loop
	rw.SetInsertionPointBefore(loop.Operation)
	rw.Pos = loop.Pos
	lbs, ubs, step := p.lower.values, p.upper.values, p.step
	if step == 0 {
		// upper' = (upper - lower + step - 1) / step, lower' = 0, step' = 1
		s := loop.Step()
		span := rw.Binary(ir.ArithSubI, loop.UpperBound(), loop.LowerBound())
		stepMinusOne := rw.Binary(ir.ArithSubI, s, rw.ConstantInt(s.Type(), 1))
		ubs = []*ir.Value{rw.Binary(ir.ArithDivSI, rw.Binary(ir.ArithAddI, stepMinusOne, span), s)}
		lbs = []*ir.Value{rw.ConstantIndex(0)}
		step = 1
	}
	lbMap, lbOps, err := normalizeMap(rw, loop.Operation, affine.MultiSymbolIdentityMap(len(lbs)), lbs)
	if err != nil {
		return nil, err
	}
	ubMap, ubOps, err := normalizeMap(rw, loop.Operation, affine.MultiSymbolIdentityMap(len(ubs)), ubs)
	if err != nil {
		return nil, err
	}
	return replaceFor(rw, loop, lbMap, lbOps, ubMap, ubOps, step, p.step == 0), nil
}

// replaceFor moves the body of an scf.for into a new affine.for with the given bounds.
// If normalized is true, the induction variable of the new loop counts iterations
// and the original induction variable is recomputed from it.
func replaceFor(rw *rewrite.Rewriter, loop ir.SCFForOp, lbMap affine.Map, lbOps []*ir.Value, ubMap affine.Map, ubOps []*ir.Value, step int64, normalized bool) *ir.Operation {
	body := loop.Body()
	argTypes := []ir.Type{ir.Index}
	for _, a := range body.Args()[1:] {
		argTypes = append(argTypes, a.Type())
	}
	op := newOp(ir.AffineFor, loop.Operation, concat(lbOps, ubOps, loop.Inits()), loop.ResultTypes(), 1,
		ir.Named(ir.AttrLowerMap, ir.MapAttr{Map: lbMap.RemoveDuplicateResults()}),
		ir.Named(ir.AttrUpperMap, ir.MapAttr{Map: ubMap.RemoveDuplicateResults()}),
		ir.Named(ir.AttrStep, ir.IntAttr{Value: step}),
	)
	op.Region(0).AppendBlock(ir.NewBlock(argTypes...))
	rw.SetInsertionPointBefore(loop.Operation)
	rw.Insert(op)

	newBody := op.Body()
	args := append([]*ir.Value(nil), newBody.Args()...)
	rw.SetInsertionPointToStart(newBody)
	iv, oldIV := args[0], loop.InductionVar()
	if !ir.TypeEqual(iv.Type(), oldIV.Type()) {
		iv = rw.IndexCast(iv, oldIV.Type())
	}
	if normalized {
		iv = rw.Binary(ir.ArithAddI, loop.LowerBound(), rw.Binary(ir.ArithMulI, iv, loop.Step()))
	}
	args[0] = iv
	splice(rw, body, newBody, args, ir.AffineYield)
	rw.ReplaceOp(loop.Operation, op.Results())
	log.Debugf("raised scf.for at %s", op.Pos)
	return op
}

type parallelPlan struct {
	loop  ir.SCFParallelOp
	steps []int64
}

// planParallel checks that a parallel loop can be raised: it has no result,
// all its bounds are valid indices and all its steps are positive constants.
func planParallel(loop ir.SCFParallelOp) (parallelPlan, bool) {
	if loop.NumResults() > 0 {
		return parallelPlan{}, false
	}
	for _, v := range concat(loop.LowerBounds(), loop.UpperBounds()) {
		if !legality.IsValidIndex(v) {
			log.Debugf("scf.parallel at %s: bound %%%s is not a valid index", loop.Pos, v.Name)
			return parallelPlan{}, false
		}
	}
	p := parallelPlan{loop: loop}
	for _, s := range loop.Steps() {
		c, ok := legality.Constant(s)
		if !ok || c <= 0 {
			log.Debugf("scf.parallel at %s: step %%%s is not a positive constant", loop.Pos, s.Name)
			return parallelPlan{}, false
		}
		p.steps = append(p.steps, c)
	}
	return p, true
}

func (p parallelPlan) apply(rw *rewrite.Rewriter) (*ir.Operation, error) {
	loop := p.loop
	n := loop.NumLoops()
	rw.SetInsertionPointBefore(loop.Operation)
	lbMap, lbOps, err := normalizeMap(rw, loop.Operation, affine.MultiSymbolIdentityMap(n), loop.LowerBounds())
	if err != nil {
		return nil, err
	}
	ubMap, ubOps, err := normalizeMap(rw, loop.Operation, affine.MultiSymbolIdentityMap(n), loop.UpperBounds())
	if err != nil {
		return nil, err
	}
	argTypes := make([]ir.Type, n)
	for i := range argTypes {
		argTypes[i] = ir.Index
	}
	op := newOp(ir.AffineParallel, loop.Operation, concat(lbOps, ubOps), nil, 1,
		ir.Named(ir.AttrLowerMap, ir.MapAttr{Map: lbMap}),
		ir.Named(ir.AttrUpperMap, ir.MapAttr{Map: ubMap}),
		ir.Named(ir.AttrSteps, ir.IntsAttr{Values: p.steps}),
	)
	op.Region(0).AppendBlock(ir.NewBlock(argTypes...))
	rw.SetInsertionPointBefore(loop.Operation)
	rw.Insert(op)
	splice(rw, loop.Body(), op.Body(), op.Body().Args(), ir.AffineYield)
	rw.EraseOp(loop.Operation)
	log.Debugf("raised scf.parallel at %s", op.Pos)
	return op, nil
}
