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
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/internal/exprbuild"
	"github.com/gx-org/affinecfg/internal/normalize"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/rewrite"
)

// ScopedForRaising raises scf.for loops whose bounds depend on values which
// are not valid symbols. These values are captured by an affine scope
// inserted around the loop.
var ScopedForRaising = rewrite.NewPattern("scoped-for-raising", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	b := exprbuild.NewFor(op, true)
	if ok, err := build(b.Build(), b); !ok || err != nil {
		return false, err
	}
	if err := exprbuild.Legalize(rw, b); err != nil {
		return false, err
	}
	rw.SetInsertionPointBefore(op)
	rw.Pos = op.Pos
	conv := exprbuild.NewIndexConverter(rw)
	lb, lbOps, err := indexMap(conv)(b.LowerMap())
	if err != nil {
		return false, err
	}
	ub, ubOps, err := indexMap(conv)(b.UpperMap())
	if err != nil {
		return false, err
	}
	replaceFor(rw, ir.SCFForOp{Operation: op}, lb, lbOps, ub, ubOps, b.Step(), false)
	return true, nil
}, ir.SCFFor)

// ScopedIfRaising raises scf.if operations whose condition depends on
// values which are not valid symbols.
var ScopedIfRaising = rewrite.NewPattern("scoped-if-raising", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	if op.ParentOfKind(ir.AffineFor) == nil && op.ParentOfKind(ir.AffineParallel) == nil {
		return false, nil
	}
	b := exprbuild.NewIf(op, true)
	if ok, err := build(b.Build(), b); !ok || err != nil {
		return false, err
	}
	if err := exprbuild.Legalize(rw, b); err != nil {
		return false, err
	}
	rw.SetInsertionPointBefore(op)
	rw.Pos = op.Pos
	s, operands, err := b.Set()
	if err != nil {
		return false, err
	}
	operands = exprbuild.NewIndexConverter(rw).ConvertAll(operands)
	if s, operands, err = normalize.CanonicalizeSet(s, operands); err != nil {
		return false, err
	}
	replaceIf(rw, op, s, operands)
	return true, nil
}, ir.SCFIf)

// build checks the result of building the expressions of unit.
// It returns false if the expressions are not affine or if legalizing
// their symbols would fail.
func build(err error, unit exprbuild.Legalizable) (bool, error) {
	if errors.Is(err, exprbuild.ErrNotAffine) {
		log.Debugf("scoped raising: %v", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return exprbuild.CanLegalize(unit), nil
}

// indexMap returns a function converting the operands of a map to the index type.
func indexMap(conv *exprbuild.IndexConverter) func(affine.Map, []*ir.Value, error) (affine.Map, []*ir.Value, error) {
	return func(m affine.Map, operands []*ir.Value, err error) (affine.Map, []*ir.Value, error) {
		if err != nil {
			return affine.Map{}, nil, err
		}
		return normalize.Canonicalize(m, conv.ConvertAll(operands))
	}
}
