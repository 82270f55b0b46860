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

package passes

import (
	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/internal/legality"
	"github.com/gx-org/affinecfg/internal/normalize"
	"github.com/gx-org/affinecfg/internal/raise"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/rewrite"
)

// CanonicalizeMap composes a map with the affine computations of its operands,
// folds constant operands and merges duplicated operands.
// Operations converting operands to the index type are created before at.
// It also reports whether every operand of the result is a valid dimension
// or symbol for its position.
func CanonicalizeMap(rw *rewrite.Rewriter, at *ir.Operation, m affine.Map, operands []*ir.Value) (affine.Map, []*ir.Value, bool, error) {
	m, operands, err := normalize.New(rw, at).FullyCompose(m, operands)
	if err != nil {
		return affine.Map{}, nil, false, err
	}
	if m, operands, err = normalize.Canonicalize(m, operands); err != nil {
		return affine.Map{}, nil, false, err
	}
	return m, operands, legal(m.NumDims, operands), nil
}

// CanonicalizeSet is CanonicalizeMap for integer sets.
func CanonicalizeSet(rw *rewrite.Rewriter, at *ir.Operation, s affine.Set, operands []*ir.Value) (affine.Set, []*ir.Value, bool, error) {
	s, operands, err := normalize.New(rw, at).FullyComposeSet(s, operands)
	if err != nil {
		return affine.Set{}, nil, false, err
	}
	if s, operands, err = normalize.CanonicalizeSet(s, operands); err != nil {
		return affine.Set{}, nil, false, err
	}
	return s, operands, legal(s.NumDims, operands), nil
}

func legal(numDims int, operands []*ir.Value) bool {
	for i, v := range operands {
		if i < numDims && !legality.IsValidAffineDim(v) {
			return false
		}
		if i >= numDims && !legality.IsValidAffineSymbol(v) {
			return false
		}
	}
	return true
}

// RaiseFor replaces an scf.for by an affine.for with the same results.
// It returns the new loop, or op if the loop cannot be raised.
func RaiseFor(rw *rewrite.Rewriter, op *ir.Operation) (*ir.Operation, error) {
	return raise.For(rw, op)
}

// RaiseIf replaces an scf.if nested in an affine loop by an affine.if with
// the same results. It returns the new conditional, or op if the conditional
// cannot be raised.
func RaiseIf(rw *rewrite.Rewriter, op *ir.Operation) (*ir.Operation, error) {
	return raise.If(rw, op)
}
