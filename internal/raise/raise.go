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

// Package raise replaces structured control flow and memory accesses by
// their affine counterparts when their bounds, conditions and subscripts
// can be expressed by affine maps and integer sets.
//
// Every raising pattern first checks that the operation can be raised
// without modifying the program. Operations are only created once raising
// is certain to succeed.
package raise

import (
	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/internal/normalize"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/rewrite"
)

// Options configures the patterns of the package.
type Options struct {
	// LegalizeSymbols enables the insertion of affine scopes to raise loops
	// and conditionals using values which are not valid symbols.
	LegalizeSymbols bool
}

// Patterns returns the raising and canonicalization patterns.
func Patterns(opts Options) []rewrite.Pattern {
	ps := []rewrite.Pattern{
		CanonicalizeApply,
		ForOpRaising,
		ParallelOpRaising,
		CanonicalizeIndexCast,
		AffineAccessFixup,
		CanonicalizeIfSet,
		StoreRaising,
		IfOpRaising,
		LoadRaising,
		CanonicalizeForBounds,
	}
	if opts.LegalizeSymbols {
		ps = append(ps, ScopedForRaising, ScopedIfRaising)
	}
	return ps
}

// normalizeMap composes a map with the computation of its operands and
// canonicalizes the result. New operations are created before at.
func normalizeMap(rw *rewrite.Rewriter, at *ir.Operation, m affine.Map, operands []*ir.Value) (affine.Map, []*ir.Value, error) {
	m, operands, err := normalize.New(rw, at).FullyCompose(m, operands)
	if err != nil {
		return affine.Map{}, nil, err
	}
	return normalize.Canonicalize(m, operands)
}

// normalizeSet is normalizeMap for integer sets.
func normalizeSet(rw *rewrite.Rewriter, at *ir.Operation, s affine.Set, operands []*ir.Value) (affine.Set, []*ir.Value, error) {
	s, operands, err := normalize.New(rw, at).FullyComposeSet(s, operands)
	if err != nil {
		return affine.Set{}, nil, err
	}
	return normalize.CanonicalizeSet(s, operands)
}

// splice moves the operations of from at the end of to. Arguments of from are
// replaced by args and its terminator by a terminator of kind yielding the
// same values.
func splice(rw *rewrite.Rewriter, from, to *ir.Block, args []*ir.Value, kind ir.Kind) {
	term := from.Terminator()
	rw.SetInsertionPointToEnd(to)
	yield := rw.Yield(kind, term.Operands()...)
	yield.Pos = term.Pos
	for _, op := range from.Ops() {
		if op != term {
			rw.MoveOpBefore(op, yield)
		}
	}
	for i, a := range from.Args() {
		rw.ReplaceAllUsesWith(a, args[i])
	}
	rw.EraseOp(term)
}

// newOp returns an operation located at the position of at, with empty regions.
// The operation is not inserted.
func newOp(kind ir.Kind, at *ir.Operation, operands []*ir.Value, resultTypes []ir.Type, numRegions int, attrs ...ir.NamedAttr) *ir.Operation {
	op := ir.NewOp(kind, operands, resultTypes, numRegions)
	op.Pos = at.Pos
	for _, a := range attrs {
		op.SetAttr(a.Name, a.Attr)
	}
	return op
}

func concat(vs ...[]*ir.Value) []*ir.Value {
	var r []*ir.Value
	for _, v := range vs {
		r = append(r, v...)
	}
	return r
}
