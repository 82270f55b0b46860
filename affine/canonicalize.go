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

package affine

import (
	"github.com/gx-org/affinecfg/base/ordered"
	"github.com/pkg/errors"
)

// Canonicalize returns a map and operands equivalent to m applied to operands where:
// dimension operands for which promote returns true become symbols
// (appended after the existing symbols),
// an operand occurring more than once within a space is given a single position
// (the first occurrence wins),
// operands not referenced by any result are removed,
// and positions are renumbered densely.
//
// An error is returned if the number of operands does not match the map.
func Canonicalize[V comparable](m Map, operands []V, promote func(V) bool) (Map, []V, error) {
	r, err := canonicalize(m.NumDims, m.NumSymbols, m.Results, operands, promote)
	if err != nil {
		return Map{}, nil, errors.Wrapf(err, "cannot canonicalize %s", m)
	}
	return NewMap(r.numDims, r.numSymbols, r.exprs...), r.operands, nil
}

// CanonicalizeSet is Canonicalize for integer sets.
func CanonicalizeSet[V comparable](s Set, operands []V, promote func(V) bool) (Set, []V, error) {
	r, err := canonicalize(s.NumDims, s.NumSymbols, s.Constraints, operands, promote)
	if err != nil {
		return Set{}, nil, errors.Wrapf(err, "cannot canonicalize %s", s)
	}
	return NewSet(r.numDims, r.numSymbols, r.exprs, append([]bool(nil), s.Eq...)), r.operands, nil
}

type canonical[V comparable] struct {
	numDims, numSymbols int
	exprs               []Expr
	operands            []V
}

func canonicalize[V comparable](numDims, numSymbols int, exprs []Expr, operands []V, promote func(V) bool) (*canonical[V], error) {
	if len(operands) != numDims+numSymbols {
		return nil, errors.Errorf("%d dimensions and %d symbols but %d operands", numDims, numSymbols, len(operands))
	}
	dimUsed, symUsed := make([]bool, numDims), make([]bool, numSymbols)
	for _, e := range exprs {
		if err := markUsed(e, dimUsed, symUsed); err != nil {
			return nil, err
		}
	}
	dimPos := ordered.NewPositions[V]()
	symPos := ordered.NewPositions[V]()
	symRepl := make([]Expr, numSymbols)
	for i, v := range operands[numDims:] {
		if symUsed[i] {
			symRepl[i] = S(symPos.Pos(v))
		}
	}
	dimRepl := make([]Expr, numDims)
	for i, v := range operands[:numDims] {
		if !dimUsed[i] {
			continue
		}
		if promote != nil && promote(v) {
			dimRepl[i] = S(symPos.Pos(v))
			continue
		}
		dimRepl[i] = D(dimPos.Pos(v))
	}
	r := &canonical[V]{
		numDims:    dimPos.Len(),
		numSymbols: symPos.Len(),
		exprs:      make([]Expr, len(exprs)),
		operands:   append(dimPos.Keys(), symPos.Keys()...),
	}
	for i, e := range exprs {
		r.exprs[i] = ReplaceDimsAndSymbols(e, dimRepl, symRepl)
	}
	return r, nil
}
