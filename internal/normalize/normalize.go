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

// Package normalize composes affine maps with the operations computing their operands.
//
// Normalizing a map replaces operands computed by affine.apply, by linear
// arithmetic, or by index casts with the corresponding expressions until every
// operand is either a valid dimension or a valid symbol of the affine scope.
// Symbol operands defined inside the scope are legalized by cloning the
// operations computing them at the top level of the scope.
package normalize

import (
	log "github.com/sirupsen/logrus"

	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/base/ordered"
	"github.com/gx-org/affinecfg/internal/legality"
	"github.com/gx-org/affinecfg/internal/opclass"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/ir/fmterr"
	"github.com/gx-org/affinecfg/rewrite"
)

// maxRounds bounds the number of composition rounds of FullyCompose.
const maxRounds = 32

// Normalizer normalizes the maps of operations located at a given point of a program.
type Normalizer struct {
	rw    *rewrite.Rewriter
	at    *ir.Operation
	scope *ir.Region

	// Values replaced by legalization and their replacements.
	moved *ir.Mapping
	// Whether the scope writes memory, computed on first use.
	writesKnown, writes bool
}

// New returns a normalizer for the maps used by the operation at.
// New operations are created with rw.
func New(rw *rewrite.Rewriter, at *ir.Operation) *Normalizer {
	return &Normalizer{
		rw:    rw,
		at:    at,
		scope: legality.AffineScope(at),
		moved: ir.NewMapping(),
	}
}

// Scope returns the region of the affine scope in which operands are legalized.
func (n *Normalizer) Scope() *ir.Region {
	return n.scope
}

type composer struct {
	n          *Normalizer
	dims, syms *ordered.Positions[*ir.Value]
}

// Compose runs a single composition round over the operands of m.
// The returned map has one operand per dimension and symbol, in that order.
func (n *Normalizer) Compose(m affine.Map, operands []*ir.Value) (affine.Map, []*ir.Value, error) {
	if len(operands) != m.NumOperands() {
		return affine.Map{}, nil, fmterr.Internalf("map %s has %d operands but %d operands given", m, m.NumOperands(), len(operands))
	}
	c := &composer{
		n:    n,
		dims: ordered.NewPositions[*ir.Value](),
		syms: ordered.NewPositions[*ir.Value](),
	}
	dimRepl := make([]affine.Expr, m.NumDims)
	symRepl := make([]affine.Expr, m.NumSymbols)
	for i, v := range operands {
		isDim := i < m.NumDims
		e, err := c.operand(v, isDim)
		if err != nil {
			return affine.Map{}, nil, err
		}
		if isDim {
			dimRepl[i] = e
		} else {
			symRepl[i-m.NumDims] = e
		}
	}
	r := m.Replace(dimRepl, symRepl, c.dims.Len(), c.syms.Len())
	rOperands := append(c.dims.Keys(), c.syms.Keys()...)
	for i, v := range rOperands {
		rOperands[i] = n.moved.Lookup(v)
	}
	return r, rOperands, nil
}

func (c *composer) dim(v *ir.Value) affine.Expr {
	return affine.D(c.dims.Pos(v))
}

func (c *composer) sym(v *ir.Value) affine.Expr {
	return affine.S(c.syms.Pos(v))
}

func (c *composer) slot(v *ir.Value, isDim bool) affine.Expr {
	if isDim {
		return c.dim(v)
	}
	return c.sym(v)
}

func (c *composer) operand(v *ir.Value, isDim bool) (affine.Expr, error) {
	v = c.n.moved.Lookup(v)
	decast := legality.Decast(v)
	t := v
	if !legality.IsValidSymbol(v, false) {
		t = decast
	}
	if legality.LinearWithConstant(decast) {
		if e, ok := c.inline(decast); ok {
			return e, nil
		}
	}
	if c.n.inlineWhenIllegal(t) {
		if e, ok := c.inline(t); ok {
			return e, nil
		}
	}
	if legality.IsAffineInductionVar(t) {
		return c.dim(t), nil
	}
	if def := t.DefiningOp(); def != nil && def.Kind() == ir.AffineApply {
		return c.apply(def), nil
	}
	if legality.IsValidSymbol(t, false) {
		return c.slot(t, isDim), nil
	}
	if legality.IsValidAffineDim(t) {
		return c.dim(t), nil
	}
	if !legality.IsValidIndex(t) {
		// Operands which are not indices are left to the verifier.
		return c.slot(t, isDim), nil
	}
	legal, err := c.n.legalize(t)
	if err != nil {
		return nil, fmterr.Internal(err)
	}
	return c.slot(legal, isDim), nil
}

// inline returns the expression computed by the operation defining v.
// The operands of the operation are added as symbols.
func (c *composer) inline(v *ir.Value) (affine.Expr, bool) {
	cls, def, ok := opclass.OfOp(v)
	if !ok {
		return nil, false
	}
	m, operands, ok := cls.Map(def)
	if !ok {
		return nil, false
	}
	syms := make([]affine.Expr, len(operands))
	for i, operand := range operands {
		syms[i] = c.sym(operand)
	}
	return affine.ReplaceDimsAndSymbols(m.Results[0], nil, syms), true
}

// apply returns the expression computed by an affine.apply renumbered
// in the space of the composed map.
func (c *composer) apply(def *ir.Operation) affine.Expr {
	m, _ := def.MapAttr(ir.AttrMap)
	operands := def.Operands()
	dims := make([]affine.Expr, m.NumDims)
	for i, operand := range operands[:m.NumDims] {
		dims[i] = c.dim(operand)
	}
	syms := make([]affine.Expr, m.NumSymbols)
	for i, operand := range operands[m.NumDims:] {
		syms[i] = c.sym(operand)
	}
	return affine.ReplaceDimsAndSymbols(m.Results[0], dims, syms)
}

// inlineWhenIllegal returns true if v is not a valid symbol and the
// operation computing it is better folded into the map than legalized.
func (n *Normalizer) inlineWhenIllegal(v *ir.Value) bool {
	if legality.IsValidSymbol(v, false) {
		return false
	}
	cls, def, ok := opclass.OfOp(v)
	if !ok || def.NumOperands() != 2 {
		return false
	}
	switch cls.Op {
	case opclass.Add, opclass.Sub:
		return true
	case opclass.Mul, opclass.FloorDiv, opclass.Mod:
	default:
		return false
	}
	x, y := def.Operand(0), def.Operand(1)
	indexBySymbol := legality.IsValidIndex(x) && legality.IsValidSymbol(y, true)
	if !indexBySymbol && cls.Commutative {
		indexBySymbol = legality.IsValidIndex(y) && legality.IsValidSymbol(x, true)
	}
	return indexBySymbol && !(n.canLegalize(x) && n.canLegalize(y))
}

// FullyCompose composes m with its operands until no operand needs normalization.
// Each round is followed by Canonicalize. Duplicated results are kept.
// Operands which are not of index type are converted with index casts.
func (n *Normalizer) FullyCompose(m affine.Map, operands []*ir.Value) (affine.Map, []*ir.Value, error) {
	casts := n.castsOf(operands)
	for round := 0; needsNormalization(m.NumDims, operands); round++ {
		if round == maxRounds {
			return affine.Map{}, nil, fmterr.Internalf("map %s over %d operands still needs normalization after %d rounds", m, len(operands), maxRounds)
		}
		var err error
		if m, operands, err = n.Compose(m, operands); err != nil {
			return affine.Map{}, nil, err
		}
		if m, operands, err = Canonicalize(m, operands); err != nil {
			return affine.Map{}, nil, err
		}
	}
	m = m.Simplify()
	operands = n.toIndex(operands, casts)
	log.Debugf("composed map %s over %d operands", m, len(operands))
	return m, operands, nil
}

// FullyComposeSet is FullyCompose for integer sets.
func (n *Normalizer) FullyComposeSet(s affine.Set, operands []*ir.Value) (affine.Set, []*ir.Value, error) {
	m := affine.NewMap(s.NumDims, s.NumSymbols, s.Constraints...)
	m, operands, err := n.FullyCompose(m, operands)
	if err != nil {
		return affine.Set{}, nil, err
	}
	return affine.NewSet(m.NumDims, m.NumSymbols, m.Results, append([]bool(nil), s.Eq...)).Simplify(), operands, nil
}

func needsNormalization(numDims int, operands []*ir.Value) bool {
	for i, v := range operands {
		if legality.NeedsNormalization(v, i < numDims) {
			return true
		}
	}
	return false
}

// castsOf returns, for the inputs of index casts used as operands,
// an existing index cast of the input valid as a symbol at the normalization point.
func (n *Normalizer) castsOf(operands []*ir.Value) map[*ir.Value]*ir.Value {
	casts := make(map[*ir.Value]*ir.Value)
	dom := ir.Dominance{}
	for _, v := range operands {
		def := v.DefiningOp()
		if def == nil || def.Kind() != ir.ArithIndexCast {
			continue
		}
		input := def.Operand(0)
		if _, done := casts[input]; done {
			continue
		}
		candidates := []*ir.Value{v}
		for _, user := range input.Users() {
			if user == def || user.Kind() != ir.ArithIndexCast {
				continue
			}
			if n.at != nil && !dom.Dominates(user, n.at) {
				continue
			}
			candidates = append(candidates, user.Result(0))
		}
		for _, c := range candidates {
			if legality.IsValidAffineSymbol(c) {
				casts[input] = c
				break
			}
		}
	}
	return casts
}

// toIndex converts operands which are not of index type.
func (n *Normalizer) toIndex(operands []*ir.Value, casts map[*ir.Value]*ir.Value) []*ir.Value {
	var r []*ir.Value
	for i, v := range operands {
		if ir.IsIndex(v.Type()) {
			continue
		}
		if r == nil {
			r = append([]*ir.Value(nil), operands...)
		}
		if c, ok := casts[v]; ok {
			r[i] = c
			continue
		}
		ip := n.rw.InsertionPoint()
		n.rw.SetInsertionPointAfterValue(v)
		r[i] = n.rw.IndexCast(v, ir.Index)
		n.rw.RestoreInsertionPoint(ip)
	}
	if r == nil {
		return operands
	}
	return r
}

// Canonicalize folds constant operands into m, promotes dimensions which are
// valid symbols, and removes duplicated and unused operands.
func Canonicalize(m affine.Map, operands []*ir.Value) (affine.Map, []*ir.Value, error) {
	dims, syms, err := foldConstants(m.NumDims, m.NumSymbols, operands)
	if err != nil {
		return affine.Map{}, nil, err
	}
	m = m.Replace(dims, syms, m.NumDims, m.NumSymbols)
	r, rOperands, err := affine.Canonicalize(m, operands, legality.IsValidAffineSymbol)
	if err != nil {
		return affine.Map{}, nil, fmterr.Internal(err)
	}
	return r.Simplify(), rOperands, nil
}

// CanonicalizeSet is Canonicalize for integer sets.
func CanonicalizeSet(s affine.Set, operands []*ir.Value) (affine.Set, []*ir.Value, error) {
	dims, syms, err := foldConstants(s.NumDims, s.NumSymbols, operands)
	if err != nil {
		return affine.Set{}, nil, err
	}
	s = s.Replace(dims, syms, s.NumDims, s.NumSymbols)
	r, rOperands, err := affine.CanonicalizeSet(s, operands, legality.IsValidAffineSymbol)
	if err != nil {
		return affine.Set{}, nil, fmterr.Internal(err)
	}
	return r.Simplify(), rOperands, nil
}

func foldConstants(numDims, numSymbols int, operands []*ir.Value) (dims, syms []affine.Expr, err error) {
	if len(operands) != numDims+numSymbols {
		return nil, nil, fmterr.Internalf("%d dimensions and %d symbols but %d operands", numDims, numSymbols, len(operands))
	}
	dims = make([]affine.Expr, numDims)
	syms = make([]affine.Expr, numSymbols)
	for i, v := range operands {
		var e affine.Expr
		cst, isCst := legality.Constant(v)
		switch {
		case isCst:
			e = affine.Const(cst)
		case i < numDims:
			e = affine.D(i)
		default:
			e = affine.S(i - numDims)
		}
		if i < numDims {
			dims[i] = e
		} else {
			syms[i-numDims] = e
		}
	}
	return dims, syms, nil
}
