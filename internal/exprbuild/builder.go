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

// Package exprbuild builds affine expressions from arbitrary integer and pointer arithmetic.
//
// A builder walks the computation of a value and returns the affine expression
// it computes over dimensions and symbols. Values which cannot be proven to be
// valid symbols can be recorded as illegal instead of failing the build. They
// are later legalized by capturing them in an affine.scope, see Legalize.
package exprbuild

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/base/ordered"
	"github.com/gx-org/affinecfg/internal/legality"
	"github.com/gx-org/affinecfg/internal/normalize"
	"github.com/gx-org/affinecfg/internal/opclass"
	"github.com/gx-org/affinecfg/internal/scopes"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/ir/fmterr"
)

// ErrNotAffine is returned when a computation cannot be expressed as an affine expression.
var ErrNotAffine = errors.New("not an affine expression")

// Builder builds the affine expression of a scalar used by an operation.
type Builder struct {
	user     *ir.Operation
	legalize bool

	dims, syms *ordered.Positions[*ir.Value]
	illegal    *ordered.Positions[*ir.Value]
	expr       affine.Expr

	// Dimensions turned into symbols of the scope legalizing the builder.
	rescoped  []*ir.Value
	numScoped int
	scoped    bool
}

// New returns a builder for the expressions used by user.
// If legalizeSymbols is true, values which are neither valid symbols nor valid
// dimensions are recorded as illegal symbols instead of failing the build.
func New(user *ir.Operation, legalizeSymbols bool) *Builder {
	return &Builder{
		user:     user,
		legalize: legalizeSymbols,
		dims:     ordered.NewPositions[*ir.Value](),
		syms:     ordered.NewPositions[*ir.Value](),
		illegal:  ordered.NewPositions[*ir.Value](),
	}
}

// User returns the operation using the built expression.
func (b *Builder) User() *ir.Operation {
	return b.user
}

// Build the expression computing v.
func (b *Builder) Build(v *ir.Value) error {
	e, err := b.build(v)
	if err != nil {
		return err
	}
	b.expr = e
	return nil
}

// BuildConst sets the expression of the builder to a constant.
func (b *Builder) BuildConst(c int64) {
	b.expr = affine.Const(c)
}

// Expr returns the expression built by the last call to Build.
func (b *Builder) Expr() affine.Expr {
	return b.expr
}

// Illegal returns the values recorded as illegal symbols, in the order they have been found.
func (b *Builder) Illegal() []*ir.Value {
	return b.illegal.Keys()
}

// IsLegal returns true if the expression does not depend on illegal symbols,
// or if all of them have been captured by a scope.
func (b *Builder) IsLegal() bool {
	return b.illegal.Len() == 0 || (b.illegal.Len() == b.numScoped && b.scoped)
}

// Builders returns the builder itself.
func (b *Builder) Builders() []*Builder {
	return []*Builder{b}
}

// Operands returns the dimension operands followed by the symbol operands
// of the expression.
func (b *Builder) Operands() []*ir.Value {
	return append(b.dims.Keys(), b.syms.Keys()...)
}

// Map returns the canonical single result map of the expression and its operands.
func (b *Builder) Map() (affine.Map, []*ir.Value, error) {
	if !b.IsLegal() {
		return affine.Map{}, nil, fmterr.InternalAt(b.user.Pos, "map requested for an expression with %d illegal symbol(s)", b.illegal.Len()-b.numScoped)
	}
	m := affine.NewMap(b.dims.Len(), b.syms.Len(), b.expr)
	return normalize.Canonicalize(m, b.Operands())
}

func (b *Builder) build(v *ir.Value) (affine.Expr, error) {
	if c, ok := ir.ConstantValue(v); ok {
		return affine.Const(c), nil
	}
	if ir.IsIndex(v.Type()) {
		if legality.IsValidAffineSymbol(v) {
			return affine.S(b.syms.Pos(v)), nil
		}
		if legality.IsValidAffineDim(v) {
			return affine.D(b.dims.Pos(v)), nil
		}
	} else if legality.IsTopLevelValue(v) {
		return affine.S(b.syms.Pos(v)), nil
	}
	if e, ok := b.combine(v); ok {
		return e, nil
	}
	for _, use := range v.Uses() {
		scope := use.Owner
		if scope.Kind() != ir.AffineScope || !scope.IsProperAncestor(b.user) {
			continue
		}
		return affine.S(b.syms.Pos(scope.Body().Arg(use.Index))), nil
	}
	if b.legalize {
		b.illegal.Pos(v)
		return affine.S(b.syms.Pos(v)), nil
	}
	log.Debugf("cannot build an affine expression for %s used by %s at %s", v.Name, b.user.Name(), b.user.Pos)
	return nil, errors.Wrapf(ErrNotAffine, "value %%%s used at %s", v.Name, b.user.Pos)
}

// combine builds the expression of an arithmetic operation from the expressions
// of its operands. Positions assigned while building the operands are forgotten
// if the operation is not affine.
func (b *Builder) combine(v *ir.Value) (affine.Expr, bool) {
	cls, def, ok := opclass.OfOp(v)
	if !ok || def.NumOperands() != cls.Arity {
		return nil, false
	}
	numDims, numSyms, numIllegal := b.dims.Len(), b.syms.Len(), b.illegal.Len()
	rollback := func() {
		b.dims.Truncate(numDims)
		b.syms.Truncate(numSyms)
		b.illegal.Truncate(numIllegal)
	}
	operands := make([]affine.Expr, def.NumOperands())
	for i, operand := range def.Operands() {
		e, err := b.build(operand)
		if err != nil {
			rollback()
			return nil, false
		}
		operands[i] = e
	}
	e, ok := cls.Combine(operands)
	if !ok {
		rollback()
		return nil, false
	}
	return e, true
}

// collect adds to symbols the values a scope starting region has to capture
// for the expression to become legal.
func (b *Builder) collect(region *ir.Region, symbols *ordered.Positions[*ir.Value]) {
	if !b.capturable(region) {
		return
	}
	block := region.Front()
	for _, v := range b.illegal.Keys() {
		b.numScoped++
		if !definedIn(v, region) || (v.IsBlockArg() && v.OwnerBlock() == block) {
			symbols.Pos(v)
		}
	}
	if b.user.ParentRegion() == region {
		return
	}
	for _, d := range b.dims.Keys() {
		if !definedIn(d, region) {
			symbols.Pos(d)
			b.rescoped = append(b.rescoped, d)
		}
	}
}

// capturable returns true if the user of the builder is moved in a scope
// created at the start of region.
func (b *Builder) capturable(region *ir.Region) bool {
	if !region.IsProperAncestorOf(b.user) {
		return false
	}
	block := region.Front()
	return block.FindAncestorOp(b.user) != block.Terminator()
}

// definedIn returns true if v is defined in region, possibly in a nested region.
func definedIn(v *ir.Value, region *ir.Region) bool {
	if v.ParentRegion() == region {
		return true
	}
	owner := v.ParentBlock().ParentOp()
	return owner != nil && region.IsProperAncestorOf(owner)
}

// rescope rewrites the expression in terms of the parameters of scope.
func (b *Builder) rescope(scope *ir.Operation) {
	if !scope.IsProperAncestor(b.user) {
		return
	}
	var dims []affine.Expr
	for _, d := range b.rescoped {
		if dims == nil {
			dims = make([]affine.Expr, b.dims.Len())
		}
		pos, _ := b.dims.Lookup(d)
		dims[pos] = affine.S(b.syms.Pos(scopes.Param(scope, d)))
	}
	for _, v := range b.illegal.Keys() {
		if v.ParentRegion() == scope.Region(0) {
			continue
		}
		param := scopes.Param(scope, v)
		if param == nil {
			continue
		}
		pos, _ := b.syms.Lookup(v)
		b.syms.Set(pos, param)
	}
	if dims != nil {
		b.expr = affine.ReplaceDimsAndSymbols(b.expr, dims, nil)
	}
	b.rescoped = nil
	b.scoped = true
}
