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

// Package legality decides which values can be used as affine dimensions and symbols.
//
// A value is a valid symbol if it is invariant in the affine scope containing it:
// it is defined at the top level of the scope, it is a constant, or it is computed
// from valid symbols. A valid index is a value computed from valid symbols and
// induction variables of affine loops using operations an affine map can express.
package legality

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/gx-org/affinecfg/internal/opclass"
	"github.com/gx-org/affinecfg/ir"
)

func describe(v *ir.Value) string {
	if def := v.DefiningOp(); def != nil {
		return fmt.Sprintf("result %d of %s at %s", v.Index(), def.Name(), def.Pos)
	}
	owner := v.OwnerBlock().ParentOp()
	if owner == nil {
		return fmt.Sprintf("block argument %d", v.Index())
	}
	return fmt.Sprintf("block argument %d of %s at %s", v.Index(), owner.Name(), owner.Pos)
}

// AffineScope returns the region of the closest ancestor of op starting an affine scope.
// It returns nil if no ancestor starts an affine scope.
func AffineScope(op *ir.Operation) *ir.Region {
	cur := op
	for parent := cur.ParentOp(); parent != nil; parent = cur.ParentOp() {
		if parent.HasTrait(ir.HasAffineScope) {
			return cur.ParentRegion()
		}
		cur = parent
	}
	return nil
}

// IsTopLevelValue returns true if v is defined directly in the region of an
// operation starting an affine scope.
func IsTopLevelValue(v *ir.Value) bool {
	var parent *ir.Operation
	if def := v.DefiningOp(); def != nil {
		parent = def.ParentOp()
	} else {
		parent = v.OwnerBlock().ParentOp()
	}
	return parent != nil && parent.HasTrait(ir.HasAffineScope)
}

// IsAffineInductionVar returns true for induction variables of affine loops.
func IsAffineInductionVar(v *ir.Value) bool {
	return ir.IsInductionVar(v)
}

// IsValidAffineSymbol returns true if v can be a symbol operand of an affine operation.
// Only values of index type are accepted.
func IsValidAffineSymbol(v *ir.Value) bool {
	if !ir.IsIndex(v.Type()) {
		return false
	}
	if IsTopLevelValue(v) {
		return true
	}
	def := v.DefiningOp()
	if def == nil {
		return false
	}
	return symbolIn(v, AffineScope(def))
}

func symbolIn(v *ir.Value, region *ir.Region) bool {
	if !ir.IsIndex(v.Type()) {
		return false
	}
	if region != nil && v.ParentRegion() == region {
		return true
	}
	if def := v.DefiningOp(); def != nil {
		switch {
		case def.HasTrait(ir.ConstantLike):
			return true
		case def.Kind() == ir.AffineApply:
			for _, operand := range def.Operands() {
				if !symbolIn(operand, region) {
					return false
				}
			}
			return true
		}
	}
	// Values dominating a scope which is not isolated are symbols inside the scope.
	if region == nil {
		return false
	}
	parent := region.ParentOp()
	if parent == nil || parent.HasTrait(ir.IsolatedFromAbove) {
		return false
	}
	outer := parent.ParentRegion()
	if outer == nil {
		return false
	}
	return symbolIn(v, outer)
}

// IsValidAffineDim returns true if v can be a dimension operand of an affine operation.
func IsValidAffineDim(v *ir.Value) bool {
	if !ir.IsIndex(v.Type()) {
		return false
	}
	if def := v.DefiningOp(); def != nil {
		return dimIn(v, AffineScope(def))
	}
	if IsAffineInductionVar(v) {
		return true
	}
	parent := v.OwnerBlock().ParentOp()
	return parent != nil && parent.HasTrait(ir.HasAffineScope)
}

func dimIn(v *ir.Value, region *ir.Region) bool {
	if !ir.IsIndex(v.Type()) {
		return false
	}
	if symbolIn(v, region) {
		return true
	}
	def := v.DefiningOp()
	if def == nil {
		return IsAffineInductionVar(v)
	}
	if def.Kind() != ir.AffineApply {
		return false
	}
	for _, operand := range def.Operands() {
		if !dimIn(operand, region) {
			return false
		}
	}
	return true
}

// IsValidSymbol returns true if v is a valid symbol regardless of its type.
// A top-level value is always a valid symbol. If recursive is true, results of
// arithmetic operations, and of conditionals, computed only from valid symbols
// are also valid symbols.
func IsValidSymbol(v *ir.Value, recursive bool) bool {
	if IsTopLevelValue(v) {
		return true
	}
	def := v.DefiningOp()
	if def == nil {
		return false
	}
	if symbolOp(def, recursive) {
		return true
	}
	return symbolIn(v, AffineScope(def))
}

func symbolOp(op *ir.Operation, recursive bool) bool {
	if op.HasTrait(ir.ConstantLike) {
		return true
	}
	if !recursive {
		return false
	}
	if c, ok := opclass.Of(op.Kind()); ok && c.Symbol && operandsAreSymbols(op.Operands()) {
		return true
	}
	switch op.Kind() {
	case ir.SCFIf:
		return IsValidSymbol(op.Operand(0), true) && bodiesAreSymbols(op)
	case ir.AffineIf:
		return operandsAreSymbols(op.Operands()) && bodiesAreSymbols(op)
	}
	return false
}

func operandsAreSymbols(vs []*ir.Value) bool {
	for _, v := range vs {
		if !IsValidSymbol(v, true) {
			return false
		}
	}
	return true
}

func bodiesAreSymbols(op *ir.Operation) bool {
	for _, r := range op.Regions() {
		for _, b := range r.Blocks() {
			for _, nested := range b.Ops() {
				if nested.HasTrait(ir.Terminator) {
					continue
				}
				if !symbolOp(nested, true) {
					return false
				}
			}
		}
	}
	return true
}

// IsValidIndex returns true if v can be expressed by an affine map
// over valid symbols and induction variables of affine loops.
func IsValidIndex(v *ir.Value) bool {
	if IsValidSymbol(v, true) {
		return true
	}
	if def := v.DefiningOp(); def != nil {
		if validIndexOp(def) {
			return true
		}
		log.Debugf("illegal index: %s", describe(v))
		return false
	}
	owner := v.OwnerBlock().ParentOp()
	switch {
	case owner == nil:
	case owner.HasTrait(ir.FunctionLike):
		return true
	case owner.Kind() == ir.AffineFor:
		return v.Index() == 0
	case owner.Kind() == ir.AffineParallel:
		return true
	}
	log.Debugf("illegal index: %s", describe(v))
	return false
}

func validIndexOp(op *ir.Operation) bool {
	if op.HasTrait(ir.ConstantLike) {
		return true
	}
	c, ok := opclass.Of(op.Kind())
	if !ok || op.NumOperands() != c.Arity {
		return false
	}
	switch c.Index {
	case opclass.AllIndex:
		for _, operand := range op.Operands() {
			if !IsValidIndex(operand) {
				return false
			}
		}
		return true
	case opclass.IndexBySymbol:
		x, y := op.Operand(0), op.Operand(1)
		if IsValidIndex(x) && IsValidSymbol(y, true) {
			return true
		}
		return c.Commutative && IsValidIndex(y) && IsValidSymbol(x, true)
	case opclass.IndexByConstant:
		_, isCst := ir.ConstantValue(op.Operand(1))
		return isCst && IsValidIndex(op.Operand(0))
	}
	return false
}

// NeedsNormalization returns true if an operand of an affine operation,
// in a dimension slot if dim is true or in a symbol slot otherwise,
// should be folded into the map of the operation.
func NeedsNormalization(v *ir.Value, dim bool) bool {
	if def := v.DefiningOp(); def != nil && def.Kind() == ir.AffineApply {
		return true
	}
	if !IsValidSymbol(v, false) && IsValidIndex(v) && (!dim || !IsValidAffineDim(v)) {
		return true
	}
	if LinearWithConstant(stripIndexCasts(v)) {
		return true
	}
	return !dim && IsAffineInductionVar(v)
}

// LinearWithConstant returns true if v is computed by a linear operation
// whose second operand is a constant.
func LinearWithConstant(v *ir.Value) bool {
	c, def, ok := opclass.OfOp(v)
	if !ok || !c.Linear || def.NumOperands() != 2 {
		return false
	}
	_, isCst := ir.ConstantValue(def.Operand(1))
	return isCst
}

func stripIndexCasts(v *ir.Value) *ir.Value {
	for {
		def := v.DefiningOp()
		if def == nil || (def.Kind() != ir.ArithIndexCast && def.Kind() != ir.ArithIndexCastUI) {
			return v
		}
		v = def.Operand(0)
	}
}

// Decast returns the value converted by a chain of integer casts.
func Decast(v *ir.Value) *ir.Value {
	for {
		def := v.DefiningOp()
		if def == nil || !opclass.IsCast(def.Kind()) {
			return v
		}
		v = def.Operand(0)
	}
}

// Constant returns the value of an integer constant, looking through index casts.
func Constant(v *ir.Value) (int64, bool) {
	return ir.ConstantValue(stripIndexCasts(v))
}

// IsReadOnly returns true if the only effect of an operation,
// including the operations it contains, is to read memory.
func IsReadOnly(op *ir.Operation) bool {
	if op.Kind().Info().Effects&^ir.EffectRead != 0 {
		return false
	}
	return nestedAll(op, IsReadOnly)
}

// IsReadNone returns true if an operation, including the operations it contains,
// neither reads nor writes memory. Allocations are accepted.
func IsReadNone(op *ir.Operation) bool {
	if op.Kind().Info().Effects&(ir.EffectRead|ir.EffectWrite|ir.EffectUnknown) != 0 {
		return false
	}
	return nestedAll(op, IsReadNone)
}

func nestedAll(op *ir.Operation, pred func(*ir.Operation) bool) bool {
	if !op.HasTrait(ir.RecursiveEffects) {
		return true
	}
	for _, r := range op.Regions() {
		for _, b := range r.Blocks() {
			for _, nested := range b.Ops() {
				if !pred(nested) {
					return false
				}
			}
		}
	}
	return true
}
