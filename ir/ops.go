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

package ir

import (
	"math"

	"github.com/gx-org/affinecfg/affine"
)

// DynamicIndex marks an index of a getelementptr operation given by an operand.
const DynamicIndex = math.MinInt32

// AffineForOp is a view on an affine.for operation.
// Operands are the lower bound operands, the upper bound operands, and the initial
// values of the loop-carried variables.
type AffineForOp struct {
	*Operation
}

// LowerMap returns the map of the lower bound. The bound is the maximum of its results.
func (f AffineForOp) LowerMap() affine.Map {
	m, _ := f.MapAttr(AttrLowerMap)
	return m
}

// UpperMap returns the map of the upper bound. The bound is the minimum of its results.
func (f AffineForOp) UpperMap() affine.Map {
	m, _ := f.MapAttr(AttrUpperMap)
	return m
}

// Step returns the constant step of the loop.
func (f AffineForOp) Step() int64 {
	s, _ := f.IntAttr(AttrStep)
	return s
}

// LowerOperands returns the operands of the lower bound map.
func (f AffineForOp) LowerOperands() []*Value {
	n := f.LowerMap().NumOperands()
	return f.Operands()[:n]
}

// UpperOperands returns the operands of the upper bound map.
func (f AffineForOp) UpperOperands() []*Value {
	n := f.LowerMap().NumOperands()
	return f.Operands()[n : n+f.UpperMap().NumOperands()]
}

// Inits returns the initial values of the loop-carried variables.
func (f AffineForOp) Inits() []*Value {
	return f.Operands()[f.LowerMap().NumOperands()+f.UpperMap().NumOperands():]
}

// InductionVar returns the induction variable of the loop.
func (f AffineForOp) InductionVar() *Value {
	return f.Body().Arg(0)
}

// SetBounds replaces the bounds of the loop, keeping its initial values.
func (f AffineForOp) SetBounds(lb affine.Map, lbOps []*Value, ub affine.Map, ubOps []*Value) {
	inits := f.Inits()
	f.SetAttr(AttrLowerMap, MapAttr{Map: lb})
	f.SetAttr(AttrUpperMap, MapAttr{Map: ub})
	ops := append(append(append([]*Value(nil), lbOps...), ubOps...), inits...)
	f.SetOperands(ops)
}

// AffineParallelOp is a view on an affine.parallel operation.
// Each result of the lower and upper maps is the bound of one loop.
type AffineParallelOp struct {
	*Operation
}

// LowerMap returns the map of the lower bounds.
func (p AffineParallelOp) LowerMap() affine.Map {
	m, _ := p.MapAttr(AttrLowerMap)
	return m
}

// UpperMap returns the map of the upper bounds.
func (p AffineParallelOp) UpperMap() affine.Map {
	m, _ := p.MapAttr(AttrUpperMap)
	return m
}

// Steps returns the constant steps of every loop.
func (p AffineParallelOp) Steps() []int64 {
	s, _ := p.IntsAttr(AttrSteps)
	return s
}

// LowerOperands returns the operands of the lower bound map.
func (p AffineParallelOp) LowerOperands() []*Value {
	return p.Operands()[:p.LowerMap().NumOperands()]
}

// UpperOperands returns the operands of the upper bound map.
func (p AffineParallelOp) UpperOperands() []*Value {
	return p.Operands()[p.LowerMap().NumOperands():]
}

// AccessOp is a view on an affine load or store, vector or scalar.
type AccessOp struct {
	*Operation
}

// IsStore returns true for stores.
func (a AccessOp) IsStore() bool {
	return a.Kind() == AffineStore || a.Kind() == AffineVectorStore || a.Kind() == MemRefStore
}

// memRefIndex returns the operand index of the memref.
func (a AccessOp) memRefIndex() int {
	if a.IsStore() {
		return 1
	}
	return 0
}

// MemRef returns the accessed memref.
func (a AccessOp) MemRef() *Value {
	return a.Operand(a.memRefIndex())
}

// StoredValue returns the value stored by a store.
func (a AccessOp) StoredValue() *Value {
	return a.Operand(0)
}

// Map returns the access map of an affine access.
func (a AccessOp) Map() affine.Map {
	m, _ := a.MapAttr(AttrMap)
	return m
}

// Indices returns the operands of the access map, or the indices of a memref access.
func (a AccessOp) Indices() []*Value {
	return a.Operands()[a.memRefIndex()+1:]
}

// SetIndices replaces the map and its operands.
func (a AccessOp) SetIndices(m affine.Map, indices []*Value) {
	a.SetAttr(AttrMap, MapAttr{Map: m})
	ops := append(a.Operands()[:a.memRefIndex()+1], indices...)
	a.SetOperands(ops)
}

// GEPIndex is an index of a getelementptr operation:
// either a constant or a value.
type GEPIndex struct {
	Value *Value
	Const int64
}

// GEPOp is a view on an llvm.getelementptr operation.
// The first operand is the base pointer. The other operands are the
// indices marked as DynamicIndex in the indices attribute.
type GEPOp struct {
	*Operation
}

// Base returns the base pointer.
func (g GEPOp) Base() *Value {
	return g.Operand(0)
}

// ElemType returns the type the first index steps over.
func (g GEPOp) ElemType() Type {
	t, _ := g.TypeAttr(AttrElemType)
	return t
}

// Indices returns the indices of the operation, constants and values in order.
func (g GEPOp) Indices() []GEPIndex {
	raw, _ := g.IntsAttr(AttrIndices)
	dynamic := g.Operands()[1:]
	indices := make([]GEPIndex, len(raw))
	for i, c := range raw {
		if c != DynamicIndex {
			indices[i] = GEPIndex{Const: c}
			continue
		}
		if len(dynamic) > 0 {
			indices[i] = GEPIndex{Value: dynamic[0]}
			dynamic = dynamic[1:]
		}
	}
	return indices
}

// SCFForOp is a view on an scf.for operation.
type SCFForOp struct {
	*Operation
}

// LowerBound of the loop.
func (f SCFForOp) LowerBound() *Value { return f.Operand(0) }

// UpperBound of the loop.
func (f SCFForOp) UpperBound() *Value { return f.Operand(1) }

// Step of the loop.
func (f SCFForOp) Step() *Value { return f.Operand(2) }

// Inits returns the initial values of the loop-carried variables.
func (f SCFForOp) Inits() []*Value { return f.Operands()[3:] }

// InductionVar of the loop.
func (f SCFForOp) InductionVar() *Value { return f.Body().Arg(0) }

// SCFParallelOp is a view on an scf.parallel operation.
// Operands are the lower bounds, the upper bounds, and the steps.
type SCFParallelOp struct {
	*Operation
}

// NumLoops returns the number of loops.
func (p SCFParallelOp) NumLoops() int {
	return p.NumOperands() / 3
}

// LowerBounds of the loops.
func (p SCFParallelOp) LowerBounds() []*Value {
	return p.Operands()[:p.NumLoops()]
}

// UpperBounds of the loops.
func (p SCFParallelOp) UpperBounds() []*Value {
	n := p.NumLoops()
	return p.Operands()[n : 2*n]
}

// Steps of the loops.
func (p SCFParallelOp) Steps() []*Value {
	n := p.NumLoops()
	return p.Operands()[2*n:]
}

// ConstantValue returns the integer value of a constant.
func ConstantValue(v *Value) (int64, bool) {
	def := v.DefiningOp()
	if def == nil || def.Kind() != ArithConstant {
		return 0, false
	}
	return def.IntAttr(AttrValue)
}

// IsInductionVar returns true if v is the induction variable of an affine.for
// or one of the induction variables of an affine.parallel.
func IsInductionVar(v *Value) bool {
	if !v.IsBlockArg() {
		return false
	}
	owner := v.OwnerBlock().ParentOp()
	if owner == nil {
		return false
	}
	switch owner.Kind() {
	case AffineFor:
		return v.Index() == 0
	case AffineParallel:
		return true
	}
	return false
}
