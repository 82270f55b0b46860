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

// Package opclass classifies the arithmetic operations that can be part of an affine computation.
package opclass

import (
	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/ir"
)

// Op is the affine meaning of an arithmetic operation.
type Op int

const (
	// Invalid is the meaning of operations without an affine counterpart.
	Invalid Op = iota
	Add
	Sub
	Mul
	FloorDiv
	Mod
	ShiftLeft
	ShiftRight
	// Cast is a change of integer width or from/to the index type.
	Cast
	Select
	Cmp
	// LowBitSet is a bitwise or, affine when it sets the low bit of an even value.
	LowBitSet
)

// IndexRule tells which operands make the result of an operation a valid index.
type IndexRule int

const (
	// NoIndex operations never produce a valid index.
	NoIndex IndexRule = iota
	// AllIndex operations produce a valid index when all their operands are valid indices.
	AllIndex
	// IndexBySymbol operations produce a valid index when their first operand is a valid index
	// and their second one a valid symbol. Commutative operations accept both orders.
	IndexBySymbol
	// IndexByConstant operations produce a valid index when their first operand is a valid index
	// and their second one a constant.
	IndexByConstant
)

// Class describes an arithmetic operation.
type Class struct {
	Op    Op
	Arity int
	// Symbol is true if the result is a valid symbol when all the operands are.
	Symbol bool
	Index  IndexRule
	// Commutative operations accept their operands in any order.
	Commutative bool
	// Linear is true if the operation can be inlined in an affine map
	// when its second operand is a constant.
	Linear bool
}

var classes = map[ir.Kind]Class{
	ir.ArithAddI:        {Op: Add, Arity: 2, Symbol: true, Index: AllIndex, Commutative: true, Linear: true},
	ir.ArithSubI:        {Op: Sub, Arity: 2, Symbol: true, Index: AllIndex, Linear: true},
	ir.ArithMulI:        {Op: Mul, Arity: 2, Symbol: true, Index: IndexBySymbol, Commutative: true, Linear: true},
	ir.ArithDivSI:       {Op: FloorDiv, Arity: 2, Symbol: true, Index: IndexBySymbol},
	ir.ArithDivUI:       {Op: FloorDiv, Arity: 2, Symbol: true, Index: IndexBySymbol},
	ir.ArithRemSI:       {Op: Mod, Arity: 2, Symbol: true, Index: IndexByConstant, Linear: true},
	ir.ArithRemUI:       {Op: Mod, Arity: 2, Symbol: true, Index: IndexByConstant, Linear: true},
	ir.ArithShLI:        {Op: ShiftLeft, Arity: 2, Index: IndexByConstant, Linear: true},
	ir.ArithShRUI:       {Op: ShiftRight, Arity: 2, Index: IndexByConstant, Linear: true},
	ir.ArithIndexCast:   {Op: Cast, Arity: 1, Symbol: true, Index: AllIndex},
	ir.ArithIndexCastUI: {Op: Cast, Arity: 1, Symbol: true, Index: AllIndex},
	ir.ArithTruncI:      {Op: Cast, Arity: 1, Symbol: true, Index: AllIndex},
	ir.ArithExtSI:       {Op: Cast, Arity: 1, Symbol: true, Index: AllIndex},
	ir.ArithExtUI:       {Op: Cast, Arity: 1, Symbol: true, Index: AllIndex},
	ir.ArithSelect:      {Op: Select, Arity: 3, Symbol: true},
	ir.ArithCmpI:        {Op: Cmp, Arity: 2, Symbol: true},
	ir.ArithOrI:         {Op: LowBitSet, Arity: 2},
}

// Of returns the class of an operation kind.
func Of(k ir.Kind) (Class, bool) {
	c, ok := classes[k]
	return c, ok
}

// OfOp returns the class of the operation defining v.
// It returns false for block arguments.
func OfOp(v *ir.Value) (Class, *ir.Operation, bool) {
	def := v.DefiningOp()
	if def == nil {
		return Class{}, nil, false
	}
	c, ok := classes[def.Kind()]
	return c, def, ok
}

// IsCast returns true for operations preserving the value of their operand.
func IsCast(k ir.Kind) bool {
	c, ok := classes[k]
	return ok && c.Op == Cast
}

// Combine returns the affine expression computed by an operation given the
// expressions of its operands. It returns false if the result is not affine.
func (c Class) Combine(operands []affine.Expr) (affine.Expr, bool) {
	if len(operands) != c.Arity {
		return nil, false
	}
	if c.Op == Cast {
		return operands[0], true
	}
	if c.Arity != 2 {
		return nil, false
	}
	lhs, rhs := operands[0], operands[1]
	cst, isCst := affine.AsConstant(rhs)
	switch c.Op {
	case Add:
		return affine.Add(lhs, rhs), true
	case Sub:
		return affine.Sub(lhs, rhs), true
	case Mul:
		if _, lhsCst := affine.AsConstant(lhs); !lhsCst && !isCst {
			return nil, false
		}
		return affine.Mul(lhs, rhs), true
	case FloorDiv:
		if !isCst || cst == 0 {
			return nil, false
		}
		return affine.FloorDiv(lhs, rhs), true
	case Mod:
		if !isCst || cst <= 0 {
			return nil, false
		}
		return affine.Mod(lhs, rhs), true
	case ShiftLeft:
		if !isCst || cst < 0 || cst > 62 {
			return nil, false
		}
		return affine.Mul(lhs, affine.Const(1<<cst)), true
	case ShiftRight:
		if !isCst || cst < 0 || cst > 62 {
			return nil, false
		}
		return affine.FloorDiv(lhs, affine.Const(1<<cst)), true
	case LowBitSet:
		if !isCst || cst != 1 || !affine.IsMultipleOf(lhs, 2) {
			return nil, false
		}
		return affine.Add(lhs, rhs), true
	}
	return nil, false
}

// Map returns a map over symbols computing the result of a linear operation
// from its operands, and the operands of the map.
// A constant second operand is folded in the map.
func (c Class) Map(op *ir.Operation) (affine.Map, []*ir.Value, bool) {
	if c.Arity != 2 || op.NumOperands() != 2 {
		return affine.Map{}, nil, false
	}
	lhs, rhs := op.Operand(0), op.Operand(1)
	if cst, ok := ir.ConstantValue(rhs); ok {
		e, ok := c.Combine([]affine.Expr{affine.S(0), affine.Const(cst)})
		if !ok {
			return affine.Map{}, nil, false
		}
		return affine.NewMap(0, 1, e), []*ir.Value{lhs}, true
	}
	var e affine.Expr
	s0, s1 := affine.S(0), affine.S(1)
	switch c.Op {
	case Add:
		e = affine.Add(s0, s1)
	case Sub:
		e = affine.Sub(s0, s1)
	case Mul:
		e = affine.Mul(s0, s1)
	case FloorDiv:
		e = affine.FloorDiv(s0, s1)
	case Mod:
		e = affine.Mod(s0, s1)
	default:
		return affine.Map{}, nil, false
	}
	return affine.NewMap(0, 2, e), []*ir.Value{lhs, rhs}, true
}
