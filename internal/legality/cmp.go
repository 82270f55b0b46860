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

package legality

import (
	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/ir"
)

// Cmp is a comparison with an integer.
type Cmp int

// Comparisons proven by ValueCmp.
const (
	EQ Cmp = iota
	LT
	LE
	GT
	GE
)

var cmpNames = [...]string{EQ: "==", LT: "<", LE: "<=", GT: ">", GE: ">="}

func (c Cmp) String() string {
	return cmpNames[c]
}

func (c Cmp) holds(x, k int64) bool {
	switch c {
	case EQ:
		return x == k
	case LT:
		return x < k
	case LE:
		return x <= k
	case GT:
		return x > k
	case GE:
		return x >= k
	}
	return false
}

// ValueCmp returns true if v cmp k can be proven for every execution.
// A false result means the comparison could not be proven.
func ValueCmp(cmp Cmp, v *ir.Value, k int64) bool {
	v = stripIndexCasts(v)
	if c, ok := ir.ConstantValue(v); ok {
		return cmp.holds(c, k)
	}
	if def := v.DefiningOp(); def != nil {
		if cmp != GE || k != 0 {
			return false
		}
		switch def.Kind() {
		case ir.ArithAddI:
			return ValueCmp(GE, def.Operand(0), 0) && ValueCmp(GE, def.Operand(1), 0)
		case ir.ArithShRUI, ir.ArithShLI, ir.ArithDivUI:
			return ValueCmp(GE, def.Operand(0), 0)
		}
		return false
	}
	owner := v.OwnerBlock().ParentOp()
	if owner == nil {
		return false
	}
	switch owner.Kind() {
	case ir.AffineFor:
		if v.Index() != 0 {
			return false
		}
		f := ir.AffineForOp{Operation: owner}
		lb, ub := f.LowerMap(), f.UpperMap()
		return ivCmp(cmp, k,
			mapBounds(lb.Results, lb.NumDims, f.LowerOperands()),
			mapBounds(ub.Results, ub.NumDims, f.UpperOperands()))
	case ir.AffineParallel:
		p := ir.AffineParallelOp{Operation: owner}
		lb, ub := p.LowerMap(), p.UpperMap()
		i := v.Index()
		if i >= len(lb.Results) || i >= len(ub.Results) {
			return false
		}
		return ivCmp(cmp, k,
			mapBounds(lb.Results[i:i+1], lb.NumDims, p.LowerOperands()),
			mapBounds(ub.Results[i:i+1], ub.NumDims, p.UpperOperands()))
	case ir.SCFFor:
		if v.Index() != 0 {
			return false
		}
		f := ir.SCFForOp{Operation: owner}
		return ivCmp(cmp, k, valueBounds(f.LowerBound()), valueBounds(f.UpperBound()))
	case ir.SCFParallel:
		p := ir.SCFParallelOp{Operation: owner}
		i := v.Index()
		return ivCmp(cmp, k, valueBounds(p.LowerBounds()[i]), valueBounds(p.UpperBounds()[i]))
	}
	return false
}

// bounds are the values an induction variable is bounded by:
// the maximum of the lower bounds and the minimum of the upper bounds.
type bounds []func(Cmp, int64) bool

func mapBounds(exprs []affine.Expr, numDims int, operands []*ir.Value) bounds {
	bs := make(bounds, len(exprs))
	for i, e := range exprs {
		bs[i] = func(cmp Cmp, k int64) bool {
			return ExprCmp(cmp, e, numDims, operands, k)
		}
	}
	return bs
}

func valueBounds(v *ir.Value) bounds {
	return bounds{func(cmp Cmp, k int64) bool { return ValueCmp(cmp, v, k) }}
}

func (bs bounds) any(cmp Cmp, k int64) bool {
	for _, b := range bs {
		if b(cmp, k) {
			return true
		}
	}
	return false
}

func (bs bounds) all(cmp Cmp, k int64) bool {
	for _, b := range bs {
		if !b(cmp, k) {
			return false
		}
	}
	return len(bs) > 0
}

// ivCmp compares an induction variable i in [max(lbs), min(ubs)) with k.
func ivCmp(cmp Cmp, k int64, lbs, ubs bounds) bool {
	switch cmp {
	case EQ:
		return lbs.all(EQ, k) && ubs.all(EQ, k+1)
	case LT:
		return ubs.any(LE, k)
	case LE:
		return ubs.any(LE, k+1)
	case GT:
		return lbs.any(GT, k)
	case GE:
		return lbs.any(GE, k)
	}
	return false
}

// ExprCmp returns true if e cmp k can be proven for every execution,
// where e is an expression over operands, the first numDims of which are dimensions.
func ExprCmp(cmp Cmp, e affine.Expr, numDims int, operands []*ir.Value, k int64) bool {
	switch e := e.(type) {
	case affine.Constant:
		return cmp.holds(e.Value, k)
	case affine.Dim:
		return ValueCmp(cmp, operands[e.Pos], k)
	case affine.Symbol:
		return ValueCmp(cmp, operands[numDims+e.Pos], k)
	case *affine.Binary:
		sub := func(c Cmp, x affine.Expr, k int64) bool {
			return ExprCmp(c, x, numDims, operands, k)
		}
		a, b := e.LHS, e.RHS
		switch e.Op {
		case affine.AddKind:
			return addCmp(cmp, k, a, b, sub)
		case affine.MulKind:
			if k == 0 {
				return mulSignCmp(cmp, a, b, sub)
			}
		}
	}
	return false
}

type exprCmp func(Cmp, affine.Expr, int64) bool

func addCmp(cmp Cmp, k int64, a, b affine.Expr, c exprCmp) bool {
	switch cmp {
	case EQ:
		return (c(EQ, a, k) && c(EQ, b, 0)) || (c(EQ, a, 0) && c(EQ, b, k))
	case LT:
		return (c(LT, a, k) && c(LE, b, 0)) ||
			(c(LE, a, 0) && c(LT, b, k)) ||
			(c(LE, a, k) && c(LT, b, 0)) ||
			(c(LT, a, 0) && c(LE, b, k))
	case LE:
		return (c(LE, a, k) && c(LE, b, 0)) || (c(LE, a, 0) && c(LE, b, k))
	case GT:
		return (c(GT, a, k) && c(GE, b, 0)) ||
			(c(GE, a, 0) && c(GT, b, k)) ||
			(c(GE, a, k) && c(GT, b, 0)) ||
			(c(GT, a, 0) && c(GE, b, k))
	case GE:
		return (c(GE, a, k) && c(GE, b, 0)) || (c(GE, a, 0) && c(GE, b, k))
	}
	return false
}

// mulSignCmp compares a*b with 0.
func mulSignCmp(cmp Cmp, a, b affine.Expr, c exprCmp) bool {
	switch cmp {
	case EQ:
		return c(EQ, a, 0) || c(EQ, b, 0)
	case LT:
		return (c(LT, a, 0) && c(GT, b, 0)) || (c(GT, a, 0) && c(LT, b, 0))
	case LE:
		return c(EQ, a, 0) || c(EQ, b, 0) ||
			(c(GE, a, 0) && c(LE, b, 0)) || (c(LE, a, 0) && c(GE, b, 0))
	case GT:
		return (c(LT, a, 0) && c(LT, b, 0)) || (c(GT, a, 0) && c(GT, b, 0))
	case GE:
		return c(EQ, a, 0) || c(EQ, b, 0) ||
			(c(GE, a, 0) && c(GE, b, 0)) || (c(LE, a, 0) && c(LE, b, 0))
	}
	return false
}
