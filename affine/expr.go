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

// Package affine implements affine expressions, maps and integer sets.
//
// Expressions are immutable. Constructors simplify their result:
// an expression is flattened into a sum of coefficients times atoms
// plus a constant, where atoms are dimensions, symbols, and sub-terms
// that cannot be flattened further (division or modulo of a non-trivial
// expression, product of two non-constant expressions).
// Two expressions built by constructors print the same string if and only if
// they flatten to the same linear form.
package affine

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind of an affine expression node.
type Kind int

// Expression kinds.
const (
	ConstKind Kind = iota
	DimKind
	SymbolKind
	AddKind
	MulKind
	FloorDivKind
	CeilDivKind
	ModKind
)

var kindNames = map[Kind]string{
	ConstKind:    "const",
	DimKind:      "dim",
	SymbolKind:   "symbol",
	AddKind:      "+",
	MulKind:      "*",
	FloorDivKind: "floordiv",
	CeilDivKind:  "ceildiv",
	ModKind:      "mod",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type (
	// Expr is a node of an affine expression tree.
	Expr interface {
		Kind() Kind
		String() string
		exprNode()
	}

	// Constant is an integer literal.
	Constant struct {
		Value int64
	}

	// Dim references the dimension at position Pos.
	Dim struct {
		Pos int
	}

	// Symbol references the symbol at position Pos.
	Symbol struct {
		Pos int
	}

	// Binary is an operation between two expressions.
	// Subtraction is represented as an addition of a product by -1.
	Binary struct {
		Op       Kind
		LHS, RHS Expr
	}
)

var (
	_ Expr = Constant{}
	_ Expr = Dim{}
	_ Expr = Symbol{}
	_ Expr = (*Binary)(nil)
)

func (Constant) exprNode() {}
func (Dim) exprNode()      {}
func (Symbol) exprNode()   {}
func (*Binary) exprNode()  {}

// Kind of the expression.
func (Constant) Kind() Kind { return ConstKind }

// Kind of the expression.
func (Dim) Kind() Kind { return DimKind }

// Kind of the expression.
func (Symbol) Kind() Kind { return SymbolKind }

// Kind of the expression.
func (b *Binary) Kind() Kind { return b.Op }

func (c Constant) String() string { return fmt.Sprint(c.Value) }
func (d Dim) String() string      { return fmt.Sprintf("d%d", d.Pos) }
func (s Symbol) String() string   { return fmt.Sprintf("s%d", s.Pos) }

func isLeaf(e Expr) bool {
	switch e.(type) {
	case Dim, Symbol, Constant:
		return true
	}
	return false
}

// operandString returns the string of an operand of a multiplicative operator.
func operandString(e Expr, rhs bool) string {
	b, ok := e.(*Binary)
	if !ok {
		return e.String()
	}
	if b.Op == AddKind || rhs {
		return "(" + b.String() + ")"
	}
	return b.String()
}

// negatedTerm returns the positive form of a term if the term is negative.
func negatedTerm(e Expr) (string, bool) {
	switch e := e.(type) {
	case Constant:
		if e.Value < 0 {
			return fmt.Sprint(-e.Value), true
		}
	case *Binary:
		if e.Op != MulKind {
			break
		}
		c, ok := e.RHS.(Constant)
		if !ok || c.Value >= 0 {
			break
		}
		if c.Value == -1 {
			return operandString(e.LHS, false), true
		}
		return fmt.Sprintf("%s * %d", operandString(e.LHS, false), -c.Value), true
	}
	return "", false
}

func (b *Binary) String() string {
	switch b.Op {
	case AddKind:
		if s, ok := negatedTerm(b.RHS); ok {
			return b.LHS.String() + " - " + s
		}
		return b.LHS.String() + " + " + b.RHS.String()
	case MulKind:
		if c, ok := b.RHS.(Constant); ok && c.Value == -1 && isLeaf(b.LHS) {
			return "-" + b.LHS.String()
		}
		return operandString(b.LHS, false) + " * " + operandString(b.RHS, true)
	}
	return operandString(b.LHS, false) + " " + b.Op.String() + " " + operandString(b.RHS, true)
}

// Const returns a constant expression.
func Const(v int64) Expr { return Constant{Value: v} }

// D returns a reference to the dimension at position pos.
func D(pos int) Expr { return Dim{Pos: pos} }

// S returns a reference to the symbol at position pos.
func S(pos int) Expr { return Symbol{Pos: pos} }

// Add returns a + b.
func Add(a, b Expr) Expr {
	l := flatten(a)
	l.addLinear(flatten(b))
	return l.expr()
}

// Neg returns -a.
func Neg(a Expr) Expr {
	return flatten(a).scale(-1).expr()
}

// Sub returns a - b.
func Sub(a, b Expr) Expr {
	l := flatten(a)
	l.addLinear(flatten(b).scale(-1))
	return l.expr()
}

// Mul returns a * b.
// The result is affine only if a or b is a constant.
func Mul(a, b Expr) Expr {
	la, lb := flatten(a), flatten(b)
	if lb.isConst() {
		return la.scale(lb.constant).expr()
	}
	if la.isConst() {
		return lb.scale(la.constant).expr()
	}
	x, y := la.expr(), lb.expr()
	if x.String() > y.String() {
		x, y = y, x
	}
	return &Binary{Op: MulKind, LHS: x, RHS: y}
}

// FloorDiv returns a divided by b rounded towards negative infinity.
func FloorDiv(a, b Expr) Expr { return divide(FloorDivKind, a, b) }

// CeilDiv returns a divided by b rounded towards positive infinity.
func CeilDiv(a, b Expr) Expr { return divide(CeilDivKind, a, b) }

// Mod returns the remainder of the floor division of a by b.
func Mod(a, b Expr) Expr { return divide(ModKind, a, b) }

// divide splits the dividend into a multiple of a constant divisor
// and a remainder: (c*q + r) op c is rewritten as q + (r op c)
// for divisions and as r mod c for the modulo.
func divide(op Kind, a, b Expr) Expr {
	la, lb := flatten(a), flatten(b)
	if !lb.isConst() || lb.constant == 0 || (op == ModKind && lb.constant < 0) {
		return &Binary{Op: op, LHS: la.expr(), RHS: lb.expr()}
	}
	c := lb.constant
	if c < 0 {
		la, c = la.scale(-1), -c
	}
	var q, r linear
	for _, t := range la.terms {
		if t.coeff%c == 0 {
			q.add(t.atom, t.coeff/c)
		} else {
			r.add(t.atom, t.coeff)
		}
	}
	switch op {
	case FloorDivKind:
		q.constant = floorDiv(la.constant, c)
		r.constant = floorMod(la.constant, c)
	case CeilDivKind:
		q.constant = ceilDiv(la.constant, c)
		r.constant = la.constant - c*q.constant
	case ModKind:
		r.constant = floorMod(la.constant, c)
	}
	if r.isConst() {
		if op == ModKind {
			return Const(r.constant)
		}
		// The remaining constant is in [0, c) for floordiv and (-c, 0] for ceildiv.
		return q.expr()
	}
	rem := &Binary{Op: op, LHS: r.expr(), RHS: Constant{Value: c}}
	if op == ModKind {
		return rem
	}
	q.add(rem, 1)
	return q.expr()
}

func rebuild(op Kind, l, r Expr) Expr {
	switch op {
	case AddKind:
		return Add(l, r)
	case MulKind:
		return Mul(l, r)
	default:
		return divide(op, l, r)
	}
}

// Replace rebuilds an expression after substituting the nodes for which
// fn returns a replacement. Nodes replaced are not visited further.
func Replace(e Expr, fn func(Expr) (Expr, bool)) Expr {
	if r, ok := fn(e); ok {
		return r
	}
	b, ok := e.(*Binary)
	if !ok {
		return e
	}
	return rebuild(b.Op, Replace(b.LHS, fn), Replace(b.RHS, fn))
}

// ReplaceDimsAndSymbols substitutes dimension i by dims[i] and symbol j by syms[j].
// Positions out of range or with a nil replacement are kept.
func ReplaceDimsAndSymbols(e Expr, dims, syms []Expr) Expr {
	return Replace(e, func(e Expr) (Expr, bool) {
		switch e := e.(type) {
		case Dim:
			if e.Pos < len(dims) && dims[e.Pos] != nil {
				return dims[e.Pos], true
			}
		case Symbol:
			if e.Pos < len(syms) && syms[e.Pos] != nil {
				return syms[e.Pos], true
			}
		}
		return nil, false
	})
}

// ShiftDims adds shift to the position of every dimension.
func ShiftDims(e Expr, shift int) Expr {
	return Replace(e, func(e Expr) (Expr, bool) {
		if d, ok := e.(Dim); ok {
			return D(d.Pos + shift), true
		}
		return nil, false
	})
}

// ShiftSymbols adds shift to the position of every symbol.
func ShiftSymbols(e Expr, shift int) Expr {
	return Replace(e, func(e Expr) (Expr, bool) {
		if s, ok := e.(Symbol); ok {
			return S(s.Pos + shift), true
		}
		return nil, false
	})
}

// Simplify rebuilds an expression with the constructors.
func Simplify(e Expr) Expr {
	return Replace(e, func(Expr) (Expr, bool) { return nil, false })
}

// Equal returns true if both expressions simplify to the same form.
func Equal(a, b Expr) bool {
	return Simplify(a).String() == Simplify(b).String()
}

// Walk calls fn on every node of the expression, children first.
func Walk(e Expr, fn func(Expr)) {
	if b, ok := e.(*Binary); ok {
		Walk(b.LHS, fn)
		Walk(b.RHS, fn)
	}
	fn(e)
}

// markUsed records which dimensions and symbols an expression references.
// It returns an error if a reference is out of range.
func markUsed(e Expr, dims, syms []bool) error {
	var err error
	Walk(e, func(e Expr) {
		switch e := e.(type) {
		case Dim:
			if e.Pos < 0 || e.Pos >= len(dims) {
				err = errors.Errorf("%s out of range: expression has %d dimensions", e, len(dims))
				return
			}
			dims[e.Pos] = true
		case Symbol:
			if e.Pos < 0 || e.Pos >= len(syms) {
				err = errors.Errorf("%s out of range: expression has %d symbols", e, len(syms))
				return
			}
			syms[e.Pos] = true
		}
	})
	return err
}

// AsConstant returns the value of a constant expression.
func AsConstant(e Expr) (int64, bool) {
	l := flatten(e)
	if !l.isConst() {
		return 0, false
	}
	return l.constant, true
}

// IsPureAffine returns true if the expression only multiplies, divides
// or takes the modulo by positive constants.
func IsPureAffine(e Expr) bool {
	b, ok := e.(*Binary)
	if !ok {
		return true
	}
	switch b.Op {
	case AddKind:
		return IsPureAffine(b.LHS) && IsPureAffine(b.RHS)
	case MulKind:
		_, lc := AsConstant(b.LHS)
		_, rc := AsConstant(b.RHS)
		return (lc || rc) && IsPureAffine(b.LHS) && IsPureAffine(b.RHS)
	}
	c, ok := AsConstant(b.RHS)
	return ok && c > 0 && IsPureAffine(b.LHS)
}

// LargestKnownDivisor returns the largest integer known to divide the value of e.
// Zero means the expression is always zero.
func LargestKnownDivisor(e Expr) int64 {
	switch e := e.(type) {
	case Constant:
		return abs(e.Value)
	case *Binary:
		switch e.Op {
		case AddKind:
			return gcd(LargestKnownDivisor(e.LHS), LargestKnownDivisor(e.RHS))
		case MulKind:
			return LargestKnownDivisor(e.LHS) * LargestKnownDivisor(e.RHS)
		case ModKind:
			c, ok := AsConstant(e.RHS)
			if !ok {
				return 1
			}
			return gcd(LargestKnownDivisor(e.LHS), c)
		}
	}
	return 1
}

// IsMultipleOf returns true if the value of e is always a multiple of f.
func IsMultipleOf(e Expr, f int64) bool {
	if f == 0 {
		c, ok := AsConstant(e)
		return ok && c == 0
	}
	return LargestKnownDivisor(e)%f == 0
}

// Eval evaluates an expression given the values of its dimensions and symbols.
func Eval(e Expr, dims, syms []int64) (int64, error) {
	switch e := e.(type) {
	case Constant:
		return e.Value, nil
	case Dim:
		if e.Pos >= len(dims) {
			return 0, errors.Errorf("no value for %s", e)
		}
		return dims[e.Pos], nil
	case Symbol:
		if e.Pos >= len(syms) {
			return 0, errors.Errorf("no value for %s", e)
		}
		return syms[e.Pos], nil
	case *Binary:
		l, err := Eval(e.LHS, dims, syms)
		if err != nil {
			return 0, err
		}
		r, err := Eval(e.RHS, dims, syms)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case AddKind:
			return l + r, nil
		case MulKind:
			return l * r, nil
		}
		if r == 0 {
			return 0, errors.Errorf("division by zero in %s", e)
		}
		switch e.Op {
		case FloorDivKind:
			return floorDiv(l, r), nil
		case CeilDivKind:
			return ceilDiv(l, r), nil
		case ModKind:
			return floorMod(l, r), nil
		}
	}
	return 0, errors.Errorf("cannot evaluate %T", e)
}

func joinExprs(exprs []Expr) string {
	s := make([]string, len(exprs))
	for i, e := range exprs {
		s[i] = e.String()
	}
	return strings.Join(s, ", ")
}
