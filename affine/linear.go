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
	"fmt"
	"sort"
)

type term struct {
	key   string
	atom  Expr
	coeff int64
}

// linear is the flattened form of an expression:
// the sum of the terms plus a constant.
type linear struct {
	terms    []term
	constant int64
}

// atomKey orders atoms: dimensions by position, then symbols by position,
// then everything else by its string.
func atomKey(e Expr) string {
	switch e := e.(type) {
	case Dim:
		return fmt.Sprintf("0:%012d", e.Pos)
	case Symbol:
		return fmt.Sprintf("1:%012d", e.Pos)
	}
	return "2:" + e.String()
}

func (l *linear) add(atom Expr, coeff int64) {
	if coeff == 0 {
		return
	}
	key := atomKey(atom)
	for i := range l.terms {
		if l.terms[i].key != key {
			continue
		}
		l.terms[i].coeff += coeff
		if l.terms[i].coeff == 0 {
			l.terms = append(l.terms[:i], l.terms[i+1:]...)
		}
		return
	}
	l.terms = append(l.terms, term{key: key, atom: atom, coeff: coeff})
}

func (l *linear) addLinear(o linear) {
	for _, t := range o.terms {
		l.add(t.atom, t.coeff)
	}
	l.constant += o.constant
}

func (l linear) scale(k int64) linear {
	r := linear{constant: l.constant * k}
	if k == 0 {
		return r
	}
	r.terms = make([]term, len(l.terms))
	for i, t := range l.terms {
		t.coeff *= k
		r.terms[i] = t
	}
	return r
}

func (l linear) isConst() bool {
	return len(l.terms) == 0
}

func flatten(e Expr) linear {
	var l linear
	switch e := e.(type) {
	case Constant:
		l.constant = e.Value
		return l
	case Dim, Symbol:
		l.add(e, 1)
		return l
	case *Binary:
		switch e.Op {
		case AddKind:
			l = flatten(e.LHS)
			l.addLinear(flatten(e.RHS))
			return l
		case MulKind:
			ll, rl := flatten(e.LHS), flatten(e.RHS)
			if rl.isConst() {
				return ll.scale(rl.constant)
			}
			if ll.isConst() {
				return rl.scale(ll.constant)
			}
		}
	}
	l.add(e, 1)
	return l
}

// expr builds the canonical tree of a linear form.
func (l linear) expr() Expr {
	terms := append([]term(nil), l.terms...)
	sort.Slice(terms, func(i, j int) bool { return terms[i].key < terms[j].key })
	var acc Expr
	for _, t := range terms {
		te := t.atom
		if t.coeff != 1 {
			te = &Binary{Op: MulKind, LHS: t.atom, RHS: Constant{Value: t.coeff}}
		}
		if acc == nil {
			acc = te
		} else {
			acc = &Binary{Op: AddKind, LHS: acc, RHS: te}
		}
	}
	if acc == nil {
		return Constant{Value: l.constant}
	}
	if l.constant != 0 {
		acc = &Binary{Op: AddKind, LHS: acc, RHS: Constant{Value: l.constant}}
	}
	return acc
}
