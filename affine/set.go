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
	"strings"

	"github.com/pkg/errors"
)

// Set is a conjunction of constraints over a space of dimensions and symbols.
// Constraint i is Constraints[i] == 0 if Eq[i] is true, Constraints[i] >= 0 otherwise.
type Set struct {
	NumDims     int
	NumSymbols  int
	Constraints []Expr
	Eq          []bool
}

// NewSet returns a new integer set.
func NewSet(numDims, numSymbols int, constraints []Expr, eq []bool) Set {
	return Set{NumDims: numDims, NumSymbols: numSymbols, Constraints: constraints, Eq: eq}
}

// NumOperands returns the number of operands of the set.
func (s Set) NumOperands() int {
	return s.NumDims + s.NumSymbols
}

// Validate checks that every reference is within the declared counts.
func (s Set) Validate() error {
	if len(s.Constraints) != len(s.Eq) {
		return errors.Errorf("set has %d constraints but %d equality flags", len(s.Constraints), len(s.Eq))
	}
	dims, syms := make([]bool, s.NumDims), make([]bool, s.NumSymbols)
	for i, c := range s.Constraints {
		if err := markUsed(c, dims, syms); err != nil {
			return errors.Wrapf(err, "constraint %d of %s", i, s)
		}
	}
	return nil
}

// Contains returns true if the point given by dims and syms satisfies every constraint.
func (s Set) Contains(dims, syms []int64) (bool, error) {
	if len(dims) != s.NumDims || len(syms) != s.NumSymbols {
		return false, errors.Errorf("set %s evaluated with %d dimensions and %d symbols", s, len(dims), len(syms))
	}
	for i, c := range s.Constraints {
		v, err := Eval(c, dims, syms)
		if err != nil {
			return false, err
		}
		if s.Eq[i] && v != 0 || !s.Eq[i] && v < 0 {
			return false, nil
		}
	}
	return true, nil
}

// ContainsOperands is Contains given a positional operand list.
func (s Set) ContainsOperands(operands []int64) (bool, error) {
	if len(operands) != s.NumOperands() {
		return false, errors.Errorf("set %s evaluated with %d operands", s, len(operands))
	}
	return s.Contains(operands[:s.NumDims], operands[s.NumDims:])
}

// Equal returns true if both sets have the same space and equal constraints in the same order.
func (s Set) Equal(o Set) bool {
	if s.NumDims != o.NumDims || s.NumSymbols != o.NumSymbols || len(s.Constraints) != len(o.Constraints) {
		return false
	}
	for i := range s.Constraints {
		if s.Eq[i] != o.Eq[i] || !Equal(s.Constraints[i], o.Constraints[i]) {
			return false
		}
	}
	return true
}

// Simplify rebuilds the constraints, removes duplicates and constraints always satisfied.
func (s Set) Simplify() Set {
	r := Set{NumDims: s.NumDims, NumSymbols: s.NumSymbols}
	seen := make(map[string]bool)
	for i, c := range s.Constraints {
		c = Simplify(c)
		if v, ok := AsConstant(c); ok && (s.Eq[i] && v == 0 || !s.Eq[i] && v >= 0) {
			continue
		}
		key := c.String()
		if s.Eq[i] {
			key += "==0"
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		r.Constraints = append(r.Constraints, c)
		r.Eq = append(r.Eq, s.Eq[i])
	}
	return r
}

// Used returns which dimensions and symbols are referenced by the constraints.
func (s Set) Used() (dims, syms []bool) {
	dims, syms = make([]bool, s.NumDims), make([]bool, s.NumSymbols)
	for _, c := range s.Constraints {
		_ = markUsed(c, dims, syms)
	}
	return
}

// Replace substitutes dimensions and symbols in every constraint
// and returns a set over a new space.
func (s Set) Replace(dims, syms []Expr, numDims, numSymbols int) Set {
	constraints := make([]Expr, len(s.Constraints))
	for i, c := range s.Constraints {
		constraints[i] = ReplaceDimsAndSymbols(c, dims, syms)
	}
	return NewSet(numDims, numSymbols, constraints, append([]bool(nil), s.Eq...))
}

func (s Set) String() string {
	cs := make([]string, len(s.Constraints))
	for i, c := range s.Constraints {
		op := " >= 0"
		if s.Eq[i] {
			op = " == 0"
		}
		cs[i] = c.String() + op
	}
	return spaceString(s.NumDims, s.NumSymbols) + " : (" + strings.Join(cs, ", ") + ")"
}
