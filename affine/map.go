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
	"strings"

	"github.com/pkg/errors"
)

// Map is a list of affine expressions over a space of dimensions and symbols.
type Map struct {
	NumDims    int
	NumSymbols int
	Results    []Expr
}

// NewMap returns a map given its results.
func NewMap(numDims, numSymbols int, results ...Expr) Map {
	return Map{NumDims: numDims, NumSymbols: numSymbols, Results: results}
}

// ConstantMap returns a map without inputs returning a single constant.
func ConstantMap(v int64) Map {
	return NewMap(0, 0, Const(v))
}

// DimIdentityMap returns (d0, ..., dn-1) -> (d0, ..., dn-1).
func DimIdentityMap(n int) Map {
	results := make([]Expr, n)
	for i := range results {
		results[i] = D(i)
	}
	return NewMap(n, 0, results...)
}

// MultiSymbolIdentityMap returns ()[s0, ..., sn-1] -> (s0, ..., sn-1).
func MultiSymbolIdentityMap(n int) Map {
	results := make([]Expr, n)
	for i := range results {
		results[i] = S(i)
	}
	return NewMap(0, n, results...)
}

// NumOperands returns the number of operands the map needs to be evaluated.
func (m Map) NumOperands() int {
	return m.NumDims + m.NumSymbols
}

// SingleConstant returns the value of a map with a single constant result.
func (m Map) SingleConstant() (int64, bool) {
	if len(m.Results) != 1 {
		return 0, false
	}
	return AsConstant(m.Results[0])
}

// Validate checks that every reference is within the declared counts.
func (m Map) Validate() error {
	dims, syms := make([]bool, m.NumDims), make([]bool, m.NumSymbols)
	for i, r := range m.Results {
		if err := markUsed(r, dims, syms); err != nil {
			return errors.Wrapf(err, "result %d of %s", i, m)
		}
	}
	return nil
}

// Used returns which dimensions and symbols are referenced by the results.
func (m Map) Used() (dims, syms []bool) {
	dims, syms = make([]bool, m.NumDims), make([]bool, m.NumSymbols)
	for _, r := range m.Results {
		_ = markUsed(r, dims, syms)
	}
	return
}

// Eval evaluates every result of the map.
func (m Map) Eval(dims, syms []int64) ([]int64, error) {
	if len(dims) != m.NumDims || len(syms) != m.NumSymbols {
		return nil, errors.Errorf("map %s evaluated with %d dimensions and %d symbols", m, len(dims), len(syms))
	}
	vals := make([]int64, len(m.Results))
	for i, r := range m.Results {
		var err error
		if vals[i], err = Eval(r, dims, syms); err != nil {
			return nil, err
		}
	}
	return vals, nil
}

// EvalOperands evaluates the map given a positional operand list:
// dimensions first, then symbols.
func (m Map) EvalOperands(operands []int64) ([]int64, error) {
	if len(operands) != m.NumOperands() {
		return nil, errors.Errorf("map %s evaluated with %d operands", m, len(operands))
	}
	return m.Eval(operands[:m.NumDims], operands[m.NumDims:])
}

// Equal returns true if both maps have the same space and equal results.
func (m Map) Equal(o Map) bool {
	if m.NumDims != o.NumDims || m.NumSymbols != o.NumSymbols || len(m.Results) != len(o.Results) {
		return false
	}
	for i := range m.Results {
		if !Equal(m.Results[i], o.Results[i]) {
			return false
		}
	}
	return true
}

// RemoveDuplicateResults returns a map keeping only the first occurrence of each result.
func (m Map) RemoveDuplicateResults() Map {
	seen := make(map[string]bool)
	var results []Expr
	for _, r := range m.Results {
		s := Simplify(r).String()
		if seen[s] {
			continue
		}
		seen[s] = true
		results = append(results, r)
	}
	return NewMap(m.NumDims, m.NumSymbols, results...)
}

// Simplify rebuilds every result with the constructors.
func (m Map) Simplify() Map {
	results := make([]Expr, len(m.Results))
	for i, r := range m.Results {
		results[i] = Simplify(r)
	}
	return NewMap(m.NumDims, m.NumSymbols, results...)
}

// Replace substitutes dimensions and symbols in every result
// and returns a map over a new space.
func (m Map) Replace(dims, syms []Expr, numDims, numSymbols int) Map {
	results := make([]Expr, len(m.Results))
	for i, r := range m.Results {
		results[i] = ReplaceDimsAndSymbols(r, dims, syms)
	}
	return NewMap(numDims, numSymbols, results...)
}

// IsPureAffine returns true if every result is a pure affine expression.
func (m Map) IsPureAffine() bool {
	for _, r := range m.Results {
		if !IsPureAffine(r) {
			return false
		}
	}
	return true
}

func spaceString(numDims, numSymbols int) string {
	var b strings.Builder
	b.WriteString("(")
	for i := range numDims {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "d%d", i)
	}
	b.WriteString(")")
	if numSymbols == 0 {
		return b.String()
	}
	b.WriteString("[")
	for i := range numSymbols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "s%d", i)
	}
	b.WriteString("]")
	return b.String()
}

func (m Map) String() string {
	return spaceString(m.NumDims, m.NumSymbols) + " -> (" + joinExprs(m.Results) + ")"
}
