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
	"fmt"
	"strconv"
	"strings"

	"github.com/gx-org/affinecfg/affine"
)

type (
	// Attr is a compile-time constant attached to an operation.
	Attr interface {
		fmt.Stringer
		attrNode()
	}

	// IntAttr is an integer attribute.
	IntAttr struct {
		Value int64
	}

	// IntsAttr is a list of integers.
	IntsAttr struct {
		Values []int64
	}

	// StringAttr is a string attribute.
	StringAttr struct {
		Value string
	}

	// BoolAttr is a boolean attribute.
	BoolAttr struct {
		Value bool
	}

	// TypeAttr holds a type.
	TypeAttr struct {
		Type Type
	}

	// MapAttr holds an affine map.
	MapAttr struct {
		Map affine.Map
	}

	// SetAttr holds an integer set.
	SetAttr struct {
		Set affine.Set
	}

	// PredicateAttr is the predicate of an integer comparison.
	PredicateAttr struct {
		Pred Predicate
	}
)

func (IntAttr) attrNode()       {}
func (IntsAttr) attrNode()      {}
func (StringAttr) attrNode()    {}
func (BoolAttr) attrNode()      {}
func (TypeAttr) attrNode()      {}
func (MapAttr) attrNode()       {}
func (SetAttr) attrNode()       {}
func (PredicateAttr) attrNode() {}

func (a IntAttr) String() string { return strconv.FormatInt(a.Value, 10) }

func (a IntsAttr) String() string {
	s := make([]string, len(a.Values))
	for i, v := range a.Values {
		s[i] = strconv.FormatInt(v, 10)
	}
	return "[" + strings.Join(s, ", ") + "]"
}

func (a StringAttr) String() string    { return strconv.Quote(a.Value) }
func (a BoolAttr) String() string      { return strconv.FormatBool(a.Value) }
func (a TypeAttr) String() string      { return "type<" + a.Type.String() + ">" }
func (a MapAttr) String() string       { return "map<" + a.Map.String() + ">" }
func (a SetAttr) String() string       { return "set<" + a.Set.String() + ">" }
func (a PredicateAttr) String() string { return a.Pred.String() }

// Predicate of an integer comparison.
type Predicate int

// Comparison predicates.
const (
	PredEQ Predicate = iota
	PredNE
	PredSLT
	PredSLE
	PredSGT
	PredSGE
	PredULT
	PredULE
	PredUGT
	PredUGE
)

var predNames = []string{"eq", "ne", "slt", "sle", "sgt", "sge", "ult", "ule", "ugt", "uge"}

func (p Predicate) String() string {
	if p < 0 || int(p) >= len(predNames) {
		return fmt.Sprintf("Predicate(%d)", int(p))
	}
	return predNames[p]
}

// PredicateByName returns a predicate given its name.
func PredicateByName(name string) (Predicate, bool) {
	for i, n := range predNames {
		if n == name {
			return Predicate(i), true
		}
	}
	return 0, false
}

// IsUnsigned returns true for unsigned comparisons.
func (p Predicate) IsUnsigned() bool {
	return p >= PredULT
}

// Signed returns the signed version of an unsigned predicate.
func (p Predicate) Signed() Predicate {
	if !p.IsUnsigned() {
		return p
	}
	return p - PredULT + PredSLT
}

// Swapped returns the predicate obtained by swapping the operands.
func (p Predicate) Swapped() Predicate {
	switch p {
	case PredSLT:
		return PredSGT
	case PredSLE:
		return PredSGE
	case PredSGT:
		return PredSLT
	case PredSGE:
		return PredSLE
	case PredULT:
		return PredUGT
	case PredULE:
		return PredUGE
	case PredUGT:
		return PredULT
	case PredUGE:
		return PredULE
	}
	return p
}

// Negated returns the predicate true when p is false.
func (p Predicate) Negated() Predicate {
	switch p {
	case PredEQ:
		return PredNE
	case PredNE:
		return PredEQ
	case PredSLT:
		return PredSGE
	case PredSLE:
		return PredSGT
	case PredSGT:
		return PredSLE
	case PredSGE:
		return PredSLT
	case PredULT:
		return PredUGE
	case PredULE:
		return PredUGT
	case PredUGT:
		return PredULE
	case PredUGE:
		return PredULT
	}
	return p
}

// Attribute names shared by several operation kinds.
const (
	AttrValue       = "value"
	AttrMap         = "map"
	AttrLowerMap    = "lower_map"
	AttrUpperMap    = "upper_map"
	AttrStep        = "step"
	AttrSteps       = "steps"
	AttrCondition   = "condition"
	AttrPredicate   = "predicate"
	AttrSymName     = "sym_name"
	AttrCallee      = "callee"
	AttrElemType    = "elem_type"
	AttrIndices     = "indices"
	AttrAlignment   = "alignment"
)
