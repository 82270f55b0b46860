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
	log "github.com/sirupsen/logrus"

	"github.com/gx-org/affinecfg/ir"
)

// Comparison is an arith.cmpi found in a condition with the predicate it
// has in the condition, that is negated if the comparison appears under a negation.
type Comparison struct {
	Cmp  *ir.Operation
	Pred ir.Predicate
}

// Conjuncts returns the comparisons whose conjunction is equivalent to cond.
// Conjunctions, disjunctions under a negation and negations (xor with true)
// are decomposed until comparisons are reached.
// It returns false if cond has any other form.
func Conjuncts(cond *ir.Value) ([]Comparison, bool) {
	type node struct {
		v       *ir.Value
		negated bool
	}
	var cmps []Comparison
	todo := []node{{v: cond}}
	for len(todo) > 0 {
		cur := todo[0]
		todo = todo[1:]
		def := cur.v.DefiningOp()
		switch {
		case def == nil:
		case def.Kind() == ir.ArithCmpI:
			pred, _ := def.Predicate()
			if cur.negated {
				pred = pred.Negated()
			}
			cmps = append(cmps, Comparison{Cmp: def, Pred: pred})
			continue
		case def.Kind() == ir.ArithAndI && !cur.negated,
			def.Kind() == ir.ArithOrI && cur.negated:
			todo = append(todo, node{def.Operand(0), cur.negated}, node{def.Operand(1), cur.negated})
			continue
		case def.Kind() == ir.ArithXOrI && isTrue(def.Operand(1)):
			todo = append(todo, node{def.Operand(0), !cur.negated})
			continue
		}
		log.Debugf("illegal condition %%%s (negated: %v)", cur.v.Name, cur.negated)
		return nil, false
	}
	return cmps, true
}

func isTrue(v *ir.Value) bool {
	c, ok := Constant(v)
	return ok && (c == 1 || c == -1)
}
