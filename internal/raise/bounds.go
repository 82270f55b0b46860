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

package raise

import (
	log "github.com/sirupsen/logrus"

	"github.com/gx-org/affinecfg/internal/legality"
	"github.com/gx-org/affinecfg/ir"
)

// extremum is the operation combining the operands of a bound.
type extremum int

const (
	minimum extremum = 1 << iota
	maximum
)

// bound is a value decomposed into valid indices combined by a minimum
// or a maximum.
type bound struct {
	values []*ir.Value
	kind   extremum
}

func (b bound) isMin() bool { return b.kind&minimum != 0 }
func (b bound) isMax() bool { return b.kind&maximum != 0 }

// selectIdiom returns the extremum computed by select(cmp(x, y), x, y).
func selectIdiom(v *ir.Value) (x, y *ir.Value, kind extremum, ok bool) {
	sel := v.DefiningOp()
	if sel == nil || sel.Kind() != ir.ArithSelect {
		return nil, nil, 0, false
	}
	cmp := sel.Operand(0).DefiningOp()
	if cmp == nil || cmp.Kind() != ir.ArithCmpI {
		return nil, nil, 0, false
	}
	if cmp.Operand(0) != sel.Operand(1) || cmp.Operand(1) != sel.Operand(2) {
		return nil, nil, 0, false
	}
	pred, _ := cmp.Predicate()
	switch pred {
	case ir.PredSLE, ir.PredSLT:
		kind = minimum
	case ir.PredSGE, ir.PredSGT:
		kind = maximum
	default:
		return nil, nil, 0, false
	}
	return cmp.Operand(0), cmp.Operand(1), kind, true
}

// decompose splits v into valid indices along chains of minimum and
// maximum selects. Only the extrema in allowed are expanded.
// Decomposition fails if a leaf is not a valid index or if minimums
// and maximums are mixed.
func decompose(v *ir.Value, allowed extremum) (bound, bool) {
	var r bound
	todo := []*ir.Value{v}
	for len(todo) > 0 {
		cur := todo[0]
		todo = todo[1:]
		if x, y, kind, ok := selectIdiom(cur); ok && kind&allowed != 0 {
			r.kind |= kind
			todo = append(todo, x, y)
			continue
		}
		if legality.IsValidIndex(cur) {
			r.values = append(r.values, cur)
			continue
		}
		log.Debugf("illegal bound %%%s", cur.Name)
		return bound{}, false
	}
	if r.isMin() && r.isMax() {
		log.Debugf("bound %%%s mixes minimums and maximums", v.Name)
		return bound{}, false
	}
	return r, true
}
