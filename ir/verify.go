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
	"github.com/gx-org/affinecfg/ir/fmterr"
	"go.uber.org/multierr"
)

// Verify checks the structural invariants of every operation nested in root
// and returns all the violations found.
func Verify(root *Operation) error {
	var errs error
	dom := Dominance{}
	root.PreWalk(func(op *Operation) bool {
		errs = multierr.Append(errs, verifyOp(dom, op))
		return true
	})
	return errs
}

func verifyOp(dom Dominance, op *Operation) error {
	var errs error
	fail := func(format string, a ...any) {
		errs = multierr.Append(errs, fmterr.Errorf(op.Pos, "%s: "+format, append([]any{op.Name()}, a...)...))
	}
	for i, v := range op.operands {
		if v == nil {
			fail("operand %d is nil", i)
			continue
		}
		if !hasUse(v, op, i) {
			fail("operand %d missing from the use list of its value", i)
		}
		if op.isolatedUse(v) {
			fail("operand %d is defined above an operation isolated from above", i)
			continue
		}
		if !dom.ValueDominates(v, op) {
			fail("operand %d does not dominate its use", i)
		}
	}
	for _, r := range op.regions {
		for _, b := range r.blocks {
			if b.parent != r {
				fail("block with an invalid parent region")
			}
			for _, nested := range b.ops {
				if nested.block != b {
					fail("nested %s with an invalid parent block", nested.Name())
				}
			}
			if op.kind == Module {
				continue
			}
			if b.Terminator() == nil {
				fail("block does not end with a terminator")
			}
		}
	}
	return multierr.Append(errs, verifyAttrs(op))
}

// isolatedUse returns true if an operand is used across an operation isolated from above.
func (op *Operation) isolatedUse(v *Value) bool {
	for p := op.ParentOp(); p != nil; p = p.ParentOp() {
		if !p.HasTrait(IsolatedFromAbove) {
			continue
		}
		return !p.IsAncestorOf(v)
	}
	return false
}

// IsAncestorOf returns true if v is defined in the regions of op.
func (op *Operation) IsAncestorOf(v *Value) bool {
	if def := v.DefiningOp(); def != nil {
		return op.IsProperAncestor(def)
	}
	owner := v.OwnerBlock().ParentOp()
	return owner != nil && op.IsAncestor(owner)
}

func hasUse(v *Value, op *Operation, i int) bool {
	for _, u := range v.uses {
		if u.Owner == op && u.Index == i {
			return true
		}
	}
	return false
}

func verifyAttrs(op *Operation) error {
	var errs error
	fail := func(format string, a ...any) {
		errs = multierr.Append(errs, fmterr.Errorf(op.Pos, "%s: "+format, append([]any{op.Name()}, a...)...))
	}
	requireMap := func(name string) (m affineMap, ok bool) {
		mp, ok := op.MapAttr(name)
		if !ok {
			fail("missing map attribute %s", name)
			return affineMap{}, false
		}
		if err := mp.Validate(); err != nil {
			fail("%v", err)
			return affineMap{}, false
		}
		return affineMap{numOperands: mp.NumOperands(), numResults: len(mp.Results)}, true
	}
	switch op.kind {
	case AffineApply:
		if m, ok := requireMap(AttrMap); ok && (m.numOperands != op.NumOperands() || m.numResults != 1) {
			fail("map with %d operands and %d results applied to %d operands", m.numOperands, m.numResults, op.NumOperands())
		}
	case AffineFor:
		lb, okL := requireMap(AttrLowerMap)
		ub, okU := requireMap(AttrUpperMap)
		if okL && okU && lb.numOperands+ub.numOperands > op.NumOperands() {
			fail("bounds need %d operands but only %d are given", lb.numOperands+ub.numOperands, op.NumOperands())
		}
		if step, ok := op.IntAttr(AttrStep); !ok || step <= 0 {
			fail("step must be a positive integer")
		}
	case AffineParallel:
		lb, okL := requireMap(AttrLowerMap)
		ub, okU := requireMap(AttrUpperMap)
		if okL && okU && lb.numOperands+ub.numOperands != op.NumOperands() {
			fail("bounds need %d operands but %d are given", lb.numOperands+ub.numOperands, op.NumOperands())
		}
	case AffineLoad, AffineVectorLoad, AffineStore, AffineVectorStore:
		if m, ok := requireMap(AttrMap); ok && m.numOperands != len(AccessOp{op}.Indices()) {
			fail("map with %d operands applied to %d indices", m.numOperands, len(AccessOp{op}.Indices()))
		}
	case AffineIf:
		s, ok := op.SetAttrOf(AttrCondition)
		if !ok {
			fail("missing condition")
			break
		}
		if err := s.Validate(); err != nil {
			fail("%v", err)
		} else if s.NumOperands() != op.NumOperands() {
			fail("set with %d operands applied to %d operands", s.NumOperands(), op.NumOperands())
		}
	case ArithConstant:
		if _, ok := op.IntAttr(AttrValue); !ok {
			fail("missing integer value")
		}
	case ArithCmpI:
		if _, ok := op.Predicate(); !ok {
			fail("missing predicate")
		}
	case LLVMGEP:
		if _, ok := op.TypeAttr(AttrElemType); !ok {
			fail("missing element type")
		}
		indices, _ := op.IntsAttr(AttrIndices)
		dynamic := 0
		for _, i := range indices {
			if i == DynamicIndex {
				dynamic++
			}
		}
		if len(indices) == 0 || dynamic != op.NumOperands()-1 {
			fail("%d indices with %d dynamic indices but %d index operands", len(indices), dynamic, op.NumOperands()-1)
		}
	}
	return errs
}

type affineMap struct {
	numOperands, numResults int
}
