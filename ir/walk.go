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

// Walk calls fn on every operation nested in op, including op itself.
// Children are visited before their parent. fn may erase the operation it is given.
func (op *Operation) Walk(fn func(*Operation)) {
	for _, r := range op.regions {
		for _, b := range r.blocks {
			for _, nested := range b.Ops() {
				nested.Walk(fn)
			}
		}
	}
	fn(op)
}

// PreWalk calls fn on every operation nested in op, including op itself.
// Parents are visited before their children.
// The regions of an operation are skipped if fn returns false.
func (op *Operation) PreWalk(fn func(*Operation) bool) {
	if !fn(op) {
		return
	}
	for _, r := range op.regions {
		for _, b := range r.blocks {
			for _, nested := range b.Ops() {
				nested.PreWalk(fn)
			}
		}
	}
}

// WalkKind collects the operations of a given kind nested in op, in program order.
func (op *Operation) WalkKind(k Kind) []*Operation {
	var ops []*Operation
	op.PreWalk(func(o *Operation) bool {
		if o.kind == k {
			ops = append(ops, o)
		}
		return true
	})
	return ops
}
