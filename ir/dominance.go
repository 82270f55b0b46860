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

// Dominance answers dominance queries on programs made of nested regions.
// In a region with several blocks, the entry block dominates the other blocks.
// No other relation between the blocks of a region is assumed.
type Dominance struct{}

// Dominates returns true if a is b, encloses b, or is always executed before b.
func (Dominance) Dominates(a, b *Operation) bool {
	return a == b || Dominance{}.ProperlyDominates(a, b)
}

// ProperlyDominates returns true if a encloses b or is always executed before b.
func (Dominance) ProperlyDominates(a, b *Operation) bool {
	if a == b {
		return false
	}
	if a.IsProperAncestor(b) {
		return true
	}
	if a.block == nil {
		return false
	}
	if anc := a.block.FindAncestorOp(b); anc != nil {
		return a.IsBeforeInBlock(anc)
	}
	region := a.ParentRegion()
	if region == nil || region.FindAncestorBlock(b) == nil {
		return false
	}
	return a.block == region.Front()
}

// ValueDominates returns true if v is visible from op.
func (d Dominance) ValueDominates(v *Value, op *Operation) bool {
	if def := v.DefiningOp(); def != nil {
		return def != op && !def.IsProperAncestor(op) && d.Dominates(def, op)
	}
	owner := v.OwnerBlock()
	if owner.IsAncestorOf(op) {
		return true
	}
	region := owner.parent
	if region == nil || region.Front() != owner {
		return false
	}
	return region.FindAncestorBlock(op) != nil
}

// DominatesInsertPoint returns true if v is visible from an insertion point.
func (d Dominance) DominatesInsertPoint(v *Value, ip InsertPoint) bool {
	if ip.Before != nil {
		return d.ValueDominates(v, ip.Before)
	}
	if v.ParentBlock() == ip.Block {
		return true
	}
	parent := ip.Block.ParentOp()
	return parent != nil && d.ValueDominates(v, parent)
}
