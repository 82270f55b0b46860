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

// Use is an operand slot referencing a value.
type Use struct {
	Owner *Operation
	Index int
}

// Value is the result of an operation or the argument of a block.
type Value struct {
	typ   Type
	def   *Operation
	block *Block
	index int
	uses  []Use

	// Name is a hint used when printing the value.
	Name string
}

// Type returns the type of the value.
func (v *Value) Type() Type {
	return v.typ
}

// SetType changes the type of the value.
func (v *Value) SetType(t Type) {
	v.typ = t
}

// DefiningOp returns the operation defining the value or nil for a block argument.
func (v *Value) DefiningOp() *Operation {
	return v.def
}

// IsBlockArg returns true if the value is a block argument.
func (v *Value) IsBlockArg() bool {
	return v.def == nil
}

// OwnerBlock returns the block owning a block argument, nil for an operation result.
func (v *Value) OwnerBlock() *Block {
	return v.block
}

// Index returns the position of the value in the results of its defining operation
// or in the arguments of its block.
func (v *Value) Index() int {
	return v.index
}

// ParentBlock returns the block in which the value is defined.
func (v *Value) ParentBlock() *Block {
	if v.def != nil {
		return v.def.block
	}
	return v.block
}

// ParentRegion returns the region in which the value is defined.
func (v *Value) ParentRegion() *Region {
	b := v.ParentBlock()
	if b == nil {
		return nil
	}
	return b.parent
}

// Uses returns a copy of the use list of the value.
func (v *Value) Uses() []Use {
	return append([]Use(nil), v.uses...)
}

// Users returns the operations using the value, without duplicates.
func (v *Value) Users() []*Operation {
	var users []*Operation
	seen := make(map[*Operation]bool)
	for _, u := range v.uses {
		if seen[u.Owner] {
			continue
		}
		seen[u.Owner] = true
		users = append(users, u.Owner)
	}
	return users
}

// HasUses returns true if the value is used by at least one operation.
func (v *Value) HasUses() bool {
	return len(v.uses) > 0
}

func (v *Value) addUse(op *Operation, i int) {
	v.uses = append(v.uses, Use{Owner: op, Index: i})
}

func (v *Value) removeUse(op *Operation, i int) {
	for j, u := range v.uses {
		if u.Owner == op && u.Index == i {
			v.uses = append(v.uses[:j], v.uses[j+1:]...)
			return
		}
	}
}

// ReplaceAllUsesWith redirects every use of v to n.
func (v *Value) ReplaceAllUsesWith(n *Value) {
	v.ReplaceUsesIf(n, func(Use) bool { return true })
}

// ReplaceUsesIf redirects the uses of v for which pred returns true to n.
func (v *Value) ReplaceUsesIf(n *Value, pred func(Use) bool) {
	if v == n {
		return
	}
	for _, u := range v.Uses() {
		if pred(u) {
			u.Owner.SetOperand(u.Index, n)
		}
	}
}
