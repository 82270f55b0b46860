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
	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/base/ordered"
	"github.com/gx-org/affinecfg/ir/fmterr"
)

type (
	// Operation is a node of the program.
	Operation struct {
		kind     Kind
		operands []*Value
		results  []*Value
		attrs    *ordered.Map[string, Attr]
		regions  []*Region
		block    *Block

		// Pos is the position of the operation in its source file.
		Pos fmterr.Pos
	}

	// Block is a list of operations with arguments.
	Block struct {
		args   []*Value
		ops    []*Operation
		parent *Region
	}

	// Region is a list of blocks owned by an operation.
	Region struct {
		blocks []*Block
		parent *Operation
	}
)

// NewOp returns a new operation not inserted in any block.
func NewOp(kind Kind, operands []*Value, resultTypes []Type, numRegions int) *Operation {
	op := &Operation{
		kind:  kind,
		attrs: ordered.NewMap[string, Attr](),
	}
	op.SetOperands(operands)
	op.results = make([]*Value, len(resultTypes))
	for i, t := range resultTypes {
		op.results[i] = &Value{typ: t, def: op, index: i}
	}
	op.regions = make([]*Region, numRegions)
	for i := range op.regions {
		op.regions[i] = &Region{parent: op}
	}
	return op
}

// Kind returns the kind of the operation.
func (op *Operation) Kind() Kind {
	return op.kind
}

// Name of the operation kind.
func (op *Operation) Name() string {
	return op.kind.String()
}

// HasTrait returns true if the operation kind has all the given traits.
func (op *Operation) HasTrait(t Trait) bool {
	return op.kind.HasTrait(t)
}

// Operands returns a copy of the operands of the operation.
func (op *Operation) Operands() []*Value {
	return append([]*Value(nil), op.operands...)
}

// NumOperands returns the number of operands.
func (op *Operation) NumOperands() int {
	return len(op.operands)
}

// Operand returns the operand at index i.
func (op *Operation) Operand(i int) *Value {
	return op.operands[i]
}

// SetOperand replaces the operand at index i.
func (op *Operation) SetOperand(i int, v *Value) {
	if old := op.operands[i]; old != nil {
		old.removeUse(op, i)
	}
	op.operands[i] = v
	if v != nil {
		v.addUse(op, i)
	}
}

// SetOperands replaces all the operands of the operation.
func (op *Operation) SetOperands(vs []*Value) {
	op.dropOperandUses()
	op.operands = append([]*Value(nil), vs...)
	for i, v := range op.operands {
		if v != nil {
			v.addUse(op, i)
		}
	}
}

func (op *Operation) dropOperandUses() {
	for i, v := range op.operands {
		if v != nil {
			v.removeUse(op, i)
		}
	}
}

// Results returns a copy of the results of the operation.
func (op *Operation) Results() []*Value {
	return append([]*Value(nil), op.results...)
}

// NumResults returns the number of results.
func (op *Operation) NumResults() int {
	return len(op.results)
}

// Result returns the result at index i.
func (op *Operation) Result(i int) *Value {
	return op.results[i]
}

// ResultTypes returns the types of the results.
func (op *Operation) ResultTypes() []Type {
	ts := make([]Type, len(op.results))
	for i, r := range op.results {
		ts[i] = r.typ
	}
	return ts
}

// HasUses returns true if a result of the operation is used.
func (op *Operation) HasUses() bool {
	for _, r := range op.results {
		if r.HasUses() {
			return true
		}
	}
	return false
}

// Regions returns the regions of the operation.
func (op *Operation) Regions() []*Region {
	return op.regions
}

// Region returns the region at index i.
func (op *Operation) Region(i int) *Region {
	return op.regions[i]
}

// Body returns the first block of the first region or nil if there is none.
func (op *Operation) Body() *Block {
	if len(op.regions) == 0 {
		return nil
	}
	return op.regions[0].Front()
}

// Block returns the block containing the operation.
func (op *Operation) Block() *Block {
	return op.block
}

// ParentRegion returns the region containing the operation.
func (op *Operation) ParentRegion() *Region {
	if op.block == nil {
		return nil
	}
	return op.block.parent
}

// ParentOp returns the operation containing this operation.
func (op *Operation) ParentOp() *Operation {
	r := op.ParentRegion()
	if r == nil {
		return nil
	}
	return r.parent
}

// ParentOfKind returns the closest strict ancestor of a given kind.
func (op *Operation) ParentOfKind(k Kind) *Operation {
	for p := op.ParentOp(); p != nil; p = p.ParentOp() {
		if p.kind == k {
			return p
		}
	}
	return nil
}

// IsAncestor returns true if op is other or contains other.
func (op *Operation) IsAncestor(other *Operation) bool {
	for o := other; o != nil; o = o.ParentOp() {
		if o == op {
			return true
		}
	}
	return false
}

// IsProperAncestor returns true if op contains other.
func (op *Operation) IsProperAncestor(other *Operation) bool {
	return op != other && op.IsAncestor(other)
}

// IsBeforeInBlock returns true if op comes before other in their common block.
func (op *Operation) IsBeforeInBlock(other *Operation) bool {
	if op.block == nil || op.block != other.block {
		return false
	}
	return op.block.indexOf(op) < op.block.indexOf(other)
}

// Next returns the operation following op in its block or nil.
func (op *Operation) Next() *Operation {
	if op.block == nil {
		return nil
	}
	i := op.block.indexOf(op)
	if i+1 >= len(op.block.ops) {
		return nil
	}
	return op.block.ops[i+1]
}

// Prev returns the operation preceding op in its block or nil.
func (op *Operation) Prev() *Operation {
	if op.block == nil {
		return nil
	}
	i := op.block.indexOf(op)
	if i <= 0 {
		return nil
	}
	return op.block.ops[i-1]
}

// Attr returns an attribute given its name.
func (op *Operation) Attr(name string) (Attr, bool) {
	return op.attrs.Load(name)
}

// SetAttr sets an attribute.
func (op *Operation) SetAttr(name string, a Attr) {
	op.attrs.Store(name, a)
}

// RemoveAttr removes an attribute.
func (op *Operation) RemoveAttr(name string) {
	op.attrs.Delete(name)
}

// Attrs returns the attributes of the operation in insertion order.
func (op *Operation) Attrs() *ordered.Map[string, Attr] {
	return op.attrs
}

// IntAttr returns the value of an integer attribute.
func (op *Operation) IntAttr(name string) (int64, bool) {
	a, ok := op.attrs.Load(name)
	if !ok {
		return 0, false
	}
	ia, ok := a.(IntAttr)
	return ia.Value, ok
}

// IntsAttr returns the value of an integer list attribute.
func (op *Operation) IntsAttr(name string) ([]int64, bool) {
	a, ok := op.attrs.Load(name)
	if !ok {
		return nil, false
	}
	ia, ok := a.(IntsAttr)
	return ia.Values, ok
}

// StringAttr returns the value of a string attribute.
func (op *Operation) StringAttr(name string) (string, bool) {
	a, ok := op.attrs.Load(name)
	if !ok {
		return "", false
	}
	sa, ok := a.(StringAttr)
	return sa.Value, ok
}

// TypeAttr returns the value of a type attribute.
func (op *Operation) TypeAttr(name string) (Type, bool) {
	a, ok := op.attrs.Load(name)
	if !ok {
		return nil, false
	}
	ta, ok := a.(TypeAttr)
	return ta.Type, ok
}

// MapAttr returns the value of an affine map attribute.
func (op *Operation) MapAttr(name string) (affine.Map, bool) {
	a, ok := op.attrs.Load(name)
	if !ok {
		return affine.Map{}, false
	}
	ma, ok := a.(MapAttr)
	return ma.Map, ok
}

// SetAttrOf returns the value of an integer set attribute.
func (op *Operation) SetAttrOf(name string) (affine.Set, bool) {
	a, ok := op.attrs.Load(name)
	if !ok {
		return affine.Set{}, false
	}
	sa, ok := a.(SetAttr)
	return sa.Set, ok
}

// Predicate returns the predicate of a comparison.
func (op *Operation) Predicate() (Predicate, bool) {
	a, ok := op.attrs.Load(AttrPredicate)
	if !ok {
		return 0, false
	}
	pa, ok := a.(PredicateAttr)
	return pa.Pred, ok
}

// detach removes the operation from its block without dropping any reference.
func (op *Operation) detach() {
	if op.block == nil {
		return
	}
	b := op.block
	i := b.indexOf(op)
	b.ops = append(b.ops[:i], b.ops[i+1:]...)
	op.block = nil
}

// DropAllReferences removes the operands of the operation and of every nested operation.
func (op *Operation) DropAllReferences() {
	op.dropOperandUses()
	op.operands = nil
	for _, r := range op.regions {
		for _, b := range r.blocks {
			for _, nested := range b.ops {
				nested.DropAllReferences()
			}
		}
	}
}

// Erase removes the operation from its block and drops its references.
// The results of the operation must not be used outside of the operation.
func (op *Operation) Erase() {
	op.DropAllReferences()
	op.detach()
}

// MoveBefore moves the operation right before another operation.
func (op *Operation) MoveBefore(other *Operation) {
	op.detach()
	other.block.insertAt(other.block.indexOf(other), op)
}

// MoveAfter moves the operation right after another operation.
func (op *Operation) MoveAfter(other *Operation) {
	op.detach()
	other.block.insertAt(other.block.indexOf(other)+1, op)
}

// MoveToStart moves the operation to the start of a block.
func (op *Operation) MoveToStart(b *Block) {
	op.detach()
	b.insertAt(0, op)
}

// NewBlock returns a new block with arguments of the given types.
func NewBlock(argTypes ...Type) *Block {
	b := &Block{}
	for _, t := range argTypes {
		b.AddArg(t)
	}
	return b
}

// Args returns the arguments of the block.
func (b *Block) Args() []*Value {
	return b.args
}

// Arg returns the argument at index i.
func (b *Block) Arg(i int) *Value {
	return b.args[i]
}

// AddArg appends an argument to the block.
func (b *Block) AddArg(t Type) *Value {
	v := &Value{typ: t, block: b, index: len(b.args)}
	b.args = append(b.args, v)
	return v
}

// EraseArg removes an unused argument of the block.
func (b *Block) EraseArg(i int) {
	b.args = append(b.args[:i], b.args[i+1:]...)
	for j := i; j < len(b.args); j++ {
		b.args[j].index = j
	}
}

// Ops returns a copy of the operations in the block.
func (b *Block) Ops() []*Operation {
	return append([]*Operation(nil), b.ops...)
}

// Len returns the number of operations in the block.
func (b *Block) Len() int {
	return len(b.ops)
}

// Empty returns true if the block has no operations.
func (b *Block) Empty() bool {
	return len(b.ops) == 0
}

// Front returns the first operation of the block or nil.
func (b *Block) Front() *Operation {
	if len(b.ops) == 0 {
		return nil
	}
	return b.ops[0]
}

// Back returns the last operation of the block or nil.
func (b *Block) Back() *Operation {
	if len(b.ops) == 0 {
		return nil
	}
	return b.ops[len(b.ops)-1]
}

// Terminator returns the last operation if it is a terminator.
func (b *Block) Terminator() *Operation {
	back := b.Back()
	if back == nil || !back.HasTrait(Terminator) {
		return nil
	}
	return back
}

// Parent returns the region containing the block.
func (b *Block) Parent() *Region {
	return b.parent
}

// ParentOp returns the operation owning the region of the block.
func (b *Block) ParentOp() *Operation {
	if b.parent == nil {
		return nil
	}
	return b.parent.parent
}

// Append adds an operation at the end of the block.
func (b *Block) Append(op *Operation) {
	op.detach()
	b.insertAt(len(b.ops), op)
}

func (b *Block) insertAt(i int, op *Operation) {
	b.ops = append(b.ops, nil)
	copy(b.ops[i+1:], b.ops[i:])
	b.ops[i] = op
	op.block = b
}

func (b *Block) indexOf(op *Operation) int {
	for i, o := range b.ops {
		if o == op {
			return i
		}
	}
	return -1
}

// FindAncestorOp returns the ancestor of op (or op itself) located in the block.
func (b *Block) FindAncestorOp(op *Operation) *Operation {
	for o := op; o != nil; o = o.ParentOp() {
		if o.block == b {
			return o
		}
	}
	return nil
}

// IsAncestorOf returns true if op is in the block or nested in an operation of the block.
func (b *Block) IsAncestorOf(op *Operation) bool {
	return b.FindAncestorOp(op) != nil
}

// NewRegion returns an empty region not attached to any operation.
func NewRegion() *Region {
	return &Region{}
}

// Blocks returns the blocks of the region.
func (r *Region) Blocks() []*Block {
	return r.blocks
}

// Front returns the entry block of the region or nil.
func (r *Region) Front() *Block {
	if len(r.blocks) == 0 {
		return nil
	}
	return r.blocks[0]
}

// AppendBlock adds a block at the end of the region.
func (r *Region) AppendBlock(b *Block) {
	b.parent = r
	r.blocks = append(r.blocks, b)
}

// TakeBody moves all the blocks of another region into r.
func (r *Region) TakeBody(other *Region) {
	for _, b := range other.blocks {
		r.AppendBlock(b)
	}
	other.blocks = nil
}

// ParentOp returns the operation owning the region.
func (r *Region) ParentOp() *Operation {
	return r.parent
}

// IsProperAncestorOf returns true if op is nested in the region.
func (r *Region) IsProperAncestorOf(op *Operation) bool {
	for o := op; o != nil; o = o.ParentOp() {
		if o.ParentRegion() == r {
			return true
		}
	}
	return false
}

// FindAncestorBlock returns the block of the region containing op, possibly nested.
func (r *Region) FindAncestorBlock(op *Operation) *Block {
	for o := op; o != nil; o = o.ParentOp() {
		if o.ParentRegion() == r {
			return o.block
		}
	}
	return nil
}
