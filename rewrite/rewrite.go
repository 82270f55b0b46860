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

// Package rewrite applies rewrite patterns on a program until a fixpoint is reached.
package rewrite

import (
	"github.com/gx-org/affinecfg/ir"
)

// Pattern rewrites operations of given kinds.
type Pattern interface {
	// Name of the pattern, used in traces.
	Name() string
	// Kinds returns the kinds of the operations the pattern applies to.
	// An empty slice matches every operation.
	Kinds() []ir.Kind
	// MatchAndRewrite rewrites op and returns true if the program has changed.
	// A pattern returning false must leave the program unchanged.
	// An error is an internal failure and aborts the driver.
	MatchAndRewrite(rw *Rewriter, op *ir.Operation) (bool, error)
}

type funcPattern struct {
	name  string
	kinds []ir.Kind
	fn    func(rw *Rewriter, op *ir.Operation) (bool, error)
}

// NewPattern returns a pattern calling a function.
func NewPattern(name string, fn func(rw *Rewriter, op *ir.Operation) (bool, error), kinds ...ir.Kind) Pattern {
	return funcPattern{name: name, kinds: kinds, fn: fn}
}

func (p funcPattern) Name() string {
	return p.name
}

func (p funcPattern) Kinds() []ir.Kind {
	return p.kinds
}

func (p funcPattern) MatchAndRewrite(rw *Rewriter, op *ir.Operation) (bool, error) {
	return p.fn(rw, op)
}

// Rewriter modifies a program and notifies a listener of every change.
// The insertion point of the builder is set by patterns before creating operations.
type Rewriter struct {
	*ir.Builder
}

// NewRewriter returns a rewriter notifying l. l may be nil.
func NewRewriter(l ir.Listener) *Rewriter {
	return &Rewriter{Builder: ir.NewBuilder(l)}
}

func (rw *Rewriter) notifyModified(op *ir.Operation) {
	if l := rw.Listener(); l != nil {
		l.NotifyModified(op)
	}
}

// ReplaceOp replaces the results of an operation with values and erases the operation.
func (rw *Rewriter) ReplaceOp(op *ir.Operation, values []*ir.Value) {
	if l := rw.Listener(); l != nil {
		l.NotifyReplaced(op, values)
	}
	for i, r := range op.Results() {
		rw.ReplaceAllUsesWith(r, values[i])
	}
	rw.EraseOp(op)
}

// ReplaceAllUsesWith redirects every use of from to to.
func (rw *Rewriter) ReplaceAllUsesWith(from, to *ir.Value) {
	users := from.Users()
	from.ReplaceAllUsesWith(to)
	for _, u := range users {
		rw.notifyModified(u)
	}
}

// ReplaceUsesIf redirects the uses of from accepted by pred to to.
func (rw *Rewriter) ReplaceUsesIf(from, to *ir.Value, pred func(ir.Use) bool) {
	var users []*ir.Operation
	for _, u := range from.Uses() {
		if pred(u) {
			users = append(users, u.Owner)
		}
	}
	from.ReplaceUsesIf(to, pred)
	for _, u := range users {
		rw.notifyModified(u)
	}
}

// EraseOp erases an operation and everything nested in it.
// The results of the operation must not have any use.
func (rw *Rewriter) EraseOp(op *ir.Operation) {
	if l := rw.Listener(); l != nil {
		op.Walk(l.NotifyErased)
	}
	op.Erase()
}

// ModifyInPlace calls fn to modify op and notifies the listener.
func (rw *Rewriter) ModifyInPlace(op *ir.Operation, fn func()) {
	fn()
	rw.notifyModified(op)
}

// MoveOpBefore moves an operation before another operation.
func (rw *Rewriter) MoveOpBefore(op, before *ir.Operation) {
	op.MoveBefore(before)
	rw.notifyModified(op)
}

// Clone inserts a deep copy of op at the insertion point.
func (rw *Rewriter) Clone(op *ir.Operation, m *ir.Mapping) *ir.Operation {
	return rw.Insert(op.Clone(m))
}

// InlineRegion moves the blocks of from at the end of to.
func (rw *Rewriter) InlineRegion(from, to *ir.Region) {
	to.TakeBody(from)
	l := rw.Listener()
	if l == nil {
		return
	}
	for _, b := range to.Blocks() {
		for _, op := range b.Ops() {
			op.Walk(l.NotifyInserted)
		}
	}
}
