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

// Package scopes inserts and extends affine.scope operations.
//
// An affine.scope captures values as operands. Inside its region, each captured
// value is replaced by a block argument, a top-level value of the scope, which
// makes it a valid affine symbol.
package scopes

import (
	log "github.com/sirupsen/logrus"

	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/ir/fmterr"
	"github.com/gx-org/affinecfg/rewrite"
)

// Param returns the block argument standing for v inside a scope,
// or nil if the scope does not capture v.
func Param(scope *ir.Operation, v *ir.Value) *ir.Value {
	for i, operand := range scope.Operands() {
		if operand == v {
			return scope.Body().Arg(i)
		}
	}
	return nil
}

// Extend captures additional values in an existing scope.
// Values already captured are ignored. Existing parameters keep their position.
func Extend(rw *rewrite.Rewriter, scope *ir.Operation, operands []*ir.Value) *ir.Operation {
	captured := scope.Operands()
	var added []*ir.Value
	for _, v := range operands {
		if Param(scope, v) != nil || contains(added, v) {
			continue
		}
		added = append(added, v)
	}
	if len(added) == 0 {
		return scope
	}
	body := scope.Body()
	rw.ModifyInPlace(scope, func() {
		for _, v := range added {
			body.AddArg(v.Type())
		}
		scope.SetOperands(append(captured, added...))
	})
	for i, v := range added {
		redirect(rw, scope, v, body.Arg(len(captured)+i))
	}
	log.Debugf("extended affine scope at %s with %d value(s)", scope.Pos, len(added))
	return scope
}

// Create moves the operations of a block, except its terminator, into a new
// scope capturing operands. The terminator of the block then uses the results
// of the scope.
func Create(rw *rewrite.Rewriter, block *ir.Block, operands []*ir.Value) (*ir.Operation, error) {
	term := block.Terminator()
	if term == nil {
		return nil, fmterr.Internalf("cannot create an affine scope in a block without terminator")
	}
	var (
		unique []*ir.Value
		types  []ir.Type
	)
	for _, v := range operands {
		if contains(unique, v) {
			continue
		}
		unique = append(unique, v)
		types = append(types, v.Type())
	}
	ip := rw.InsertionPoint()
	defer rw.RestoreInsertionPoint(ip)

	var resultTypes []ir.Type
	for _, v := range term.Operands() {
		resultTypes = append(resultTypes, v.Type())
	}
	scope := ir.NewOp(ir.AffineScope, unique, resultTypes, 1)
	scope.Pos = term.Pos
	scope.Region(0).AppendBlock(ir.NewBlock(types...))
	rw.SetInsertionPointToStart(block)
	rw.Insert(scope)
	body := scope.Body()
	rw.SetInsertionPointToEnd(body)
	yield := rw.Yield(ir.AffineYield, term.Operands()...)
	for op := scope.Next(); op != term; op = scope.Next() {
		rw.MoveOpBefore(op, yield)
	}
	rw.ModifyInPlace(term, func() {
		term.SetOperands(scope.Results())
	})
	for i, v := range unique {
		redirect(rw, scope, v, body.Arg(i))
	}
	log.Debugf("inserted affine scope capturing %d value(s) at %s", len(unique), scope.Pos)
	return scope, nil
}

// Insert captures operands in the scope starting block, creating the scope
// if the block does not already consist of a scope followed by its terminator.
func Insert(rw *rewrite.Rewriter, block *ir.Block, operands []*ir.Value) (*ir.Operation, error) {
	if parent := block.ParentOp(); parent != nil && parent.Kind() == ir.AffineScope {
		return nil, fmterr.InternalAt(parent.Pos, "cannot insert an affine scope directly in another affine scope")
	}
	if len(block.Parent().Blocks()) != 1 {
		return nil, fmterr.Internalf("cannot insert an affine scope in a region with %d blocks", len(block.Parent().Blocks()))
	}
	if front := block.Front(); front != nil && front.Kind() == ir.AffineScope && front.Next() == block.Terminator() {
		return Extend(rw, front, operands), nil
	}
	return Create(rw, block, operands)
}

// redirect replaces the uses of a captured value inside a scope by its parameter.
func redirect(rw *rewrite.Rewriter, scope *ir.Operation, v, param *ir.Value) {
	rw.ReplaceUsesIf(v, param, func(u ir.Use) bool {
		return scope.IsProperAncestor(u.Owner)
	})
}

func contains(vs []*ir.Value, v *ir.Value) bool {
	for _, w := range vs {
		if w == v {
			return true
		}
	}
	return false
}
