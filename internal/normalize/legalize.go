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

package normalize

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/gx-org/affinecfg/internal/legality"
	"github.com/gx-org/affinecfg/ir"
)

type planState int

const (
	unvisited planState = iota
	inProgress
	planned
)

type frame struct {
	op   *ir.Operation
	deps []*ir.Value
	next int
}

// legalize makes v a valid symbol by cloning the operations computing it
// at the top level of the affine scope. Uses of the original operations are
// replaced by their clones.
func (n *Normalizer) legalize(v *ir.Value) (*ir.Value, error) {
	order, err := n.plan(v)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return v, nil
	}
	m := n.place(order)
	log.Debugf("legalized %d operation(s) computing %s", len(order), v.Name)
	return m.Lookup(v), nil
}

// canLegalize returns true if v is a valid symbol or can be legalized.
// The program is not modified.
func (n *Normalizer) canLegalize(v *ir.Value) bool {
	if legality.IsValidSymbol(v, false) {
		return true
	}
	_, err := n.plan(v)
	return err == nil
}

// plan returns the operations to clone to legalize v,
// each operation appearing after the operations it depends on.
func (n *Normalizer) plan(v *ir.Value) ([]*ir.Operation, error) {
	if n.scope == nil {
		return nil, errors.Errorf("cannot legalize %s: no enclosing affine scope", v.Name)
	}
	state := make(map[*ir.Operation]planState)
	var (
		order []*ir.Operation
		stack []*frame
	)
	push := func(w *ir.Value) error {
		if n.terminal(w) {
			return nil
		}
		def := w.DefiningOp()
		if def == nil {
			return errors.Errorf("cannot legalize %s: block argument %d defined inside the affine scope", w.Name, w.Index())
		}
		switch state[def] {
		case inProgress:
			return errors.Errorf("cannot legalize %s: cycle through %s", w.Name, def.Name())
		case planned:
			return nil
		}
		if err := n.movable(def); err != nil {
			return err
		}
		state[def] = inProgress
		stack = append(stack, &frame{op: def, deps: externalOperands(def)})
		return nil
	}
	if err := push(v); err != nil {
		return nil, err
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.deps) {
			state[top.op] = planned
			order = append(order, top.op)
			stack = stack[:len(stack)-1]
			continue
		}
		dep := top.deps[top.next]
		top.next++
		if err := push(dep); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// terminal returns true if v is visible from the whole top level of the scope.
func (n *Normalizer) terminal(v *ir.Value) bool {
	if v.ParentRegion() == n.scope {
		return true
	}
	scopeOp := n.scope.ParentOp()
	return scopeOp == nil || !scopeOp.IsAncestorOf(v)
}

func (n *Normalizer) movable(op *ir.Operation) error {
	if op.HasTrait(ir.ConstantLike) {
		return nil
	}
	if op.HasTrait(ir.Terminator) {
		return errors.Errorf("cannot move terminator %s at %s", op.Name(), op.Pos)
	}
	if !legality.IsReadOnly(op) {
		return errors.Errorf("cannot move %s at %s: operation has side effects", op.Name(), op.Pos)
	}
	if !legality.IsReadNone(op) && n.scopeWritesMemory() {
		return errors.Errorf("cannot move %s at %s: memory is written in the affine scope", op.Name(), op.Pos)
	}
	return nil
}

func (n *Normalizer) scopeWritesMemory() bool {
	if n.writesKnown {
		return n.writes
	}
	n.writesKnown = true
	for _, b := range n.scope.Blocks() {
		for _, op := range b.Ops() {
			op.Walk(func(o *ir.Operation) {
				if o.Kind().Info().Effects&(ir.EffectWrite|ir.EffectUnknown) != 0 {
					n.writes = true
				}
			})
		}
	}
	return n.writes
}

// externalOperands returns the operands of op and of the operations it
// contains which are defined outside of op.
func externalOperands(op *ir.Operation) []*ir.Value {
	var deps []*ir.Value
	seen := make(map[*ir.Value]bool)
	op.Walk(func(o *ir.Operation) {
		for _, v := range o.Operands() {
			if seen[v] || op.IsAncestorOf(v) {
				continue
			}
			seen[v] = true
			deps = append(deps, v)
		}
	})
	return deps
}

// place clones the planned operations in the top level block of the scope,
// each clone as early as its operands allow, and replaces the originals.
func (n *Normalizer) place(order []*ir.Operation) *ir.Mapping {
	ip := n.rw.InsertionPoint()
	defer n.rw.RestoreInsertionPoint(ip)
	block := n.scope.FindAncestorBlock(n.at)
	if block == nil {
		block = n.scope.Front()
	}
	dom := ir.Dominance{}
	m := ir.NewMapping()
	clones := make([]*ir.Operation, len(order))
	for i, op := range order {
		var anchor *ir.Operation
		for _, v := range externalOperands(op) {
			def := m.Lookup(v).DefiningOp()
			if def == nil {
				continue
			}
			a := block.FindAncestorOp(def)
			if a == nil {
				continue
			}
			if anchor == nil || dom.Dominates(anchor, a) {
				anchor = a
			}
		}
		if anchor == nil {
			n.rw.SetInsertionPointToStart(block)
		} else {
			n.rw.SetInsertionPointAfter(anchor)
		}
		clones[i] = n.rw.Clone(op, m)
	}
	for i, op := range order {
		for j, r := range op.Results() {
			n.moved.Map(r, clones[i].Result(j))
		}
		n.rw.ReplaceOp(op, clones[i].Results())
	}
	return m
}
