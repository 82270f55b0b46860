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

package exprbuild

import (
	log "github.com/sirupsen/logrus"

	"github.com/gx-org/affinecfg/base/ordered"
	"github.com/gx-org/affinecfg/internal/scopes"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/rewrite"
)

// Legalizable is a unit of work consisting of one or more builders.
type Legalizable interface {
	Builders() []*Builder
}

// Legalize captures the illegal symbols recorded by builders in affine scopes.
//
// Builders are grouped by the innermost block defining one of their illegal
// symbols. A scope is inserted at the start of every such block, capturing
// the illegal symbols defined outside of the block or as its arguments, and
// the dimensions which are not invariant in the block. The expressions of the
// builders are then rewritten in terms of the parameters of the scope.
// Builders for which no scope can be inserted stay illegal.
func Legalize(rw *rewrite.Rewriter, units ...Legalizable) error {
	groups := groupByTarget(units)
	for block, group := range groups.Iter() {
		if !scopable(block) {
			continue
		}
		symbols := ordered.NewPositions[*ir.Value]()
		for _, b := range group {
			b.collect(block.Parent(), symbols)
		}
		scope, err := scopes.Insert(rw, block, symbols.Keys())
		if err != nil {
			return err
		}
		for _, b := range group {
			b.rescope(scope)
		}
	}
	return nil
}

// target returns the innermost block defining an illegal symbol of the builder,
// or nil if the builder has no illegal symbol.
func (b *Builder) target() *ir.Block {
	var target *ir.Block
	for _, v := range b.illegal.Keys() {
		block := v.ParentBlock()
		if target == nil || nestedIn(block, target) {
			target = block
		}
	}
	return target
}

// nestedIn returns true if inner is a block nested in an operation of outer.
func nestedIn(inner, outer *ir.Block) bool {
	owner := inner.ParentOp()
	return inner != outer && owner != nil && outer.IsAncestorOf(owner)
}

// CanLegalize returns true if Legalize would make every builder of units legal.
// The program is not modified.
func CanLegalize(units ...Legalizable) bool {
	for block, group := range groupByTarget(units).Iter() {
		if !scopable(block) {
			return false
		}
		for _, b := range group {
			if !b.capturable(block.Parent()) {
				return false
			}
		}
	}
	return true
}

func groupByTarget(units []Legalizable) *ordered.Map[*ir.Block, []*Builder] {
	groups := ordered.NewMap[*ir.Block, []*Builder]()
	for _, unit := range units {
		for _, b := range unit.Builders() {
			target := b.target()
			if target == nil {
				continue
			}
			group, _ := groups.Load(target)
			groups.Store(target, append(group, b))
		}
	}
	return groups
}

// scopable returns true if a scope can be inserted at the start of block.
func scopable(block *ir.Block) bool {
	if parent := block.ParentOp(); parent != nil && parent.Kind() == ir.AffineScope {
		log.Debugf("cannot scope symbols of a block already in an affine scope at %s", parent.Pos)
		return false
	}
	if n := len(block.Parent().Blocks()); n != 1 {
		log.Debugf("cannot scope symbols of a region with %d blocks", n)
		return false
	}
	return true
}
