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

// Package access replaces loads and stores of LLVM pointers by accesses
// to memref views of the memory they point to.
//
// An access is affine if its address is a getelementptr chain from a base
// pointer whose byte offset is an affine expression of valid dimensions and
// symbols. Affine accesses become affine.load and affine.store operations on
// a typed view of the base pointer. Other accesses become memref.load and
// memref.store operations at index 0 of a view of the address itself.
package access

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/internal/exprbuild"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/layout"
	"github.com/gx-org/affinecfg/rewrite"
)

// ErrNoAffineScope is returned when accesses cannot be converted in place
// because the root operation does not start an affine scope.
var ErrNoAffineScope = errors.New("operation does not start an affine scope")

type access struct {
	op *ir.Operation
	b  *exprbuild.AccessBuilder
}

func (a *access) isStore() bool {
	return a.op.Kind() == ir.LLVMStore
}

func (a *access) addr() *ir.Value {
	if a.isStore() {
		return a.op.Operand(1)
	}
	return a.op.Operand(0)
}

// elemType returns the type of the value loaded or stored.
func (a *access) elemType() ir.Type {
	if a.isStore() {
		return a.op.Operand(0).Type()
	}
	return a.op.Result(0).Type()
}

// Convert replaces the llvm.load and llvm.store operations nested in root.
//
// Without symbol legalization, root must start an affine scope. With symbol
// legalization, affine scopes are inserted to capture the illegal symbols of
// the addresses.
func Convert(rw *rewrite.Rewriter, root *ir.Operation, l layout.Layout, legalize bool) error {
	if !legalize && !root.HasTrait(ir.HasAffineScope) {
		return errors.Wrapf(ErrNoAffineScope, "cannot convert accesses in %s", root.Name())
	}
	var accesses []*access
	for _, kind := range []ir.Kind{ir.LLVMStore, ir.LLVMLoad} {
		for _, op := range root.WalkKind(kind) {
			a, err := build(op, l, legalize)
			if err != nil {
				return err
			}
			accesses = append(accesses, a)
		}
	}
	if legalize {
		var units []exprbuild.Legalizable
		for _, a := range accesses {
			if a.b != nil {
				units = append(units, a.b)
			}
		}
		if err := exprbuild.Legalize(rw, units...); err != nil {
			return err
		}
	}
	c := newConverter(rw, l)
	for _, a := range accesses {
		if err := c.convert(a); err != nil {
			return err
		}
	}
	return nil
}

func build(op *ir.Operation, l layout.Layout, legalize bool) (*access, error) {
	a := &access{op: op}
	b := exprbuild.NewAccess(op, legalize)
	err := b.Build(l, a.addr())
	if errors.Is(err, exprbuild.ErrNotAffine) {
		log.Debugf("address of %s at %s is not affine: %v", op.Name(), op.Pos, err)
		return a, nil
	}
	if err != nil {
		return nil, err
	}
	a.b = b
	return a, nil
}

type viewKey struct {
	ptr  *ir.Value
	elem string
}

type converter struct {
	rw     *rewrite.Rewriter
	layout layout.Layout
	conv   *exprbuild.IndexConverter
	views  map[viewKey]*ir.Value
	// Results of converted accesses mapped to the results of their replacement.
	// Builders are created before any conversion and still refer to the former.
	replaced *ir.Mapping
}

func newConverter(rw *rewrite.Rewriter, l layout.Layout) *converter {
	return &converter{
		rw:       rw,
		layout:   l,
		conv:     exprbuild.NewIndexConverter(rw),
		views:    make(map[viewKey]*ir.Value),
		replaced: ir.NewMapping(),
	}
}

func (c *converter) lookupAll(vs []*ir.Value) []*ir.Value {
	r := make([]*ir.Value, len(vs))
	for i, v := range vs {
		r[i] = c.replaced.Lookup(v)
	}
	return r
}

// view returns a memref of elem viewing the memory pointed to by ptr.
// Views are created once, right after the definition of ptr.
func (c *converter) view(ptr *ir.Value, elem ir.Type) *ir.Value {
	key := viewKey{ptr: ptr, elem: elem.String()}
	if v, ok := c.views[key]; ok {
		return v
	}
	ip := c.rw.InsertionPoint()
	c.rw.SetInsertionPointAfterValue(ptr)
	v := toMemRef(c.rw, ptr, elem)
	c.rw.RestoreInsertionPoint(ip)
	c.views[key] = v
	return v
}

// toMemRef creates a ptr.to_memref operation viewing ptr as a memref of elem.
func toMemRef(rw *rewrite.Rewriter, ptr *ir.Value, elem ir.Type) *ir.Value {
	addrSpace := 0
	if pt, ok := ptr.Type().(ir.PtrType); ok {
		addrSpace = pt.AddrSpace
	}
	return rw.Cast(ir.PtrToMemRef, ptr, ir.DynamicMemRef(elem, addrSpace))
}

func (c *converter) convert(a *access) error {
	elem := a.elemType()
	size, err := c.layout.Size(elem)
	if err != nil {
		return err
	}
	c.rw.SetInsertionPointBefore(a.op)
	c.rw.Pos = a.op.Pos
	if a.b != nil && a.b.IsLegal() {
		done, err := c.affineAccess(a, elem, size)
		if err != nil || done {
			return err
		}
	}
	c.memRefAccess(a, elem)
	return nil
}

// affineAccess replaces an access by an affine access if its offset is a
// multiple of the size of the accessed element.
func (c *converter) affineAccess(a *access, elem ir.Type, size int64) (bool, error) {
	m, operands, err := a.b.Map()
	if err != nil {
		return false, err
	}
	offset := m.Results[0]
	if !affine.IsMultipleOf(offset, size) && !aligned(a.op, size) {
		log.Debugf("offset %s of %s at %s is not a multiple of %d", offset, a.op.Name(), a.op.Pos, size)
		return false, nil
	}
	mem := c.view(c.replaced.Lookup(a.b.Base()), elem)
	idx := affine.NewMap(m.NumDims, m.NumSymbols, affine.FloorDiv(offset, affine.Const(size)))
	indices := c.conv.ConvertAll(c.lookupAll(operands))
	prefix := []*ir.Value{mem}
	kind := ir.AffineLoad
	if a.isStore() {
		prefix = []*ir.Value{a.op.Operand(0), mem}
		kind = ir.AffineStore
	}
	r := c.replace(a.op, kind, append(prefix, indices...))
	r.SetAttr(ir.AttrMap, ir.MapAttr{Map: idx})
	log.Debugf("raised %s at %s to %s with map %s", a.op.Name(), a.op.Pos, r.Name(), idx)
	return true, nil
}

// memRefAccess replaces an access by a memref access at index 0 of a view of its address.
func (c *converter) memRefAccess(a *access, elem ir.Type) {
	mem := c.view(a.addr(), elem)
	zero := c.rw.ConstantIndex(0)
	operands := []*ir.Value{mem, zero}
	kind := ir.MemRefLoad
	if a.isStore() {
		operands = []*ir.Value{a.op.Operand(0), mem, zero}
		kind = ir.MemRefStore
	}
	c.replace(a.op, kind, operands)
}

// replace inserts an operation of kind with the attributes of op and replaces op with it.
func (c *converter) replace(op *ir.Operation, kind ir.Kind, operands []*ir.Value) *ir.Operation {
	r := ir.NewOp(kind, operands, op.ResultTypes(), 0)
	r.Pos = op.Pos
	for name, attr := range op.Attrs().Iter() {
		r.SetAttr(name, attr)
	}
	c.rw.Insert(r)
	for i, res := range op.Results() {
		c.replaced.Map(res, r.Result(i))
	}
	c.rw.ReplaceOp(op, r.Results())
	return r
}

func aligned(op *ir.Operation, size int64) bool {
	align, ok := op.IntAttr(ir.AttrAlignment)
	return ok && align > 0 && align%size == 0
}
