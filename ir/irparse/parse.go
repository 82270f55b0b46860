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

// Package irparse reads the textual form of a program printed by the ir package.
package irparse

import (
	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/internal/base/scope"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/ir/fmterr"
	"golang.org/x/mod/semver"
)

// Version of the textual format read and written by this package.
// Files declaring a newer major version are rejected.
const Version = "v1.0.0"

type parser struct {
	*cursor
	values *scope.Scope[*ir.Value]
}

// Parse reads a program. The top-level operations are wrapped in a module.
func Parse(file, src string) (*ir.Operation, error) {
	p := &parser{
		cursor: newCursor(file, src),
		values: scope.NewScope[*ir.Value](nil),
	}
	module := ir.NewOp(ir.Module, nil, nil, 1)
	module.Pos = p.pos()
	body := ir.NewBlock()
	module.Region(0).AppendBlock(body)
	p.skipSpace(true)
	if err := p.version(); err != nil {
		return nil, err
	}
	for {
		p.skipSpace(true)
		if p.eof() {
			break
		}
		if err := p.operation(body); err != nil {
			return nil, err
		}
	}
	return module, nil
}

// ParseOp reads a program made of a single top-level operation and returns it.
func ParseOp(file, src string) (*ir.Operation, error) {
	module, err := Parse(file, src)
	if err != nil {
		return nil, err
	}
	ops := module.Body().Ops()
	if len(ops) != 1 {
		return nil, fmterr.Errorf(fmterr.Pos{File: file}, "expected a single operation but got %d", len(ops))
	}
	return ops[0], nil
}

func (p *parser) version() error {
	if !p.accept("#version") {
		return nil
	}
	p.inline()
	pos := p.pos()
	v, err := p.quoted()
	if err != nil {
		return err
	}
	if !semver.IsValid(v) {
		return p.posErrorf(pos, "invalid version %q", v)
	}
	if semver.Compare(semver.Major(v), semver.Major(Version)) > 0 {
		return p.posErrorf(pos, "version %s is not supported: the parser reads version %s", v, Version)
	}
	return nil
}

func (p *parser) posErrorf(pos fmterr.Pos, format string, a ...any) error {
	return fmterr.Errorf(pos, format, a...)
}

func (p *parser) valueName() (string, error) {
	if err := p.expect("%"); err != nil {
		return "", err
	}
	name := p.ident()
	if name == "" {
		return "", p.errorf("expected a value name but got %s", p.near())
	}
	return name, nil
}

func (p *parser) valueRef() (*ir.Value, error) {
	pos := p.pos()
	name, err := p.valueName()
	if err != nil {
		return nil, err
	}
	v, ok := p.values.Find(name)
	if !ok {
		return nil, p.posErrorf(pos, "undefined value %%%s", name)
	}
	return v, nil
}

func (p *parser) define(name string, v *ir.Value) error {
	if err := p.values.Define(name, v); err != nil {
		return p.errorf("%%%s redefined", name)
	}
	v.Name = name
	return nil
}

func (p *parser) operation(blk *ir.Block) error {
	pos := p.pos()
	var resultNames []string
	if p.peek() == '%' {
		for {
			name, err := p.valueName()
			if err != nil {
				return err
			}
			resultNames = append(resultNames, name)
			p.inline()
			if !p.accept(",") {
				break
			}
			p.inline()
		}
		if err := p.expect("="); err != nil {
			return err
		}
		p.inline()
	}
	namePos := p.pos()
	name := p.ident()
	if name == "func.func" {
		if len(resultNames) > 0 {
			return p.posErrorf(pos, "func.func has no result")
		}
		return p.function(blk, pos)
	}
	kind, ok := ir.KindByName(name)
	if !ok {
		return p.posErrorf(namePos, "unknown operation %q", name)
	}
	p.inline()
	var operands []*ir.Value
	for p.peek() == '%' {
		v, err := p.valueRef()
		if err != nil {
			return err
		}
		operands = append(operands, v)
		p.inline()
		if !p.accept(",") {
			break
		}
		p.inline()
	}
	attrs, err := p.attributes()
	if err != nil {
		return err
	}
	var regions []*ir.Region
	for p.inline(); p.peek() == '{'; p.inline() {
		r, err := p.region(p.values.NewChild(), nil)
		if err != nil {
			return err
		}
		regions = append(regions, r)
	}
	var types []ir.Type
	if p.accept(":") {
		for {
			p.inline()
			t, err := p.parseType()
			if err != nil {
				return err
			}
			types = append(types, t)
			p.inline()
			if !p.accept(",") {
				break
			}
		}
	}
	if len(types) != len(resultNames) {
		return p.posErrorf(pos, "%s: %d results but %d types", name, len(resultNames), len(types))
	}
	op := ir.NewOp(kind, operands, types, len(regions))
	op.Pos = pos
	for i, r := range regions {
		op.Region(i).TakeBody(r)
	}
	for _, a := range attrs {
		op.SetAttr(a.Name, a.Attr)
	}
	blk.Append(op)
	for i, n := range resultNames {
		if err := p.define(n, op.Result(i)); err != nil {
			return err
		}
	}
	return p.endOfLine()
}

func (p *parser) endOfLine() error {
	p.inline()
	if !p.eof() && p.peek() != '\n' {
		return p.errorf("unexpected %s", p.near())
	}
	return nil
}

func (p *parser) function(blk *ir.Block, pos fmterr.Pos) error {
	p.inline()
	if err := p.expect("@"); err != nil {
		return err
	}
	name := p.ident()
	if name == "" {
		return p.errorf("expected a function name")
	}
	// Functions are isolated from above.
	values := scope.NewScope[*ir.Value](nil)
	saved := p.values
	p.values = values
	defer func() { p.values = saved }()
	if err := p.expect("("); err != nil {
		return err
	}
	entry := ir.NewBlock()
	if err := p.blockArgs(entry); err != nil {
		return err
	}
	attrs, err := p.attributes()
	if err != nil {
		return err
	}
	p.inline()
	r, err := p.region(values, entry)
	if err != nil {
		return err
	}
	op := ir.NewOp(ir.FuncFunc, nil, nil, 1)
	op.Pos = pos
	op.SetAttr(ir.AttrSymName, ir.StringAttr{Value: name})
	for _, a := range attrs {
		op.SetAttr(a.Name, a.Attr)
	}
	op.Region(0).TakeBody(r)
	blk.Append(op)
	return p.endOfLine()
}

// blockArgs reads arguments up to a closing parenthesis, the opening one being consumed.
func (p *parser) blockArgs(blk *ir.Block) error {
	for {
		p.skipSpace(true)
		if p.accept(")") {
			return nil
		}
		name, err := p.valueName()
		if err != nil {
			return err
		}
		p.inline()
		if err := p.expect(":"); err != nil {
			return err
		}
		p.inline()
		t, err := p.parseType()
		if err != nil {
			return err
		}
		if err := p.define(name, blk.AddArg(t)); err != nil {
			return err
		}
		p.skipSpace(true)
		if p.accept(")") {
			return nil
		}
		if err := p.expect(","); err != nil {
			return err
		}
	}
}

// region reads a region in a given scope.
// If entry is not nil, it is used as the first block of the region.
func (p *parser) region(values *scope.Scope[*ir.Value], entry *ir.Block) (*ir.Region, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	saved := p.values
	p.values = values
	defer func() { p.values = saved }()
	r := ir.NewRegion()
	blk := entry
	if blk != nil {
		r.AppendBlock(blk)
	}
	for {
		p.skipSpace(true)
		if p.eof() {
			return nil, p.errorf("unterminated region")
		}
		if p.accept("}") {
			return r, nil
		}
		if p.peek() == '^' {
			p.advance(1)
			if label := p.ident(); label == "" {
				return nil, p.errorf("expected a block label")
			}
			if blk == nil || blk != entry || !blk.Empty() {
				blk = ir.NewBlock()
				r.AppendBlock(blk)
			}
			if p.accept("(") {
				if err := p.blockArgs(blk); err != nil {
					return nil, err
				}
			}
			if err := p.expect(":"); err != nil {
				return nil, err
			}
			continue
		}
		if blk == nil {
			blk = ir.NewBlock()
			r.AppendBlock(blk)
		}
		if err := p.operation(blk); err != nil {
			return nil, err
		}
	}
}

func (p *parser) attributes() ([]ir.NamedAttr, error) {
	p.inline()
	if !p.accept("[") {
		return nil, nil
	}
	var attrs []ir.NamedAttr
	for {
		p.inline()
		if p.accept("]") {
			return attrs, nil
		}
		name := p.ident()
		if name == "" {
			return nil, p.errorf("expected an attribute name but got %s", p.near())
		}
		p.inline()
		if err := p.expect("="); err != nil {
			return nil, err
		}
		p.inline()
		a, err := p.attribute()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, ir.Named(name, a))
		p.inline()
		if p.accept("]") {
			return attrs, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

func (p *parser) attribute() (ir.Attr, error) {
	pos := p.pos()
	switch ch := p.peek(); {
	case ch == '-' || isDigit(ch):
		v, err := p.integer()
		return ir.IntAttr{Value: v}, err
	case ch == '"':
		s, err := p.quoted()
		return ir.StringAttr{Value: s}, err
	case ch == '[':
		p.advance(1)
		var vs []int64
		for {
			p.inline()
			if p.accept("]") {
				return ir.IntsAttr{Values: vs}, nil
			}
			v, err := p.integer()
			if err != nil {
				return nil, err
			}
			vs = append(vs, v)
			p.inline()
			if !p.accept(",") && !p.hasPrefix("]") {
				return nil, p.errorf("expected ',' or ']' but got %s", p.near())
			}
		}
	case p.accept("type<"):
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return ir.TypeAttr{Type: t}, p.expect(">")
	case p.accept("map<"):
		src, err := p.angled()
		if err != nil {
			return nil, err
		}
		m, err := affine.ParseMap(src)
		if err != nil {
			return nil, p.posErrorf(pos, "%v", err)
		}
		return ir.MapAttr{Map: m}, nil
	case p.accept("set<"):
		src, err := p.angled()
		if err != nil {
			return nil, err
		}
		s, err := affine.ParseSet(src)
		if err != nil {
			return nil, p.posErrorf(pos, "%v", err)
		}
		return ir.SetAttr{Set: s}, nil
	}
	word := p.ident()
	switch word {
	case "true":
		return ir.BoolAttr{Value: true}, nil
	case "false":
		return ir.BoolAttr{Value: false}, nil
	}
	if pred, ok := ir.PredicateByName(word); ok {
		return ir.PredicateAttr{Pred: pred}, nil
	}
	return nil, p.posErrorf(pos, "invalid attribute %q", word)
}
