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

package irparse

import (
	"github.com/gx-org/affinecfg/ir"
)

func (p *parser) intWidth() (int, bool) {
	if !isDigit(p.peekAt(1)) {
		return 0, false
	}
	p.advance(1)
	v, err := p.integer()
	if err != nil {
		return 0, false
	}
	return int(v), true
}

func (p *parser) parseType() (ir.Type, error) {
	pos := p.pos()
	switch {
	case p.accept("index"):
		return ir.Index, nil
	case p.peek() == 'i':
		if w, ok := p.intWidth(); ok {
			return ir.IntType{Width: w}, nil
		}
	case p.peek() == 'f':
		if w, ok := p.intWidth(); ok {
			return ir.FloatType{Width: w}, nil
		}
	case p.accept("ptr"):
		if !p.accept("<") {
			return ir.Ptr, nil
		}
		as, err := p.integer()
		if err != nil {
			return nil, err
		}
		return ir.PtrType{AddrSpace: int(as)}, p.expect(">")
	case p.accept("memref<"):
		return p.memRefType()
	case p.accept("vector<"):
		n, err := p.integer()
		if err != nil {
			return nil, err
		}
		if err := p.expect("x"); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return ir.VectorType{Len: n, Elem: elem}, p.expect(">")
	case p.accept("array<"):
		n, err := p.integer()
		if err != nil {
			return nil, err
		}
		p.inline()
		if err := p.expect("x"); err != nil {
			return nil, err
		}
		p.inline()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return ir.ArrayType{Len: n, Elem: elem}, p.expect(">")
	case p.accept("struct<"):
		packed := p.accept("packed")
		p.inline()
		if err := p.expect("("); err != nil {
			return nil, err
		}
		var fields []ir.Type
		for {
			p.inline()
			if p.accept(")") {
				break
			}
			f, err := p.parseType()
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
			p.inline()
			if !p.accept(",") && !p.hasPrefix(")") {
				return nil, p.errorf("expected ',' or ')' but got %s", p.near())
			}
		}
		return ir.StructType{Fields: fields, Packed: packed}, p.expect(">")
	}
	return nil, p.posErrorf(pos, "invalid type %s", p.near())
}

func (p *parser) memRefType() (ir.Type, error) {
	var shape []int64
	for {
		if p.accept("?x") {
			shape = append(shape, ir.DynamicSize)
			continue
		}
		if !isDigit(p.peek()) {
			break
		}
		d, err := p.integer()
		if err != nil {
			return nil, err
		}
		if err := p.expect("x"); err != nil {
			return nil, err
		}
		shape = append(shape, d)
	}
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	t := ir.MemRefType{Shape: shape, Elem: elem}
	p.inline()
	if p.accept(",") {
		p.inline()
		as, err := p.integer()
		if err != nil {
			return nil, err
		}
		t.AddrSpace = int(as)
	}
	return t, p.expect(">")
}
