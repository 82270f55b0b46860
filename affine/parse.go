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

package affine

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/pkg/errors"
)

type parser struct {
	s    scanner.Scanner
	tok  rune
	dims map[string]int
	syms map[string]int
	err  error
}

func newParser(src string) *parser {
	p := &parser{
		dims: make(map[string]int),
		syms: make(map[string]int),
	}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts
	p.s.Error = func(s *scanner.Scanner, msg string) {
		if p.err == nil {
			p.err = errors.Errorf("col %d: %s", s.Pos().Column, msg)
		}
	}
	p.next()
	return p
}

func (p *parser) next() {
	p.tok = p.s.Scan()
}

func (p *parser) text() string {
	return p.s.TokenText()
}

func (p *parser) errorf(format string, a ...any) error {
	if p.err != nil {
		return p.err
	}
	return errors.Errorf("col %d: %s", p.s.Position.Column, fmt.Sprintf(format, a...))
}

func (p *parser) tokString() string {
	if p.tok == scanner.EOF {
		return "end of input"
	}
	return strconv.Quote(p.text())
}

func (p *parser) expect(r rune) error {
	if p.tok != r {
		return p.errorf("expected %q but got %s", r, p.tokString())
	}
	p.next()
	return nil
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok == scanner.Ident && p.text() == kw
}

// names parses an identifier list until the closing rune.
func (p *parser) names(close rune, into map[string]int) error {
	for p.tok != close {
		if p.tok != scanner.Ident {
			return p.errorf("expected identifier but got %s", p.tokString())
		}
		name := p.text()
		if _, dup := p.dims[name]; dup {
			return p.errorf("%s defined twice", name)
		}
		if _, dup := p.syms[name]; dup {
			return p.errorf("%s defined twice", name)
		}
		into[name] = len(into)
		p.next()
		if p.tok != ',' {
			break
		}
		p.next()
	}
	return p.expect(close)
}

func (p *parser) space() error {
	if err := p.expect('('); err != nil {
		return err
	}
	if err := p.names(')', p.dims); err != nil {
		return err
	}
	if p.tok != '[' {
		return nil
	}
	p.next()
	return p.names(']', p.syms)
}

func (p *parser) primary() (Expr, error) {
	switch p.tok {
	case scanner.Int:
		v, err := strconv.ParseInt(p.text(), 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer %s", p.text())
		}
		p.next()
		return Const(v), nil
	case scanner.Ident:
		name := p.text()
		if pos, ok := p.dims[name]; ok {
			p.next()
			return D(pos), nil
		}
		if pos, ok := p.syms[name]; ok {
			p.next()
			return S(pos), nil
		}
		return nil, p.errorf("undefined identifier %s", name)
	case '(':
		p.next()
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		return e, p.expect(')')
	}
	return nil, p.errorf("unexpected %s", p.tokString())
}

func (p *parser) unary() (Expr, error) {
	if p.tok != '-' {
		return p.primary()
	}
	p.next()
	e, err := p.unary()
	if err != nil {
		return nil, err
	}
	return Neg(e), nil
}

func (p *parser) term() (Expr, error) {
	e, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		var build func(a, b Expr) Expr
		switch {
		case p.tok == '*':
			build = Mul
		case p.isKeyword("floordiv"):
			build = FloorDiv
		case p.isKeyword("ceildiv"):
			build = CeilDiv
		case p.isKeyword("mod"):
			build = Mod
		default:
			return e, nil
		}
		p.next()
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		e = build(e, r)
	}
}

func (p *parser) expr() (Expr, error) {
	e, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.tok == '+' || p.tok == '-' {
		op := p.tok
		p.next()
		r, err := p.term()
		if err != nil {
			return nil, err
		}
		if op == '+' {
			e = Add(e, r)
		} else {
			e = Sub(e, r)
		}
	}
	return e, nil
}

func (p *parser) end() error {
	if p.err != nil {
		return p.err
	}
	if p.tok != scanner.EOF {
		return p.errorf("unexpected %s after end", p.tokString())
	}
	return nil
}

// ParseMap parses a map of the form (d0, d1)[s0] -> (d0 + s0, d1).
// Dimension and symbol names are arbitrary identifiers.
func ParseMap(src string) (Map, error) {
	p := newParser(src)
	if err := p.space(); err != nil {
		return Map{}, errors.Wrapf(err, "cannot parse map %q", src)
	}
	if err := p.expect('-'); err != nil {
		return Map{}, errors.Wrapf(err, "cannot parse map %q", src)
	}
	if err := p.expect('>'); err != nil {
		return Map{}, errors.Wrapf(err, "cannot parse map %q", src)
	}
	if err := p.expect('('); err != nil {
		return Map{}, errors.Wrapf(err, "cannot parse map %q", src)
	}
	m := Map{NumDims: len(p.dims), NumSymbols: len(p.syms)}
	for p.tok != ')' {
		e, err := p.expr()
		if err != nil {
			return Map{}, errors.Wrapf(err, "cannot parse map %q", src)
		}
		m.Results = append(m.Results, e)
		if p.tok != ',' {
			break
		}
		p.next()
	}
	if err := p.expect(')'); err != nil {
		return Map{}, errors.Wrapf(err, "cannot parse map %q", src)
	}
	if err := p.end(); err != nil {
		return Map{}, errors.Wrapf(err, "cannot parse map %q", src)
	}
	return m, nil
}

func (p *parser) constraint() (Expr, bool, error) {
	lhs, err := p.expr()
	if err != nil {
		return nil, false, err
	}
	op := p.tok
	if op != '>' && op != '<' && op != '=' {
		return nil, false, p.errorf("expected >=, <= or == but got %s", p.tokString())
	}
	p.next()
	if err := p.expect('='); err != nil {
		return nil, false, err
	}
	rhs, err := p.expr()
	if err != nil {
		return nil, false, err
	}
	switch op {
	case '>':
		return Sub(lhs, rhs), false, nil
	case '<':
		return Sub(rhs, lhs), false, nil
	}
	return Sub(lhs, rhs), true, nil
}

// ParseSet parses an integer set of the form (d0)[s0] : (d0 >= 0, s0 - d0 - 1 >= 0).
// Constraints may compare two arbitrary expressions with >=, <= or ==.
func ParseSet(src string) (Set, error) {
	p := newParser(src)
	if err := p.space(); err != nil {
		return Set{}, errors.Wrapf(err, "cannot parse set %q", src)
	}
	if err := p.expect(':'); err != nil {
		return Set{}, errors.Wrapf(err, "cannot parse set %q", src)
	}
	if err := p.expect('('); err != nil {
		return Set{}, errors.Wrapf(err, "cannot parse set %q", src)
	}
	s := Set{NumDims: len(p.dims), NumSymbols: len(p.syms)}
	for p.tok != ')' {
		c, eq, err := p.constraint()
		if err != nil {
			return Set{}, errors.Wrapf(err, "cannot parse set %q", src)
		}
		s.Constraints = append(s.Constraints, c)
		s.Eq = append(s.Eq, eq)
		if p.tok != ',' {
			break
		}
		p.next()
	}
	if err := p.expect(')'); err != nil {
		return Set{}, errors.Wrapf(err, "cannot parse set %q", src)
	}
	if err := p.end(); err != nil {
		return Set{}, errors.Wrapf(err, "cannot parse set %q", src)
	}
	return s, nil
}

// ParseExpr parses an expression over dimensions d0..dn-1 and symbols s0..sm-1.
func ParseExpr(src string, numDims, numSymbols int) (Expr, error) {
	p := newParser(src)
	for i := range numDims {
		p.dims[fmt.Sprintf("d%d", i)] = i
	}
	for i := range numSymbols {
		p.syms[fmt.Sprintf("s%d", i)] = i
	}
	e, err := p.expr()
	if err == nil {
		err = p.end()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse expression %q", src)
	}
	return e, nil
}
