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
	"fmt"
	"io"
	"strings"

	"github.com/gx-org/affinecfg/base/uname"
)

// PrintOptions configures the printer.
type PrintOptions struct {
	// Locations appends the source position of every operation as a comment.
	Locations bool
}

type printer struct {
	w      strings.Builder
	opts   PrintOptions
	names  map[*Value]string
	unames *uname.Unique
}

// Print writes the textual form of an operation.
// A module is printed as the list of the operations in its body.
func Print(w io.Writer, op *Operation, opts PrintOptions) error {
	p := &printer{
		opts:   opts,
		names:  make(map[*Value]string),
		unames: uname.New(),
	}
	if op.kind == Module && op.attrs.Size() == 0 && op.Body() != nil {
		for i, nested := range op.Body().ops {
			if i > 0 {
				p.w.WriteString("\n")
			}
			p.printOp(nested, 0)
		}
	} else {
		p.printOp(op, 0)
	}
	_, err := io.WriteString(w, p.w.String())
	return err
}

// String returns the textual form of an operation.
func (op *Operation) String() string {
	var b strings.Builder
	_ = Print(&b, op, PrintOptions{})
	return b.String()
}

func (p *printer) name(v *Value) string {
	if n, ok := p.names[v]; ok {
		return n
	}
	var n string
	switch {
	case v.Name != "":
		n = p.unames.Name(v.Name)
	case v.def != nil && v.def.kind == ArithConstant:
		c, _ := v.def.IntAttr(AttrValue)
		hint := fmt.Sprintf("c%d", c)
		if c < 0 {
			hint = fmt.Sprintf("cm%d", -c)
		}
		if !IsIndex(v.typ) {
			hint += "_" + v.typ.String()
		}
		n = p.unames.Name(hint)
	default:
		n = p.unames.Counter("")
	}
	p.names[v] = n
	return n
}

func (p *printer) ref(v *Value) string {
	if v == nil {
		return "<<nil>>"
	}
	return "%" + p.name(v)
}

func (p *printer) indent(n int) {
	p.w.WriteString(strings.Repeat("  ", n))
}

func (p *printer) location(op *Operation) {
	if p.opts.Locations && op.Pos.IsValid() {
		fmt.Fprintf(&p.w, " // %s", op.Pos)
	}
}

func (p *printer) printAttrs(op *Operation, skip string) {
	var attrs []string
	for k, a := range op.attrs.Iter() {
		if k == skip {
			continue
		}
		attrs = append(attrs, k+" = "+a.String())
	}
	if len(attrs) == 0 {
		return
	}
	p.w.WriteString(" [" + strings.Join(attrs, ", ") + "]")
}

func (p *printer) printOp(op *Operation, depth int) {
	p.indent(depth)
	if op.kind == FuncFunc {
		p.printFunc(op, depth)
		return
	}
	if len(op.results) > 0 {
		rs := make([]string, len(op.results))
		for i, r := range op.results {
			rs[i] = p.ref(r)
		}
		p.w.WriteString(strings.Join(rs, ", ") + " = ")
	}
	p.w.WriteString(op.Name())
	if len(op.operands) > 0 {
		os := make([]string, len(op.operands))
		for i, v := range op.operands {
			os[i] = p.ref(v)
		}
		p.w.WriteString(" " + strings.Join(os, ", "))
	}
	p.printAttrs(op, "")
	for i, r := range op.regions {
		p.w.WriteString(" {")
		if i == 0 {
			p.location(op)
		}
		p.w.WriteString("\n")
		p.printRegion(r, depth+1, false)
		p.indent(depth)
		p.w.WriteString("}")
	}
	if len(op.results) > 0 {
		ts := make([]string, len(op.results))
		for i, r := range op.results {
			ts[i] = r.typ.String()
		}
		p.w.WriteString(" : " + strings.Join(ts, ", "))
	}
	if len(op.regions) == 0 {
		p.location(op)
	}
	p.w.WriteString("\n")
}

func (p *printer) printFunc(op *Operation, depth int) {
	name, _ := op.StringAttr(AttrSymName)
	fmt.Fprintf(&p.w, "func.func @%s(", name)
	entry := op.Body()
	if entry != nil {
		p.w.WriteString(p.args(entry))
	}
	p.w.WriteString(")")
	p.printAttrs(op, AttrSymName)
	p.w.WriteString(" {")
	p.location(op)
	p.w.WriteString("\n")
	if len(op.regions) > 0 {
		p.printRegion(op.regions[0], depth+1, true)
	}
	p.indent(depth)
	p.w.WriteString("}\n")
}

func (p *printer) args(b *Block) string {
	as := make([]string, len(b.args))
	for i, a := range b.args {
		as[i] = p.ref(a) + ": " + a.typ.String()
	}
	return strings.Join(as, ", ")
}

// printRegion prints the blocks of a region.
// The arguments of the entry block are not printed if they have been printed already.
func (p *printer) printRegion(r *Region, depth int, entryArgsPrinted bool) {
	for i, b := range r.blocks {
		header := i > 0 || len(r.blocks) > 1 || (len(b.args) > 0 && !entryArgsPrinted)
		if header {
			p.indent(depth - 1)
			fmt.Fprintf(&p.w, "^bb%d", i)
			if len(b.args) > 0 {
				p.w.WriteString("(" + p.args(b) + ")")
			}
			p.w.WriteString(":\n")
		}
		for _, op := range b.ops {
			p.printOp(op, depth)
		}
	}
}
