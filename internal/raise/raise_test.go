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

package raise_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/internal/raise"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/ir/irparse"
	"github.com/gx-org/affinecfg/rewrite"
)

type prog struct {
	t      *testing.T
	module *ir.Operation
}

func parse(t *testing.T, src string) prog {
	t.Helper()
	module, err := irparse.Parse("t.mlir", src)
	if err != nil {
		t.Fatalf("cannot parse program:\n%v", err)
	}
	return prog{t: t, module: module}
}

func (p prog) get(name string) *ir.Value {
	p.t.Helper()
	var found *ir.Value
	p.module.Walk(func(op *ir.Operation) {
		for _, r := range op.Results() {
			if r.Name == name {
				found = r
			}
		}
		for _, reg := range op.Regions() {
			for _, b := range reg.Blocks() {
				for _, a := range b.Args() {
					if a.Name == name {
						found = a
					}
				}
			}
		}
	})
	if found == nil {
		p.t.Fatalf("no value %%%s", name)
	}
	return found
}

func (p prog) raise(opts raise.Options) {
	p.t.Helper()
	converged, err := rewrite.Apply(p.module, raise.Patterns(opts), rewrite.DefaultConfig())
	if err != nil {
		p.t.Fatalf("cannot raise program:\n%v\n%s", err, p.module)
	}
	if !converged {
		p.t.Errorf("raising did not converge:\n%s", p.module)
	}
	if err := ir.Verify(p.module); err != nil {
		p.t.Fatalf("invalid program:\n%v\n%s", err, p.module)
	}
	if _, err := irparse.Parse("t.mlir", p.module.String()); err != nil {
		p.t.Fatalf("cannot parse printed program:\n%v\n%s", err, p.module)
	}
}

func (p prog) count(k ir.Kind) int {
	return len(p.module.WalkKind(k))
}

// eval computes an index computation given the values of its leaves.
func eval(t *testing.T, v *ir.Value, env map[*ir.Value]int64) int64 {
	t.Helper()
	if x, ok := env[v]; ok {
		return x
	}
	def := v.DefiningOp()
	if def == nil {
		t.Fatalf("no value for %%%s", v.Name)
	}
	operand := func(i int) int64 { return eval(t, def.Operand(i), env) }
	switch def.Kind() {
	case ir.ArithConstant:
		c, _ := def.IntAttr(ir.AttrValue)
		return c
	case ir.ArithIndexCast, ir.ArithIndexCastUI:
		return operand(0)
	case ir.ArithAddI:
		return operand(0) + operand(1)
	case ir.ArithSubI:
		return operand(0) - operand(1)
	case ir.ArithMulI:
		return operand(0) * operand(1)
	case ir.ArithDivSI:
		return operand(0) / operand(1)
	case ir.AffineApply:
		m, _ := def.MapAttr(ir.AttrMap)
		return evalMap(t, m, def.Operands(), env)[0]
	}
	t.Fatalf("cannot evaluate %s", def.Name())
	return 0
}

func evalAll(t *testing.T, vs []*ir.Value, env map[*ir.Value]int64) []int64 {
	t.Helper()
	r := make([]int64, len(vs))
	for i, v := range vs {
		r[i] = eval(t, v, env)
	}
	return r
}

func evalMap(t *testing.T, m affine.Map, operands []*ir.Value, env map[*ir.Value]int64) []int64 {
	t.Helper()
	r, err := m.EvalOperands(evalAll(t, operands, env))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

// iterations returns the values stored by the single store of an affine.for
// at every iteration.
func iterations(t *testing.T, op *ir.Operation, env map[*ir.Value]int64) []int64 {
	t.Helper()
	loop := ir.AffineForOp{Operation: op}
	stores := op.WalkKind(ir.AffineStore)
	if len(stores) != 1 {
		t.Fatalf("found %d affine.store in the loop but want 1", len(stores))
	}
	stored := ir.AccessOp{Operation: stores[0]}.StoredValue()
	lb := maxOf(evalMap(t, loop.LowerMap(), loop.LowerOperands(), env))
	ub := minOf(evalMap(t, loop.UpperMap(), loop.UpperOperands(), env))
	var r []int64
	for k := lb; k < ub; k += loop.Step() {
		env[loop.InductionVar()] = k
		r = append(r, eval(t, stored, env))
	}
	delete(env, loop.InductionVar())
	return r
}

func maxOf(xs []int64) int64 {
	r := xs[0]
	for _, x := range xs[1:] {
		r = max(r, x)
	}
	return r
}

func minOf(xs []int64) int64 {
	r := xs[0]
	for _, x := range xs[1:] {
		r = min(r, x)
	}
	return r
}

func topLevel(p prog, k ir.Kind) []*ir.Operation {
	var r []*ir.Operation
	for _, op := range p.module.Body().Front().Body().Ops() {
		if op.Kind() == k {
			r = append(r, op)
		}
	}
	return r
}

const loops = `func.func @loops(%a: index, %b: index, %s: index, %mem: memref<?xindex>) {
  %c1 = arith.constant [value = 1] : index
  %c3 = arith.constant [value = 3] : index
  scf.for %a, %b, %c3 {
  ^bb0(%i: index):
    memref.store %i, %mem, %c1
    scf.yield
  }
  scf.for %a, %b, %s {
  ^bb0(%j: index):
    memref.store %j, %mem, %c1
    scf.yield
  }
  func.return
}
`

func TestForIterations(t *testing.T) {
	p := parse(t, loops)
	a, b, s := p.get("a"), p.get("b"), p.get("s")
	p.raise(raise.Options{})
	if n := p.count(ir.SCFFor); n != 0 {
		t.Fatalf("%d scf.for left after raising:\n%s", n, p.module)
	}
	raised := topLevel(p, ir.AffineFor)
	if len(raised) != 2 {
		t.Fatalf("found %d affine.for but want 2:\n%s", len(raised), p.module)
	}
	if step := (ir.AffineForOp{Operation: raised[1]}).Step(); step != 1 {
		t.Errorf("loop with a symbolic step raised with step %d but want 1", step)
	}
	for av := int64(-3); av < 6; av++ {
		for bv := int64(-3); bv < 10; bv++ {
			for sv := int64(1); sv < 5; sv++ {
				env := map[*ir.Value]int64{a: av, b: bv, s: sv}
				for i, step := range []int64{3, sv} {
					var want []int64
					for iv := av; iv < bv; iv += step {
						want = append(want, iv)
					}
					got := iterations(t, raised[i], env)
					if diff := cmp.Diff(want, got); diff != "" {
						t.Errorf("loop %d at a=%d b=%d s=%d: unexpected iterations (-want +got):\n%s", i, av, bv, sv, diff)
					}
				}
			}
		}
	}
}

const minBound = `func.func @b(%n: index, %m: index, %mem: memref<?xindex>) {
  %c0 = arith.constant [value = 0] : index
  %c1 = arith.constant [value = 1] : index
  %cmp = arith.cmpi %n, %m [predicate = sle] : i1
  %ub = arith.select %cmp, %n, %m : index
  scf.for %c0, %ub, %c1 {
  ^bb0(%i: index):
    memref.store %i, %mem, %i
    scf.yield
  }
  affine.for %n [lower_map = map<() -> (0)>, upper_map = map<()[s0] -> (s0)>, step = 1] {
  ^bb0(%k: index):
    %other = arith.cmpi %k, %n [predicate = sle] : i1
    %ub2 = arith.select %other, %n, %m : index
    scf.for %c0, %ub2, %c1 {
    ^bb0(%j: index):
      memref.store %j, %mem, %j
      scf.yield
    }
    affine.yield
  }
  func.return
}
`

func TestForMinimumBound(t *testing.T) {
	p := parse(t, minBound)
	n, m := p.get("n"), p.get("m")
	p.raise(raise.Options{})
	if got := p.count(ir.SCFFor); got != 1 {
		t.Errorf("found %d scf.for but want 1: the bound computed from an unrelated condition cannot be raised:\n%s", got, p.module)
	}
	raised := topLevel(p, ir.AffineFor)[0]
	loop := ir.AffineForOp{Operation: raised}
	if got := len(loop.UpperMap().Results); got != 2 {
		t.Fatalf("upper bound %s has %d results but want 2", loop.UpperMap(), got)
	}
	for nv := int64(-2); nv < 6; nv++ {
		for mv := int64(-2); mv < 6; mv++ {
			env := map[*ir.Value]int64{n: nv, m: mv}
			ubs := evalMap(t, loop.UpperMap(), loop.UpperOperands(), env)
			if got, want := minOf(ubs), min(nv, mv); got != want {
				t.Errorf("upper bound %s at n=%d m=%d: got %d but want %d", loop.UpperMap(), nv, mv, got, want)
			}
		}
	}
	if got := p.count(ir.AffineStore); got != 1 {
		t.Errorf("found %d affine.store but want 1:\n%s", got, p.module)
	}
}

const guardTmpl = `func.func @c(%n: index, %m: index, %a: index, %mem: memref<?xindex>) {
  %c0 = arith.constant [value = 0] : index
  %c10 = arith.constant [value = 10] : index
  %cmin = arith.constant [value = -9223372036854775808] : index
  %true = arith.constant [value = 1] : i1
  %ge = arith.cmpi %a, %c0 [predicate = sge] : i1
  %lt = arith.cmpi %a, %n [predicate = slt] : i1
  %and = arith.andi %ge, %lt : i1
  %neg = arith.cmpi %a, %c0 [predicate = slt] : i1
  %over = arith.cmpi %a, %n [predicate = sge] : i1
  %or = arith.ori %neg, %over : i1
  %not = arith.xori %or, %true : i1
  %eq = arith.cmpi %a, %n [predicate = eq] : i1
  %ne = arith.cmpi %a, %c0 [predicate = ne] : i1
  %le = arith.cmpi %n, %m [predicate = sle] : i1
  %mn = arith.select %le, %n, %m : index
  %below = arith.cmpi %a, %mn [predicate = slt] : i1
  %above = arith.cmpi %mn, %a [predicate = slt] : i1
  %ule = arith.cmpi %a, %c10 [predicate = ule] : i1
  affine.for %n [lower_map = map<() -> (0)>, upper_map = map<()[s0] -> (s0)>, step = 1] {
  ^bb0(%i: index):
    %ult = arith.cmpi %i, %c10 [predicate = ult] : i1
    %umin = arith.cmpi %i, %cmin [predicate = ult] : i1
    scf.if %COND {
      memref.store %i, %mem, %c0
      scf.yield
    }
    affine.yield
  }
  func.return
}
`

func TestIfRaising(t *testing.T) {
	inRange := func(a, n, _, _ int64) bool { return a >= 0 && a < n }
	tests := []struct {
		cond string
		want func(a, n, m, i int64) bool
	}{
		{cond: "and", want: inRange},
		{cond: "not", want: inRange},
		{cond: "eq", want: func(a, n, _, _ int64) bool { return a == n }},
		{cond: "below", want: func(a, n, m, _ int64) bool { return a < n && a < m }},
		{cond: "ult", want: func(_, _, _, i int64) bool { return i < 10 }},
		// Not affine.
		{cond: "ne"},
		{cond: "or"},
		{cond: "above"},
		{cond: "ule"},
		{cond: "umin"},
	}
	for _, test := range tests {
		p := parse(t, strings.Replace(guardTmpl, "COND", test.cond, 1))
		n, m, a, i := p.get("n"), p.get("m"), p.get("a"), p.get("i")
		p.raise(raise.Options{})
		ifs := p.module.WalkKind(ir.AffineIf)
		if test.want == nil {
			if len(ifs) != 0 || p.count(ir.SCFIf) != 1 {
				t.Errorf("%%%s: condition should not be raised:\n%s", test.cond, p.module)
			}
			continue
		}
		if len(ifs) != 1 || p.count(ir.SCFIf) != 0 {
			t.Errorf("%%%s: condition has not been raised:\n%s", test.cond, p.module)
			continue
		}
		set, _ := ifs[0].SetAttrOf(ir.AttrCondition)
		for av := int64(-3); av < 12; av++ {
			for nv := int64(0); nv < 12; nv += 3 {
				for mv := int64(0); mv < 12; mv += 4 {
					iv := (av + 3) % 12
					env := map[*ir.Value]int64{n: nv, m: mv, a: av, i: iv}
					got, err := set.ContainsOperands(evalAll(t, ifs[0].Operands(), env))
					if err != nil {
						t.Fatal(err)
					}
					if want := test.want(av, nv, mv, iv); got != want {
						t.Errorf("%%%s: %s at a=%d n=%d m=%d i=%d: got %t but want %t", test.cond, set, av, nv, mv, iv, got, want)
					}
				}
			}
		}
	}
}

func TestIfUnsignedMinimum(t *testing.T) {
	tests := []struct {
		cond     string
		legalize bool
		raised   bool
	}{
		{cond: "ult", legalize: false, raised: true},
		{cond: "ult", legalize: true, raised: true},
		{cond: "umin", legalize: false, raised: false},
		{cond: "umin", legalize: true, raised: false},
	}
	for _, test := range tests {
		p := parse(t, strings.Replace(guardTmpl, "COND", test.cond, 1))
		p.raise(raise.Options{LegalizeSymbols: test.legalize})
		wantIf, wantSCF := 0, 1
		if test.raised {
			wantIf, wantSCF = 1, 0
		}
		if got := p.count(ir.AffineIf); got != wantIf {
			t.Errorf("%%%s legalize=%t: found %d affine.if but want %d:\n%s", test.cond, test.legalize, got, wantIf, p.module)
		}
		if got := p.count(ir.SCFIf); got != wantSCF {
			t.Errorf("%%%s legalize=%t: found %d scf.if but want %d:\n%s", test.cond, test.legalize, got, wantSCF, p.module)
		}
		if got := p.count(ir.AffineScope); got != 0 {
			t.Errorf("%%%s legalize=%t: found %d affine.scope but want 0:\n%s", test.cond, test.legalize, got, p.module)
		}
	}
}

func TestIfConstraints(t *testing.T) {
	p := parse(t, strings.Replace(guardTmpl, "COND", "and", 1))
	p.raise(raise.Options{})
	ifs := p.module.WalkKind(ir.AffineIf)
	if len(ifs) != 1 {
		t.Fatalf("found %d affine.if but want 1:\n%s", len(ifs), p.module)
	}
	set, _ := ifs[0].SetAttrOf(ir.AttrCondition)
	if len(set.Constraints) != 2 || set.Eq[0] || set.Eq[1] {
		t.Errorf("got %s but want two inequalities", set)
	}
	if got := len(ifs[0].Region(1).Blocks()); got != 1 {
		t.Errorf("else region has %d blocks but want 1", got)
	}
	if got := p.count(ir.AffineStore); got != 1 {
		t.Errorf("found %d affine.store but want 1:\n%s", got, p.module)
	}
}

const ifResults = `func.func @r(%a: index, %n: index, %mem: memref<?xi32>) {
  %c0 = arith.constant [value = 0] : index
  %x = arith.constant [value = 1] : i32
  %y = arith.constant [value = 2] : i32
  %ge = arith.cmpi %a, %c0 [predicate = sge] : i1
  affine.for %n [lower_map = map<() -> (0)>, upper_map = map<()[s0] -> (s0)>, step = 1] {
  ^bb0(%i: index):
    %v = scf.if %ge {
      scf.yield %x
    } {
      scf.yield %y
    } : i32
    memref.store %v, %mem, %i
    affine.yield
  }
  func.return
}
`

func TestIfResults(t *testing.T) {
	p := parse(t, ifResults)
	p.raise(raise.Options{})
	ifs := p.module.WalkKind(ir.AffineIf)
	if len(ifs) != 1 {
		t.Fatalf("found %d affine.if but want 1:\n%s", len(ifs), p.module)
	}
	r := ifs[0]
	if r.NumResults() != 1 {
		t.Fatalf("affine.if has %d results but want 1", r.NumResults())
	}
	store := ir.AccessOp{Operation: p.module.WalkKind(ir.AffineStore)[0]}
	if store.StoredValue() != r.Result(0) {
		t.Errorf("store does not use the result of the affine.if:\n%s", p.module)
	}
	for i := range 2 {
		term := r.Region(i).Front().Terminator()
		if term.Kind() != ir.AffineYield || term.NumOperands() != 1 {
			t.Errorf("region %d is not terminated by affine.yield of one value:\n%s", i, p.module)
		}
	}
}

const parallel = `func.func @p(%n: index, %m: index, %mem: memref<?xindex>) {
  %c0 = arith.constant [value = 0] : index
  %c1 = arith.constant [value = 1] : index
  %c2 = arith.constant [value = 2] : index
  scf.parallel %c0, %c0, %n, %m, %c1, %c2 {
  ^bb0(%i: index, %j: index):
    memref.store %i, %mem, %j
    scf.reduce
  }
  scf.parallel %c0, %n, %m {
  ^bb0(%k: index):
    memref.store %k, %mem, %k
    scf.reduce
  }
  func.return
}
`

func TestParallel(t *testing.T) {
	p := parse(t, parallel)
	n, m := p.get("n"), p.get("m")
	p.raise(raise.Options{})
	if got := p.count(ir.SCFParallel); got != 1 {
		t.Errorf("found %d scf.parallel but want 1: a loop with a non-constant step cannot be raised:\n%s", got, p.module)
	}
	ps := p.module.WalkKind(ir.AffineParallel)
	if len(ps) != 1 {
		t.Fatalf("found %d affine.parallel but want 1:\n%s", len(ps), p.module)
	}
	loop := ir.AffineParallelOp{Operation: ps[0]}
	if diff := cmp.Diff([]int64{1, 2}, loop.Steps()); diff != "" {
		t.Errorf("unexpected steps (-want +got):\n%s", diff)
	}
	env := map[*ir.Value]int64{n: 7, m: 9}
	if diff := cmp.Diff([]int64{0, 0}, evalMap(t, loop.LowerMap(), loop.LowerOperands(), env)); diff != "" {
		t.Errorf("unexpected lower bounds (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{7, 9}, evalMap(t, loop.UpperMap(), loop.UpperOperands(), env)); diff != "" {
		t.Errorf("unexpected upper bounds (-want +got):\n%s", diff)
	}
	if term := loop.Body().Terminator(); term.Kind() != ir.AffineYield {
		t.Errorf("body terminated by %s but want affine.yield", term.Name())
	}
	if got := len(ps[0].WalkKind(ir.AffineStore)); got != 1 {
		t.Errorf("store in the parallel loop has not been raised:\n%s", p.module)
	}
}

const canonical = `func.func @k(%n: index, %k: i32, %mem: memref<?xi32>) {
  %c5i = arith.constant [value = 5] : i32
  %c5 = arith.index_cast %c5i : index
  %x = affine.apply %n [map = map<()[s0] -> (s0 * 2)>] : index
  %y = affine.apply %x [map = map<()[s0] -> (s0 + 1)>] : index
  %t = arith.index_cast %k : index
  %u = arith.index_cast %t : i32
  memref.store %u, %mem, %y
  memref.store %k, %mem, %c5
  func.return
}
`

func TestCanonicalize(t *testing.T) {
	p := parse(t, canonical)
	n, k := p.get("n"), p.get("k")
	p.raise(raise.Options{})
	if got := p.count(ir.ArithIndexCast); got != 0 {
		t.Errorf("found %d arith.index_cast but want 0:\n%s", got, p.module)
	}
	stores := p.module.WalkKind(ir.AffineStore)
	if len(stores) != 2 {
		t.Fatalf("found %d affine.store but want 2:\n%s", len(stores), p.module)
	}
	want := []int64{2*7 + 1, 5}
	for i, op := range stores {
		store := ir.AccessOp{Operation: op}
		if store.StoredValue() != k {
			t.Errorf("store %d: stored value %%%s but want %%k", i, store.StoredValue().Name)
		}
		got := evalMap(t, store.Map(), store.Indices(), map[*ir.Value]int64{n: 7})
		if len(got) != 1 || got[0] != want[i] {
			t.Errorf("store %d: index %v but want %d", i, got, want[i])
		}
	}
}

const scoped = `func.func @s(%n: index, %mem: memref<?xi32>, %out: memref<?xindex>) {
  %c0 = arith.constant [value = 0] : index
  %c1 = arith.constant [value = 1] : index
  affine.for %n [lower_map = map<() -> (0)>, upper_map = map<()[s0] -> (s0)>, step = 1] {
  ^bb0(%i: index):
    %k = memref.load %mem, %i : i32
    %ki = arith.index_cast %k : index
    scf.for %c0, %ki, %c1 {
    ^bb0(%j: index):
      memref.store %j, %out, %j
      scf.yield
    }
    affine.yield
  }
  func.return
}
`

func TestScopedRaising(t *testing.T) {
	tests := []struct {
		legalize        bool
		scfFor, scopes int
	}{
		{legalize: false, scfFor: 1, scopes: 0},
		{legalize: true, scfFor: 0, scopes: 1},
	}
	for _, test := range tests {
		p := parse(t, scoped)
		p.raise(raise.Options{LegalizeSymbols: test.legalize})
		if got := p.count(ir.SCFFor); got != test.scfFor {
			t.Errorf("legalize=%t: found %d scf.for but want %d:\n%s", test.legalize, got, test.scfFor, p.module)
		}
		if got := p.count(ir.AffineScope); got != test.scopes {
			t.Errorf("legalize=%t: found %d affine.scope but want %d:\n%s", test.legalize, got, test.scopes, p.module)
		}
	}
}
