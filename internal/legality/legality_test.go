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

package legality_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/affinecfg/internal/legality"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/ir/irparse"
)

const program = `func.func @f(%n: index, %m: i32, %mem: memref<?xi32>, %cond: i1) {
  %c1 = arith.constant [value = 1] : index
  %c4 = arith.constant [value = 4] : index
  %a = arith.addi %n, %c1 : index
  %r = scf.if %cond {
    %t = arith.muli %n, %c4 : index
    scf.yield %t
  } {
    scf.yield %n
  } : index
  scf.for %c1, %n, %c1 {
  ^bb0(%i: index):
    %k = arith.muli %n, %n : index
    %ki = arith.index_cast %m : index
    %ld = memref.load %mem, %i : i32
    %app = affine.apply %n [map = map<()[s0] -> (s0 * 2)>] : index
    scf.yield
  }
  affine.for %n [lower_map = map<() -> (0)>, upper_map = map<()[s0] -> (s0)>, step = 1] {
  ^bb0(%j: index):
    %k2 = arith.addi %n, %n : index
    %x = arith.addi %j, %n : index
    %y = arith.muli %j, %j : index
    %z = arith.muli %n, %j : index
    %w = arith.remsi %j, %c4 : index
    %s = arith.shli %j, %c1 : index
    %d = arith.divui %j, %k2 : index
    %v = memref.load %mem, %j : i32
    %u = arith.index_cast %v : index
    affine.yield
  }
  func.return
}
`

type values struct {
	t      *testing.T
	module *ir.Operation
}

func parse(t *testing.T, src string) values {
	t.Helper()
	module, err := irparse.Parse("t.mlir", src)
	if err != nil {
		t.Fatalf("cannot parse program:\n%v", err)
	}
	return values{t: t, module: module}
}

// get returns a value given its name.
func (vs values) get(name string) *ir.Value {
	vs.t.Helper()
	var found *ir.Value
	vs.module.PreWalk(func(op *ir.Operation) bool {
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
		return true
	})
	if found == nil {
		vs.t.Fatalf("no value %%%s", name)
	}
	return found
}

func TestClassify(t *testing.T) {
	vs := parse(t, program)
	tests := []struct {
		name         string
		topLevel     bool
		symbol       bool
		symbolRec    bool
		index        bool
		affineSymbol bool
		affineDim    bool
		normalizeDim bool
		normalizeSym bool
	}{
		{name: "n", topLevel: true, symbol: true, symbolRec: true, index: true, affineSymbol: true, affineDim: true},
		{name: "m", topLevel: true, symbol: true, symbolRec: true, index: true},
		{name: "c1", topLevel: true, symbol: true, symbolRec: true, index: true, affineSymbol: true, affineDim: true},
		{
			name: "a", topLevel: true, symbol: true, symbolRec: true, index: true,
			affineSymbol: true, affineDim: true,
			normalizeDim: true, normalizeSym: true,
		},
		{name: "r", topLevel: true, symbol: true, symbolRec: true, index: true, affineSymbol: true, affineDim: true},
		{name: "t", symbolRec: true, index: true, normalizeDim: true, normalizeSym: true},
		{name: "i"},
		{name: "k", symbolRec: true, index: true, normalizeSym: true, normalizeDim: true},
		{name: "ki", symbolRec: true, index: true, normalizeSym: true, normalizeDim: true},
		{name: "ld"},
		{
			name: "app", symbol: true, symbolRec: true, index: true, affineSymbol: true, affineDim: true,
			normalizeDim: true, normalizeSym: true,
		},
		{name: "j", index: true, affineDim: true, normalizeSym: true},
		{name: "x", index: true, normalizeSym: true, normalizeDim: true},
		{name: "y"},
		{name: "z", index: true, normalizeSym: true, normalizeDim: true},
		{name: "w", index: true, normalizeSym: true, normalizeDim: true},
		{name: "s", index: true, normalizeSym: true, normalizeDim: true},
		{name: "d", index: true, normalizeSym: true, normalizeDim: true},
		{name: "v"},
		{name: "u"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := vs.get(test.name)
			if got := legality.IsTopLevelValue(v); got != test.topLevel {
				t.Errorf("IsTopLevelValue(%%%s) = %t but want %t", test.name, got, test.topLevel)
			}
			if got := legality.IsValidSymbol(v, false); got != test.symbol {
				t.Errorf("IsValidSymbol(%%%s, false) = %t but want %t", test.name, got, test.symbol)
			}
			if got := legality.IsValidSymbol(v, true); got != test.symbolRec {
				t.Errorf("IsValidSymbol(%%%s, true) = %t but want %t", test.name, got, test.symbolRec)
			}
			if got := legality.IsValidIndex(v); got != test.index {
				t.Errorf("IsValidIndex(%%%s) = %t but want %t", test.name, got, test.index)
			}
			if got := legality.IsValidAffineSymbol(v); got != test.affineSymbol {
				t.Errorf("IsValidAffineSymbol(%%%s) = %t but want %t", test.name, got, test.affineSymbol)
			}
			if got := legality.IsValidAffineDim(v); got != test.affineDim {
				t.Errorf("IsValidAffineDim(%%%s) = %t but want %t", test.name, got, test.affineDim)
			}
			if got := legality.NeedsNormalization(v, true); got != test.normalizeDim {
				t.Errorf("NeedsNormalization(%%%s, true) = %t but want %t", test.name, got, test.normalizeDim)
			}
			if got := legality.NeedsNormalization(v, false); got != test.normalizeSym {
				t.Errorf("NeedsNormalization(%%%s, false) = %t but want %t", test.name, got, test.normalizeSym)
			}
		})
	}
}

func TestValueCmp(t *testing.T) {
	vs := parse(t, `func.func @g(%n: index, %p: i32) {
  %c0 = arith.constant [value = 0] : index
  %c1 = arith.constant [value = 1] : index
  %c8 = arith.constant [value = 8] : index
  %cm2 = arith.constant [value = -2] : index
  %c3 = arith.constant [value = 3] : i32
  %ic = arith.index_cast %c3 : index
  %sum = arith.addi %c8, %c0 : index
  %dv = arith.divui %sum, %n : index
  %neg = arith.addi %cm2, %c8 : index
  %sh = arith.shrui %p, %c3 : i32
  scf.for %c0, %c8, %c1 {
  ^bb0(%i: index):
    scf.yield
  }
  affine.for %n [lower_map = map<() -> (0)>, upper_map = map<()[s0] -> (s0, 16)>, step = 1] {
  ^bb0(%j: index):
    affine.yield
  }
  affine.for [lower_map = map<() -> (2)>, upper_map = map<() -> (3)>, step = 1] {
  ^bb0(%k: index):
    affine.yield
  }
  func.return
}
`)
	tests := []struct {
		name string
		cmp  legality.Cmp
		k    int64
		want bool
	}{
		{name: "c8", cmp: legality.EQ, k: 8, want: true},
		{name: "c8", cmp: legality.LT, k: 8, want: false},
		{name: "c8", cmp: legality.LE, k: 8, want: true},
		{name: "cm2", cmp: legality.GE, k: 0, want: false},
		{name: "cm2", cmp: legality.LT, k: 0, want: true},
		{name: "ic", cmp: legality.EQ, k: 3, want: true},
		{name: "sum", cmp: legality.GE, k: 0, want: true},
		{name: "sum", cmp: legality.GT, k: 0, want: false},
		{name: "dv", cmp: legality.GE, k: 0, want: true},
		{name: "neg", cmp: legality.GE, k: 0, want: false},
		{name: "sh", cmp: legality.GE, k: 0, want: false},
		{name: "n", cmp: legality.GE, k: 0, want: false},
		{name: "i", cmp: legality.GE, k: 0, want: true},
		{name: "i", cmp: legality.GT, k: -1, want: true},
		{name: "i", cmp: legality.LT, k: 8, want: true},
		{name: "i", cmp: legality.LT, k: 7, want: false},
		{name: "i", cmp: legality.LE, k: 7, want: true},
		{name: "i", cmp: legality.EQ, k: 0, want: false},
		{name: "j", cmp: legality.GE, k: 0, want: true},
		{name: "j", cmp: legality.LT, k: 16, want: true},
		{name: "j", cmp: legality.LT, k: 15, want: false},
		{name: "k", cmp: legality.EQ, k: 2, want: true},
		{name: "k", cmp: legality.GT, k: 2, want: false},
	}
	for _, test := range tests {
		v := vs.get(test.name)
		if got := legality.ValueCmp(test.cmp, v, test.k); got != test.want {
			t.Errorf("ValueCmp(%%%s %s %d) = %t but want %t", test.name, test.cmp, test.k, got, test.want)
		}
	}
}

func TestEffects(t *testing.T) {
	vs := parse(t, `func.func @h(%mem: memref<?xi32>, %n: index) {
  %v = memref.load %mem, %n : i32
  %a = memref.alloca : memref<4xi32>
  %x = arith.addi %n, %n : index
  scf.for %n, %n, %n {
  ^bb0(%i: index):
    %w = memref.load %mem, %i : i32
    scf.yield
  }
  scf.for %n, %n, %n {
  ^bb0(%j: index):
    memref.store %v, %mem, %j
    scf.yield
  }
  func.call [callee = "g"]
  func.return
}
`)
	body := vs.module.Body().Front().Body().Ops()
	tests := []struct {
		op       *ir.Operation
		readOnly bool
		readNone bool
	}{
		{op: body[0], readOnly: true},
		{op: body[1], readNone: true},
		{op: body[2], readOnly: true, readNone: true},
		{op: body[3], readOnly: true},
		{op: body[4]},
		{op: body[5]},
	}
	for i, test := range tests {
		if got := legality.IsReadOnly(test.op); got != test.readOnly {
			t.Errorf("test %d: IsReadOnly(%s) = %t but want %t", i, test.op.Name(), got, test.readOnly)
		}
		if got := legality.IsReadNone(test.op); got != test.readNone {
			t.Errorf("test %d: IsReadNone(%s) = %t but want %t", i, test.op.Name(), got, test.readNone)
		}
	}
}

func TestDecast(t *testing.T) {
	vs := parse(t, `func.func @d(%n: index) {
  %a = arith.index_cast %n : i64
  %b = arith.trunci %a : i32
  %c = arith.extsi %b : i64
  %d = arith.index_castui %c : index
  %e = arith.addi %d, %n : index
  func.return
}
`)
	if got, want := legality.Decast(vs.get("d")), vs.get("n"); got != want {
		t.Errorf("Decast(%%d) did not return %%n")
	}
	if got, want := legality.Decast(vs.get("e")), vs.get("e"); got != want {
		t.Errorf("Decast(%%e) did not return %%e")
	}
}

const conditions = `func.func @c(%a: index, %n: index, %b: i1) {
  %c0 = arith.constant [value = 0] : index
  %true = arith.constant [value = 1] : i1
  %ge = arith.cmpi %a, %c0 [predicate = sge] : i1
  %lt = arith.cmpi %a, %n [predicate = slt] : i1
  %and = arith.andi %ge, %lt : i1
  %neg = arith.cmpi %a, %c0 [predicate = slt] : i1
  %over = arith.cmpi %a, %n [predicate = sge] : i1
  %or = arith.ori %neg, %over : i1
  %not = arith.xori %or, %true : i1
  %twice = arith.xori %not, %true : i1
  %arg = arith.andi %and, %b : i1
  func.return
}
`

func TestConjuncts(t *testing.T) {
	tests := []struct {
		cond string
		want []string
	}{
		{cond: "ge", want: []string{"ge sge"}},
		{cond: "and", want: []string{"ge sge", "lt slt"}},
		{cond: "not", want: []string{"neg sge", "over slt"}},
		// Not a conjunction.
		{cond: "or"},
		{cond: "twice"},
		{cond: "arg"},
	}
	vs := parse(t, conditions)
	for _, test := range tests {
		cmps, ok := legality.Conjuncts(vs.get(test.cond))
		if test.want == nil {
			if ok {
				t.Errorf("%%%s: got %d comparisons but want no decomposition", test.cond, len(cmps))
			}
			continue
		}
		if !ok {
			t.Errorf("%%%s: condition has not been decomposed", test.cond)
			continue
		}
		var got []string
		for _, c := range cmps {
			got = append(got, c.Cmp.Result(0).Name+" "+c.Pred.String())
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%%%s: unexpected comparisons (-want +got):\n%s", test.cond, diff)
		}
	}
}
