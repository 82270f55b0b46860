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

package passes_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/gx-org/affinecfg/affine"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/ir/irparse"
	"github.com/gx-org/affinecfg/passes"
	"github.com/gx-org/affinecfg/rewrite"
)

type pipelineTest struct {
	Name            string         `yaml:"name"`
	Passes          []string       `yaml:"passes"`
	LegalizeSymbols bool           `yaml:"legalize_symbols"`
	Input           string         `yaml:"input"`
	Expect          map[string]int `yaml:"expect"`
}

type pipelineFile struct {
	Tests []pipelineTest `yaml:"tests"`
}

func countOps(root *ir.Operation) map[string]int {
	counts := make(map[string]int)
	root.Walk(func(op *ir.Operation) {
		counts[op.Name()]++
	})
	return counts
}

func TestPipelines(t *testing.T) {
	data, err := os.ReadFile("testdata/pipelines.yaml")
	if err != nil {
		t.Fatal(err)
	}
	var file pipelineFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatal(err)
	}
	for _, test := range file.Tests {
		t.Run(test.Name, func(t *testing.T) {
			module, err := irparse.Parse(test.Name+".mlir", test.Input)
			if err != nil {
				t.Fatal(err)
			}
			cfg := passes.DefaultConfig()
			cfg.LegalizeSymbols = test.LegalizeSymbols
			var out bytes.Buffer
			pipeline, err := passes.Pipeline(append(test.Passes, passes.Print), cfg, &out)
			if err != nil {
				t.Fatal(err)
			}
			if err := passes.Run(module, pipeline); err != nil {
				t.Fatalf("%v\n%s", err, module)
			}
			counts := countOps(module)
			for name, want := range test.Expect {
				if got := counts[name]; got != want {
					t.Errorf("got %d %s but want %d:\n%s", got, name, want, module)
				}
			}
			printed, err := irparse.Parse(test.Name+".mlir", out.String())
			if err != nil {
				t.Fatalf("cannot parse printed program: %v\n%s", err, out.String())
			}
			if diff := cmp.Diff(module.String(), printed.String()); diff != "" {
				t.Errorf("printed program does not round trip:\n%s", diff)
			}
		})
	}
}

func TestPipelineUnknownPasses(t *testing.T) {
	_, err := passes.Pipeline([]string{"affine-cfg", "loop-fusion", "cse"}, passes.DefaultConfig(), nil)
	if err == nil {
		t.Fatal("got no error for unknown passes")
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Errorf("got %d errors but want 2: %v", n, err)
	}
	if !strings.Contains(err.Error(), "loop-fusion") {
		t.Errorf("error %q does not name the unknown pass", err)
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := passes.ParseConfig([]byte(`
legalize_symbols: true
max_iterations: 4
pointer_size: 4
index_width: 32
passes: [llvm-to-affine-access, affine-cfg]
`))
	if err != nil {
		t.Fatal(err)
	}
	want := passes.Config{
		LegalizeSymbols: true,
		MaxIterations:   4,
		PointerSize:     4,
		IndexWidth:      32,
		Passes:          []string{passes.LLVMToAffineAccess, passes.AffineCFG},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("unexpected configuration:\n%s", diff)
	}
	if got := cfg.Layout().PointerSize; got != 4 {
		t.Errorf("got pointer size %d but want 4", got)
	}
	if got := cfg.Rewrite(); got != (rewrite.Config{MaxIterations: 4}) {
		t.Errorf("got driver configuration %+v", got)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := passes.ParseConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(passes.DefaultConfig(), cfg); diff != "" {
		t.Errorf("empty configuration differs from the default:\n%s", diff)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		src  string
		errs int
	}{
		{src: "max_iterations: -1\nindex_width: 12\n", errs: 2},
		{src: "passes: [affine-cfg, unroll]\n", errs: 1},
		{src: "pointer_size: 0\nmax_rewrites: -3\npasses: [fuse]\n", errs: 3},
	}
	for _, test := range tests {
		_, err := passes.ParseConfig([]byte(test.src))
		if got := len(multierr.Errors(err)); got != test.errs {
			t.Errorf("%q: got %d errors but want %d: %v", test.src, got, test.errs, err)
		}
	}
	if _, err := passes.ParseConfig([]byte("legalise: true\n")); err == nil {
		t.Errorf("got no error for an unknown field")
	}
}

const composed = `func.func @f(%a: index, %b: index, %mem: memref<?xindex>) {
  %x = affine.apply %a [map = map<()[s0] -> (s0 + s0)>] : index
  memref.store %x, %mem, %b
  func.return
}
`

func parseComposed(t *testing.T) (user *ir.Operation, a, b, x *ir.Value) {
	t.Helper()
	module, err := irparse.Parse("composed.mlir", composed)
	if err != nil {
		t.Fatal(err)
	}
	user = module.WalkKind(ir.MemRefStore)[0]
	x = user.Operand(0)
	a = x.DefiningOp().Operand(0)
	b = user.Operand(2)
	return user, a, b, x
}

func operandValues(t *testing.T, operands []*ir.Value, env map[*ir.Value]int64) []int64 {
	t.Helper()
	vals := make([]int64, len(operands))
	for i, v := range operands {
		val, ok := env[v]
		if !ok {
			t.Fatalf("unexpected operand %%%s", v.Name)
		}
		vals[i] = val
	}
	return vals
}

func TestCanonicalizeMap(t *testing.T) {
	user, a, b, x := parseComposed(t)
	m := affine.NewMap(1, 1, affine.Add(affine.D(0), affine.S(0)))
	got, operands, legal, err := passes.CanonicalizeMap(rewrite.NewRewriter(nil), user, m, []*ir.Value{x, b})
	if err != nil {
		t.Fatal(err)
	}
	if !legal {
		t.Errorf("%s is not legal", got)
	}
	for _, env := range []map[*ir.Value]int64{{a: 3, b: 5}, {a: -2, b: 7}, {a: 0, b: 0}} {
		r, err := got.EvalOperands(operandValues(t, operands, env))
		if err != nil {
			t.Fatal(err)
		}
		if want := 2*env[a] + env[b]; r[0] != want {
			t.Errorf("%s at a=%d b=%d: got %d but want %d", got, env[a], env[b], r[0], want)
		}
	}
}

func TestCanonicalizeSet(t *testing.T) {
	user, a, _, x := parseComposed(t)
	s := affine.NewSet(1, 0, []affine.Expr{affine.Sub(affine.D(0), affine.Const(1))}, []bool{false})
	got, operands, legal, err := passes.CanonicalizeSet(rewrite.NewRewriter(nil), user, s, []*ir.Value{x})
	if err != nil {
		t.Fatal(err)
	}
	if !legal {
		t.Errorf("%s is not legal", got)
	}
	for av, want := range map[int64]bool{-1: false, 0: false, 1: true, 4: true} {
		in, err := got.ContainsOperands(operandValues(t, operands, map[*ir.Value]int64{a: av}))
		if err != nil {
			t.Fatal(err)
		}
		if in != want {
			t.Errorf("%s at a=%d: got %t but want %t", got, av, in, want)
		}
	}
}

const raisable = `func.func @r(%n: index, %m: index, %mem: memref<?xindex>) {
  %c0 = arith.constant [value = 0] : index
  %c1 = arith.constant [value = 1] : index
  %ge = arith.cmpi %n, %c0 [predicate = sge] : i1
  scf.for %c0, %n, %c1 {
  ^bb0(%i: index):
    memref.store %i, %mem, %i
    scf.yield
  }
  scf.if %ge {
    memref.store %n, %mem, %c0
    scf.yield
  }
  affine.for %n [lower_map = map<() -> (0)>, upper_map = map<()[s0] -> (s0)>, step = 1] {
  ^bb0(%k: index):
    %w = memref.load %mem, %k : index
    scf.for %c0, %w, %c1 {
    ^bb0(%j: index):
      memref.store %j, %mem, %j
      scf.yield
    }
    affine.yield
  }
  func.return
}
`

func TestRaise(t *testing.T) {
	module, err := irparse.Parse("raisable.mlir", raisable)
	if err != nil {
		t.Fatal(err)
	}
	rw := rewrite.NewRewriter(nil)
	loops := module.WalkKind(ir.SCFFor)
	raised, err := passes.RaiseFor(rw, loops[0])
	if err != nil {
		t.Fatal(err)
	}
	if raised.Kind() != ir.AffineFor {
		t.Errorf("got %s but want affine.for", raised.Name())
	}
	kept, err := passes.RaiseFor(rw, loops[1])
	if err != nil {
		t.Fatal(err)
	}
	if kept != loops[1] {
		t.Errorf("loop bounded by a loaded value has been raised to %s", kept.Name())
	}
	cond := module.WalkKind(ir.SCFIf)[0]
	notNested, err := passes.RaiseIf(rw, cond)
	if err != nil {
		t.Fatal(err)
	}
	if notNested != cond {
		t.Errorf("conditional outside of an affine loop has been raised to %s", notNested.Name())
	}
	if err := ir.Verify(module); err != nil {
		t.Fatalf("invalid program:\n%v\n%s", err, module)
	}
}
