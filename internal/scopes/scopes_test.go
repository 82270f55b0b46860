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

package scopes_test

import (
	"testing"

	"github.com/gx-org/affinecfg/internal/legality"
	"github.com/gx-org/affinecfg/internal/scopes"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/ir/fmterr"
	"github.com/gx-org/affinecfg/ir/irparse"
	"github.com/gx-org/affinecfg/rewrite"
)

const program = `func.func @f(%n: index, %mem: memref<?xi32>, %cond: i1) {
  %c0 = arith.constant [value = 0] : index
  %c1 = arith.constant [value = 1] : index
  scf.for %c0, %n, %c1 {
  ^bb0(%i: index):
    %x = arith.addi %i, %n : index
    %v = memref.load %mem, %x : i32
    scf.yield
  }
  %r = scf.if %cond {
    %t = arith.addi %n, %n : index
    scf.yield %t
  } {
    scf.yield %n
  } : index
  func.return
}
`

func parse(t *testing.T) (module, fn *ir.Operation) {
	t.Helper()
	module, err := irparse.Parse("t.mlir", program)
	if err != nil {
		t.Fatalf("cannot parse program:\n%v", err)
	}
	return module, module.Body().Front()
}

func verify(t *testing.T, module *ir.Operation) {
	t.Helper()
	if err := ir.Verify(module); err != nil {
		t.Fatalf("invalid program:\n%v\n%s", err, module)
	}
	if _, err := irparse.Parse("t.mlir", module.String()); err != nil {
		t.Fatalf("cannot parse printed program:\n%v\n%s", err, module)
	}
}

func TestInsertAndExtend(t *testing.T) {
	module, fn := parse(t)
	loop := fn.WalkKind(ir.SCFFor)[0]
	body := loop.Body()
	iv := body.Arg(0)
	n := fn.Body().Arg(0)
	add := body.Front()
	rw := rewrite.NewRewriter(nil)

	scope, err := scopes.Insert(rw, body, []*ir.Value{iv, iv})
	if err != nil {
		t.Fatal(err)
	}
	verify(t, module)
	if got := body.Len(); got != 2 || body.Front() != scope {
		t.Fatalf("loop body has %d operations but want the scope and its terminator", got)
	}
	if scope.NumOperands() != 1 {
		t.Fatalf("scope captures %d values but want 1", scope.NumOperands())
	}
	pi := scopes.Param(scope, iv)
	if pi == nil {
		t.Fatalf("induction variable not captured")
	}
	if add.Block() != scope.Body() {
		t.Errorf("%s not moved into the scope", add.Name())
	}
	if add.Operand(0) != pi {
		t.Errorf("%s does not use the scope parameter", add.Name())
	}
	if !legality.IsValidAffineSymbol(pi) {
		t.Errorf("scope parameter is not a valid affine symbol")
	}
	if scopes.Param(scope, n) != nil {
		t.Errorf("%%n captured before the scope is extended")
	}

	extended, err := scopes.Insert(rw, body, []*ir.Value{n, iv})
	if err != nil {
		t.Fatal(err)
	}
	verify(t, module)
	if extended != scope {
		t.Fatalf("a new scope has been created instead of extending the existing one")
	}
	if got := scopes.Param(scope, iv); got != pi || got.Index() != 0 {
		t.Errorf("parameter of the induction variable has moved")
	}
	pn := scopes.Param(scope, n)
	if pn == nil || pn.Index() != 1 {
		t.Fatalf("%%n not captured at position 1")
	}
	if add.Operand(1) != pn {
		t.Errorf("%s does not use the parameter of %%n", add.Name())
	}
}

func TestCreateWithResults(t *testing.T) {
	module, fn := parse(t)
	ifOp := fn.WalkKind(ir.SCFIf)[0]
	then := ifOp.Region(0).Front()
	rw := rewrite.NewRewriter(nil)
	scope, err := scopes.Create(rw, then, nil)
	if err != nil {
		t.Fatal(err)
	}
	verify(t, module)
	if scope.NumResults() != 1 {
		t.Fatalf("scope has %d results but want 1", scope.NumResults())
	}
	if got := then.Terminator().Operand(0); got != scope.Result(0) {
		t.Errorf("terminator does not yield the result of the scope")
	}
	yield := scope.Body().Terminator()
	if yield == nil || yield.Kind() != ir.AffineYield {
		t.Fatalf("scope body is not terminated by %s", ir.AffineYield)
	}
	if def := yield.Operand(0).DefiningOp(); def == nil || def.Kind() != ir.ArithAddI {
		t.Errorf("scope does not yield the result of %s", ir.ArithAddI)
	}
}

func TestInsertInScope(t *testing.T) {
	_, fn := parse(t)
	rw := rewrite.NewRewriter(nil)
	scope, err := scopes.Insert(rw, fn.WalkKind(ir.SCFFor)[0].Body(), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = scopes.Insert(rw, scope.Body(), nil)
	if !fmterr.IsInternal(err) {
		t.Errorf("got error %v but want an internal error", err)
	}
}
