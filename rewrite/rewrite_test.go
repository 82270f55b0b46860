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

package rewrite_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/ir/fmterr"
	"github.com/gx-org/affinecfg/ir/irparse"
	"github.com/gx-org/affinecfg/rewrite"
)

const program = `func.func @f(%m: memref<4xindex>) {
  %c1 = arith.constant [value = 1] : index
  %c2 = arith.constant [value = 2] : index
  %a = arith.addi %c1, %c2 : index
  %b = arith.addi %a, %c2 : index
  %d = arith.muli %b, %b : index
  memref.store %b, %m, %c1
  func.return
}
`

func parse(t *testing.T) *ir.Operation {
	t.Helper()
	module, err := irparse.Parse("t.mlir", program)
	if err != nil {
		t.Fatal(err)
	}
	return module
}

var foldAdd = rewrite.NewPattern("fold-add", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	x, okX := ir.ConstantValue(op.Operand(0))
	y, okY := ir.ConstantValue(op.Operand(1))
	if !okX || !okY {
		return false, nil
	}
	rw.ReplaceOp(op, []*ir.Value{rw.ConstantIndex(x + y)})
	return true, nil
}, ir.ArithAddI)

func TestFold(t *testing.T) {
	module := parse(t)
	converged, err := rewrite.Apply(module, []rewrite.Pattern{foldAdd}, rewrite.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !converged {
		t.Errorf("driver did not converge")
	}
	if err := ir.Verify(module); err != nil {
		t.Fatal(err)
	}
	want := `func.func @f(%m: memref<4xindex>) {
  %c1 = arith.constant [value = 1] : index
  %c5 = arith.constant [value = 5] : index
  memref.store %c5, %m, %c1
  func.return
}
`
	if diff := cmp.Diff(want, module.String()); diff != "" {
		t.Errorf("unexpected program:\n%s", diff)
	}
}

func TestMaxRewrites(t *testing.T) {
	module := parse(t)
	calls := 0
	toggle := rewrite.NewPattern("toggle", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
		calls++
		rw.ModifyInPlace(op, func() {
			if _, ok := op.Attr("flag"); ok {
				op.RemoveAttr("flag")
			} else {
				op.SetAttr("flag", ir.BoolAttr{Value: true})
			}
		})
		return true, nil
	}, ir.ArithAddI)
	converged, err := rewrite.Apply(module, []rewrite.Pattern{toggle}, rewrite.Config{MaxRewrites: 5})
	if err != nil {
		t.Fatal(err)
	}
	if converged {
		t.Errorf("driver converged with a pattern always applying")
	}
	if calls != 5 {
		t.Errorf("pattern called %d times but want 5", calls)
	}
}

func TestMaxIterations(t *testing.T) {
	module := parse(t)
	calls := 0
	always := rewrite.NewPattern("always", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
		calls++
		return true, nil
	}, ir.MemRefStore)
	converged, err := rewrite.Apply(module, []rewrite.Pattern{always}, rewrite.Config{MaxIterations: 3})
	if err != nil {
		t.Fatal(err)
	}
	if converged {
		t.Errorf("driver converged with a pattern always applying")
	}
	if calls != 3 {
		t.Errorf("pattern called %d times but want 3", calls)
	}
}

func TestError(t *testing.T) {
	module := parse(t)
	failing := rewrite.NewPattern("failing", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
		return false, fmterr.Internalf("operand count mismatch")
	}, ir.ArithAddI)
	_, err := rewrite.Apply(module, []rewrite.Pattern{failing}, rewrite.DefaultConfig())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !fmterr.IsInternal(err) {
		t.Errorf("error %v is not an internal error", err)
	}
	if !strings.Contains(err.Error(), "pattern failing on arith.addi") {
		t.Errorf("error %q does not name the pattern", err.Error())
	}
}

func TestGenericPattern(t *testing.T) {
	module := parse(t)
	var names []string
	record := rewrite.NewPattern("record", func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
		names = append(names, op.Name())
		return false, nil
	})
	if _, err := rewrite.Apply(module, []rewrite.Pattern{foldAdd, record}, rewrite.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if name == "arith.muli" {
			t.Errorf("dead arith.muli visited by a pattern")
		}
	}
	if len(names) == 0 {
		t.Errorf("generic pattern never called")
	}
}
