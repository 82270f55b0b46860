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

package irparse_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/ir/irparse"
)

func TestRoundTrip(t *testing.T) {
	tests := []string{
		`func.func @f(%n: index, %p: ptr) {
  %c0 = arith.constant [value = 0] : index
  %c1 = arith.constant [value = 1] : index
  %x = arith.addi %n, %c0 : index
  %m = ptr.to_memref %p : memref<?xf32>
  scf.for %c0, %n, %c1 {
  ^bb0(%i: index):
    %v = affine.load %m, %i [map = map<(d0) -> (d0 + 1)>] : f32
    memref.store %v, %m, %x
    scf.yield
  }
  func.return
}
`,
		`func.func @g(%a: index, %b: i32, %p: ptr<1>) {
  %0 = arith.cmpi %b, %b [predicate = slt] : i1
  %1 = llvm.getelementptr %p, %a [elem_type = type<struct<packed (i8, array<4 x i32>)>>, indices = [0, 1, -2147483648]] : ptr<1>
  affine.if %a [condition = set<(d0) : (d0 >= 0, -d0 + 9 >= 0)>] {
    affine.yield
  } {
    affine.yield
  }
  %2 = affine.scope %a {
  ^bb0(%s: index):
    affine.yield %s
  } : index
  func.return
}

func.func @h() {
  %m = memref.alloca : memref<4x8xi64, 3>
  func.return
}
`,
	}
	for i, src := range tests {
		module, err := irparse.Parse("test.mlir", src)
		if err != nil {
			t.Errorf("test %d: %v", i, err)
			continue
		}
		if err := ir.Verify(module); err != nil {
			t.Errorf("test %d: invalid program:\n%v", i, err)
		}
		got := module.String()
		if diff := cmp.Diff(src, got); diff != "" {
			t.Errorf("test %d: printed program differs from source:\n%s", i, diff)
		}
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{
			src:  "func.func @f() {\n  %x = arith.addi %y, %y : index\n  func.return\n}\n",
			want: "t.mlir:2:19: undefined value %y",
		},
		{
			src:  "func.func @f() {\n  %x = arith.frobnicate : index\n}\n",
			want: "t.mlir:2:8: unknown operation",
		},
		{
			src:  "func.func @f() {\n  %x = arith.constant [value = 1] : index\n  %x = arith.constant [value = 2] : index\n}\n",
			want: "%x redefined",
		},
		{
			src:  "func.func @f() {\n  %x = arith.constant [value = 1]\n}\n",
			want: "1 results but 0 types",
		},
		{
			src:  "#version \"v2.1.0\"\n",
			want: "version v2.1.0 is not supported",
		},
		{
			src:  "#version \"1.0\"\n",
			want: "invalid version",
		},
		{
			src:  "func.func @f(%n: index) {\n  %a = affine.apply %n [map = map<(d0) -> (d1)>] : index\n}\n",
			want: "undefined identifier d1",
		},
	}
	for i, test := range tests {
		_, err := irparse.Parse("t.mlir", test.src)
		if err == nil {
			t.Errorf("test %d: expected an error", i)
			continue
		}
		if !strings.Contains(err.Error(), test.want) {
			t.Errorf("test %d: error %q does not contain %q", i, err.Error(), test.want)
		}
	}
}

func TestVersion(t *testing.T) {
	src := "#version \"v1.4.2\"\nfunc.func @f() {\n  func.return\n}\n"
	module, err := irparse.Parse("t.mlir", src)
	if err != nil {
		t.Fatal(err)
	}
	if n := module.Body().Len(); n != 1 {
		t.Errorf("got %d top-level operations but want 1", n)
	}
}

func TestFunctionsAreIsolated(t *testing.T) {
	src := `func.func @f(%n: index) {
  func.return
}

func.func @g() {
  %x = arith.addi %n, %n : index
  func.return
}
`
	if _, err := irparse.Parse("t.mlir", src); err == nil {
		t.Errorf("expected an error when using a value of another function")
	}
}

func TestLocations(t *testing.T) {
	src := "func.func @f(%n: index) {\n  %x = arith.addi %n, %n : index\n  func.return\n}\n"
	module, err := irparse.Parse("t.mlir", src)
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	if err := ir.Print(&b, module, ir.PrintOptions{Locations: true}); err != nil {
		t.Fatal(err)
	}
	want := "func.func @f(%n: index) { // t.mlir:1:1\n  %x = arith.addi %n, %n : index // t.mlir:2:3\n  func.return // t.mlir:3:3\n}\n"
	if diff := cmp.Diff(want, b.String()); diff != "" {
		t.Errorf("unexpected output:\n%s", diff)
	}
	// Comments are ignored when reading the program back.
	if _, err := irparse.Parse("t.mlir", b.String()); err != nil {
		t.Errorf("cannot parse a program with locations: %v", err)
	}
}
