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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const loops = `func.func @loops(%a: index, %b: index, %mem: memref<?xindex>) {
  %c1 = arith.constant [value = 1] : index
  %c3 = arith.constant [value = 3] : index
  scf.for %a, %b, %c3 {
  ^bb0(%i: index):
    memref.store %i, %mem, %c1
    scf.yield
  }
  func.return
}
`

const pointers = `func.func @f(%p: ptr, %n: index) {
  affine.for %n [lower_map = map<() -> (0)>, upper_map = map<()[s0] -> (s0)>, step = 1] {
  ^bb0(%i: index):
    %g = llvm.getelementptr %p, %i [elem_type = type<i32>, indices = [-2147483648]] : ptr
    %v = llvm.load %g : i32
    llvm.store %v, %p
    affine.yield
  }
  func.return
}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	cfg := writeFile(t, "cfg.yaml", "passes: [llvm-to-affine-access]\n")
	tests := []struct {
		name           string
		args           []string
		stdin          string
		contains       []string
		doesNotContain []string
	}{
		{
			name:           "file",
			args:           []string{writeFile(t, "loops.mlir", loops), "--passes=affine-cfg"},
			contains:       []string{"affine.for", "affine.store"},
			doesNotContain: []string{"scf.for"},
		},
		{
			name:           "stdin",
			stdin:          loops,
			contains:       []string{"affine.for"},
			doesNotContain: []string{"scf.for"},
		},
		{
			name:           "config",
			args:           []string{writeFile(t, "pointers.mlir", pointers), "--config", cfg},
			contains:       []string{"affine.load", "ptr.to_memref"},
			doesNotContain: []string{"llvm.load", "llvm.store"},
		},
		{
			name:     "flags override the configuration",
			args:     []string{writeFile(t, "pointers.mlir", pointers), "--config", cfg, "--passes", "affine-cfg"},
			contains: []string{"llvm.load", "llvm.store"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			if code := run(test.args, strings.NewReader(test.stdin), &out, &errOut); code != 0 {
				t.Fatalf("exit code %d:\n%s", code, errOut.String())
			}
			for _, s := range test.contains {
				if !strings.Contains(out.String(), s) {
					t.Errorf("output does not contain %q:\n%s", s, out.String())
				}
			}
			for _, s := range test.doesNotContain {
				if strings.Contains(out.String(), s) {
					t.Errorf("output contains %q:\n%s", s, out.String())
				}
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "unknown pass",
			args: []string{writeFile(t, "loops.mlir", loops), "--passes=affine-cfg,fuse"},
			want: `unknown pass "fuse"`,
		},
		{
			name: "missing file",
			args: []string{filepath.Join(t.TempDir(), "missing.mlir")},
			want: "cannot read",
		},
		{
			name: "invalid configuration",
			args: []string{writeFile(t, "loops.mlir", loops), "--config", writeFile(t, "cfg.yaml", "index_width: 7\n")},
			want: "index_width",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			if code := run(test.args, strings.NewReader(""), &out, &errOut); code != 1 {
				t.Fatalf("got exit code %d but want 1", code)
			}
			if !strings.Contains(errOut.String(), test.want) {
				t.Errorf("error output does not contain %q:\n%s", test.want, errOut.String())
			}
		})
	}
}
