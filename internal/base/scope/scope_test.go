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

package scope_test

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/affinecfg/internal/base/scope"
	"github.com/pkg/errors"
)

func TestDefine(t *testing.T) {
	s := scope.NewScope[int](nil)
	if err := s.Define("arg0", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Define("c4", 2); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		want   int
		wantOK bool
	}{
		{name: "arg0", want: 1, wantOK: true},
		{name: "c4", want: 2, wantOK: true},
		{name: "undefined"},
	}
	for _, test := range tests {
		got, ok := s.Find(test.name)
		if got != test.want || ok != test.wantOK {
			t.Errorf("Find(%q) = %d, %t but want %d, %t", test.name, got, ok, test.want, test.wantOK)
		}
	}
	err := s.Define("arg0", 3)
	if !errors.Is(err, scope.ErrRedefined) {
		t.Errorf("Define(arg0) twice returned %v but want %v", err, scope.ErrRedefined)
	}
	if got, _ := s.Find("arg0"); got != 1 {
		t.Errorf("failed redefinition changed arg0 to %d", got)
	}
}

func TestNestedScope(t *testing.T) {
	fn := scope.NewScope[int](nil)
	_ = fn.Define("x", 1)
	_ = fn.Define("n", 20)

	body := fn.NewChild()
	if body.Parent() != fn {
		t.Errorf("child scope does not point to its parent")
	}
	if err := body.Define("x", 10); err != nil {
		t.Errorf("cannot shadow x: %v", err)
	}
	_ = body.Define("iv", 2)

	if v, ok := fn.Find("x"); v != 1 || !ok {
		t.Errorf("fn.Find(x) = %d, %t but want 1, true", v, ok)
	}
	if v, ok := body.Find("x"); v != 10 || !ok {
		t.Errorf("body.Find(x) = %d, %t but want 10, true", v, ok)
	}
	if v, ok := body.Find("n"); v != 20 || !ok {
		t.Errorf("body.Find(n) = %d, %t but want 20, true", v, ok)
	}
	if _, ok := fn.Find("iv"); ok {
		t.Errorf("fn.Find(iv) found a value defined in a child scope")
	}
	if body.IsLocal("n") {
		t.Errorf("n is not local to the body scope")
	}
	if diff := cmp.Diff([]string{"x", "iv"}, slices.Collect(body.LocalNames())); diff != "" {
		t.Errorf("unexpected local names (-want +got):\n%s", diff)
	}
}

func TestIsolatedScope(t *testing.T) {
	outer := scope.NewScope[int](nil)
	_ = outer.Define("x", 1)
	inner := scope.NewScope[int](nil)
	if _, ok := inner.Find("x"); ok {
		t.Errorf("isolated scope sees a name defined outside of it")
	}
}
