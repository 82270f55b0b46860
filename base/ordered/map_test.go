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

package ordered_test

import (
	"maps"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/affinecfg/base/ordered"
)

type op struct {
	store bool
	key   string
	value int
}

func TestMap(t *testing.T) {
	tests := []struct {
		desc     string
		ops      []op
		wantKeys []string
		want     map[string]int
	}{
		{
			desc:     "insertion order",
			ops:      []op{{true, "map", 1}, {true, "alignment", 2}, {true, "predicate", 3}},
			wantKeys: []string{"map", "alignment", "predicate"},
			want:     map[string]int{"map": 1, "alignment": 2, "predicate": 3},
		},
		{
			desc:     "overwrite keeps position",
			ops:      []op{{true, "map", 1}, {true, "alignment", 2}, {true, "map", 3}},
			wantKeys: []string{"map", "alignment"},
			want:     map[string]int{"map": 3, "alignment": 2},
		},
		{
			desc:     "delete then store moves to the back",
			ops:      []op{{true, "map", 1}, {true, "alignment", 2}, {false, "map", 0}, {true, "map", 4}},
			wantKeys: []string{"alignment", "map"},
			want:     map[string]int{"alignment": 2, "map": 4},
		},
		{
			desc:     "delete missing key",
			ops:      []op{{true, "map", 1}, {false, "step", 0}},
			wantKeys: []string{"map"},
			want:     map[string]int{"map": 1},
		},
	}
	for _, test := range tests {
		m := ordered.NewMap[string, int]()
		for _, o := range test.ops {
			if o.store {
				m.Store(o.key, o.value)
			} else {
				m.Delete(o.key)
			}
		}
		if m.Size() != len(test.wantKeys) {
			t.Errorf("%s: map has %d entries but want %d", test.desc, m.Size(), len(test.wantKeys))
			continue
		}
		if diff := cmp.Diff(test.wantKeys, m.KeySlice()); diff != "" {
			t.Errorf("%s: unexpected key order (-want +got):\n%s", test.desc, diff)
		}
		if diff := cmp.Diff(test.wantKeys, slices.Collect(m.Keys())); diff != "" {
			t.Errorf("%s: unexpected key iteration (-want +got):\n%s", test.desc, diff)
		}
		if diff := cmp.Diff(test.want, maps.Collect(m.Iter())); diff != "" {
			t.Errorf("%s: unexpected entries (-want +got):\n%s", test.desc, diff)
		}
		var wantValues []int
		for _, k := range test.wantKeys {
			wantValues = append(wantValues, test.want[k])
		}
		if diff := cmp.Diff(wantValues, slices.Collect(m.Values())); diff != "" {
			t.Errorf("%s: unexpected values (-want +got):\n%s", test.desc, diff)
		}
	}
}

func TestClone(t *testing.T) {
	m := ordered.NewMap[string, int]()
	m.Store("lower", 0)
	m.Store("upper", 8)
	c := m.Clone()
	c.Store("step", 2)
	c.Delete("lower")
	if !m.Has("lower") || m.Has("step") {
		t.Errorf("modifying a clone changed the original map: %v", m.KeySlice())
	}
	if diff := cmp.Diff([]string{"upper", "step"}, c.KeySlice()); diff != "" {
		t.Errorf("unexpected clone keys (-want +got):\n%s", diff)
	}
	if v, ok := c.Load("upper"); !ok || v != 8 {
		t.Errorf("clone Load(upper) = %d, %t but want 8, true", v, ok)
	}
}
