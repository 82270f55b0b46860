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

// Package uname provides unique names.
package uname

import "fmt"

// Unique generates unique names.
// Names returned by Name and Counter share the same namespace.
type Unique struct {
	names map[string]int
	taken map[string]bool
}

// New name generator.
func New() *Unique {
	return &Unique{
		names: make(map[string]int),
		taken: make(map[string]bool),
	}
}

// Name returns a unique name given a desired base name.
// If the base name is available, it is returned directly. Else, a unique suffix is appended.
func (n *Unique) Name(root string) string {
	if _, ok := n.names[root]; !ok && !n.taken[root] {
		n.names[root] = 1
		n.taken[root] = true
		return root
	}
	for {
		nextIndex := n.names[root]
		n.names[root] = nextIndex + 1
		name := fmt.Sprintf("%s%d", root, nextIndex)
		if nextIndex == 0 {
			name = fmt.Sprintf("%s_0", root)
		}
		if !n.taken[name] {
			n.taken[name] = true
			return name
		}
	}
}

// Counter returns the next free name of the form prefix followed by an integer.
// The sequence starts at 0.
func (n *Unique) Counter(prefix string) string {
	for {
		next := n.names[prefix]
		n.names[prefix] = next + 1
		name := fmt.Sprintf("%s%d", prefix, next)
		if !n.taken[name] {
			n.taken[name] = true
			return name
		}
	}
}
