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

package ordered

// Positions assigns dense positions to keys.
// The first time a key is seen decides its position.
type Positions[K comparable] struct {
	pos  map[K]int
	keys []K
}

// NewPositions returns an empty position table.
func NewPositions[K comparable]() *Positions[K] {
	return &Positions[K]{pos: make(map[K]int)}
}

// Pos returns the position of a key, appending the key if it has never been seen.
func (p *Positions[K]) Pos(k K) int {
	if i, ok := p.pos[k]; ok {
		return i
	}
	i := len(p.keys)
	p.pos[k] = i
	p.keys = append(p.keys, k)
	return i
}

// Lookup returns the position of a key without inserting it.
func (p *Positions[K]) Lookup(k K) (int, bool) {
	i, ok := p.pos[k]
	return i, ok
}

// Len returns the number of keys in the table.
func (p *Positions[K]) Len() int {
	return len(p.keys)
}

// At returns the key at position i.
func (p *Positions[K]) At(i int) K {
	return p.keys[i]
}

// Keys returns a copy of the keys ordered by position.
func (p *Positions[K]) Keys() []K {
	return append([]K(nil), p.keys...)
}

// Set replaces the key stored at position i.
// The previous key is forgotten.
func (p *Positions[K]) Set(i int, k K) {
	delete(p.pos, p.keys[i])
	p.keys[i] = k
	p.pos[k] = i
}

// Truncate forgets every key at position n or after.
func (p *Positions[K]) Truncate(n int) {
	for _, k := range p.keys[n:] {
		delete(p.pos, k)
	}
	p.keys = p.keys[:n]
}
