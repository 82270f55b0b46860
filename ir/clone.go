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

package ir

// Mapping maps values and blocks of an original program to their clones.
type Mapping struct {
	values map[*Value]*Value
	blocks map[*Block]*Block
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{
		values: make(map[*Value]*Value),
		blocks: make(map[*Block]*Block),
	}
}

// Map records that from is replaced by to.
func (m *Mapping) Map(from, to *Value) {
	m.values[from] = to
}

// Lookup returns the value mapped to v or v itself if it has not been mapped.
func (m *Mapping) Lookup(v *Value) *Value {
	if to, ok := m.values[v]; ok {
		return to
	}
	return v
}

// Contains returns true if v has been mapped.
func (m *Mapping) Contains(v *Value) bool {
	_, ok := m.values[v]
	return ok
}

// Clone returns a deep copy of the operation, not inserted in any block.
// Operands are remapped with m. Results and nested values are added to m.
func (op *Operation) Clone(m *Mapping) *Operation {
	operands := make([]*Value, len(op.operands))
	for i, v := range op.operands {
		operands[i] = m.Lookup(v)
	}
	c := NewOp(op.kind, operands, op.ResultTypes(), len(op.regions))
	c.Pos = op.Pos
	c.attrs = op.attrs.Clone()
	for i, r := range op.results {
		c.results[i].Name = r.Name
		m.Map(r, c.results[i])
	}
	for i, r := range op.regions {
		r.cloneInto(c.regions[i], m)
	}
	return c
}

// CloneWithoutRegions clones an operation keeping its regions empty.
func (op *Operation) CloneWithoutRegions(m *Mapping) *Operation {
	operands := make([]*Value, len(op.operands))
	for i, v := range op.operands {
		operands[i] = m.Lookup(v)
	}
	c := NewOp(op.kind, operands, op.ResultTypes(), len(op.regions))
	c.Pos = op.Pos
	c.attrs = op.attrs.Clone()
	for i, r := range op.results {
		m.Map(r, c.results[i])
	}
	return c
}

func (r *Region) cloneInto(dst *Region, m *Mapping) {
	// Create all the blocks first so that forward references can be remapped.
	for _, b := range r.blocks {
		nb := &Block{}
		for _, a := range b.args {
			na := nb.AddArg(a.typ)
			na.Name = a.Name
			m.Map(a, na)
		}
		m.blocks[b] = nb
		dst.AppendBlock(nb)
	}
	for _, b := range r.blocks {
		nb := m.blocks[b]
		for _, op := range b.ops {
			nb.Append(op.Clone(m))
		}
	}
}
