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

package exprbuild

import (
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/rewrite"
)

// IndexConverter converts integer operands of affine operations to the index type.
// A value is converted at most once.
type IndexConverter struct {
	rw    *rewrite.Rewriter
	casts map[*ir.Value]*ir.Value
}

// NewIndexConverter returns a converter creating index casts with rw.
func NewIndexConverter(rw *rewrite.Rewriter) *IndexConverter {
	return &IndexConverter{rw: rw, casts: make(map[*ir.Value]*ir.Value)}
}

// Convert returns v if it is of index type, or an index cast of v
// inserted right after its definition.
func (c *IndexConverter) Convert(v *ir.Value) *ir.Value {
	if ir.IsIndex(v.Type()) {
		return v
	}
	if cast, ok := c.casts[v]; ok {
		return cast
	}
	ip := c.rw.InsertionPoint()
	c.rw.SetInsertionPointAfterValue(v)
	cast := c.rw.IndexCast(v, ir.Index)
	c.rw.RestoreInsertionPoint(ip)
	c.casts[v] = cast
	return cast
}

// ConvertAll converts a list of values.
func (c *IndexConverter) ConvertAll(vs []*ir.Value) []*ir.Value {
	r := make([]*ir.Value, len(vs))
	for i, v := range vs {
		r[i] = c.Convert(v)
	}
	return r
}
