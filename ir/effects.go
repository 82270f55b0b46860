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

// Effects returns the memory effects of an operation, including the effects
// of nested operations for operations with recursive effects.
func (op *Operation) Effects() Effect {
	e := op.kind.Info().Effects
	if !op.HasTrait(RecursiveEffects) {
		return e
	}
	for _, r := range op.regions {
		for _, b := range r.blocks {
			for _, nested := range b.ops {
				e |= nested.Effects()
			}
		}
	}
	return e
}

// IsMemoryEffectFree returns true if the operation has no memory effect.
func (op *Operation) IsMemoryEffectFree() bool {
	return op.Effects() == 0
}

// WouldBeTriviallyDead returns true if the operation can be erased
// without changing the meaning of the program: none of its results is used
// and it has no effect beyond reading memory or allocating.
func WouldBeTriviallyDead(op *Operation) bool {
	if op.HasTrait(Terminator) || op.HasTrait(FunctionLike) || op.kind == Module {
		return false
	}
	if op.HasUses() {
		return false
	}
	return op.Effects()&(EffectWrite|EffectUnknown) == 0
}
