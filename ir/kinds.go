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

// Kind of an operation.
type Kind int

// Operation kinds.
const (
	Invalid Kind = iota

	Module
	FuncFunc
	FuncReturn
	FuncCall

	ArithConstant
	ArithAddI
	ArithSubI
	ArithMulI
	ArithDivSI
	ArithDivUI
	ArithRemSI
	ArithRemUI
	ArithShLI
	ArithShRUI
	ArithShRSI
	ArithAndI
	ArithOrI
	ArithXOrI
	ArithCmpI
	ArithSelect
	ArithIndexCast
	ArithIndexCastUI
	ArithTruncI
	ArithExtSI
	ArithExtUI

	SCFFor
	SCFIf
	SCFParallel
	SCFYield
	SCFReduce

	AffineApply
	AffineFor
	AffineIf
	AffineParallel
	AffineLoad
	AffineStore
	AffineVectorLoad
	AffineVectorStore
	AffineYield
	AffineScope

	MemRefLoad
	MemRefStore
	MemRefAlloca

	PtrToMemRef
	PtrFromMemRef

	LLVMLoad
	LLVMStore
	LLVMGEP
	LLVMAddrSpaceCast
	LLVMAlloca
	LLVMBitcast

	numKinds
)

// Trait is a static property of an operation kind.
type Trait uint32

// Operation traits.
const (
	// Terminator ends a block.
	Terminator Trait = 1 << iota
	// HasAffineScope marks operations whose regions start a new affine scope:
	// values defined directly in their regions are valid symbols.
	HasAffineScope
	// IsolatedFromAbove operations cannot use values defined outside of their regions.
	IsolatedFromAbove
	// FunctionLike operations define a function.
	FunctionLike
	// ConstantLike operations materialize a constant attribute.
	ConstantLike
	// RecursiveEffects operations have the effects of the operations they contain.
	RecursiveEffects
)

// Effect is a set of memory effects.
type Effect uint8

// Memory effects.
const (
	EffectRead Effect = 1 << iota
	EffectWrite
	EffectAlloc
	// EffectUnknown means the operation may have any effect.
	EffectUnknown
)

// OpInfo is the static description of an operation kind.
type OpInfo struct {
	Name    string
	Traits  Trait
	Effects Effect
}

var opInfos = [numKinds]OpInfo{
	Invalid: {Name: "invalid", Effects: EffectUnknown},

	Module:     {Name: "builtin.module", Traits: HasAffineScope | IsolatedFromAbove},
	FuncFunc:   {Name: "func.func", Traits: HasAffineScope | IsolatedFromAbove | FunctionLike},
	FuncReturn: {Name: "func.return", Traits: Terminator},
	FuncCall:   {Name: "func.call", Effects: EffectUnknown},

	ArithConstant:    {Name: "arith.constant", Traits: ConstantLike},
	ArithAddI:        {Name: "arith.addi"},
	ArithSubI:        {Name: "arith.subi"},
	ArithMulI:        {Name: "arith.muli"},
	ArithDivSI:       {Name: "arith.divsi"},
	ArithDivUI:       {Name: "arith.divui"},
	ArithRemSI:       {Name: "arith.remsi"},
	ArithRemUI:       {Name: "arith.remui"},
	ArithShLI:        {Name: "arith.shli"},
	ArithShRUI:       {Name: "arith.shrui"},
	ArithShRSI:       {Name: "arith.shrsi"},
	ArithAndI:        {Name: "arith.andi"},
	ArithOrI:         {Name: "arith.ori"},
	ArithXOrI:        {Name: "arith.xori"},
	ArithCmpI:        {Name: "arith.cmpi"},
	ArithSelect:      {Name: "arith.select"},
	ArithIndexCast:   {Name: "arith.index_cast"},
	ArithIndexCastUI: {Name: "arith.index_castui"},
	ArithTruncI:      {Name: "arith.trunci"},
	ArithExtSI:       {Name: "arith.extsi"},
	ArithExtUI:       {Name: "arith.extui"},

	SCFFor:      {Name: "scf.for", Traits: RecursiveEffects},
	SCFIf:       {Name: "scf.if", Traits: RecursiveEffects},
	SCFParallel: {Name: "scf.parallel", Traits: RecursiveEffects},
	SCFYield:    {Name: "scf.yield", Traits: Terminator},
	SCFReduce:   {Name: "scf.reduce", Traits: Terminator},

	AffineApply:       {Name: "affine.apply"},
	AffineFor:         {Name: "affine.for", Traits: RecursiveEffects},
	AffineIf:          {Name: "affine.if", Traits: RecursiveEffects},
	AffineParallel:    {Name: "affine.parallel", Traits: RecursiveEffects},
	AffineLoad:        {Name: "affine.load", Effects: EffectRead},
	AffineStore:       {Name: "affine.store", Effects: EffectWrite},
	AffineVectorLoad:  {Name: "affine.vector_load", Effects: EffectRead},
	AffineVectorStore: {Name: "affine.vector_store", Effects: EffectWrite},
	AffineYield:       {Name: "affine.yield", Traits: Terminator},
	AffineScope:       {Name: "affine.scope", Traits: HasAffineScope | RecursiveEffects},

	MemRefLoad:   {Name: "memref.load", Effects: EffectRead},
	MemRefStore:  {Name: "memref.store", Effects: EffectWrite},
	MemRefAlloca: {Name: "memref.alloca", Effects: EffectAlloc},

	PtrToMemRef:   {Name: "ptr.to_memref"},
	PtrFromMemRef: {Name: "ptr.from_memref"},

	LLVMLoad:          {Name: "llvm.load", Effects: EffectRead},
	LLVMStore:         {Name: "llvm.store", Effects: EffectWrite},
	LLVMGEP:           {Name: "llvm.getelementptr"},
	LLVMAddrSpaceCast: {Name: "llvm.addrspacecast"},
	LLVMAlloca:        {Name: "llvm.alloca", Effects: EffectAlloc},
	LLVMBitcast:       {Name: "llvm.bitcast"},
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for k := Invalid + 1; k < numKinds; k++ {
		m[opInfos[k].Name] = k
	}
	return m
}()

// Info returns the static description of a kind.
func (k Kind) Info() OpInfo {
	if k <= Invalid || k >= numKinds {
		return opInfos[Invalid]
	}
	return opInfos[k]
}

func (k Kind) String() string {
	return k.Info().Name
}

// HasTrait returns true if the kind has all the given traits.
func (k Kind) HasTrait(t Trait) bool {
	return k.Info().Traits&t == t
}

// KindByName returns the kind of an operation given its name.
func KindByName(name string) (Kind, bool) {
	k, ok := kindByName[name]
	return k, ok
}
