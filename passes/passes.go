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

// Package passes assembles the raising patterns into passes over a program.
package passes

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/gx-org/affinecfg/internal/access"
	"github.com/gx-org/affinecfg/internal/raise"
	"github.com/gx-org/affinecfg/ir"
	"github.com/gx-org/affinecfg/rewrite"
)

// Names of the passes.
const (
	AffineCFG          = "affine-cfg"
	LLVMToAffineAccess = "llvm-to-affine-access"
	Print              = "print"
)

// Pass transforms a program in place.
type Pass struct {
	Name string
	Run  func(root *ir.Operation) error
}

var registry = map[string]func(cfg Config, out io.Writer) Pass{
	AffineCFG:          affineCFG,
	LLVMToAffineAccess: llvmToAffineAccess,
	Print:              printer,
}

// Names returns the names of the passes, sorted.
func Names() []string {
	var names []string
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Pipeline returns the passes of a list of names.
// Passes printing the program write to out.
func Pipeline(names []string, cfg Config, out io.Writer) ([]Pass, error) {
	var (
		pipeline []Pass
		errs     error
	)
	for _, name := range names {
		name = strings.TrimSpace(name)
		build, ok := registry[name]
		if !ok {
			errs = multierr.Append(errs, errors.Errorf("unknown pass %q: available passes are %s", name, strings.Join(Names(), ", ")))
			continue
		}
		pipeline = append(pipeline, build(cfg, out))
	}
	if errs != nil {
		return nil, errs
	}
	return pipeline, nil
}

// Run the passes of a pipeline in order.
// The program is verified after each pass.
func Run(root *ir.Operation, pipeline []Pass) error {
	for _, p := range pipeline {
		log.Debugf("running pass %s", p.Name)
		if err := p.Run(root); err != nil {
			return errors.WithMessagef(err, "pass %s", p.Name)
		}
		if err := ir.Verify(root); err != nil {
			return errors.WithMessagef(err, "invalid program after pass %s", p.Name)
		}
	}
	return nil
}

func apply(root *ir.Operation, patterns []rewrite.Pattern, cfg Config) error {
	converged, err := rewrite.Apply(root, patterns, cfg.Rewrite())
	if err != nil {
		return err
	}
	if !converged {
		log.Debugf("rewrite driver stopped before a fixpoint")
	}
	return nil
}

func affineCFG(cfg Config, _ io.Writer) Pass {
	patterns := raise.Patterns(raise.Options{LegalizeSymbols: cfg.LegalizeSymbols})
	return Pass{
		Name: AffineCFG,
		Run: func(root *ir.Operation) error {
			return apply(root, patterns, cfg)
		},
	}
}

func llvmToAffineAccess(cfg Config, _ io.Writer) Pass {
	l := cfg.Layout()
	return Pass{
		Name: LLVMToAffineAccess,
		Run: func(root *ir.Operation) error {
			if err := access.Convert(rewrite.NewRewriter(nil), root, l, cfg.LegalizeSymbols); err != nil {
				return err
			}
			return apply(root, access.Patterns(l), cfg)
		},
	}
}

func printer(_ Config, out io.Writer) Pass {
	return Pass{
		Name: Print,
		Run: func(root *ir.Operation) error {
			_, err := fmt.Fprint(out, root.String())
			return err
		},
	}
}
