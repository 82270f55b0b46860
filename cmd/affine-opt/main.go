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

// Command affine-opt raises the loops, conditionals and memory accesses of
// a program to their affine counterparts.
//
// Usage:
//
//	affine-opt [file] --passes=llvm-to-affine-access,affine-cfg --legalize-symbols
//
// The program is read from file, or from the standard input if no file is
// given, and printed on the standard output after the last pass.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/term"

	"github.com/gx-org/affinecfg/ir/fmterr"
	"github.com/gx-org/affinecfg/ir/irparse"
	"github.com/gx-org/affinecfg/passes"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, in io.Reader, out, errOut io.Writer) int {
	cmd := newRootCmd(in, out, errOut)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		report(errOut, err)
		return 1
	}
	return 0
}

type flags struct {
	passes          []string
	config          string
	legalizeSymbols bool
	maxIterations   int
	verbose         bool
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "affine-opt [file]",
		Short: "affine-opt raises structured control flow and memory accesses to affine operations",
		Long: `affine-opt raises scf loops and conditionals whose bounds and conditions are
affine into affine loops and conditionals, and LLVM pointer accesses whose
addresses are affine into affine memory accesses.

Available passes: ` + strings.Join(passes.Names(), ", "),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.SetOutput(errOut)
			if f.verbose {
				log.SetLevel(log.DebugLevel)
			}
			cfg, err := f.configure(cmd)
			if err != nil {
				return err
			}
			name, src, err := readInput(args, in)
			if err != nil {
				return err
			}
			module, err := irparse.Parse(name, src)
			if err != nil {
				return err
			}
			pipeline, err := passes.Pipeline(append(cfg.Passes, passes.Print), cfg, out)
			if err != nil {
				return err
			}
			return passes.Run(module, pipeline)
		},
	}
	fl := cmd.Flags()
	fl.StringSliceVar(&f.passes, "passes", nil, "comma separated list of passes to run")
	fl.StringVar(&f.config, "config", "", "YAML configuration file")
	fl.BoolVar(&f.legalizeSymbols, "legalize-symbols", false, "insert affine scopes to legalize symbols")
	fl.IntVar(&f.maxIterations, "max-iterations", 0, "maximum number of sweeps of the rewrite driver (0: no bound)")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "increase logging verbosity")
	return cmd
}

// configure returns the configuration file, or the default configuration,
// overridden by the flags set on the command line.
func (f *flags) configure(cmd *cobra.Command) (passes.Config, error) {
	cfg := passes.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = passes.LoadConfig(f.config); err != nil {
			return passes.Config{}, err
		}
	}
	fl := cmd.Flags()
	if fl.Changed("passes") {
		cfg.Passes = f.passes
	}
	if fl.Changed("legalize-symbols") {
		cfg.LegalizeSymbols = f.legalizeSymbols
	}
	if fl.Changed("max-iterations") {
		cfg.MaxIterations = f.maxIterations
	}
	return cfg, cfg.Validate()
}

func readInput(args []string, in io.Reader) (name, src string, err error) {
	name = "<stdin>"
	var data []byte
	if len(args) == 1 {
		name = args[0]
		data, err = os.ReadFile(name)
	} else {
		data, err = io.ReadAll(in)
	}
	if err != nil {
		return "", "", errors.Wrapf(err, "cannot read %s", name)
	}
	return name, string(data), nil
}

const (
	red   = "\x1b[31m"
	reset = "\x1b[0m"
)

// report writes every error of err on w, in color if w is a terminal.
// Internal errors come with their stack trace in debug mode.
func report(w io.Writer, err error) {
	prefix := "error: "
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		prefix = red + prefix + reset
	}
	for _, e := range multierr.Errors(err) {
		fmt.Fprintf(w, "%s%v\n", prefix, e)
		if !fmterr.IsInternal(e) || !log.IsLevelEnabled(log.DebugLevel) {
			continue
		}
		if st := fmterr.StackTrace(e); st != "" {
			fmt.Fprintf(w, "stack trace:%s\n", st)
		}
	}
}
