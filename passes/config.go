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

package passes

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/gx-org/affinecfg/layout"
	"github.com/gx-org/affinecfg/rewrite"
)

// Config configures the passes.
type Config struct {
	// LegalizeSymbols inserts affine scopes to capture values which are not
	// valid affine symbols instead of giving up on the operations using them.
	LegalizeSymbols bool `yaml:"legalize_symbols"`
	// MaxIterations bounds the number of sweeps of the rewrite driver.
	MaxIterations int `yaml:"max_iterations"`
	// MaxRewrites bounds the number of rewrites of the rewrite driver.
	MaxRewrites int `yaml:"max_rewrites"`
	// PointerSize is the size of a pointer in bytes.
	PointerSize int64 `yaml:"pointer_size"`
	// IndexWidth is the width of the index type in bits.
	IndexWidth int `yaml:"index_width"`
	// Passes is the default pipeline.
	Passes []string `yaml:"passes"`
}

// DefaultConfig returns the configuration used when no configuration file is given.
func DefaultConfig() Config {
	l := layout.Default()
	return Config{
		MaxIterations: rewrite.DefaultConfig().MaxIterations,
		PointerSize:   l.PointerSize,
		IndexWidth:    l.IndexWidth,
		Passes:        []string{AffineCFG},
	}
}

// LoadConfig reads a YAML configuration file.
// Fields missing from the file keep their default value.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "cannot read configuration")
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrapf(err, "invalid configuration")
	}
	return cfg, cfg.Validate()
}

// Validate returns every inconsistency of the configuration.
func (c Config) Validate() error {
	var errs error
	if c.MaxIterations < 0 {
		errs = multierr.Append(errs, errors.Errorf("max_iterations must not be negative, got %d", c.MaxIterations))
	}
	if c.MaxRewrites < 0 {
		errs = multierr.Append(errs, errors.Errorf("max_rewrites must not be negative, got %d", c.MaxRewrites))
	}
	if c.PointerSize <= 0 {
		errs = multierr.Append(errs, errors.Errorf("pointer_size must be positive, got %d", c.PointerSize))
	}
	if c.IndexWidth <= 0 || c.IndexWidth%8 != 0 {
		errs = multierr.Append(errs, errors.Errorf("index_width must be a positive multiple of 8, got %d", c.IndexWidth))
	}
	for _, name := range c.Passes {
		if _, ok := registry[name]; !ok {
			errs = multierr.Append(errs, errors.Errorf("unknown pass %q", name))
		}
	}
	return errs
}

// Layout returns the data layout of the configuration.
func (c Config) Layout() layout.Layout {
	return layout.Layout{PointerSize: c.PointerSize, IndexWidth: c.IndexWidth}
}

// Rewrite returns the configuration of the rewrite driver.
func (c Config) Rewrite() rewrite.Config {
	return rewrite.Config{MaxIterations: c.MaxIterations, MaxRewrites: c.MaxRewrites}
}
