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

package rewrite

import (
	"github.com/gx-org/affinecfg/ir"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config bounds the work done by the driver.
type Config struct {
	// MaxIterations is the maximum number of sweeps over the program.
	// Zero means no bound.
	MaxIterations int
	// MaxRewrites is the maximum number of rewrites.
	// Zero means no bound.
	MaxRewrites int
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{MaxIterations: 10}
}

type driver struct {
	root     *ir.Operation
	byKind   map[ir.Kind][]Pattern
	generic  []Pattern
	worklist []*ir.Operation
	queued   map[*ir.Operation]bool
	erased   map[*ir.Operation]bool
}

var _ ir.Listener = (*driver)(nil)

// Apply runs patterns on the operations nested in root until none applies.
// Trivially dead operations are erased along the way.
// It returns false if the fixpoint has not been reached within the bounds of cfg.
func Apply(root *ir.Operation, patterns []Pattern, cfg Config) (bool, error) {
	d := &driver{
		root:   root,
		byKind: make(map[ir.Kind][]Pattern),
		queued: make(map[*ir.Operation]bool),
		erased: make(map[*ir.Operation]bool),
	}
	for _, p := range patterns {
		kinds := p.Kinds()
		if len(kinds) == 0 {
			d.generic = append(d.generic, p)
			continue
		}
		for _, k := range kinds {
			d.byKind[k] = append(d.byKind[k], p)
		}
	}
	rw := NewRewriter(d)
	numRewrites := 0
	for iter := 0; cfg.MaxIterations <= 0 || iter < cfg.MaxIterations; iter++ {
		root.PreWalk(func(op *ir.Operation) bool {
			if op != root {
				d.push(op)
			}
			return true
		})
		changed := false
		for len(d.worklist) > 0 {
			op := d.pop()
			if d.erased[op] || op.Block() == nil {
				continue
			}
			if ir.WouldBeTriviallyDead(op) {
				log.Debugf("erasing dead %s", op.Name())
				rw.EraseOp(op)
				changed = true
				continue
			}
			applied, err := d.apply(rw, op)
			if err != nil {
				return false, err
			}
			if !applied {
				continue
			}
			changed = true
			numRewrites++
			if cfg.MaxRewrites > 0 && numRewrites >= cfg.MaxRewrites {
				log.Warnf("rewrite driver stopped after %d rewrites", numRewrites)
				return false, nil
			}
		}
		if !changed {
			return true, nil
		}
	}
	log.Warnf("rewrite driver did not converge after %d iterations", cfg.MaxIterations)
	return false, nil
}

func (d *driver) apply(rw *Rewriter, op *ir.Operation) (bool, error) {
	name := op.Name()
	for _, p := range d.patterns(op.Kind()) {
		rw.SetInsertionPointBefore(op)
		rw.Pos = op.Pos
		applied, err := p.MatchAndRewrite(rw, op)
		if err != nil {
			return false, errors.WithMessagef(err, "pattern %s on %s", p.Name(), name)
		}
		if applied {
			log.Debugf("%s applied on %s", p.Name(), name)
			return true, nil
		}
	}
	return false, nil
}

func (d *driver) patterns(k ir.Kind) []Pattern {
	if len(d.generic) == 0 {
		return d.byKind[k]
	}
	return append(append([]Pattern(nil), d.byKind[k]...), d.generic...)
}

func (d *driver) push(op *ir.Operation) {
	if op == nil || op == d.root || d.queued[op] {
		return
	}
	d.queued[op] = true
	d.worklist = append(d.worklist, op)
}

func (d *driver) pop() *ir.Operation {
	op := d.worklist[0]
	d.worklist = d.worklist[1:]
	delete(d.queued, op)
	return op
}

// NotifyInserted queues a new operation.
func (d *driver) NotifyInserted(op *ir.Operation) {
	delete(d.erased, op)
	d.push(op)
}

// NotifyModified queues a modified operation.
func (d *driver) NotifyModified(op *ir.Operation) {
	d.push(op)
}

// NotifyErased queues the definitions of the operands, which may become dead.
func (d *driver) NotifyErased(op *ir.Operation) {
	d.erased[op] = true
	for _, v := range op.Operands() {
		if v != nil {
			d.push(v.DefiningOp())
		}
	}
}

// NotifyReplaced queues the users of the replaced results.
func (d *driver) NotifyReplaced(op *ir.Operation, _ []*ir.Value) {
	for _, r := range op.Results() {
		for _, u := range r.Users() {
			d.push(u)
		}
	}
}
