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

// Package fmterr provides helpers to format errors given a position in
// a source file and to mark errors as internal.
package fmterr

import (
	"fmt"
	"runtime/debug"

	"github.com/pkg/errors"
)

type (
	// Pos is a position in a source file.
	// The zero value is an unknown position.
	Pos struct {
		File      string
		Line, Col int
	}

	// ErrorWithPos is an error attached to a position in a source file.
	ErrorWithPos interface {
		error
		Pos() Pos
		Err() error
	}

	errorWithPos struct {
		pos Pos
		err error
	}
)

// IsValid returns true if the position is known.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

func (p Pos) String() string {
	if !p.IsValid() {
		if p.File == "" {
			return "-"
		}
		return p.File
	}
	file := p.File
	if file == "" {
		file = "<input>"
	}
	if p.Col == 0 {
		return fmt.Sprintf("%s:%d", file, p.Line)
	}
	return fmt.Sprintf("%s:%d:%d", file, p.Line, p.Col)
}

// Position adds position information to an error.
func Position(pos Pos, err error) ErrorWithPos {
	return errorWithPos{pos: pos, err: err}
}

// Errorf returns a formatted error at a position.
func Errorf(pos Pos, format string, a ...any) error {
	return Position(pos, errors.Errorf(format, a...))
}

// Error returns a string description of the error.
func (err errorWithPos) Error() (s string) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s = fmt.Sprintf("recovered from panic when building error message: %T:\n%v", err.err, string(debug.Stack()))
	}()
	if !err.pos.IsValid() {
		return err.err.Error()
	}
	return err.pos.String() + ": " + err.err.Error()
}

// Unwrap the error.
func (err errorWithPos) Unwrap() error {
	return err.err
}

// Format writes the error into the state of the formatter.
func (err errorWithPos) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}

func (err errorWithPos) Pos() Pos {
	return err.pos
}

func (err errorWithPos) Err() error {
	return err.err
}
