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

package fmterr

import (
	"fmt"

	"github.com/pkg/errors"
)

type internalError struct {
	err error
}

// Internal marks an error as internal, potentially adding additional information.
// Internal errors are contract violations in affinecfg itself,
// never an input the passes do not handle.
func Internal(err error) error {
	if err == nil || IsInternal(err) {
		return err
	}
	return internalError{err: err}
}

// Internalf returns a formatted internal error.
func Internalf(format string, a ...any) error {
	return Internal(errors.Errorf(format, a...))
}

// InternalAt returns a formatted internal error at a position.
func InternalAt(pos Pos, format string, a ...any) error {
	return Internal(Errorf(pos, format, a...))
}

// IsInternal returns true if an error in the chain has been marked as internal.
func IsInternal(err error) bool {
	var internal internalError
	return errors.As(err, &internal)
}

func (err internalError) Error() string {
	return fmt.Sprintf("affinecfg internal error. This is a bug in affinecfg. Please report it. Error:\n%+v", err.err)
}

func (err internalError) Unwrap() error {
	return err.err
}
