// Copyright 2025 Chainguard, Inc.
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

package vfs

import (
	"errors"
	"fmt"
	"io/fs"
)

// Sentinel errors reported by the filesystem engine. Operations attach the
// offending path or name by wrapping them in an *fs.PathError, so callers
// should match with errors.Is.
var (
	ErrEntryAlreadyExists error = &kindError{msg: "file exists", is: fs.ErrExist}
	ErrEntryNotFound      error = &kindError{msg: "no such file or directory", is: fs.ErrNotExist}
	ErrDirectoryNotFound  error = &kindError{msg: "no such directory", is: fs.ErrNotExist}

	ErrNotADirectory       = errors.New("not a directory")
	ErrIncorrectPath       = errors.New("incorrect path")
	ErrFailedToGetParent   = errors.New("failed to get parent")
	ErrEmptyNameWithParent = errors.New("inode with a parent must have a name")
	ErrTooManyLinks        = errors.New("too many levels of symbolic links")

	// ErrInternal marks a broken invariant. It is never expected in correct
	// operation and should be treated as a bug rather than a user error.
	ErrInternal = errors.New("internal error")
)

// kindError is a sentinel that also matches a generic io/fs error.
type kindError struct {
	msg string
	is  error
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.is }

func pathError(op, path string, err error) error {
	return &fs.PathError{Op: op, Path: path, Err: err}
}

func internalError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}

// IsInternal reports whether err signals a broken invariant.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}
