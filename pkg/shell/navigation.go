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

package shell

import (
	"context"
	"errors"

	"chainguard.dev/vfsh/pkg/paths"
	"chainguard.dev/vfsh/pkg/session"
)

type pwdCommand struct{}

func (pwdCommand) Name() string  { return "pwd" }
func (pwdCommand) Usage() string { return "pwd" }

func (pwdCommand) Run(_ context.Context, sh *Shell, _ []string) (string, error) {
	return sh.session.CurrentWorkingDirectory(), nil
}

type cdCommand struct{}

func (cdCommand) Name() string  { return "cd" }
func (cdCommand) Usage() string { return "cd [dir|-|~]" }

func (cdCommand) Run(_ context.Context, sh *Shell, args []string) (string, error) {
	r := newReport("cd")

	target := paths.Home
	switch len(args) {
	case 0:
	case 1:
		target = args[0]
	default:
		r.failf("too many arguments")
		return r.String(), nil
	}

	err := sh.session.ChangeDirectory(target)
	switch {
	case err == nil && target == paths.Previous:
		// cd - prints the directory it switched to
		r.print(sh.session.CurrentWorkingDirectory())
	case err == nil:
	case errors.Is(err, session.ErrNoPreviousWorkingDirectory):
		r.failf("OLDPWD not set")
	case errors.Is(err, session.ErrPreviousWorkingDirectoryDoesNotExist):
		prev, _ := sh.session.PreviousWorkingDirectory()
		if err := r.fail(err, "%s", prev); err != nil {
			return "", err
		}
	default:
		if err := r.fail(err, "%s", target); err != nil {
			return "", err
		}
	}
	return r.String(), nil
}
