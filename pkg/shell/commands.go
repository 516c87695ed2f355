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
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"

	"chainguard.dev/vfsh/pkg/identity"
	"chainguard.dev/vfsh/pkg/session"
	"chainguard.dev/vfsh/pkg/vfs"
)

// Command is a shell builtin.
type Command interface {
	Name() string
	// Usage is the one-line synopsis shown by help.
	Usage() string
	Run(ctx context.Context, sh *Shell, args []string) (string, error)
}

var commands = map[string]Command{}

func register(cmds ...Command) {
	for _, c := range cmds {
		if _, dup := commands[c.Name()]; dup {
			panic("shell: duplicate command " + c.Name())
		}
		commands[c.Name()] = c
	}
}

func init() {
	register(
		pwdCommand{},
		cdCommand{},
		echoCommand{},
		historyCommand{},
		exitCommand{},
		helpCommand{},
		mkdirCommand{},
		touchCommand{},
		rmCommand{},
		lnCommand{},
		catCommand{},
		lsCommand{},
		whoamiCommand{},
		suCommand{},
		useraddCommand{},
		getentCommand{},
	)
}

// Lookup finds a builtin by name.
func Lookup(name string) (Command, bool) {
	c, ok := commands[name]
	return c, ok
}

// Names lists every builtin in lexical order.
func Names() []string {
	return slices.Sorted(maps.Keys(commands))
}

// usageError reports a command invoked with unusable arguments.
func usageError(cmd, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", cmd, ErrUsage, fmt.Sprintf(format, args...))
}

// parseFlags parses args with a flag set configured by define. Combined
// short flags (-rf) are accepted.
func parseFlags(cmd string, args []string, define func(*pflag.FlagSet)) ([]string, error) {
	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false
	define(fs)
	if err := fs.Parse(args); err != nil {
		return nil, usageError(cmd, "%v", err)
	}
	return fs.Args(), nil
}

// describe maps a filesystem error to the message a shell prints for it.
// It reports false for errors that are not user-facing.
func describe(err error) (string, bool) {
	switch {
	case vfs.IsInternal(err):
		return "", false
	case errors.Is(err, vfs.ErrEntryAlreadyExists):
		return "File exists", true
	case errors.Is(err, vfs.ErrEntryNotFound), errors.Is(err, vfs.ErrDirectoryNotFound):
		return "No such file or directory", true
	case errors.Is(err, vfs.ErrNotADirectory):
		return "Not a directory", true
	case errors.Is(err, vfs.ErrTooManyLinks):
		return "Too many levels of symbolic links", true
	case errors.Is(err, vfs.ErrIncorrectPath):
		return "Invalid argument", true
	case errors.Is(err, session.ErrPreviousWorkingDirectoryDoesNotExist):
		return "No such file or directory", true
	case errors.Is(err, identity.ErrUserNotFound):
		return "No such user", true
	default:
		return "", false
	}
}

// report collects the per-argument failures of a command. Each failure is
// rendered on its own line.
type report struct {
	cmd    string
	errs   *multierror.Error
	output []string
}

func newReport(cmd string) *report {
	return &report{cmd: cmd}
}

// failf records a message printed as "cmd: message".
func (r *report) failf(format string, args ...any) {
	r.errs = multierror.Append(r.errs, fmt.Errorf("%s: "+format, append([]any{r.cmd}, args...)...))
}

// fail records err when it is user-facing and returns it otherwise.
func (r *report) fail(err error, format string, args ...any) error {
	msg, ok := describe(err)
	if !ok {
		return err
	}
	r.failf(format+": %s", append(args, msg)...)
	return nil
}

func (r *report) print(line string) {
	r.output = append(r.output, line)
}

// String puts the failures first, followed by the regular output.
func (r *report) String() string {
	var lines []string
	if r.errs != nil {
		r.errs.ErrorFormat = func(errs []error) string {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, e.Error())
			}
			return strings.Join(msgs, "\n")
		}
		lines = append(lines, r.errs.Error())
	}
	lines = append(lines, r.output...)
	return strings.Join(lines, "\n")
}

