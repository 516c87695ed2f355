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

// Package shell executes command lines against a session: it splits a line
// into words, dispatches to a builtin and returns the builtin's output.
package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/chainguard-dev/clog"
	"github.com/google/shlex"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chainguard.dev/vfsh/pkg/session"
	"chainguard.dev/vfsh/pkg/vfs"
)

var (
	ErrShellNotActive = errors.New("shell is not active")
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrParse          = errors.New("failed to parse command")
	ErrUsage          = errors.New("usage")
)

const defaultHostname = "vfsh"

type Shell struct {
	session  *session.Session
	hostname string
	active   atomic.Bool
}

type Option func(*Shell)

// WithHostname sets the host name shown by prompts.
func WithHostname(name string) Option {
	return func(sh *Shell) {
		sh.hostname = name
	}
}

// New returns an active shell driving s.
func New(s *session.Session, opts ...Option) *Shell {
	sh := &Shell{session: s, hostname: defaultHostname}
	for _, opt := range opts {
		opt(sh)
	}
	sh.active.Store(true)
	return sh
}

// NewWithUser creates a fresh repository holding the user name and returns
// a shell logged in as that user, in its home directory.
func NewWithUser(name string, opts ...Option) (*Shell, error) {
	repo := vfs.NewRepository()
	uid, err := repo.AddUser(name)
	if err != nil {
		return nil, fmt.Errorf("adding user %q: %w", name, err)
	}
	s, err := session.New(repo, uid)
	if err != nil {
		return nil, err
	}
	return New(s, opts...), nil
}

func (sh *Shell) Session() *session.Session { return sh.session }

func (sh *Shell) Hostname() string { return sh.hostname }

// Active is false once exit has run.
func (sh *Shell) Active() bool { return sh.active.Load() }

func (sh *Shell) repo() *vfs.Repository { return sh.session.Repository() }

// Execute runs one command line. The returned string is what the command
// prints, including the per-argument failure messages a shell would show.
// An error is returned when the line cannot be run at all, on usage errors
// and on internal failures.
func (sh *Shell) Execute(ctx context.Context, line string) (string, error) {
	if !sh.Active() {
		return "", ErrShellNotActive
	}
	if strings.TrimSpace(line) == "" {
		return "", ErrEmptyCommand
	}

	words, err := shlex.Split(line)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrParse, err)
	}
	if len(words) == 0 {
		return "", ErrEmptyCommand
	}

	cmd, ok := Lookup(words[0])
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, words[0])
	}

	ctx, span := otel.Tracer("vfsh").Start(ctx, cmd.Name(), trace.WithAttributes(
		attribute.String("session", sh.session.ID()),
		attribute.Int("args", len(words)-1),
	))
	defer span.End()

	log := clog.FromContext(ctx).With("session", sh.session.ID())
	log.Debugf("running %s %q", cmd.Name(), words[1:])

	sh.session.AddToHistory(cmd.Name())

	out, err := cmd.Run(ctx, sh, words[1:])
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	return out, nil
}

// Prompt expands {user}, {host} and {cwd} in format. The working directory
// is shown relative to "~" when it lies inside the user's home.
func (sh *Shell) Prompt(format string) string {
	name := "?"
	if u, ok := sh.repo().GetUser(sh.session.User()); ok {
		name = u.Name
	}

	cwd := sh.session.CurrentWorkingDirectory()
	if home := sh.session.HomeDirectory(); home != "/" {
		switch {
		case cwd == home:
			cwd = "~"
		case strings.HasPrefix(cwd, home+"/"):
			cwd = "~" + strings.TrimPrefix(cwd, home)
		}
	}

	return strings.NewReplacer(
		"{user}", name,
		"{host}", sh.hostname,
		"{cwd}", cwd,
	).Replace(format)
}
