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
	"io/fs"
	"path"
	"strings"

	"github.com/spf13/pflag"
)

type mkdirCommand struct{}

func (mkdirCommand) Name() string  { return "mkdir" }
func (mkdirCommand) Usage() string { return "mkdir [-p] dir..." }

func (mkdirCommand) Run(_ context.Context, sh *Shell, args []string) (string, error) {
	var parents bool
	dirs, err := parseFlags("mkdir", args, func(flags *pflag.FlagSet) {
		flags.BoolVarP(&parents, "parents", "p", false, "create missing parent directories")
	})
	if err != nil {
		return "", err
	}
	if len(dirs) == 0 {
		return "", usageError("mkdir", "missing operand")
	}

	r := newReport("mkdir")
	for _, dir := range dirs {
		if parents {
			_, err = sh.session.MkdirAll(dir)
		} else {
			_, err = sh.session.CreateDirectory(dir)
		}
		if err == nil {
			continue
		}
		if err := r.fail(err, "cannot create directory '%s'", dir); err != nil {
			return "", err
		}
	}
	return r.String(), nil
}

type touchCommand struct{}

func (touchCommand) Name() string  { return "touch" }
func (touchCommand) Usage() string { return "touch file..." }

// Run updates the modification time of existing entries, following links,
// and creates the missing ones as empty files.
func (touchCommand) Run(_ context.Context, sh *Shell, args []string) (string, error) {
	if len(args) == 0 {
		return "", usageError("touch", "missing file operand")
	}

	r := newReport("touch")
	for _, p := range args {
		n, err := sh.session.Stat(p)
		if err == nil {
			n.Touch(sh.repo().Now())
			continue
		}
		if errors.Is(err, fs.ErrNotExist) {
			_, err = sh.session.CreateFile(p)
		}
		if err == nil {
			continue
		}
		if err := r.fail(err, "cannot touch '%s'", p); err != nil {
			return "", err
		}
	}
	return r.String(), nil
}

type rmCommand struct{}

func (rmCommand) Name() string  { return "rm" }
func (rmCommand) Usage() string { return "rm [-r] [-f] path..." }

// Run removes entries without following a final link. Directories need -r;
// -f silences missing entries.
func (rmCommand) Run(_ context.Context, sh *Shell, args []string) (string, error) {
	var recursive, force bool
	targets, err := parseFlags("rm", args, func(flags *pflag.FlagSet) {
		flags.BoolVarP(&recursive, "recursive", "r", false, "remove directories and their contents")
		flags.BoolVarP(&force, "force", "f", false, "ignore nonexistent files")
	})
	if err != nil {
		return "", err
	}
	if len(targets) == 0 {
		if force {
			return "", nil
		}
		return "", usageError("rm", "missing operand")
	}

	r := newReport("rm")
	for _, p := range targets {
		if base := path.Base(p); base == "." || base == ".." {
			r.failf("refusing to remove '.' or '..' directory: skipping '%s'", p)
			continue
		}
		if path.Clean(sh.session.ResolvePath(p)) == "/" {
			r.failf("it is dangerous to operate recursively on '/'")
			continue
		}

		n, ok := sh.session.FindInode(p)
		if !ok {
			if !force {
				r.failf("cannot remove '%s': No such file or directory", p)
			}
			continue
		}
		if n.IsDir() && !recursive {
			r.failf("cannot remove '%s': Is a directory", p)
			continue
		}

		err := sh.session.RemoveFile(p)
		if err == nil || (force && errors.Is(err, fs.ErrNotExist)) {
			continue
		}
		if err := r.fail(err, "cannot remove '%s'", p); err != nil {
			return "", err
		}
	}
	return r.String(), nil
}

type lnCommand struct{}

func (lnCommand) Name() string  { return "ln" }
func (lnCommand) Usage() string { return "ln -s target link" }

func (lnCommand) Run(_ context.Context, sh *Shell, args []string) (string, error) {
	var symbolic bool
	operands, err := parseFlags("ln", args, func(flags *pflag.FlagSet) {
		flags.BoolVarP(&symbolic, "symbolic", "s", false, "make symbolic links")
	})
	if err != nil {
		return "", err
	}
	if !symbolic {
		return "", usageError("ln", "only symbolic links are supported, use -s")
	}
	if len(operands) != 2 {
		return "", usageError("ln", "expected a target and a link name")
	}

	target, link := operands[0], operands[1]
	// a link placed into an existing directory keeps the target's base name
	if n, err := sh.session.Stat(link); err == nil && n.IsDir() {
		link = path.Join(link, path.Base(target))
	}

	r := newReport("ln")
	if _, err := sh.session.CreateSymlink(target, link); err != nil {
		if err := r.fail(err, "failed to create symbolic link '%s'", link); err != nil {
			return "", err
		}
	}
	return r.String(), nil
}

type catCommand struct{}

func (catCommand) Name() string  { return "cat" }
func (catCommand) Usage() string { return "cat file..." }

// Run prints file payloads, following links. A single trailing newline of
// each payload is dropped since every output line is newline-terminated.
func (catCommand) Run(_ context.Context, sh *Shell, args []string) (string, error) {
	if len(args) == 0 {
		return "", usageError("cat", "missing file operand")
	}

	r := newReport("cat")
	for _, p := range args {
		n, err := sh.session.Stat(p)
		if err != nil {
			if err := r.fail(err, "%s", p); err != nil {
				return "", err
			}
			continue
		}
		data, ok := n.Data()
		if !ok {
			r.failf("%s: Is a directory", p)
			continue
		}
		if len(data) > 0 {
			r.print(strings.TrimSuffix(string(data), "\n"))
		}
	}
	return r.String(), nil
}
