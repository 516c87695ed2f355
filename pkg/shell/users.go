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
	"strings"

	"chainguard.dev/vfsh/pkg/identity"
	"chainguard.dev/vfsh/pkg/vfs"
)

type whoamiCommand struct{}

func (whoamiCommand) Name() string  { return "whoami" }
func (whoamiCommand) Usage() string { return "whoami" }

func (whoamiCommand) Run(_ context.Context, sh *Shell, _ []string) (string, error) {
	return userName(sh.repo(), sh.session.User()), nil
}

type suCommand struct{}

func (suCommand) Name() string  { return "su" }
func (suCommand) Usage() string { return "su [user]" }

// Run switches the acting user, root by default. The working directory is
// kept.
func (suCommand) Run(_ context.Context, sh *Shell, args []string) (string, error) {
	name := "root"
	switch len(args) {
	case 0:
	case 1:
		name = args[0]
	default:
		return "", usageError("su", "too many arguments")
	}

	r := newReport("su")
	u, ok := sh.repo().Identities().UserByName(name)
	if !ok {
		r.failf("user %s does not exist", name)
		return r.String(), nil
	}
	if err := sh.session.ChangeUser(u.ID); err != nil {
		if err := r.fail(err, "%s", name); err != nil {
			return "", err
		}
	}
	return r.String(), nil
}

type useraddCommand struct{}

func (useraddCommand) Name() string  { return "useradd" }
func (useraddCommand) Usage() string { return "useradd name" }

// Run registers a user and creates its home directory.
func (useraddCommand) Run(_ context.Context, sh *Shell, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError("useradd", "expected exactly one user name")
	}
	name := args[0]

	r := newReport("useradd")
	_, err := sh.repo().AddUser(name)
	switch {
	case err == nil:
	case errors.Is(err, identity.ErrUserAlreadyExists):
		r.failf("user '%s' already exists", name)
	case errors.Is(err, identity.ErrGroupAlreadyExists):
		r.failf("group %s exists", name)
	case errors.Is(err, vfs.ErrIncorrectPath):
		r.failf("invalid user name '%s'", name)
	default:
		if err := r.fail(err, "cannot create directory %s", vfs.HomeRoot+"/"+name); err != nil {
			return "", err
		}
	}
	return r.String(), nil
}

type getentCommand struct{}

func (getentCommand) Name() string  { return "getent" }
func (getentCommand) Usage() string { return "getent passwd|group [key...]" }

// Run prints identity database entries. Keys match names or numeric ids;
// unknown keys print nothing.
func (getentCommand) Run(_ context.Context, sh *Shell, args []string) (string, error) {
	if len(args) == 0 {
		return "", usageError("getent", "missing database")
	}
	db, keys := args[0], args[1:]
	store := sh.repo().Identities()

	var buf strings.Builder
	switch db {
	case "passwd":
		uf := store.UserFile()
		uf.Filter(keys...)
		if err := uf.Write(&buf); err != nil {
			return "", err
		}
	case "group":
		gf := store.GroupFile()
		gf.Filter(keys...)
		if err := gf.Write(&buf); err != nil {
			return "", err
		}
	default:
		return "", usageError("getent", "unknown database: %s", db)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
