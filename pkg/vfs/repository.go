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

// Package vfs implements the in-memory filesystem engine behind the shell:
// the inode tree, its per-inode locking and the path-addressed repository
// that creates, finds and removes inodes.
//
// Every inode carries its own lock and a traversal holds at most one of them
// at a time: a directory is locked only long enough to read or change its
// child map. A multi-component lookup is therefore not a snapshot. A
// concurrent removal or creation between two steps may make a walk report a
// missing entry that existed moments earlier, or succeed against an entry
// that was just created. Single-directory mutations are atomic.
package vfs

import (
	"errors"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"chainguard.dev/vfsh/pkg/identity"
)

// HomeRoot is the directory holding every user's home directory.
const HomeRoot = "/home"

// Repository owns the root inode and the identity store. It is safe for use
// by many sessions at once.
type Repository struct {
	root       *Inode
	identities *identity.Store
	now        func() time.Time

	// serializes rendering and writing of the identity files
	syncMu sync.Mutex
}

// NewRepository returns a repository holding only the root directory, owned
// by the root user.
func NewRepository(opts ...Option) *Repository {
	r := &Repository{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.identities == nil {
		r.identities = identity.NewStore()
	}

	root, err := New("", NewDirectory(), NewMetadata(DefaultDirectoryPermissions, identity.RootUser, identity.RootGroup, r.now()), nil)
	if err != nil {
		// the root has no parent, so construction cannot fail
		panic(err)
	}
	r.root = root
	return r
}

func (r *Repository) Root() *Inode { return r.root }

func (r *Repository) Identities() *identity.Store { return r.identities }

// Now reads the repository clock.
func (r *Repository) Now() time.Time { return r.now() }

// CreateFile creates an empty (or WithData) file at the absolute path p.
func (r *Repository) CreateFile(p string, opts ...CreateOption) (*Inode, error) {
	o := buildCreateOptions(opts)
	return r.create("create", p, &File{Data: o.data}, o.permissions(DefaultFilePermissions), o)
}

// CreateDirectory creates an empty directory at the absolute path p. The
// parent must already exist.
func (r *Repository) CreateDirectory(p string, opts ...CreateOption) (*Inode, error) {
	o := buildCreateOptions(opts)
	return r.create("mkdir", p, NewDirectory(), o.permissions(DefaultDirectoryPermissions), o)
}

// CreateSymlink creates a link at the absolute path p pointing at target.
// The target is stored verbatim and is not required to exist.
func (r *Repository) CreateSymlink(target, p string, opts ...CreateOption) (*Inode, error) {
	o := buildCreateOptions(opts)
	return r.create("symlink", p, &Link{Target: target}, o.permissions(DefaultLinkPermissions), o)
}

func (r *Repository) create(op, p string, content Content, perms Permissions, o createOptions) (*Inode, error) {
	parent, leaf, err := r.parentOf(op, p)
	if err != nil {
		return nil, err
	}
	if leaf == "." || leaf == ".." {
		return nil, pathError(op, p, ErrEntryAlreadyExists)
	}

	child, err := parent.AddChild(leaf, content, NewMetadata(perms, o.owner, o.group, r.now()))
	if err != nil {
		return nil, rewrap(op, p, err)
	}
	return child, nil
}

// parentOf walks the prefix of p and returns the directory that holds its
// leaf, together with the leaf name.
func (r *Repository) parentOf(op, p string) (*Inode, string, error) {
	if !path.IsAbs(p) {
		return nil, "", pathError(op, p, ErrIncorrectPath)
	}
	dir, leaf := splitPath(p)
	if leaf == "" {
		return nil, "", pathError(op, p, ErrIncorrectPath)
	}

	chain, err := r.walk(op, dir, true, 0)
	if err != nil {
		var pe *fs.PathError
		if errors.As(err, &pe) && errors.Is(pe.Err, ErrEntryNotFound) {
			return nil, "", pathError(op, pe.Path, ErrDirectoryNotFound)
		}
		return nil, "", err
	}
	parent := chain[len(chain)-1]
	if parent.Kind() != KindDirectory {
		return nil, "", pathError(op, dir, ErrNotADirectory)
	}
	return parent, leaf, nil
}

// MkdirAll creates p and every missing directory above it. Existing
// directories, and links resolving to directories, are reused.
func (r *Repository) MkdirAll(p string, opts ...CreateOption) (*Inode, error) {
	if !path.IsAbs(p) {
		return nil, pathError("mkdir", p, ErrIncorrectPath)
	}
	o := buildCreateOptions(opts)

	cur := r.root
	built := "/"
	for _, c := range strings.Split(path.Clean(p), "/") {
		if c == "" {
			continue
		}
		built = path.Join(built, c)

		md := NewMetadata(o.permissions(DefaultDirectoryPermissions), o.owner, o.group, r.now())
		next, err := r.ensureDirectory(cur, c, md)
		if err != nil {
			return nil, rewrap("mkdir", built, err)
		}
		if next.Kind() == KindLink {
			if next, err = r.Stat(built); err != nil {
				return nil, err
			}
		}
		if next.Kind() != KindDirectory {
			return nil, pathError("mkdir", built, ErrNotADirectory)
		}
		cur = next
	}
	return cur, nil
}

// ensureDirectory returns the child called name, creating it as a directory
// when missing. Creation goes through AddChild so that concurrent callers
// never produce two entries.
func (r *Repository) ensureDirectory(parent *Inode, name string, md Metadata) (*Inode, error) {
	for {
		if child, ok := parent.FindChild(name); ok {
			return child, nil
		}
		child, err := parent.AddChild(name, NewDirectory(), md)
		if err == nil {
			return child, nil
		}
		if !errors.Is(err, ErrEntryAlreadyExists) {
			return nil, err
		}
		// lost the race against another creator, look again
	}
}

// FindAbsoluteInode walks from the root one component at a time and reports
// false on the first missing component. Repeated separators are ignored. A
// link naming the final component is returned as is.
func (r *Repository) FindAbsoluteInode(p string) (*Inode, bool) {
	chain, err := r.walk("lookup", p, false, 0)
	if err != nil {
		return nil, false
	}
	return chain[len(chain)-1], true
}

// Stat is FindAbsoluteInode, but a final link is followed to its target.
func (r *Repository) Stat(p string) (*Inode, error) {
	chain, err := r.walk("stat", p, true, 0)
	if err != nil {
		return nil, err
	}
	return chain[len(chain)-1], nil
}

// RemoveInode detaches the inode at p, and its whole subtree, from its
// parent directory.
func (r *Repository) RemoveInode(p string) error {
	parent, leaf, err := r.parentOf("remove", p)
	if err != nil {
		return err
	}
	if leaf == "." || leaf == ".." {
		return pathError("remove", p, ErrIncorrectPath)
	}
	if err := parent.RemoveChild(leaf); err != nil {
		return rewrap("remove", p, err)
	}
	parent.Touch(r.now())
	return nil
}

// AddUser registers a user and creates its home directory under HomeRoot,
// creating HomeRoot first when it does not exist yet. The home directory is
// owned by the new user and its same-named primary group. Identity files
// present in the tree are rewritten afterwards.
func (r *Repository) AddUser(name string) (identity.UserID, error) {
	if !validName(name) {
		return 0, pathError("adduser", name, ErrIncorrectPath)
	}
	home := path.Join(HomeRoot, name)

	u, err := r.identities.AddUser(name, home)
	if err != nil {
		return 0, err
	}

	if err := r.createHome(u); err != nil {
		if rerr := r.identities.RemoveUser(u.ID); rerr != nil {
			return 0, errors.Join(err, rerr)
		}
		return 0, err
	}
	return u.ID, r.SyncIdentityFiles()
}

func (r *Repository) createHome(u identity.User) error {
	now := r.now()

	homeRoot, err := r.ensureDirectory(r.root, path.Base(HomeRoot),
		NewMetadata(DefaultDirectoryPermissions, identity.RootUser, identity.RootGroup, now))
	if err != nil {
		return rewrap("adduser", HomeRoot, err)
	}
	if homeRoot.Kind() != KindDirectory {
		return pathError("adduser", HomeRoot, ErrNotADirectory)
	}

	md := NewMetadata(DefaultDirectoryPermissions, u.ID, u.PrimaryGroup(), now)
	if _, err := homeRoot.AddChild(u.Name, NewDirectory(), md); err != nil {
		return rewrap("adduser", u.Home, err)
	}
	return nil
}

// GetUser looks a user up in the identity store.
func (r *Repository) GetUser(id identity.UserID) (identity.User, bool) {
	return r.identities.User(id)
}

// GetGroup looks a group up in the identity store.
func (r *Repository) GetGroup(id identity.GroupID) (identity.Group, bool) {
	return r.identities.Group(id)
}

// rewrap replaces the op and path of an inode-level *fs.PathError with the
// repository-level ones. Internal errors are passed through untouched.
func rewrap(op, p string, err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pathError(op, p, pe.Err)
	}
	return err
}
