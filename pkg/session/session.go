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

// Package session holds the per-shell state layered over a shared
// filesystem repository: the working directories, the acting user and the
// command history. A Session owns no inodes. It keeps path strings and
// resolves them against the repository on every call.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sync"

	"github.com/google/uuid"

	"chainguard.dev/vfsh/pkg/identity"
	"chainguard.dev/vfsh/pkg/paths"
	"chainguard.dev/vfsh/pkg/vfs"
)

var (
	ErrNoPreviousWorkingDirectory           = errors.New("no previous working directory")
	ErrPreviousWorkingDirectoryDoesNotExist = errors.New("previous working directory does not exist")
)

type Session struct {
	id   uuid.UUID
	repo *vfs.Repository

	mu      sync.Mutex
	cwd     string
	prev    string
	hasPrev bool
	user    identity.UserID
	history []string
}

// New starts a session acting as uid. The working directory is the user's
// home when it exists as a directory, and "/" otherwise.
func New(repo *vfs.Repository, uid identity.UserID) (*Session, error) {
	u, ok := repo.GetUser(uid)
	if !ok {
		return nil, fmt.Errorf("%w: %d", identity.ErrUserNotFound, uid)
	}

	s := &Session{
		id:   uuid.New(),
		repo: repo,
		cwd:  "/",
		user: uid,
	}
	if n, err := repo.Stat(u.Home); err == nil && n.IsDir() {
		s.cwd = path.Clean(u.Home)
	}
	return s, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id.String() }

func (s *Session) Repository() *vfs.Repository { return s.repo }

// User is the acting user id.
func (s *Session) User() identity.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// HomeDirectory is the acting user's home, or "/" if the user has been
// removed since.
func (s *Session) HomeDirectory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.homeLocked()
}

func (s *Session) homeLocked() string {
	if u, ok := s.repo.GetUser(s.user); ok {
		return u.Home
	}
	return "/"
}

// ChangeUser switches the acting user. The working directories are kept.
func (s *Session) ChangeUser(uid identity.UserID) error {
	if _, ok := s.repo.GetUser(uid); !ok {
		return fmt.Errorf("%w: %d", identity.ErrUserNotFound, uid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = uid
	return nil
}

func (s *Session) CurrentWorkingDirectory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// PreviousWorkingDirectory reports false until the first successful
// directory change.
func (s *Session) PreviousWorkingDirectory() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prev, s.hasPrev
}

// ResolvePath turns a user-typed path into an absolute one using the
// session's home and working directory.
func (s *Session) ResolvePath(raw string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return paths.Resolve(raw, s.homeLocked(), s.cwd)
}

// ChangeDirectory moves the working directory. The token "-" swaps with the
// previous working directory. The target is cleaned lexically before it is
// looked up; links are then followed and the target must be a directory. On
// failure neither directory changes.
func (s *Session) ChangeDirectory(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == paths.Previous {
		if !s.hasPrev {
			return ErrNoPreviousWorkingDirectory
		}
		n, err := s.repo.Stat(s.prev)
		if err != nil || !n.IsDir() {
			return &fs.PathError{Op: "cd", Path: s.prev, Err: ErrPreviousWorkingDirectoryDoesNotExist}
		}
		s.cwd, s.prev = s.prev, s.cwd
		return nil
	}

	// ".." is applied lexically, so the path checked is the path stored
	target := path.Clean(paths.Resolve(token, s.homeLocked(), s.cwd))
	n, err := s.repo.Stat(target)
	if err != nil {
		return err
	}
	if !n.IsDir() {
		return &fs.PathError{Op: "cd", Path: target, Err: vfs.ErrNotADirectory}
	}

	s.prev, s.hasPrev = s.cwd, true
	s.cwd = target
	return nil
}

// owned prefixes opts with the acting user's ownership so that explicit
// options still win.
func (s *Session) owned(opts []vfs.CreateOption) []vfs.CreateOption {
	s.mu.Lock()
	uid := s.user
	s.mu.Unlock()

	gid := identity.RootGroup
	if u, ok := s.repo.GetUser(uid); ok {
		gid = u.PrimaryGroup()
	}
	return append([]vfs.CreateOption{vfs.WithOwner(uid, gid)}, opts...)
}

func (s *Session) CreateFile(p string, opts ...vfs.CreateOption) (*vfs.Inode, error) {
	return s.repo.CreateFile(s.ResolvePath(p), s.owned(opts)...)
}

func (s *Session) CreateDirectory(p string, opts ...vfs.CreateOption) (*vfs.Inode, error) {
	return s.repo.CreateDirectory(s.ResolvePath(p), s.owned(opts)...)
}

// CreateSymlink stores target verbatim; only the link path is resolved.
func (s *Session) CreateSymlink(target, p string, opts ...vfs.CreateOption) (*vfs.Inode, error) {
	return s.repo.CreateSymlink(target, s.ResolvePath(p), s.owned(opts)...)
}

func (s *Session) MkdirAll(p string, opts ...vfs.CreateOption) (*vfs.Inode, error) {
	return s.repo.MkdirAll(s.ResolvePath(p), s.owned(opts)...)
}

func (s *Session) RemoveFile(p string) error {
	return s.repo.RemoveInode(s.ResolvePath(p))
}

// FindInode looks p up without following a final link.
func (s *Session) FindInode(p string) (*vfs.Inode, bool) {
	return s.repo.FindAbsoluteInode(s.ResolvePath(p))
}

// Stat looks p up and follows a final link.
func (s *Session) Stat(p string) (*vfs.Inode, error) {
	return s.repo.Stat(s.ResolvePath(p))
}

// AddToHistory appends a command name.
func (s *Session) AddToHistory(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, name)
}

// History returns a copy of every entry appended so far, oldest first.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}
