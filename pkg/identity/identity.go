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

// Package identity allocates and looks up the users and groups that own
// inodes in the virtual filesystem.
//
// Identifiers come from per-kind counters and are never reused within the
// lifetime of a Store, even after a user is removed.
package identity

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"chainguard.dev/vfsh/pkg/passwd"
)

type (
	UserID  uint32
	GroupID uint32
)

const (
	RootUser  UserID  = 0
	RootGroup GroupID = 0

	rootName = "root"
	rootHome = "/"

	// LoginShell is reported as the shell of every user in passwd output.
	LoginShell = "/bin/vfsh"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrGroupAlreadyExists = errors.New("group already exists")
	ErrGroupNotFound      = errors.New("group not found")
)

// User is a snapshot of a registered user.
type User struct {
	ID     UserID
	Name   string
	Home   string
	Groups []GroupID
}

// PrimaryGroup is the first group the user belongs to.
func (u User) PrimaryGroup() GroupID {
	if len(u.Groups) == 0 {
		return RootGroup
	}
	return u.Groups[0]
}

type Group struct {
	ID   GroupID
	Name string
}

// Store is safe for concurrent use. It is guarded independently of the inode
// tree.
type Store struct {
	mu        sync.RWMutex
	users     map[UserID]*User
	groups    map[GroupID]*Group
	nextUser  UserID
	nextGroup GroupID
}

// NewStore returns a store holding only the root user and the root group.
func NewStore() *Store {
	s := &Store{
		users:  map[UserID]*User{},
		groups: map[GroupID]*Group{},
	}
	gid := s.allocGroup(rootName)
	uid := s.allocUser(rootName, rootHome)
	s.users[uid].Groups = []GroupID{gid}
	return s
}

func (s *Store) allocUser(name, home string) UserID {
	id := s.nextUser
	s.nextUser++
	s.users[id] = &User{ID: id, Name: name, Home: home}
	return id
}

func (s *Store) allocGroup(name string) GroupID {
	id := s.nextGroup
	s.nextGroup++
	s.groups[id] = &Group{ID: id, Name: name}
	return id
}

func (s *Store) userByNameLocked(name string) *User {
	for _, u := range s.users {
		if u.Name == name {
			return u
		}
	}
	return nil
}

func (s *Store) groupByNameLocked(name string) *Group {
	for _, g := range s.groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// AddUser registers a user together with a primary group of the same name.
// The name check and both insertions happen under one lock acquisition.
func (s *Store) AddUser(name, home string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userByNameLocked(name) != nil {
		return User{}, fmt.Errorf("%w: %s", ErrUserAlreadyExists, name)
	}
	if s.groupByNameLocked(name) != nil {
		return User{}, fmt.Errorf("%w: %s", ErrGroupAlreadyExists, name)
	}

	gid := s.allocGroup(name)
	uid := s.allocUser(name, home)
	u := s.users[uid]
	u.Groups = []GroupID{gid}
	return cloneUser(u), nil
}

// AddGroup registers a standalone group.
func (s *Store) AddGroup(name string) (Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.groupByNameLocked(name) != nil {
		return Group{}, fmt.Errorf("%w: %s", ErrGroupAlreadyExists, name)
	}
	return *s.groups[s.allocGroup(name)], nil
}

// AddUserToGroup appends a supplementary group membership. Adding an existing
// membership is a no-op.
func (s *Store) AddUserToGroup(uid UserID, gid GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[uid]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUserNotFound, uid)
	}
	if _, ok := s.groups[gid]; !ok {
		return fmt.Errorf("%w: %d", ErrGroupNotFound, gid)
	}
	if !slices.Contains(u.Groups, gid) {
		u.Groups = append(u.Groups, gid)
	}
	return nil
}

// RemoveUser deletes a user and its primary group when no other user is a
// member of it. The root user cannot be removed.
func (s *Store) RemoveUser(uid UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[uid]
	if !ok || uid == RootUser {
		return fmt.Errorf("%w: %d", ErrUserNotFound, uid)
	}
	delete(s.users, uid)

	primary := u.PrimaryGroup()
	if primary == RootGroup {
		return nil
	}
	for _, other := range s.users {
		if slices.Contains(other.Groups, primary) {
			return nil
		}
	}
	delete(s.groups, primary)
	return nil
}

// User looks a user up by id.
func (s *Store) User(id UserID) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, false
	}
	return cloneUser(u), true
}

// UserByName looks a user up by name.
func (s *Store) UserByName(name string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := s.userByNameLocked(name)
	if u == nil {
		return User{}, false
	}
	return cloneUser(u), true
}

// Group looks a group up by id.
func (s *Store) Group(id GroupID) (Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return Group{}, false
	}
	return *g, true
}

// GroupByName looks a group up by name.
func (s *Store) GroupByName(name string) (Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := s.groupByNameLocked(name)
	if g == nil {
		return Group{}, false
	}
	return *g, true
}

// Users returns every user ordered by id.
func (s *Store) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	slices.SortFunc(out, func(a, b User) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Groups returns every group ordered by id.
func (s *Store) Groups() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b Group) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// UserFile renders the store as /etc/passwd entries.
func (s *Store) UserFile() passwd.UserFile {
	uf := passwd.UserFile{}
	for _, u := range s.Users() {
		info := ""
		if u.ID == RootUser {
			info = rootName
		}
		uf.Entries = append(uf.Entries, passwd.UserEntry{
			UserName: u.Name,
			Password: "x",
			UID:      uint32(u.ID),
			GID:      uint32(u.PrimaryGroup()),
			Info:     info,
			HomeDir:  u.Home,
			Shell:    LoginShell,
		})
	}
	return uf
}

// GroupFile renders the store as /etc/group entries. Members lists the users
// holding the group as a supplementary group.
func (s *Store) GroupFile() passwd.GroupFile {
	users := s.Users()
	gf := passwd.GroupFile{}
	for _, g := range s.Groups() {
		ge := passwd.GroupEntry{GroupName: g.Name, Password: "x", GID: uint32(g.ID)}
		for _, u := range users {
			if u.PrimaryGroup() != g.ID && slices.Contains(u.Groups, g.ID) {
				ge.Members = append(ge.Members, u.Name)
			}
		}
		gf.Entries = append(gf.Entries, ge)
	}
	return gf
}

func cloneUser(u *User) User {
	out := *u
	out.Groups = slices.Clone(u.Groups)
	return out
}
