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
	"time"

	"chainguard.dev/vfsh/pkg/identity"
)

// Option configures a Repository.
type Option func(*Repository)

// WithClock replaces the time source used to stamp inode metadata.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithIdentities shares an existing identity store instead of allocating a
// fresh one.
func WithIdentities(s *identity.Store) Option {
	return func(r *Repository) {
		r.identities = s
	}
}

type createOptions struct {
	owner    identity.UserID
	group    identity.GroupID
	perms    Permissions
	hasPerms bool
	data     []byte
}

// CreateOption configures an inode created by the repository.
type CreateOption func(*createOptions)

// WithOwner sets the owning user and group. The default owner is root.
func WithOwner(uid identity.UserID, gid identity.GroupID) CreateOption {
	return func(o *createOptions) {
		o.owner = uid
		o.group = gid
	}
}

// WithPermissions overrides the per-kind default permission bits.
func WithPermissions(p Permissions) CreateOption {
	return func(o *createOptions) {
		o.perms = p
		o.hasPerms = true
	}
}

// WithData sets the initial payload of a file.
func WithData(b []byte) CreateOption {
	return func(o *createOptions) {
		o.data = b
	}
}

func buildCreateOptions(opts []CreateOption) createOptions {
	o := createOptions{owner: identity.RootUser, group: identity.RootGroup}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o createOptions) permissions(def Permissions) Permissions {
	if o.hasPerms {
		return o.perms
	}
	return def
}
