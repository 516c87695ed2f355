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

// Metadata is the attribute block carried by every inode.
type Metadata struct {
	Permissions Permissions
	Owner       identity.UserID
	Group       identity.GroupID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewMetadata stamps both timestamps with now.
func NewMetadata(perms Permissions, owner identity.UserID, group identity.GroupID, now time.Time) Metadata {
	return Metadata{
		Permissions: perms,
		Owner:       owner,
		Group:       group,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
