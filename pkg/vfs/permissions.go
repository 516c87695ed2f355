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
	"io/fs"
	"strings"
)

// Permission is one read/write/execute triplet.
type Permission struct {
	Read    bool
	Write   bool
	Execute bool
}

func (p Permission) bits() uint32 {
	var b uint32
	if p.Read {
		b |= 0o4
	}
	if p.Write {
		b |= 0o2
	}
	if p.Execute {
		b |= 0o1
	}
	return b
}

func (p Permission) String() string {
	var sb strings.Builder
	sb.WriteByte(flag(p.Read, 'r'))
	sb.WriteByte(flag(p.Write, 'w'))
	sb.WriteByte(flag(p.Execute, 'x'))
	return sb.String()
}

func flag(set bool, c byte) byte {
	if set {
		return c
	}
	return '-'
}

// Permissions is a 9-bit owner/group/other mode. Bits above 0o777 are
// discarded. The bits are stored and displayed but never enforced.
type Permissions uint32

const (
	DefaultFilePermissions      Permissions = 0o644
	DefaultDirectoryPermissions Permissions = 0o755
	DefaultLinkPermissions      Permissions = 0o777
)

// FromMode keeps the permission bits of mode.
func FromMode(mode uint32) Permissions {
	return Permissions(mode & 0o777)
}

// FromPermissions encodes the three triplets.
func FromPermissions(user, group, other Permission) Permissions {
	return Permissions(user.bits()<<6 | group.bits()<<3 | other.bits())
}

func (p Permissions) Mode() uint32 { return uint32(p) & 0o777 }

func (p Permissions) User() Permission  { return decode(uint32(p) >> 6) }
func (p Permissions) Group() Permission { return decode(uint32(p) >> 3) }
func (p Permissions) Other() Permission { return decode(uint32(p)) }

func decode(b uint32) Permission {
	return Permission{
		Read:    b&0o4 != 0,
		Write:   b&0o2 != 0,
		Execute: b&0o1 != 0,
	}
}

// FileMode returns the permission bits as an fs.FileMode without type bits.
func (p Permissions) FileMode() fs.FileMode {
	return fs.FileMode(p.Mode())
}

// String renders the ls-style form, e.g. "rwxr-xr-x".
func (p Permissions) String() string {
	return p.User().String() + p.Group().String() + p.Other().String()
}
