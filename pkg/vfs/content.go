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
	"maps"
	"slices"
)

// Kind names the variant of an inode's content. It never changes after the
// inode is constructed.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindLink:
		return "link"
	default:
		return "unknown"
	}
}

// Content is the tagged payload of an inode. It is one of *File, *Directory
// or *Link.
type Content interface {
	kind() Kind
}

// File holds an opaque payload.
type File struct {
	Data []byte
}

// Directory maps child names to the inodes it owns.
type Directory struct {
	children map[string]*Inode
}

// Link holds the path of its target. The target is not required to exist.
type Link struct {
	Target string
}

func (*File) kind() Kind      { return KindFile }
func (*Directory) kind() Kind { return KindDirectory }
func (*Link) kind() Kind      { return KindLink }

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{children: map[string]*Inode{}}
}

// Len is the number of children.
func (d *Directory) Len() int {
	return len(d.children)
}

// Names returns the child names in lexical order.
func (d *Directory) Names() []string {
	return slices.Sorted(maps.Keys(d.children))
}

// Child looks a direct child up by name.
func (d *Directory) Child(name string) (*Inode, bool) {
	c, ok := d.children[name]
	return c, ok
}

// directorySize mirrors the block size most filesystems report for a
// directory entry.
const directorySize = 4096

func contentSize(c Content) int64 {
	switch c := c.(type) {
	case *File:
		return int64(len(c.Data))
	case *Directory:
		return directorySize
	case *Link:
		return int64(len(c.Target))
	default:
		return 0
	}
}

func cloneContent(c Content) Content {
	switch c := c.(type) {
	case *File:
		return &File{Data: slices.Clone(c.Data)}
	case *Directory:
		return &Directory{children: maps.Clone(c.children)}
	case *Link:
		return &Link{Target: c.Target}
	default:
		return nil
	}
}
