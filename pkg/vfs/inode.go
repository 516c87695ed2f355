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
	"slices"
	"strings"
	"sync"
	"time"
	"weak"

	"chainguard.dev/vfsh/pkg/identity"
)

// Inode is one entry of the tree.
//
// A directory owns its children through its child map. Each child keeps a
// weak back-reference to its parent which is only used to rebuild paths and
// never keeps the parent alive. Name, kind and parent linkage are fixed at
// construction; content and metadata are guarded by the inode's own mutex.
type Inode struct {
	name      string
	kind      Kind
	parent    weak.Pointer[Inode]
	hasParent bool

	mu       sync.Mutex
	content  Content
	metadata Metadata
}

// New constructs a detached inode. Only the root may have an empty name and
// directory content must be empty.
func New(name string, content Content, md Metadata, parent *Inode) (*Inode, error) {
	if parent != nil && name == "" {
		return nil, ErrEmptyNameWithParent
	}
	if content == nil {
		return nil, internalError("inode %q constructed without content", name)
	}
	if d, ok := content.(*Directory); ok {
		// children are only ever attached through AddChild
		if d.Len() > 0 {
			return nil, internalError("inode %q constructed with %d children", name, d.Len())
		}
		if d.children == nil {
			d.children = map[string]*Inode{}
		}
	}

	n := &Inode{
		name:     name,
		kind:     content.kind(),
		content:  content,
		metadata: md,
	}
	if parent != nil {
		n.parent = weak.Make(parent)
		n.hasParent = true
	}
	return n, nil
}

func (n *Inode) Name() string { return n.name }
func (n *Inode) Kind() Kind   { return n.kind }

func (n *Inode) IsDir() bool { return n.kind == KindDirectory }

// Content returns a snapshot of the inode's content. Mutating the snapshot
// does not affect the tree. A directory snapshot shares the live child
// inodes and cannot be used to construct another inode.
func (n *Inode) Content() Content {
	n.mu.Lock()
	defer n.mu.Unlock()
	return cloneContent(n.content)
}

// Metadata returns a copy of the attribute block.
func (n *Inode) Metadata() Metadata {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.metadata
}

// Size is the payload length for files, the target length for links and a
// fixed block size for directories.
func (n *Inode) Size() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return contentSize(n.content)
}

// LinkCount is the number of names referring to the inode: one for files and
// links, two plus one per subdirectory for directories.
func (n *Inode) LinkCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	dir, ok := n.content.(*Directory)
	if !ok {
		return 1
	}
	count := 2
	for _, c := range dir.children {
		// kind is immutable, no need to lock the child
		if c.kind == KindDirectory {
			count++
		}
	}
	return count
}

// Data returns a copy of a file's payload.
func (n *Inode) Data() ([]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	f, ok := n.content.(*File)
	if !ok {
		return nil, false
	}
	return slices.Clone(f.Data), true
}

// LinkTarget returns the target of a link.
func (n *Inode) LinkTarget() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	l, ok := n.content.(*Link)
	if !ok {
		return "", false
	}
	return l.Target, true
}

// WriteData replaces a file's payload and stamps t as the modification time.
func (n *Inode) WriteData(b []byte, t time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	f, ok := n.content.(*File)
	if !ok {
		return internalError("write to %s inode %q", n.kind, n.name)
	}
	f.Data = slices.Clone(b)
	n.metadata.UpdatedAt = t
	return nil
}

// Touch sets the last-modified timestamp.
func (n *Inode) Touch(t time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.metadata.UpdatedAt = t
}

func (n *Inode) Chmod(p Permissions) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.metadata.Permissions = FromMode(p.Mode())
}

func (n *Inode) Chown(uid identity.UserID, gid identity.GroupID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.metadata.Owner = uid
	n.metadata.Group = gid
}

// AddChild creates a child under this directory. The existence check and the
// insertion happen under the directory's lock.
func (n *Inode) AddChild(name string, content Content, md Metadata) (*Inode, error) {
	if !validName(name) {
		return nil, pathError("add", name, ErrIncorrectPath)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	dir, ok := n.content.(*Directory)
	if !ok {
		return nil, internalError("add child %q to %s inode %q", name, n.kind, n.name)
	}
	if _, exists := dir.children[name]; exists {
		return nil, pathError("add", name, ErrEntryAlreadyExists)
	}

	child, err := New(name, content, md, n)
	if err != nil {
		return nil, err
	}
	dir.children[name] = child
	n.metadata.UpdatedAt = md.CreatedAt
	return child, nil
}

// RemoveChild detaches the named child together with its whole subtree.
func (n *Inode) RemoveChild(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	dir, ok := n.content.(*Directory)
	if !ok {
		return internalError("remove child %q from %s inode %q", name, n.kind, n.name)
	}
	if _, exists := dir.children[name]; !exists {
		return pathError("remove", name, ErrEntryNotFound)
	}
	delete(dir.children, name)
	return nil
}

// FindChild looks a direct child up by name. It reports false for unknown
// names and for inodes that are not directories.
func (n *Inode) FindChild(name string) (*Inode, bool) {
	if n.kind != KindDirectory {
		return nil, false
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	dir, ok := n.content.(*Directory)
	if !ok {
		return nil, false
	}
	return dir.Child(name)
}

// Children returns the direct children ordered by name.
func (n *Inode) Children() []*Inode {
	n.mu.Lock()
	defer n.mu.Unlock()

	dir, ok := n.content.(*Directory)
	if !ok {
		return nil
	}
	out := make([]*Inode, 0, len(dir.children))
	for _, name := range dir.Names() {
		out = append(out, dir.children[name])
	}
	return out
}

// Parent follows the back-reference. The root has no parent and reports
// ErrFailedToGetParent.
func (n *Inode) Parent() (*Inode, error) {
	if !n.hasParent {
		return nil, pathError("parent", "/", ErrFailedToGetParent)
	}
	p := n.parent.Value()
	if p == nil {
		return nil, internalError("parent of %q has been destroyed", n.name)
	}
	return p, nil
}

// Path rebuilds the absolute path by walking parent back-references up to
// the root.
func (n *Inode) Path() (string, error) {
	var names []string
	for cur := n; cur.hasParent; {
		names = append(names, cur.name)
		p, err := cur.Parent()
		if err != nil {
			return "", err
		}
		cur = p
	}
	slices.Reverse(names)
	return "/" + strings.Join(names, "/"), nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}
