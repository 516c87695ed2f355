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
	"path"
	"strings"
)

// maxLinks is the maximum number of symbolic links followed while resolving
// a single path, matching what Linux does from 4.2 onwards.
const maxLinks = 40

// walk resolves p from the root and returns the chain of inodes traversed,
// root first; the last element is the inode p names. Each directory is locked
// only while its child map is read, so a walk is not a snapshot of the tree.
//
// Links in intermediate positions are always followed. A link in the final
// position is followed only when followLast is set.
func (r *Repository) walk(op, p string, followLast bool, depth int) ([]*Inode, error) {
	if !path.IsAbs(p) {
		return nil, pathError(op, p, ErrIncorrectPath)
	}

	comps := strings.Split(p, "/")
	last := lastComponent(comps)
	chain := []*Inode{r.root}

	for i, c := range comps {
		if c == "" {
			continue
		}

		cur := chain[len(chain)-1]
		if cur.Kind() != KindDirectory {
			return nil, pathError(op, joinComponents(comps[:i]), ErrNotADirectory)
		}

		switch c {
		case ".":
			continue
		case "..":
			// going up from the root stays at the root
			if len(chain) > 1 {
				chain = chain[:len(chain)-1]
			}
			continue
		}

		child, ok := cur.FindChild(c)
		if !ok {
			return nil, pathError(op, joinComponents(comps[:i+1]), ErrEntryNotFound)
		}

		if child.Kind() == KindLink && (i != last || followLast) {
			if depth+1 > maxLinks {
				return nil, pathError(op, p, ErrTooManyLinks)
			}
			target, _ := child.LinkTarget()
			if !path.IsAbs(target) {
				target = path.Join(chainPath(chain), target)
			}
			resolved, err := r.walk(op, target, true, depth+1)
			if err != nil {
				return nil, err
			}
			chain = resolved
			continue
		}
		chain = append(chain, child)
	}
	return chain, nil
}

// lastComponent is the index of the final non-empty component, or -1 when p
// names the root. A trailing "." or ".." is the final component, so a link
// before it is followed.
func lastComponent(comps []string) int {
	for i := len(comps) - 1; i >= 0; i-- {
		if comps[i] != "" {
			return i
		}
	}
	return -1
}

func joinComponents(comps []string) string {
	return path.Clean("/" + strings.Join(comps, "/"))
}

func chainPath(chain []*Inode) string {
	names := make([]string, 0, len(chain))
	for _, n := range chain[1:] {
		names = append(names, n.Name())
	}
	return "/" + strings.Join(names, "/")
}

// splitPath separates an absolute path into its parent prefix and leaf
// name. Trailing separators are ignored; the root has an empty leaf.
func splitPath(p string) (string, string) {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/", ""
	}
	i := strings.LastIndex(trimmed, "/")
	dir := trimmed[:i]
	if dir == "" {
		dir = "/"
	}
	return dir, trimmed[i+1:]
}
