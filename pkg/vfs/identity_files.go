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
	"bytes"
	"errors"
	"io"
	"path"
)

const (
	PasswdPath = "/etc/passwd"
	GroupPath  = "/etc/group"
)

// CreateIdentityFiles creates PasswdPath and GroupPath rendered from the
// identity store. From then on AddUser keeps them current.
func (r *Repository) CreateIdentityFiles() error {
	if _, err := r.MkdirAll(path.Dir(PasswdPath)); err != nil {
		return err
	}
	for _, p := range []string{PasswdPath, GroupPath} {
		if _, err := r.CreateFile(p); err != nil && !errors.Is(err, ErrEntryAlreadyExists) {
			return err
		}
	}
	return r.SyncIdentityFiles()
}

// SyncIdentityFiles rewrites the identity files that exist as regular files.
// Missing files are left alone.
func (r *Repository) SyncIdentityFiles() error {
	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	uf := r.identities.UserFile()
	if err := r.syncFile(PasswdPath, uf.Write); err != nil {
		return err
	}
	gf := r.identities.GroupFile()
	return r.syncFile(GroupPath, gf.Write)
}

func (r *Repository) syncFile(p string, render func(io.Writer) error) error {
	n, ok := r.FindAbsoluteInode(p)
	if !ok || n.Kind() != KindFile {
		return nil
	}
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}
	return n.WriteData(buf.Bytes(), r.now())
}
