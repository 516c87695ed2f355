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
	"io/fs"
	"path"
	"time"
)

// FS returns a read-only io/fs view of the repository. Names are unrooted
// and slash-separated as required by io/fs; links are followed.
func (r *Repository) FS() fs.FS {
	return &readOnlyFS{repo: r}
}

type readOnlyFS struct {
	repo *Repository
}

var (
	_ fs.ReadDirFS  = (*readOnlyFS)(nil)
	_ fs.ReadFileFS = (*readOnlyFS)(nil)
	_ fs.StatFS     = (*readOnlyFS)(nil)
)

func (f *readOnlyFS) lookup(op, name string) (*Inode, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	n, err := f.repo.Stat("/" + name)
	if err != nil {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return n, nil
}

func (f *readOnlyFS) Open(name string) (fs.File, error) {
	n, err := f.lookup("open", name)
	if err != nil {
		return nil, err
	}
	info := newFileInfo(name, n)
	if n.IsDir() {
		return &openDir{info: info, node: n}, nil
	}
	data, _ := n.Data()
	return &openFile{info: info, Reader: bytes.NewReader(data)}, nil
}

func (f *readOnlyFS) Stat(name string) (fs.FileInfo, error) {
	n, err := f.lookup("stat", name)
	if err != nil {
		return nil, err
	}
	return newFileInfo(name, n), nil
}

func (f *readOnlyFS) ReadFile(name string) ([]byte, error) {
	n, err := f.lookup("readfile", name)
	if err != nil {
		return nil, err
	}
	data, ok := n.Data()
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: errors.New("is a directory")}
	}
	return data, nil
}

func (f *readOnlyFS) ReadDir(name string) ([]fs.DirEntry, error) {
	n, err := f.lookup("readdir", name)
	if err != nil {
		return nil, err
	}
	if !n.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotADirectory}
	}
	return dirEntries(n.Children()), nil
}

func dirEntries(children []*Inode) []fs.DirEntry {
	out := make([]fs.DirEntry, 0, len(children))
	for _, c := range children {
		out = append(out, fs.FileInfoToDirEntry(newFileInfo(c.Name(), c)))
	}
	return out
}

type fileInfo struct {
	name string
	size int64
	mode fs.FileMode
	md   Metadata
}

func newFileInfo(name string, n *Inode) *fileInfo {
	md := n.Metadata()
	mode := md.Permissions.FileMode()
	switch n.Kind() {
	case KindDirectory:
		mode |= fs.ModeDir
	case KindLink:
		mode |= fs.ModeSymlink
	}
	return &fileInfo{name: path.Base(name), size: n.Size(), mode: mode, md: md}
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi *fileInfo) ModTime() time.Time { return fi.md.UpdatedAt }
func (fi *fileInfo) IsDir() bool        { return fi.mode.IsDir() }

// Sys exposes the inode metadata.
func (fi *fileInfo) Sys() any { return fi.md }

type openFile struct {
	*bytes.Reader
	info   *fileInfo
	closed bool
}

func (f *openFile) Stat() (fs.FileInfo, error) {
	if f.closed {
		return nil, fs.ErrClosed
	}
	return f.info, nil
}

func (f *openFile) Read(b []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	return f.Reader.Read(b)
}

func (f *openFile) Close() error {
	if f.closed {
		return fs.ErrClosed
	}
	f.closed = true
	return nil
}

type openDir struct {
	info    *fileInfo
	node    *Inode
	entries []fs.DirEntry
	offset  int
	loaded  bool
}

func (d *openDir) Stat() (fs.FileInfo, error) { return d.info, nil }

func (d *openDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.name, Err: errors.New("is a directory")}
}

func (d *openDir) Close() error { return nil }

func (d *openDir) ReadDir(count int) ([]fs.DirEntry, error) {
	if !d.loaded {
		d.entries = dirEntries(d.node.Children())
		d.loaded = true
	}
	remaining := d.entries[d.offset:]
	if count <= 0 {
		d.offset = len(d.entries)
		return remaining, nil
	}
	if len(remaining) == 0 {
		return nil, io.EOF
	}
	if count > len(remaining) {
		count = len(remaining)
	}
	d.offset += count
	return remaining[:count], nil
}
