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

// Package tarball exports the virtual tree as a gzip-compressed tar archive
// and loads such archives back into a repository.
package tarball

import (
	"archive/tar"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/klauspost/pgzip"

	"chainguard.dev/vfsh/pkg/vfs"
)

type Context struct {
	SourceDateEpoch time.Time
	OverrideUIDGID  bool
	UID             int
	GID             int
	OverrideUname   string
	OverrideGname   string
}

type Option func(*Context) error

// Generates a new context from a set of options.
func NewContext(opts ...Option) (*Context, error) {
	ctx := Context{}

	for _, opt := range opts {
		if err := opt(&ctx); err != nil {
			return nil, err
		}
	}

	return &ctx, nil
}

// WithSourceDateEpoch replaces every timestamp in the archive with t.
func WithSourceDateEpoch(t time.Time) Option {
	return func(ctx *Context) error {
		ctx.SourceDateEpoch = t
		return nil
	}
}

// WithOverrideUIDGID sets the UID/GID to override with for Context.
func WithOverrideUIDGID(uid, gid int) Option {
	return func(ctx *Context) error {
		if uid < 0 || gid < 0 {
			return fmt.Errorf("invalid uid/gid %d:%d", uid, gid)
		}
		ctx.OverrideUIDGID = true
		ctx.UID = uid
		ctx.GID = gid
		return nil
	}
}

// WithOverrideUname sets the Uname to use with Context.
func WithOverrideUname(uname string) Option {
	return func(ctx *Context) error {
		ctx.OverrideUname = uname
		return nil
	}
}

// WithOverrideGname sets the Gname to use with Context.
func WithOverrideGname(gname string) Option {
	return func(ctx *Context) error {
		ctx.OverrideGname = gname
		return nil
	}
}

func (ctx *Context) header(repo *vfs.Repository, name string, n *vfs.Inode) (*tar.Header, error) {
	md := n.Metadata()
	header := &tar.Header{
		Name:       name,
		Mode:       int64(md.Permissions.Mode()),
		Uid:        int(md.Owner),
		Gid:        int(md.Group),
		ModTime:    md.UpdatedAt,
		AccessTime: md.UpdatedAt,
		ChangeTime: md.UpdatedAt,
		Format:     tar.FormatPAX,
	}
	if u, ok := repo.GetUser(md.Owner); ok {
		header.Uname = u.Name
	}
	if g, ok := repo.GetGroup(md.Group); ok {
		header.Gname = g.Name
	}

	switch n.Kind() {
	case vfs.KindDirectory:
		header.Typeflag = tar.TypeDir
		header.Name += "/"
	case vfs.KindFile:
		header.Typeflag = tar.TypeReg
		header.Size = n.Size()
	case vfs.KindLink:
		target, _ := n.LinkTarget()
		header.Typeflag = tar.TypeSymlink
		header.Linkname = target
	default:
		return nil, fmt.Errorf("%s: unsupported inode kind %s", name, n.Kind())
	}

	if !ctx.SourceDateEpoch.IsZero() {
		header.ModTime = ctx.SourceDateEpoch
		header.AccessTime = ctx.SourceDateEpoch
		header.ChangeTime = ctx.SourceDateEpoch
	}

	if ctx.OverrideUIDGID {
		header.Uid = ctx.UID
		header.Gid = ctx.GID
	}

	if ctx.OverrideUname != "" {
		header.Uname = ctx.OverrideUname
	}

	if ctx.OverrideGname != "" {
		header.Gname = ctx.OverrideGname
	}

	return header, nil
}

// writeTar walks the tree depth first in name order. Links are stored as
// links and never followed.
func (ctx *Context) writeTar(tw *tar.Writer, repo *vfs.Repository, dir *vfs.Inode, prefix string) error {
	for _, child := range dir.Children() {
		name := path.Join(prefix, child.Name())

		header, err := ctx.header(repo, name, child)
		if err != nil {
			return err
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		switch child.Kind() {
		case vfs.KindFile:
			data, _ := child.Data()
			if _, err := tw.Write(data); err != nil {
				return err
			}
		case vfs.KindDirectory:
			if err := ctx.writeTar(tw, repo, child, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteArchive writes every inode below the root of repo to dst. The root
// itself is not stored.
func (ctx *Context) WriteArchive(dst io.Writer, repo *vfs.Repository) error {
	gzw := pgzip.NewWriter(dst)
	tw := tar.NewWriter(gzw)

	if err := ctx.writeTar(tw, repo, repo.Root(), ""); err != nil {
		return fmt.Errorf("writing TAR archive failed: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing TAR archive: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip stream: %w", err)
	}
	return nil
}
