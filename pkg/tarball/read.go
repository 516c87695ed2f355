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

package tarball

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/chainguard-dev/clog"
	"github.com/klauspost/pgzip"

	"chainguard.dev/vfsh/pkg/identity"
	"chainguard.dev/vfsh/pkg/vfs"
)

// DefaultSizeLimit caps the decompressed size of an archive read by
// ReadArchive.
const DefaultSizeLimit int64 = 256 << 20

// SizeLimitExceededError is returned when an archive expands past its limit.
type SizeLimitExceededError struct {
	Limit int64
}

func (e *SizeLimitExceededError) Error() string {
	return fmt.Sprintf("size limit exceeded: limit is %d bytes", e.Limit)
}

// limitedReader reports SizeLimitExceededError rather than io.EOF once more
// than limit bytes are available.
type limitedReader struct {
	r         io.Reader
	limit     int64
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		var probe [1]byte
		if n, _ := l.r.Read(probe[:]); n > 0 {
			return 0, &SizeLimitExceededError{Limit: l.limit}
		}
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}

type readOptions struct {
	limit int64
}

type ReadOption func(*readOptions)

// WithSizeLimit caps the decompressed archive size. Zero selects
// DefaultSizeLimit and -1 disables the cap.
func WithSizeLimit(n int64) ReadOption {
	return func(o *readOptions) {
		o.limit = n
	}
}

// ReadArchive loads a gzip-compressed tar stream into repo. Directories that
// already exist are reused, and any other existing entry is an error.
// Entries other than directories, regular files and symlinks are skipped.
//
// Owners are matched by name first and by numeric id second. Unknown owners
// map to root.
func ReadArchive(ctx context.Context, src io.Reader, repo *vfs.Repository, opts ...ReadOption) error {
	log := clog.FromContext(ctx)

	o := readOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit == 0 {
		o.limit = DefaultSizeLimit
	}

	gzr, err := pgzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gzr.Close()

	var r io.Reader = gzr
	if o.limit > 0 {
		r = &limitedReader{r: gzr, limit: o.limit, remaining: o.limit}
	}

	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading TAR archive failed: %w", err)
		}

		p := path.Clean("/" + header.Name)
		if p == "/" {
			continue
		}
		opts := []vfs.CreateOption{
			vfs.WithOwner(owner(repo.Identities(), header)),
			vfs.WithPermissions(vfs.FromMode(uint32(header.Mode))),
		}

		switch header.Typeflag {
		case tar.TypeDir:
			_, err = repo.MkdirAll(p, opts...)
		case tar.TypeReg:
			data, rerr := io.ReadAll(tr)
			if rerr != nil {
				return fmt.Errorf("reading %s: %w", header.Name, rerr)
			}
			if err = mkdirParent(repo, p); err == nil {
				_, err = repo.CreateFile(p, append(opts, vfs.WithData(data))...)
			}
		case tar.TypeSymlink:
			if err = mkdirParent(repo, p); err == nil {
				_, err = repo.CreateSymlink(header.Linkname, p, opts...)
			}
		default:
			log.Debugf("skipping %s: unsupported type %q", header.Name, header.Typeflag)
			continue
		}
		if err != nil {
			return fmt.Errorf("loading %s: %w", header.Name, err)
		}
	}
}

func mkdirParent(repo *vfs.Repository, p string) error {
	dir := path.Dir(p)
	if dir == "/" {
		return nil
	}
	_, err := repo.MkdirAll(dir)
	return err
}

func owner(ids *identity.Store, h *tar.Header) (identity.UserID, identity.GroupID) {
	uid, gid := identity.RootUser, identity.RootGroup

	if u, ok := ids.UserByName(h.Uname); ok {
		uid = u.ID
	} else if u, ok := ids.User(identity.UserID(h.Uid)); ok && h.Uid >= 0 {
		uid = u.ID
	}

	if g, ok := ids.GroupByName(h.Gname); ok {
		gid = g.ID
	} else if g, ok := ids.Group(identity.GroupID(h.Gid)); ok && h.Gid >= 0 {
		gid = g.ID
	}
	return uid, gid
}
