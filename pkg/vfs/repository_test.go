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
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/vfsh/pkg/identity"
)

// tickingClock returns a clock advancing by one second per reading.
func tickingClock() func() time.Time {
	var ticks atomic.Int64
	return func() time.Time {
		return testTime.Add(time.Duration(ticks.Add(1)) * time.Second)
	}
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(WithClock(tickingClock()))
}

func requirePathError(t *testing.T, err error, want error, path string) {
	t.Helper()
	require.ErrorIs(t, err, want)
	var pe *fs.PathError
	require.True(t, errors.As(err, &pe), "%v is not a path error", err)
	require.Equal(t, path, pe.Path)
}

func TestNewRepository(t *testing.T) {
	r := newTestRepository(t)

	root, ok := r.FindAbsoluteInode("/")
	require.True(t, ok)
	require.Same(t, r.Root(), root)
	require.True(t, root.IsDir())

	md := root.Metadata()
	require.Equal(t, identity.RootUser, md.Owner)
	require.Equal(t, identity.RootGroup, md.Group)
	require.Equal(t, DefaultDirectoryPermissions, md.Permissions)

	u, ok := r.GetUser(identity.RootUser)
	require.True(t, ok)
	require.Equal(t, "root", u.Name)
	g, ok := r.GetGroup(identity.RootGroup)
	require.True(t, ok)
	require.Equal(t, "root", g.Name)
}

func TestCreateFile(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		r := newTestRepository(t)
		created, err := r.CreateFile("/test.txt")
		require.NoError(t, err)

		found, ok := r.FindAbsoluteInode("/test.txt")
		require.True(t, ok)
		require.Same(t, created, found)
		require.Equal(t, KindFile, found.Kind())
		require.Equal(t, int64(0), found.Size())

		md := found.Metadata()
		require.Equal(t, DefaultFilePermissions, md.Permissions)
		require.Equal(t, identity.RootUser, md.Owner)
		require.Equal(t, md.CreatedAt, md.UpdatedAt)
		require.Equal(t, md.CreatedAt, r.Root().Metadata().UpdatedAt)
	})
	t.Run("duplicate", func(t *testing.T) {
		r := newTestRepository(t)
		_, err := r.CreateFile("/test.txt")
		require.NoError(t, err)

		_, err = r.CreateFile("/test.txt")
		requirePathError(t, err, ErrEntryAlreadyExists, "/test.txt")
		require.ErrorIs(t, err, fs.ErrExist)

		_, err = r.CreateDirectory("/test.txt")
		requirePathError(t, err, ErrEntryAlreadyExists, "/test.txt")
	})
	t.Run("options", func(t *testing.T) {
		r := newTestRepository(t)
		f, err := r.CreateFile("/f", WithOwner(7, 8), WithPermissions(0o600), WithData([]byte("payload")))
		require.NoError(t, err)

		md := f.Metadata()
		require.Equal(t, identity.UserID(7), md.Owner)
		require.Equal(t, identity.GroupID(8), md.Group)
		require.Equal(t, Permissions(0o600), md.Permissions)
		data, ok := f.Data()
		require.True(t, ok)
		require.Equal(t, "payload", string(data))
	})
	t.Run("missing parent", func(t *testing.T) {
		r := newTestRepository(t)
		_, err := r.CreateFile("/missing/x")
		requirePathError(t, err, ErrDirectoryNotFound, "/missing")
		require.ErrorIs(t, err, fs.ErrNotExist)
	})
	t.Run("parent is a file", func(t *testing.T) {
		r := newTestRepository(t)
		_, err := r.CreateFile("/f")
		require.NoError(t, err)

		_, err = r.CreateFile("/f/x")
		requirePathError(t, err, ErrNotADirectory, "/f")
		_, err = r.CreateFile("/f/x/y")
		requirePathError(t, err, ErrNotADirectory, "/f")

		for _, p := range []string{"/f/../x", "/f/./x"} {
			_, err = r.CreateFile(p)
			requirePathError(t, err, ErrNotADirectory, "/f")
			_, err = r.CreateDirectory(p)
			requirePathError(t, err, ErrNotADirectory, "/f")
		}
		_, ok := r.FindAbsoluteInode("/x")
		require.False(t, ok)
	})
	t.Run("incorrect paths", func(t *testing.T) {
		r := newTestRepository(t)
		for _, p := range []string{"", "relative", "a/b", "/", "///"} {
			_, err := r.CreateFile(p)
			require.ErrorIs(t, err, ErrIncorrectPath, "path %q", p)
		}
	})
	t.Run("dot leaves", func(t *testing.T) {
		r := newTestRepository(t)
		_, err := r.CreateDirectory("/.")
		require.ErrorIs(t, err, ErrEntryAlreadyExists)
		_, err = r.CreateDirectory("/tmp/..")
		require.ErrorIs(t, err, ErrDirectoryNotFound)
	})
}

func TestCreateDirectory(t *testing.T) {
	r := newTestRepository(t)
	d, err := r.CreateDirectory("/usr")
	require.NoError(t, err)
	require.Equal(t, DefaultDirectoryPermissions, d.Metadata().Permissions)

	_, err = r.CreateDirectory("/usr/bin")
	require.NoError(t, err)
	_, err = r.CreateFile("/usr/bin/ls")
	require.NoError(t, err)

	for _, p := range []string{"/usr/bin/ls", "//usr///bin//ls", "/usr/bin/./ls", "/usr/../usr/bin/ls", "/../../usr/bin/ls"} {
		n, ok := r.FindAbsoluteInode(p)
		require.True(t, ok, "path %q", p)
		require.Equal(t, "ls", n.Name())
	}

	p, err := d.Path()
	require.NoError(t, err)
	require.Equal(t, "/usr", p)
}

func TestFindAbsoluteInode(t *testing.T) {
	r := newTestRepository(t)
	_, err := r.CreateDirectory("/etc")
	require.NoError(t, err)
	_, err = r.CreateFile("/etc/hosts")
	require.NoError(t, err)

	for _, tc := range []struct {
		path string
		ok   bool
	}{
		{"/", true},
		{"//", true},
		{"/etc", true},
		{"/etc/", true},
		{"/etc/hosts", true},
		{"/etc/missing", false},
		{"/missing/hosts", false},
		{"/etc/hosts/x", false},
		{"/etc/hosts/..", false},
		{"/etc/hosts/.", false},
		{"/etc/hosts/../hosts", false},
		{"/etc/./hosts", true},
		{"/etc/..", true},
		{"etc/hosts", false},
		{"", false},
	} {
		_, ok := r.FindAbsoluteInode(tc.path)
		require.Equal(t, tc.ok, ok, "path %q", tc.path)
	}
}

func TestSymlinks(t *testing.T) {
	r := newTestRepository(t)
	_, err := r.CreateDirectory("/data")
	require.NoError(t, err)
	_, err = r.CreateFile("/data/file")
	require.NoError(t, err)

	l, err := r.CreateSymlink("/data", "/link")
	require.NoError(t, err)
	require.Equal(t, DefaultLinkPermissions, l.Metadata().Permissions)

	t.Run("final link is not followed by lookups", func(t *testing.T) {
		n, ok := r.FindAbsoluteInode("/link")
		require.True(t, ok)
		require.Equal(t, KindLink, n.Kind())
	})
	t.Run("final link is followed by stat", func(t *testing.T) {
		n, err := r.Stat("/link")
		require.NoError(t, err)
		require.Equal(t, "data", n.Name())
	})
	t.Run("link before a trailing dot is followed", func(t *testing.T) {
		n, ok := r.FindAbsoluteInode("/link/.")
		require.True(t, ok)
		require.Equal(t, "data", n.Name())

		n, ok = r.FindAbsoluteInode("/link/..")
		require.True(t, ok)
		require.Same(t, r.Root(), n)
	})
	t.Run("intermediate links are followed", func(t *testing.T) {
		n, ok := r.FindAbsoluteInode("/link/file")
		require.True(t, ok)
		p, err := n.Path()
		require.NoError(t, err)
		require.Equal(t, "/data/file", p)

		created, err := r.CreateFile("/link/other")
		require.NoError(t, err)
		p, err = created.Path()
		require.NoError(t, err)
		require.Equal(t, "/data/other", p)
	})
	t.Run("relative targets", func(t *testing.T) {
		_, err := r.CreateSymlink("file", "/data/rel")
		require.NoError(t, err)
		_, err = r.CreateSymlink("../data/file", "/data/up")
		require.NoError(t, err)

		for _, p := range []string{"/data/rel", "/data/up", "/link/rel"} {
			n, err := r.Stat(p)
			require.NoError(t, err, "path %q", p)
			require.Equal(t, "file", n.Name())
		}
	})
	t.Run("dangling", func(t *testing.T) {
		_, err := r.CreateSymlink("/nowhere", "/dangling")
		require.NoError(t, err)

		_, ok := r.FindAbsoluteInode("/dangling")
		require.True(t, ok)
		_, err = r.Stat("/dangling")
		require.ErrorIs(t, err, ErrEntryNotFound)
	})
	t.Run("loops", func(t *testing.T) {
		_, err := r.CreateSymlink("/loop-b", "/loop-a")
		require.NoError(t, err)
		_, err = r.CreateSymlink("/loop-a", "/loop-b")
		require.NoError(t, err)

		_, err = r.Stat("/loop-a")
		require.ErrorIs(t, err, ErrTooManyLinks)
		_, ok := r.FindAbsoluteInode("/loop-a/x")
		require.False(t, ok)
	})
	t.Run("chain under the limit", func(t *testing.T) {
		prev := "/data"
		for i := range maxLinks {
			next := fmt.Sprintf("/chain%d", i)
			_, err := r.CreateSymlink(prev, next)
			require.NoError(t, err)
			prev = next
		}
		n, err := r.Stat(prev)
		require.NoError(t, err)
		require.Equal(t, "data", n.Name())

		_, err = r.CreateSymlink(prev, "/chain-over")
		require.NoError(t, err)
		_, err = r.Stat("/chain-over")
		require.ErrorIs(t, err, ErrTooManyLinks)
	})
}

func TestRemoveInode(t *testing.T) {
	r := newTestRepository(t)
	_, err := r.MkdirAll("/a/b/c")
	require.NoError(t, err)
	_, err = r.CreateFile("/a/b/c/f")
	require.NoError(t, err)

	before := r.Root().Metadata().UpdatedAt
	require.NoError(t, r.RemoveInode("/a"))
	require.True(t, r.Root().Metadata().UpdatedAt.After(before))

	for _, p := range []string{"/a", "/a/b", "/a/b/c/f"} {
		_, ok := r.FindAbsoluteInode(p)
		require.False(t, ok, "path %q", p)
	}

	requirePathError(t, r.RemoveInode("/a"), ErrEntryNotFound, "/a")
	requirePathError(t, r.RemoveInode("/a/b"), ErrDirectoryNotFound, "/a")
	require.ErrorIs(t, r.RemoveInode("/"), ErrIncorrectPath)
	require.ErrorIs(t, r.RemoveInode("relative"), ErrIncorrectPath)

	_, err = r.CreateDirectory("/d")
	require.NoError(t, err)
	require.ErrorIs(t, r.RemoveInode("/d/.."), ErrIncorrectPath)
	_, ok := r.FindAbsoluteInode("/d")
	require.True(t, ok)
}

func TestRemoveLinkKeepsTarget(t *testing.T) {
	r := newTestRepository(t)
	_, err := r.CreateDirectory("/target")
	require.NoError(t, err)
	_, err = r.CreateSymlink("/target", "/link")
	require.NoError(t, err)

	require.NoError(t, r.RemoveInode("/link"))
	_, ok := r.FindAbsoluteInode("/link")
	require.False(t, ok)
	_, ok = r.FindAbsoluteInode("/target")
	require.True(t, ok)
}

func TestMkdirAll(t *testing.T) {
	r := newTestRepository(t)

	d, err := r.MkdirAll("/x/y/z", WithOwner(1, 1))
	require.NoError(t, err)
	p, err := d.Path()
	require.NoError(t, err)
	require.Equal(t, "/x/y/z", p)
	require.Equal(t, identity.UserID(1), d.Metadata().Owner)

	again, err := r.MkdirAll("/x//y/./z/")
	require.NoError(t, err)
	require.Same(t, d, again)

	root, err := r.MkdirAll("/")
	require.NoError(t, err)
	require.Same(t, r.Root(), root)

	_, err = r.CreateFile("/x/file")
	require.NoError(t, err)
	_, err = r.MkdirAll("/x/file/sub")
	requirePathError(t, err, ErrNotADirectory, "/x/file")

	_, err = r.CreateSymlink("/x/y", "/short")
	require.NoError(t, err)
	via, err := r.MkdirAll("/short/z")
	require.NoError(t, err)
	require.Same(t, d, via)

	_, err = r.MkdirAll("relative")
	require.ErrorIs(t, err, ErrIncorrectPath)
}

func TestAddUser(t *testing.T) {
	t.Run("creates home", func(t *testing.T) {
		r := newTestRepository(t)
		id, err := r.AddUser("bob")
		require.NoError(t, err)

		u, ok := r.GetUser(id)
		require.True(t, ok)
		require.Equal(t, "bob", u.Name)
		require.Equal(t, "/home/bob", u.Home)

		g, ok := r.GetGroup(u.PrimaryGroup())
		require.True(t, ok)
		require.Equal(t, "bob", g.Name)

		home, ok := r.FindAbsoluteInode("/home")
		require.True(t, ok)
		require.Equal(t, identity.RootUser, home.Metadata().Owner)

		bob, ok := r.FindAbsoluteInode("/home/bob")
		require.True(t, ok)
		require.True(t, bob.IsDir())
		md := bob.Metadata()
		require.Equal(t, id, md.Owner)
		require.Equal(t, u.PrimaryGroup(), md.Group)
	})
	t.Run("second user reuses home root", func(t *testing.T) {
		r := newTestRepository(t)
		_, err := r.AddUser("bob")
		require.NoError(t, err)
		_, err = r.AddUser("alice")
		require.NoError(t, err)

		home, ok := r.FindAbsoluteInode("/home")
		require.True(t, ok)
		require.Len(t, home.Children(), 2)
	})
	t.Run("duplicate", func(t *testing.T) {
		r := newTestRepository(t)
		_, err := r.AddUser("bob")
		require.NoError(t, err)
		_, err = r.AddUser("bob")
		require.ErrorIs(t, err, identity.ErrUserAlreadyExists)
		require.Len(t, r.Identities().Users(), 2)
	})
	t.Run("invalid name", func(t *testing.T) {
		r := newTestRepository(t)
		for _, name := range []string{"", "..", "a/b"} {
			_, err := r.AddUser(name)
			require.ErrorIs(t, err, ErrIncorrectPath, "name %q", name)
		}
	})
	t.Run("home root is a file", func(t *testing.T) {
		r := newTestRepository(t)
		_, err := r.CreateFile("/home")
		require.NoError(t, err)

		_, err = r.AddUser("bob")
		requirePathError(t, err, ErrNotADirectory, "/home")
		_, ok := r.Identities().UserByName("bob")
		require.False(t, ok)
		_, ok = r.Identities().GroupByName("bob")
		require.False(t, ok)
	})
	t.Run("home already taken", func(t *testing.T) {
		r := newTestRepository(t)
		_, err := r.MkdirAll("/home/bob")
		require.NoError(t, err)

		_, err = r.AddUser("bob")
		requirePathError(t, err, ErrEntryAlreadyExists, "/home/bob")
		_, ok := r.Identities().UserByName("bob")
		require.False(t, ok)
	})
}

func TestConcurrentCreate(t *testing.T) {
	r := newTestRepository(t)
	_, err := r.CreateDirectory("/shared")
	require.NoError(t, err)

	const workers = 32
	var wins atomic.Int32
	var g errgroup.Group
	for i := range workers {
		g.Go(func() error {
			if _, err := r.CreateFile(fmt.Sprintf("/shared/f%d", i)); err != nil {
				return err
			}
			_, err := r.CreateDirectory("/shared/contended")
			switch {
			case err == nil:
				wins.Add(1)
			case !errors.Is(err, ErrEntryAlreadyExists):
				return err
			}
			_, err = r.MkdirAll("/deep/tree/of/dirs")
			return err
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, int32(1), wins.Load())
	shared, ok := r.FindAbsoluteInode("/shared")
	require.True(t, ok)
	require.Len(t, shared.Children(), workers+1)

	for _, p := range []string{"/deep", "/deep/tree", "/deep/tree/of"} {
		n, ok := r.FindAbsoluteInode(p)
		require.True(t, ok)
		require.Len(t, n.Children(), 1)
	}
}

func TestConcurrentAddUser(t *testing.T) {
	r := newTestRepository(t)

	names := []string{"ann", "ben", "cat", "dan"}
	var g errgroup.Group
	var created atomic.Int32
	for i := range 16 {
		g.Go(func() error {
			_, err := r.AddUser(names[i%len(names)])
			switch {
			case err == nil:
				created.Add(1)
			case !errors.Is(err, identity.ErrUserAlreadyExists):
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, int32(len(names)), created.Load())
	home, ok := r.FindAbsoluteInode("/home")
	require.True(t, ok)
	require.Len(t, home.Children(), len(names))
}
