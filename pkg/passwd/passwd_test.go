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

package passwd

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testPasswd = `root:x:0:0:root:/:/bin/vfsh
alice:x:1:1::/home/alice:/bin/vfsh
nobody:x:65534:65534:nobody:/:/sbin/nologin
`

func TestReadUserFile(t *testing.T) {
	fsys := fstest.MapFS{
		"etc/passwd": &fstest.MapFile{Data: []byte(testPasswd), Mode: 0o644},
	}
	uf, err := ReadUserFile(fsys, "etc/passwd")
	require.NoError(t, err)

	want := []UserEntry{
		{UserName: "root", Password: "x", UID: 0, GID: 0, Info: "root", HomeDir: "/", Shell: "/bin/vfsh"},
		{UserName: "alice", Password: "x", UID: 1, GID: 1, HomeDir: "/home/alice", Shell: "/bin/vfsh"},
		{UserName: "nobody", Password: "x", UID: 65534, GID: 65534, Info: "nobody", HomeDir: "/", Shell: "/sbin/nologin"},
	}
	if diff := cmp.Diff(want, uf.Entries); diff != "" {
		t.Errorf("ReadUserFile() mismatch (-want +got):\n%s", diff)
	}
}

func TestUserFileRoundTrip(t *testing.T) {
	uf := &UserFile{}
	require.NoError(t, uf.Load(strings.NewReader("\n"+testPasswd+"\n")))

	var w bytes.Buffer
	require.NoError(t, uf.Write(&w))
	require.Equal(t, testPasswd, w.String())
}

func TestUserEntryMalformed(t *testing.T) {
	for _, line := range []string{
		"root:x:0:0",
		"root:x:zero:0:root:/:/bin/vfsh",
		"root:x:0:-1:root:/:/bin/vfsh",
		"root:x:4294967296:0:root:/:/bin/vfsh",
	} {
		ue := UserEntry{}
		require.Error(t, ue.Parse(line), line)
	}

	uf := &UserFile{}
	err := uf.Load(strings.NewReader("root:x:0:0:root:/:/bin/vfsh\nbroken\n"))
	require.ErrorContains(t, err, "line 2")
	require.Empty(t, uf.Entries)
}

func TestReadUserFileMissing(t *testing.T) {
	_, err := ReadUserFile(fstest.MapFS{}, "etc/passwd")
	require.ErrorContains(t, err, "failed to open etc/passwd")

	fsys := fstest.MapFS{"etc/passwd": &fstest.MapFile{Data: []byte("nope\n")}}
	_, err = ReadUserFile(fsys, "etc/passwd")
	require.ErrorContains(t, err, "unable to parse etc/passwd")
}

func TestUserFileFilter(t *testing.T) {
	names := func(uf UserFile) []string {
		var out []string
		for _, e := range uf.Entries {
			out = append(out, e.UserName)
		}
		return out
	}

	for _, tc := range []struct {
		keys []string
		want []string
	}{
		{nil, []string{"root", "alice", "nobody"}},
		{[]string{"alice"}, []string{"alice"}},
		{[]string{"65534", "root"}, []string{"root", "nobody"}},
		{[]string{"bob", "7"}, nil},
	} {
		uf := UserFile{}
		require.NoError(t, uf.Load(strings.NewReader(testPasswd)))
		uf.Filter(tc.keys...)
		require.Equal(t, tc.want, names(uf), "keys %v", tc.keys)
	}
}
