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

	"github.com/stretchr/testify/require"
)

const testGroup = `root:x:0:
alice:x:1:
wheel:x:10:alice,bob
nobody:x:65534:
`

func TestReadGroupFile(t *testing.T) {
	fsys := fstest.MapFS{
		"etc/group": &fstest.MapFile{Data: []byte(testGroup), Mode: 0o644},
	}
	gf, err := ReadGroupFile(fsys, "etc/group")
	require.NoError(t, err)
	require.Len(t, gf.Entries, 4)

	require.Equal(t, "root", gf.Entries[0].GroupName)
	require.Empty(t, gf.Entries[0].Members)
	require.Equal(t, uint32(10), gf.Entries[2].GID)
	require.Equal(t, []string{"alice", "bob"}, gf.Entries[2].Members)
}

func TestGroupFileRoundTrip(t *testing.T) {
	gf := &GroupFile{}
	require.NoError(t, gf.Load(bytes.NewBufferString(testGroup)))

	var w bytes.Buffer
	require.NoError(t, gf.Write(&w))
	require.Equal(t, testGroup, w.String())
}

func TestGroupEntryMalformed(t *testing.T) {
	ge := GroupEntry{}
	require.Error(t, ge.Parse("root:x:0"))
	require.Error(t, ge.Parse("root:x:zero:"))
}

func TestGroupFileFilter(t *testing.T) {
	gf := GroupFile{}
	require.NoError(t, gf.Load(strings.NewReader(testGroup)))

	gf.Filter("wheel", "0")
	require.Len(t, gf.Entries, 2)
	require.Equal(t, "root", gf.Entries[0].GroupName)
	require.Equal(t, "wheel", gf.Entries[1].GroupName)
}
