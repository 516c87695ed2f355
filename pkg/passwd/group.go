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
	"fmt"
	"io"
	"io/fs"
	"slices"
	"strings"
)

// A GroupEntry is one /etc/group line. Members lists supplementary members
// only.
type GroupEntry struct {
	GroupName string
	Password  string
	GID       uint32
	Members   []string
}

// A GroupFile holds the entries of an /etc/group file in file order.
type GroupFile struct {
	Entries []GroupEntry
}

// ReadGroupFile parses the /etc/group file found at filePath in fsys.
func ReadGroupFile(fsys fs.FS, filePath string) (GroupFile, error) {
	var gf GroupFile
	err := readFile(fsys, filePath, gf.Load)
	return gf, err
}

// Load appends the entries read from r.
func (gf *GroupFile) Load(r io.Reader) error {
	entries, err := load[GroupEntry](r)
	if err != nil {
		return err
	}
	gf.Entries = append(gf.Entries, entries...)
	return nil
}

func (gf *GroupFile) Write(w io.Writer) error {
	return write(w, gf.Entries)
}

// Filter keeps the entries whose name or numeric gid is one of keys. No keys
// keeps everything.
func (gf *GroupFile) Filter(keys ...string) {
	if len(keys) == 0 {
		return
	}
	gf.Entries = slices.DeleteFunc(gf.Entries, func(e GroupEntry) bool {
		return !matches(keys, e.GroupName, e.GID)
	})
}

func (ge *GroupEntry) Parse(line string) error {
	parts, err := split(line, 4)
	if err != nil {
		return err
	}
	if ge.GID, err = parseID("GID", parts[2]); err != nil {
		return err
	}
	ge.GroupName, ge.Password = parts[0], parts[1]
	ge.Members = nil
	if parts[3] != "" {
		ge.Members = strings.Split(parts[3], ",")
	}
	return nil
}

func (ge *GroupEntry) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s:%s:%d:%s\n", ge.GroupName, ge.Password, ge.GID, strings.Join(ge.Members, ","))
	return err
}
