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

// Package passwd reads and writes the colon-separated /etc/passwd and
// /etc/group formats the identity store is rendered in.
package passwd

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// An UserEntry is one /etc/passwd line.
type UserEntry struct {
	UserName string
	Password string
	UID      uint32
	GID      uint32
	Info     string
	HomeDir  string
	Shell    string
}

// A UserFile holds the entries of an /etc/passwd file in file order.
type UserFile struct {
	Entries []UserEntry
}

// ReadUserFile parses the /etc/passwd file found at filePath in fsys.
func ReadUserFile(fsys fs.FS, filePath string) (UserFile, error) {
	var uf UserFile
	err := readFile(fsys, filePath, uf.Load)
	return uf, err
}

// Load appends the entries read from r.
func (uf *UserFile) Load(r io.Reader) error {
	entries, err := load[UserEntry](r)
	if err != nil {
		return err
	}
	uf.Entries = append(uf.Entries, entries...)
	return nil
}

func (uf *UserFile) Write(w io.Writer) error {
	return write(w, uf.Entries)
}

// Filter keeps the entries whose name or numeric uid is one of keys. No keys
// keeps everything.
func (uf *UserFile) Filter(keys ...string) {
	if len(keys) == 0 {
		return
	}
	uf.Entries = slices.DeleteFunc(uf.Entries, func(e UserEntry) bool {
		return !matches(keys, e.UserName, e.UID)
	})
}

func (ue *UserEntry) Parse(line string) error {
	parts, err := split(line, 7)
	if err != nil {
		return err
	}
	if ue.UID, err = parseID("UID", parts[2]); err != nil {
		return err
	}
	if ue.GID, err = parseID("GID", parts[3]); err != nil {
		return err
	}
	ue.UserName, ue.Password = parts[0], parts[1]
	ue.Info, ue.HomeDir, ue.Shell = parts[4], parts[5], parts[6]
	return nil
}

func (ue *UserEntry) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s:%s:%d:%d:%s:%s:%s\n", ue.UserName, ue.Password, ue.UID, ue.GID, ue.Info, ue.HomeDir, ue.Shell)
	return err
}

func readFile(fsys fs.FS, filePath string, parse func(io.Reader) error) error {
	file, err := fsys.Open(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", filePath)
	}
	defer file.Close()

	return errors.Wrapf(parse(file), "unable to parse %s", filePath)
}

// load parses one entry per non-blank line.
func load[E any, P interface {
	*E
	Parse(string) error
}](r io.Reader) ([]E, error) {
	var entries []E
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}

		var e E
		if err := P(&e).Parse(scanner.Text()); err != nil {
			return nil, errors.Wrapf(err, "line %d", n)
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "unable to parse")
	}
	return entries, nil
}

func write[E any, P interface {
	*E
	Write(io.Writer) error
}](w io.Writer, entries []E) error {
	for i := range entries {
		if err := P(&entries[i]).Write(w); err != nil {
			return errors.Wrap(err, "unable to write entry")
		}
	}
	return nil
}

func split(line string, fields int) ([]string, error) {
	parts := strings.Split(strings.TrimSpace(line), ":")
	if len(parts) != fields {
		return nil, errors.Errorf("malformed line, contains %d parts, expecting %d", len(parts), fields)
	}
	return parts, nil
}

func parseID(field, s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.Errorf("failed to parse %s %s", field, s)
	}
	return uint32(id), nil
}

func matches(keys []string, name string, id uint32) bool {
	return slices.Contains(keys, name) || slices.Contains(keys, strconv.FormatUint(uint64(id), 10))
}
