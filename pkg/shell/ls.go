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

package shell

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"

	"chainguard.dev/vfsh/pkg/identity"
	"chainguard.dev/vfsh/pkg/vfs"
)

type lsCommand struct{}

func (lsCommand) Name() string  { return "ls" }
func (lsCommand) Usage() string { return "ls [-l] [-a] [-A] [path...]" }

type lsOptions struct {
	long      bool
	all       bool
	almostAll bool
}

// lsEntry is one listed name. The name may differ from the inode's own,
// as for "." and "..", or for operands given as paths.
type lsEntry struct {
	name string
	node *vfs.Inode
}

func (lsCommand) Run(_ context.Context, sh *Shell, args []string) (string, error) {
	var o lsOptions
	operands, err := parseFlags("ls", args, func(flags *pflag.FlagSet) {
		flags.BoolVarP(&o.long, "long", "l", false, "use a long listing format")
		flags.BoolVarP(&o.all, "all", "a", false, "do not ignore entries starting with .")
		flags.BoolVarP(&o.almostAll, "almost-all", "A", false, "do not list implied . and ..")
	})
	if err != nil {
		return "", err
	}
	if len(operands) == 0 {
		operands = []string{"."}
	}

	r := newReport("ls")
	var files, dirs []lsEntry
	for _, p := range operands {
		n, ok := sh.session.FindInode(p)
		if !ok {
			r.failf("cannot access '%s': No such file or directory", p)
			continue
		}
		if n.Kind() == vfs.KindLink && !o.long {
			if target, err := sh.session.Stat(p); err == nil {
				n = target
			}
		}
		if n.IsDir() {
			dirs = append(dirs, lsEntry{name: p, node: n})
		} else {
			files = append(files, lsEntry{name: p, node: n})
		}
	}

	now := sh.repo().Now()
	var blocks []string
	if len(files) > 0 {
		blocks = append(blocks, o.render(sh, files, now))
	}
	for _, d := range dirs {
		body := o.render(sh, o.children(d.node), now)
		if len(operands) > 1 {
			body = strings.TrimSuffix(d.name+":\n"+body, "\n")
		}
		blocks = append(blocks, body)
	}
	if out := strings.Join(blocks, "\n\n"); out != "" {
		r.print(out)
	}
	return r.String(), nil
}

func (o lsOptions) children(dir *vfs.Inode) []lsEntry {
	var out []lsEntry
	if o.all {
		parent, err := dir.Parent()
		if err != nil {
			// the root is its own parent
			parent = dir
		}
		out = append(out, lsEntry{name: ".", node: dir}, lsEntry{name: "..", node: parent})
	}
	for _, c := range dir.Children() {
		if strings.HasPrefix(c.Name(), ".") && !o.all && !o.almostAll {
			continue
		}
		out = append(out, lsEntry{name: c.Name(), node: c})
	}
	return out
}

func (o lsOptions) render(sh *Shell, entries []lsEntry, now time.Time) string {
	if !o.long {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.name)
		}
		return strings.Join(names, "  ")
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, longRow(sh, e, now))
	}
	return renderTable(rows)
}

func longRow(sh *Shell, e lsEntry, now time.Time) []string {
	md := e.node.Metadata()

	kind, name := "-", e.name
	switch e.node.Kind() {
	case vfs.KindDirectory:
		kind = "d"
	case vfs.KindLink:
		kind = "l"
		target, _ := e.node.LinkTarget()
		name += " -> " + target
	case vfs.KindFile:
	}

	return []string{
		kind + md.Permissions.String(),
		strconv.Itoa(e.node.LinkCount()),
		userName(sh.repo(), md.Owner),
		groupName(sh.repo(), md.Group),
		strconv.FormatInt(e.node.Size(), 10),
		formatDate(md.UpdatedAt, now),
		name,
	}
}

func userName(repo *vfs.Repository, id identity.UserID) string {
	if u, ok := repo.GetUser(id); ok {
		return u.Name
	}
	return strconv.FormatUint(uint64(id), 10)
}

func groupName(repo *vfs.Repository, id identity.GroupID) string {
	if g, ok := repo.GetGroup(id); ok {
		return g.Name
	}
	return strconv.FormatUint(uint64(id), 10)
}

// formatDate shows the time of day for this year's dates and the year for
// older ones.
func formatDate(t, now time.Time) string {
	if t.Year() == now.Year() {
		return t.Format("Jan 2 15:04")
	}
	return t.Format("Jan 2 2006")
}

// renderTable aligns rows into space-separated columns, numbers flush right.
func renderTable(rows [][]string) string {
	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetRowSeparator("")
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetTablePadding(" ")
	table.SetNoWhiteSpace(true)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
	})
	table.AppendBulk(rows)
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n")
}
