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

package cli

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"
	"github.com/tmc/dot"

	"chainguard.dev/vfsh/pkg/shell"
	"chainguard.dev/vfsh/pkg/vfs"
)

func dotCmd(opts *globalOptions) *cobra.Command {
	var script string
	var links bool

	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Output a digraph of the booted tree",
		Long: `Output a digraph of the tree built from the configuration, the import
archive and an optional script.

# Render an svg of the tree
vfsh dot --script setup.vfsh | dot -Tsvg > tree.svg
`,
		Example: `  vfsh dot --script setup.vfsh`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sh, err := opts.bootScript(cmd, script)
			if err != nil {
				return err
			}
			g, err := renderGraph(sh.Session().Repository(), links)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), g.String())
			return err
		},
	}

	cmd.Flags().StringVar(&script, "script", "", "script of shell commands to run before rendering")
	cmd.Flags().BoolVar(&links, "links", true, "draw an edge from every symbolic link to its target")

	return cmd
}

// bootScript boots a shell and runs script on it, discarding its output.
func (o *globalOptions) bootScript(cmd *cobra.Command, script string) (*shell.Shell, error) {
	sh, err := o.boot(cmd.Context())
	if err != nil {
		return nil, err
	}
	if script == "" {
		return sh, nil
	}

	f, err := os.Open(script)
	if err != nil {
		return nil, fmt.Errorf("opening script: %w", err)
	}
	defer f.Close()
	if err := runScript(cmd.Context(), sh, f, cmd.ErrOrStderr()); err != nil {
		return nil, fmt.Errorf("%s: %w", script, err)
	}
	return sh, nil
}

var shapes = map[vfs.Kind]string{
	vfs.KindDirectory: "folder",
	vfs.KindFile:      "note",
	vfs.KindLink:      "cds",
}

// renderGraph draws one node per inode, keyed by absolute path, with an edge
// from every directory to each child.
func renderGraph(repo *vfs.Repository, links bool) (*dot.Graph, error) {
	var errs []error
	set := func(obj interface{ Set(string, string) error }, key, value string) {
		if err := obj.Set(key, value); err != nil {
			errs = append(errs, err)
		}
	}

	out := dot.NewGraph("tree")
	set(out, "rankdir", "LR")
	out.SetType(dot.DIGRAPH)

	nodes := map[string]*dot.Node{}
	node := func(p, label string, kind vfs.Kind) *dot.Node {
		n := dot.NewNode(p)
		set(n, "label", label)
		set(n, "shape", shapes[kind])
		out.AddNode(n)
		nodes[p] = n
		return n
	}

	type linkEdge struct{ from, to string }
	var pending []linkEdge

	var walk func(dir *vfs.Inode, p string, parent *dot.Node)
	walk = func(dir *vfs.Inode, p string, parent *dot.Node) {
		for _, child := range dir.Children() {
			cp := path.Join(p, child.Name())
			n := node(cp, child.Name(), child.Kind())
			out.AddEdge(dot.NewEdge(parent, n))

			switch child.Kind() {
			case vfs.KindDirectory:
				walk(child, cp, n)
			case vfs.KindLink:
				target, _ := child.LinkTarget()
				if !path.IsAbs(target) {
					target = path.Join(p, target)
				}
				pending = append(pending, linkEdge{from: cp, to: path.Clean(target)})
			}
		}
	}
	root := node("/", "/", vfs.KindDirectory)
	walk(repo.Root(), "/", root)

	if links {
		for _, l := range pending {
			to, ok := nodes[l.to]
			if !ok {
				// dangling
				to = dot.NewNode(l.to)
				set(to, "style", "dashed")
				out.AddNode(to)
				nodes[l.to] = to
			}
			e := dot.NewEdge(nodes[l.from], to)
			set(e, "style", "dashed")
			out.AddEdge(e)
		}
	}

	return out, errors.Join(errs...)
}
