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
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"chainguard.dev/vfsh/pkg/tarball"
)

func exportCmd(opts *globalOptions) *cobra.Command {
	var script string
	var epoch string

	cmd := &cobra.Command{
		Use:   "export <output.tar.gz>",
		Short: "Write the booted tree to a gzip-compressed tar archive",
		Long: `Write the tree built from the configuration, the import archive and an
optional script to a gzip-compressed tar archive. Use - for standard output.

The archive can be loaded back with --import.
`,
		Example: `  vfsh export --script setup.vfsh rootfs.tar.gz
  SOURCE_DATE_EPOCH=0 vfsh export - > rootfs.tar.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := clog.FromContext(cmd.Context())

			var topts []tarball.Option
			if epoch != "" {
				sec, err := strconv.ParseInt(epoch, 10, 64)
				if err != nil {
					return fmt.Errorf("parsing source date epoch %q: %w", epoch, err)
				}
				topts = append(topts, tarball.WithSourceDateEpoch(time.Unix(sec, 0).UTC()))
			}
			tctx, err := tarball.NewContext(topts...)
			if err != nil {
				return err
			}

			sh, err := opts.bootScript(cmd, script)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if args[0] != "-" {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("creating archive: %w", err)
				}
				defer f.Close()
				out = f
			}

			if err := tctx.WriteArchive(out, sh.Session().Repository()); err != nil {
				return err
			}
			log.Infof("wrote %s", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&script, "script", "", "script of shell commands to run before exporting")
	cmd.Flags().StringVar(&epoch, "source-date-epoch", os.Getenv("SOURCE_DATE_EPOCH"), "unix timestamp stamped on every entry instead of its own modification time")

	return cmd
}
