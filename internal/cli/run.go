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
	"os"

	"github.com/spf13/cobra"
)

func runCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a script of shell commands",
		Long: `Run a script of shell commands, one per line.

Blank lines and lines starting with # are skipped. The script stops at the
first line the shell rejects: an unknown command, a usage error or a line
that cannot be parsed. Failures reported by a command, such as a missing
file, are printed and do not stop the script.
`,
		Example: `  vfsh run setup.vfsh
  echo 'mkdir -p /srv/www' | vfsh run -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := opts.boot(cmd.Context())
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening script: %w", err)
				}
				defer f.Close()
				in = f
			}
			return runScript(cmd.Context(), sh, in, cmd.OutOrStdout())
		},
	}
}
