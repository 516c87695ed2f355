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
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func showConfig(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show-config [key]",
		Short: "Show the configuration derived from the file and environment",
		Long: `Show the configuration derived from the configuration file, the VFSH_
environment variables and the defaults.

The derived configuration is rendered in YAML. Given a dotted key such as
log.level, only that value is printed.
`,
		Example: `  vfsh show-config
  vfsh show-config log.policy`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				b, err := opts.cfg.YAML()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}

			v, err := opts.cfg.Get(args[0])
			if err != nil {
				return err
			}
			if s, ok := v.(string); ok {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
				return err
			}

			var buf bytes.Buffer
			enc := yaml.NewEncoder(&buf)
			if err := enc.Encode(v); err != nil {
				return fmt.Errorf("failed to encode YAML document: %w", err)
			}
			if _, err := buf.WriteTo(cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("failed to write YAML document: %w", err)
			}
			return nil
		},
	}
}
