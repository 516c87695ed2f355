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
	"log/slog"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/clog/slag"
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/version"

	"chainguard.dev/vfsh/pkg/config"
	"chainguard.dev/vfsh/pkg/log"
)

type globalOptions struct {
	configPath string
	importPath string
	level      slag.Level

	cfg *config.Config
}

func New() *cobra.Command {
	opts := &globalOptions{level: slag.Level(slog.LevelInfo)}
	var commands []string

	cmd := &cobra.Command{
		Use:   "vfsh",
		Short: "An interactive shell over an in-memory filesystem",
		Long: `An interactive shell over an in-memory filesystem.

Without arguments vfsh reads commands from standard input, showing a prompt
when attached to a terminal. The tree lives only as long as the process.
`,
		Example: `  vfsh
  vfsh -c 'mkdir -p a/b' -c 'ls -l a'
  vfsh --config ./vfsh.yaml --import rootfs.tar.gz`,
		Args:              cobra.NoArgs,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			sh, err := opts.boot(cmd.Context())
			if err != nil {
				return err
			}
			if len(commands) > 0 {
				return runCommands(cmd.Context(), sh, commands, cmd.OutOrStdout())
			}
			return repl(cmd.Context(), sh, opts.cfg.Prompt, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringArrayVarP(&commands, "command", "c", nil, "run the given command line instead of reading standard input (repeatable)")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", fmt.Sprintf("path to the configuration file (default %s)", config.DefaultPath()))
	cmd.PersistentFlags().StringVar(&opts.importPath, "import", "", "load a .tar.gz archive into the tree before the first command")
	cmd.PersistentFlags().Var(&opts.level, "log-level", "log level, overriding the configuration file")

	cmd.AddCommand(runCmd(opts))
	cmd.AddCommand(showConfig(opts))
	cmd.AddCommand(dotCmd(opts))
	cmd.AddCommand(exportCmd(opts))
	cmd.AddCommand(version.Version())

	return cmd
}

// setup loads the configuration and installs the logger on the command
// context.
func (o *globalOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = strings.ToLower(slog.Level(o.level).String())
	}
	o.cfg = cfg

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	h, err := log.New(cfg.Log.Format, cfg.Log.Policy, level)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(h))
	cmd.SetContext(clog.WithLogger(cmd.Context(), clog.New(h)))
	return nil
}
