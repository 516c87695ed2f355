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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chainguard.dev/vfsh/pkg/shell"
)

const quietConfig = `
log:
  policy: [builtin:discard]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// execute runs the root command with a configuration that discards logs.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return executeWith(t, quietConfig, stdin, args...)
}

func executeWith(t *testing.T, config, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := New()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", writeFile(t, "config.yaml", config)}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandFlag(t *testing.T) {
	out, err := execute(t, "", "-c", "mkdir -p a/b", "-c", "ls a", "-c", "pwd")
	require.NoError(t, err)
	require.Equal(t, "b\n/home/user\n", out)

	_, err = execute(t, "", "-c", "frobnicate")
	require.ErrorIs(t, err, shell.ErrUnknownCommand)

	out, err = execute(t, "", "-c", "exit", "-c", "pwd")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestREPL(t *testing.T) {
	out, err := execute(t, "pwd\n\ncd /\n# comment\npwd\nbogus\nls missing\nexit\npwd\n")
	require.NoError(t, err)

	want := strings.Join([]string{
		"/home/user",
		"/",
		"vfsh: unknown command: bogus",
		"ls: cannot access 'missing': No such file or directory",
	}, "\n") + "\n"
	require.Equal(t, want, out)
}

func TestConfiguredUser(t *testing.T) {
	config := quietConfig + `
user: alice
users: [bob]
hostname: lab
seed:
  - path: /etc/motd
    type: file
    options:
      data: hi
`
	out, err := executeWith(t, config, "", "-c", "whoami", "-c", "pwd", "-c", "ls /etc", "-c", "getent passwd bob")
	require.NoError(t, err)
	require.Equal(t, "alice\n/home/alice\nmotd\nbob:x:1:1::/home/bob:/bin/vfsh\n", out)
}

func TestRun(t *testing.T) {
	script := writeFile(t, "setup.vfsh", `# build a small tree
mkdir -p /srv/www

touch /srv/www/index.html
ls /srv/www
`)
	out, err := execute(t, "", "run", script)
	require.NoError(t, err)
	require.Equal(t, "index.html\n", out)

	out, err = execute(t, "cd /tmp\npwd\n", "run", "-")
	require.NoError(t, err)
	require.Equal(t, "cd: /tmp: No such file or directory\n/home/user\n", out)

	failing := writeFile(t, "failing.vfsh", "pwd\n\nnope\npwd\n")
	out, err = execute(t, "", "run", failing)
	require.ErrorIs(t, err, shell.ErrUnknownCommand)
	require.ErrorContains(t, err, "line 3")
	require.True(t, strings.HasPrefix(out, "/home/user\n"))

	_, err = execute(t, "", "run", filepath.Join(t.TempDir(), "missing"))
	require.ErrorContains(t, err, "opening script")
}

func TestShowConfig(t *testing.T) {
	out, err := execute(t, "", "show-config")
	require.NoError(t, err)
	require.Contains(t, out, "hostname: vfsh\n")
	require.Contains(t, out, "- builtin:discard\n")

	out, err = execute(t, "", "show-config", "log.level")
	require.NoError(t, err)
	require.Equal(t, "info\n", out)

	out, err = execute(t, "", "--log-level", "debug", "show-config", "log.level")
	require.NoError(t, err)
	require.Equal(t, "debug\n", out)

	out, err = execute(t, "", "show-config", "log.policy")
	require.NoError(t, err)
	require.Equal(t, "- builtin:discard\n", out)

	_, err = execute(t, "", "show-config", "log.nope")
	require.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	_, err := executeWith(t, "user: Not-Valid\n", "", "-c", "pwd")
	require.ErrorContains(t, err, "configuration validation failed")
}

func TestExportImport(t *testing.T) {
	script := writeFile(t, "setup.vfsh", "mkdir -p /srv/www\ntouch /srv/www/index.html\nln -s /srv/www /home/user/www\n")
	archive := filepath.Join(t.TempDir(), "tree.tar.gz")

	_, err := execute(t, "", "export", "--script", script, "--source-date-epoch", "0", archive)
	require.NoError(t, err)

	out, err := execute(t, "", "--import", archive, "-c", "ls /srv/www", "-c", "ls www")
	require.NoError(t, err)
	require.Equal(t, "index.html\nindex.html\n", out)

	_, err = execute(t, "", "export", "--source-date-epoch", "yesterday", archive)
	require.ErrorContains(t, err, "source date epoch")

	_, err = execute(t, "", "--import", filepath.Join(t.TempDir(), "missing.tar.gz"), "-c", "pwd")
	require.ErrorContains(t, err, "opening import")
}

func TestDot(t *testing.T) {
	script := writeFile(t, "setup.vfsh", "mkdir -p /srv/www\nln -s /srv/www /home/user/www\nln -s /nowhere /home/user/dangling\n")

	out, err := execute(t, "", "dot", "--script", script)
	require.NoError(t, err)
	require.Contains(t, out, "digraph")
	require.Contains(t, out, "/srv/www")
	require.Contains(t, out, "/home/user/www")
	require.Contains(t, out, "/nowhere")
	require.Contains(t, out, "dashed")

	out, err = execute(t, "", "dot", "--links=false")
	require.NoError(t, err)
	require.NotContains(t, out, "dashed")
}
