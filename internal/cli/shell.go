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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chainguard-dev/clog"
	"golang.org/x/term"

	"chainguard.dev/vfsh/pkg/session"
	"chainguard.dev/vfsh/pkg/shell"
	"chainguard.dev/vfsh/pkg/tarball"
)

// boot builds the configured tree, loads the import archive when one was
// given and opens a shell for the starting user.
func (o *globalOptions) boot(ctx context.Context) (*shell.Shell, error) {
	log := clog.FromContext(ctx)

	repo, uid, err := o.cfg.Boot(ctx)
	if err != nil {
		return nil, fmt.Errorf("booting tree: %w", err)
	}

	if o.importPath != "" {
		f, err := os.Open(o.importPath)
		if err != nil {
			return nil, fmt.Errorf("opening import: %w", err)
		}
		defer f.Close()
		if err := tarball.ReadArchive(ctx, f, repo); err != nil {
			return nil, fmt.Errorf("importing %s: %w", o.importPath, err)
		}
		log.Infof("imported %s", o.importPath)
	}

	s, err := session.New(repo, uid)
	if err != nil {
		return nil, err
	}
	log.Debugf("session %s started as %s", s.ID(), o.cfg.User)
	return shell.New(s, shell.WithHostname(o.cfg.Hostname)), nil
}

func emit(w io.Writer, output string) {
	if output != "" {
		fmt.Fprintln(w, output)
	}
}

// runCommands executes each line in order and stops at the first line the
// shell rejects.
func runCommands(ctx context.Context, sh *shell.Shell, lines []string, out io.Writer) error {
	for _, line := range lines {
		if !sh.Active() {
			return nil
		}
		output, err := sh.Execute(ctx, line)
		emit(out, output)
		if err != nil {
			return err
		}
	}
	return nil
}

// runScript is runCommands over a reader. Blank lines and lines starting
// with # are skipped.
func runScript(ctx context.Context, sh *shell.Shell, r io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := scanner.Text()
		if skip(line) {
			continue
		}
		if err := runCommands(ctx, sh, []string{line}, out); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if !sh.Active() {
			break
		}
	}
	return scanner.Err()
}

// skip reports blank and comment lines.
func skip(line string) bool {
	line = strings.TrimSpace(line)
	return line == "" || strings.HasPrefix(line, "#")
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// repl reads lines until EOF or exit. Rejected lines are reported on errOut
// and do not end the loop.
func repl(ctx context.Context, sh *shell.Shell, prompt string, in io.Reader, out, errOut io.Writer) error {
	interactive := isTerminal(in)
	scanner := bufio.NewScanner(in)

	for sh.Active() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if interactive {
			fmt.Fprint(out, sh.Prompt(prompt))
		}
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()
		if skip(line) {
			continue
		}
		output, err := sh.Execute(ctx, line)
		emit(out, output)
		if err != nil {
			fmt.Fprintf(errOut, "vfsh: %v\n", err)
		}
	}
	if interactive && sh.Active() {
		fmt.Fprintln(out)
	}
	return scanner.Err()
}
