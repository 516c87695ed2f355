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
	"fmt"
	"strconv"
	"strings"
)

type echoCommand struct{}

func (echoCommand) Name() string  { return "echo" }
func (echoCommand) Usage() string { return "echo [args...]" }

func (echoCommand) Run(_ context.Context, _ *Shell, args []string) (string, error) {
	return strings.Join(args, " "), nil
}

type historyCommand struct{}

func (historyCommand) Name() string  { return "history" }
func (historyCommand) Usage() string { return "history [n]" }

// Run prints the first n entries, numbered from 1.
func (historyCommand) Run(_ context.Context, sh *Shell, args []string) (string, error) {
	entries := sh.session.History()

	switch len(args) {
	case 0:
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return "", usageError("history", "%s: numeric argument required", args[0])
		}
		entries = entries[:min(n, len(entries))]
	default:
		return "", usageError("history", "too many arguments")
	}

	lines := make([]string, 0, len(entries))
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%5d %s", i+1, e))
	}
	return strings.Join(lines, "\n"), nil
}

type exitCommand struct{}

func (exitCommand) Name() string  { return "exit" }
func (exitCommand) Usage() string { return "exit" }

func (exitCommand) Run(_ context.Context, sh *Shell, _ []string) (string, error) {
	sh.active.Store(false)
	return "", nil
}

type helpCommand struct{}

func (helpCommand) Name() string  { return "help" }
func (helpCommand) Usage() string { return "help" }

func (helpCommand) Run(_ context.Context, _ *Shell, _ []string) (string, error) {
	names := Names()
	lines := make([]string, 0, len(names))
	for _, name := range names {
		c, _ := Lookup(name)
		lines = append(lines, c.Usage())
	}
	return strings.Join(lines, "\n"), nil
}
