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

// Package paths turns the path tokens a shell user types into absolute
// paths. It never consults the filesystem.
package paths

import (
	"path"
	"strings"
)

const (
	// Home is the token naming the acting user's home directory.
	Home = "~"
	// Previous is the cd token for the previous working directory. It is
	// recognized by the session before Resolve is called.
	Previous = "-"
)

// Resolve maps raw to an absolute path using home for "~" prefixed tokens
// and cwd for everything relative. Absolute input is returned unchanged;
// every other result is cleaned. Going up from "/" stays at "/".
func Resolve(raw, home, cwd string) string {
	switch {
	case path.IsAbs(raw):
		return raw
	case raw == Home:
		return home
	case strings.HasPrefix(raw, Home+"/"):
		return path.Join(home, raw[len(Home)+1:])
	case raw == ".." || raw == "../":
		return path.Dir(path.Clean(cwd))
	case raw == "." || raw == "./":
		return cwd
	default:
		return path.Join(cwd, raw)
	}
}

