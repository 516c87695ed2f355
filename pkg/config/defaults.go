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

package config

import "strings"

const (
	DefaultUser     = "user"
	DefaultHostname = "vfsh"
	DefaultPrompt   = "{user}@{host}:{cwd}$ "
)

// ApplyDefaults fills every unset field. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	if cfg.User == "" {
		cfg.User = DefaultUser
	}
	if cfg.Hostname == "" {
		cfg.Hostname = DefaultHostname
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	applyLogDefaults(&cfg.Log)
	applySeedDefaults(cfg.Seed)
}

func applyLogDefaults(cfg *LogConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	cfg.Level = strings.ToLower(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "pretty"
	}
	if len(cfg.Policy) == 0 {
		cfg.Policy = []string{"builtin:stderr"}
	}
}

func applySeedDefaults(entries []SeedEntry) {
	for i := range entries {
		entries[i].Type = strings.ToLower(entries[i].Type)
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
