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

// Package config loads the settings of the vfsh shell from a YAML file and
// VFSH_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "VFSH"

var ErrUnknownKey = errors.New("unknown configuration key")

// Config is the top-level shell configuration.
type Config struct {
	// User is the account the shell starts as. It is created on boot unless
	// it is root.
	User string `mapstructure:"user" yaml:"user" validate:"required,username"`

	// Users are extra accounts created on boot, in order.
	Users []string `mapstructure:"users" yaml:"users" validate:"dive,username"`

	Hostname string `mapstructure:"hostname" yaml:"hostname" validate:"required,hostname"`

	// Prompt accepts the {user}, {host} and {cwd} placeholders.
	Prompt string `mapstructure:"prompt" yaml:"prompt" validate:"required"`

	// IdentityFiles creates /etc/passwd and /etc/group on boot and keeps
	// them in step with every added user.
	IdentityFiles bool `mapstructure:"identity_files" yaml:"identity_files"`

	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Seed lists entries created in the tree before the first prompt.
	Seed []SeedEntry `mapstructure:"seed" yaml:"seed" validate:"dive"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=pretty plain"`

	// Policy lists the log targets: builtin:stderr, builtin:stdout,
	// builtin:discard or a file path.
	Policy []string `mapstructure:"policy" yaml:"policy" validate:"min=1,dive,required"`
}

// SeedEntry describes one inode created on boot. Options are decoded per
// Type: files take "data", symlinks take "target".
type SeedEntry struct {
	Path    string         `mapstructure:"path" yaml:"path" validate:"required,startswith=/"`
	Type    string         `mapstructure:"type" yaml:"type" validate:"required,oneof=file directory symlink"`
	Owner   string         `mapstructure:"owner" yaml:"owner,omitempty" validate:"omitempty,username"`
	Mode    string         `mapstructure:"mode" yaml:"mode,omitempty" validate:"omitempty,filemode"`
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// envKeys are the scalar settings that may be overridden from the
// environment, e.g. VFSH_LOG_LEVEL=debug.
var envKeys = []string{"user", "users", "hostname", "prompt", "identity_files", "log.level", "log.format", "log.policy"}

// Load reads the configuration at configPath. An empty path searches the
// default location, and a missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if err := setupViper(v, configPath); err != nil {
		return nil, err
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return nil
	}
	v.AddConfigPath(Dir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	return nil
}

func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to read config file: %w", err)
}

// Dir returns $XDG_CONFIG_HOME/vfsh, falling back to ~/.config/vfsh.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vfsh")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "vfsh")
}

// DefaultPath is the file Load reads when given no path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Get returns the value of a dotted key such as "log.level", using the key
// layout Load reads.
func (c *Config) Get(key string) (any, error) {
	var tree map[string]any
	if err := mapstructure.Decode(c, &tree); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	var cur any = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
		if cur, ok = m[part]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
	}
	return cur, nil
}

// YAML renders the configuration so that it can be fed back to Load.
func (c *Config) YAML() ([]byte, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshalling config: %w", err)
	}
	return b, nil
}
