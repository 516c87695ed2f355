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

import (
	"context"
	"fmt"
	"path"
	"slices"

	"github.com/chainguard-dev/clog"
	"github.com/mitchellh/mapstructure"

	"chainguard.dev/vfsh/pkg/identity"
	"chainguard.dev/vfsh/pkg/vfs"
)

type fileOptions struct {
	Data string `mapstructure:"data"`
}

type linkOptions struct {
	Target string `mapstructure:"target"`
}

// decodeOptions returns the typed options of the entry, rejecting keys that
// do not apply to its type.
func (e SeedEntry) decodeOptions() (any, error) {
	switch e.Type {
	case "file":
		var o fileOptions
		if err := decodeStrict(e.Options, &o); err != nil {
			return nil, err
		}
		return o, nil
	case "symlink":
		var o linkOptions
		if err := decodeStrict(e.Options, &o); err != nil {
			return nil, err
		}
		if o.Target == "" {
			return nil, fmt.Errorf("symlink %s: options.target is required", e.Path)
		}
		return o, nil
	case "directory":
		if len(e.Options) > 0 {
			return nil, fmt.Errorf("directory %s: takes no options", e.Path)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown seed type %q", e.Type)
	}
}

func decodeStrict(in map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(in); err != nil {
		return fmt.Errorf("decoding options: %w", err)
	}
	return nil
}

// Boot builds a repository holding the configured users and seed entries and
// returns it together with the id of the starting user.
func (c *Config) Boot(ctx context.Context, opts ...vfs.Option) (*vfs.Repository, identity.UserID, error) {
	log := clog.FromContext(ctx)
	repo := vfs.NewRepository(opts...)

	if c.IdentityFiles {
		if err := repo.CreateIdentityFiles(); err != nil {
			return nil, 0, fmt.Errorf("creating identity files: %w", err)
		}
	}

	names := c.Users
	if c.User != "root" && !slices.Contains(names, c.User) {
		names = append(slices.Clone(names), c.User)
	}
	for _, name := range names {
		uid, err := repo.AddUser(name)
		if err != nil {
			return nil, 0, fmt.Errorf("adding user %s: %w", name, err)
		}
		log.Debugf("added user %s (%d)", name, uid)
	}

	for i, e := range c.Seed {
		if err := c.seed(repo, e); err != nil {
			return nil, 0, fmt.Errorf("seed[%d]: %w", i, err)
		}
		log.Debugf("seeded %s %s", e.Type, e.Path)
	}

	u, ok := repo.Identities().UserByName(c.User)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", identity.ErrUserNotFound, c.User)
	}
	return repo, u.ID, nil
}

func (c *Config) seed(repo *vfs.Repository, e SeedEntry) error {
	opts, err := e.createOptions(repo.Identities())
	if err != nil {
		return err
	}
	typed, err := e.decodeOptions()
	if err != nil {
		return err
	}

	if e.Type == "directory" {
		_, err := repo.MkdirAll(e.Path, opts...)
		return err
	}

	if dir := path.Dir(e.Path); dir != "/" {
		if _, err := repo.MkdirAll(dir); err != nil {
			return err
		}
	}
	switch o := typed.(type) {
	case fileOptions:
		_, err = repo.CreateFile(e.Path, append(opts, vfs.WithData([]byte(o.Data)))...)
	case linkOptions:
		_, err = repo.CreateSymlink(o.Target, e.Path, opts...)
	}
	return err
}

func (e SeedEntry) createOptions(ids *identity.Store) ([]vfs.CreateOption, error) {
	var opts []vfs.CreateOption
	if e.Owner != "" {
		u, ok := ids.UserByName(e.Owner)
		if !ok {
			return nil, fmt.Errorf("%w: %s", identity.ErrUserNotFound, e.Owner)
		}
		opts = append(opts, vfs.WithOwner(u.ID, u.PrimaryGroup()))
	}
	if e.Mode != "" {
		m, err := ParseMode(e.Mode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vfs.WithPermissions(vfs.FromMode(m)))
	}
	return opts, nil
}
