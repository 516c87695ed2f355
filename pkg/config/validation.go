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
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"
	"k8s.io/apimachinery/pkg/util/sets"
)

var (
	validate *validator.Validate

	usernameRE = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)
)

func init() {
	validate = validator.New()
	for tag, fn := range map[string]validator.Func{
		"username": validateUsername,
		"filemode": validateFileMode,
	} {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
}

func validateUsername(fl validator.FieldLevel) bool {
	return usernameRE.MatchString(fl.Field().String())
}

func validateFileMode(fl validator.FieldLevel) bool {
	_, err := ParseMode(fl.Field().String())
	return err == nil
}

// ParseMode parses an octal permission string such as "0755" or "644".
func ParseMode(s string) (uint32, error) {
	m, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: %w", s, err)
	}
	if m > 0o777 {
		return 0, fmt.Errorf("invalid mode %q: only permission bits are supported", s)
	}
	return uint32(m), nil
}

// Validate checks the struct tags first and then the rules that span fields.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	seen := sets.New[string]()
	for i, name := range cfg.Users {
		if name == "root" {
			return fmt.Errorf("users[%d]: root always exists", i)
		}
		if seen.Has(name) {
			return fmt.Errorf("users[%d]: duplicate user %q", i, name)
		}
		seen.Insert(name)
	}

	known := seen.Clone().Insert("root", cfg.User)
	paths := sets.New[string]()
	for i, e := range cfg.Seed {
		if e.Owner != "" && !known.Has(e.Owner) {
			return fmt.Errorf("seed[%d]: owner %q is not a configured user", i, e.Owner)
		}
		if paths.Has(e.Path) {
			return fmt.Errorf("seed[%d]: duplicate path %q", i, e.Path)
		}
		paths.Insert(e.Path)
		if _, err := e.decodeOptions(); err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
