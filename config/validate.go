// Copyright 2015 Matthew Holt and The Caddy Authors
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
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// Validate checks the structural shape of c (required fields, non-empty
// rule list) and then the cross-field rules that can't be expressed as
// struct tags: every rule needs >=1 target URL, every file source needs a
// path, every remote source needs a url.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	seen := make(map[string]bool, len(c.ForwardingRules))
	for _, rule := range c.ForwardingRules {
		if seen[rule.Name] {
			return fmt.Errorf("config: duplicate rule name %q", rule.Name)
		}
		seen[rule.Name] = true

		if len(rule.TargetURLs) == 0 {
			return fmt.Errorf("config: rule %q must have at least one target URL", rule.Name)
		}
		for key, src := range rule.HeaderReplacements {
			if err := src.validate(fmt.Sprintf("rule %q header replacement %q", rule.Name, key)); err != nil {
				return err
			}
		}
		for key, src := range rule.BodyReplacements {
			if err := src.validate(fmt.Sprintf("rule %q body replacement %q", rule.Name, key)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s ContentSource) validate(context string) error {
	switch s.Source {
	case SourceFile:
		if s.Path == "" {
			return fmt.Errorf("config: %s: file source requires 'path'", context)
		}
	case SourceRemote:
		if s.URL == "" {
			return fmt.Errorf("config: %s: remote source requires 'url'", context)
		}
	default:
		return fmt.Errorf("config: %s: unknown source type %q", context, s.Source)
	}
	return nil
}
