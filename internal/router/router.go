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

// Package router maps a request path to a ForwardingRule via an ordered
// list of compiled glob patterns.
package router

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/relayforge/relayforge/config"
)

// compiledRoute pairs a rule with the regex its path glob translates to.
type compiledRoute struct {
	rule  config.ForwardingRule
	regex *regexp.Regexp
}

// Router holds the live, ordered list of compiled routes. Readers take a
// read-lock to match; UpdateRules compiles the new list first and takes the
// write-lock only to swap it in whole, so a request that started matching
// before the update completes never sees a torn rule set.
type Router struct {
	mu     sync.RWMutex
	routes []compiledRoute
}

// New returns an empty Router.
func New() *Router {
	return &Router{}
}

// Match returns the first rule (by declaration order) whose compiled
// pattern matches path, cloned so the caller can release the read-lock
// before doing any I/O.
func (r *Router) Match(path string) (config.ForwardingRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, route := range r.routes {
		if route.regex.MatchString(path) {
			return route.rule, true
		}
	}
	return config.ForwardingRule{}, false
}

// Rules returns a by-value snapshot of every rule currently held, in
// declaration order.
func (r *Router) Rules() []config.ForwardingRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]config.ForwardingRule, len(r.routes))
	for i, route := range r.routes {
		out[i] = route.rule
	}
	return out
}

// UpdateRules atomically replaces the entire route list. If any rule's
// path fails to compile, the router is left untouched and an error is
// returned — callers never observe a partially-applied set.
func (r *Router) UpdateRules(rules []config.ForwardingRule) error {
	routes := make([]compiledRoute, 0, len(rules))
	for _, rule := range rules {
		re, err := compileGlob(rule.Path)
		if err != nil {
			return fmt.Errorf("router: rule %q: %w", rule.Name, err)
		}
		routes = append(routes, compiledRoute{rule: rule, regex: re})
	}

	r.mu.Lock()
	r.routes = routes
	r.mu.Unlock()
	return nil
}

// TestPath compiles rule's path glob against path without touching the
// live router, for the admin "test rule" operation (spec.md §6.2).
func TestPath(rule config.ForwardingRule, path string) (matched bool, firstTarget string) {
	re, err := compileGlob(rule.Path)
	if err != nil {
		return false, ""
	}
	if !re.MatchString(path) {
		return false, ""
	}
	if len(rule.TargetURLs) > 0 {
		return true, rule.TargetURLs[0]
	}
	return true, ""
}

var globSpecial = ".+^$()[]{}|\\"

// compileGlob translates a path glob to an anchored regex per the exact
// table in spec.md §4.2:
//
//	**  -> .*   (only when two '*' appear adjacently)
//	*   -> [^/]* (single path segment)
//	?   -> .    (any single character)
//	. + ^ $ ( ) [ ] { } | \  -> escaped
//	anything else -> copied literally
func compileGlob(path string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')

	runes := []rune(path)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch ch {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteByte('.')
		default:
			if strings.ContainsRune(globSpecial, ch) {
				b.WriteByte('\\')
			}
			b.WriteRune(ch)
		}
	}
	b.WriteByte('$')

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid path pattern %q: %w", path, err)
	}
	return re, nil
}
