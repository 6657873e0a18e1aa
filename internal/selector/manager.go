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

package selector

import (
	"github.com/puzpuzpuz/xsync/v4"
)

// Manager owns one process-wide selector for upstream URLs, shared across
// every rule (a deliberate global stripe, not per-rule state: see
// SPEC_FULL.md §4.3), plus a concurrent map of per-replacement token
// selectors keyed by "<rule>:<header>" or "<rule>:body:<pattern>", created
// lazily on first use.
type Manager struct {
	urlSelector     RoundRobin
	contentSelectors *xsync.Map[string, *RoundRobin]
}

// NewManager returns a ready-to-use Manager.
func NewManager() *Manager {
	return &Manager{
		contentSelectors: xsync.NewMap[string, *RoundRobin](),
	}
}

// SelectTargetURL returns the next upstream URL from urls in round-robin
// order, or false if urls is empty.
func (m *Manager) SelectTargetURL(urls []string) (string, bool) {
	return Select(&m.urlSelector, urls)
}

// SelectReplacement returns the next token from content under key, creating
// a selector for key on first use. Returns false if content is empty.
func (m *Manager) SelectReplacement(key string, content []string) (string, bool) {
	if len(content) == 0 {
		return "", false
	}
	sel, _ := m.contentSelectors.LoadOrStore(key, &RoundRobin{})
	return Select(sel, content)
}

// ResetContentSelector zeroes one specific token cursor, if it exists.
func (m *Manager) ResetContentSelector(key string) {
	if sel, ok := m.contentSelectors.Load(key); ok {
		sel.Reset()
	}
}

// ClearContentSelectors empties the token-cursor map. The URL selector is
// never cleared: spec.md §4.3.
func (m *Manager) ClearContentSelectors() {
	m.contentSelectors.Clear()
}
