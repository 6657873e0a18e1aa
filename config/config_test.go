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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTOML = `
[server]
host = "0.0.0.0"
port = 8080
web_ui_port = 8081

[logging]
level = "info"

[[forwarding_rules]]
name = "api"
path = "/api/**"
target_urls = ["http://127.0.0.1:9001", "http://127.0.0.1:9002"]

[forwarding_rules.header_replacements.X-Request-Tag]
source = "file"
path = "tags.txt"
split_by = "line"
`

func writeTOML(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relayforge.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFileValid(t *testing.T) {
	path := writeTOML(t, validTOML)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Len(t, cfg.ForwardingRules, 1)
	assert.Equal(t, "api", cfg.ForwardingRules[0].Name)
	assert.Len(t, cfg.ForwardingRules[0].TargetURLs, 2)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadFileMalformedTOML(t *testing.T) {
	path := writeTOML(t, `this is not = [valid toml`)
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestValidateRejectsEmptyRuleList(t *testing.T) {
	cfg := Config{Server: ServerConfig{Host: "h", Port: 1}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsDuplicateRuleNames(t *testing.T) {
	cfg := Config{
		Server: ServerConfig{Host: "h", Port: 1},
		ForwardingRules: []ForwardingRule{
			{Name: "dup", Path: "/a", TargetURLs: []string{"http://u"}},
			{Name: "dup", Path: "/b", TargetURLs: []string{"http://u"}},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate rule name")
}

func TestValidateRejectsFileSourceWithoutPath(t *testing.T) {
	cfg := Config{
		Server: ServerConfig{Host: "h", Port: 1},
		ForwardingRules: []ForwardingRule{
			{
				Name:       "r",
				Path:       "/a",
				TargetURLs: []string{"http://u"},
				HeaderReplacements: map[string]ContentSource{
					"X-Tag": {Source: SourceFile, SplitBy: SplitLine},
				},
			},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires 'path'")
}

func TestValidateRejectsRemoteSourceWithoutURL(t *testing.T) {
	cfg := Config{
		Server: ServerConfig{Host: "h", Port: 1},
		ForwardingRules: []ForwardingRule{
			{
				Name:       "r",
				Path:       "/a",
				TargetURLs: []string{"http://u"},
				BodyReplacements: map[string]ContentSource{
					"{{x}}": {Source: SourceRemote, SplitBy: SplitLine},
				},
			},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires 'url'")
}

func TestValidateRejectsMissingTargetURLs(t *testing.T) {
	cfg := Config{
		Server:          ServerConfig{Host: "h", Port: 1},
		ForwardingRules: []ForwardingRule{{Name: "r", Path: "/a", TargetURLs: []string{}}},
	}
	assert.Error(t, cfg.Validate())
}

func TestCacheTTLOrDefault(t *testing.T) {
	assert.Equal(t, DefaultCacheTTLSeconds, ContentSource{}.CacheTTLOrDefault())
	assert.Equal(t, 42, ContentSource{CacheTTL: 42}.CacheTTLOrDefault())
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "file:a.txt", ContentSource{Source: SourceFile, Path: "a.txt"}.CacheKey())
	assert.Equal(t, "remote:http://x", ContentSource{Source: SourceRemote, URL: "http://x"}.CacheKey())
}
