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

// Package config defines the on-disk configuration schema for relayforge
// and the loading/validation path that turns it into the types the proxy
// engine consumes.
package config

// Config is the top-level document loaded from a TOML file.
type Config struct {
	Server          ServerConfig     `toml:"server" json:"server" validate:"required"`
	Logging         LoggingConfig    `toml:"logging" json:"logging"`
	ForwardingRules []ForwardingRule `toml:"forwarding_rules" json:"forwarding_rules" validate:"required,min=1,dive"`
}

// ServerConfig configures the data-plane listener and the admin/metrics
// listener.
type ServerConfig struct {
	Host      string `toml:"host" json:"host" validate:"required"`
	Port      uint16 `toml:"port" json:"port" validate:"required"`
	WebUIPort uint16 `toml:"web_ui_port" json:"web_ui_port"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file"`
}

// LoadBalancingStrategy names a load-balancing algorithm in the schema.
// Only RoundRobin is honored by the proxy engine; the others are accepted
// for config compatibility (see SPEC_FULL.md §9).
type LoadBalancingStrategy string

const (
	RoundRobin         LoadBalancingStrategy = "round_robin"
	Random             LoadBalancingStrategy = "random"
	WeightedRoundRobin LoadBalancingStrategy = "weighted_round_robin"
)

// ForwardingRule is a named match+rewrite+forward specification.
type ForwardingRule struct {
	Name               string                   `toml:"name" json:"name" validate:"required"`
	Path               string                   `toml:"path" json:"path" validate:"required"`
	TargetURLs         []string                 `toml:"target_urls" json:"target_urls" validate:"required,min=1"`
	LoadBalancing      LoadBalancingStrategy    `toml:"load_balancing" json:"load_balancing"`
	HeaderReplacements map[string]ContentSource `toml:"header_replacements" json:"header_replacements"`
	BodyReplacements   map[string]ContentSource `toml:"body_replacements" json:"body_replacements"`
}

// SourceType names where a ContentSource's raw content comes from.
type SourceType string

const (
	SourceFile   SourceType = "file"
	SourceRemote SourceType = "remote"
)

// SplitStrategy names how raw content is tokenized.
type SplitStrategy string

const (
	SplitLine  SplitStrategy = "line"
	SplitComma SplitStrategy = "comma"
	SplitSpace SplitStrategy = "space"
)

// DefaultCacheTTLSeconds is used when a ContentSource omits cache_ttl.
const DefaultCacheTTLSeconds = 300

// ContentSource is a declarative pointer to a file or URL whose contents,
// once split, supply a rolling list of replacement tokens.
type ContentSource struct {
	Source   SourceType    `toml:"source" json:"source" validate:"required,oneof=file remote"`
	Path     string        `toml:"path" json:"path,omitempty"`
	URL      string        `toml:"url" json:"url,omitempty"`
	SplitBy  SplitStrategy `toml:"split_by" json:"split_by" validate:"required,oneof=line comma space"`
	CacheTTL int           `toml:"cache_ttl" json:"cache_ttl"`
}

// CacheTTLOrDefault returns CacheTTL, substituting DefaultCacheTTLSeconds
// when it is unset (zero) or negative.
func (s ContentSource) CacheTTLOrDefault() int {
	if s.CacheTTL <= 0 {
		return DefaultCacheTTLSeconds
	}
	return s.CacheTTL
}

// CacheKey computes the cache key this source resolves to, per SPEC_FULL.md
// §4.4: "file:<path>" for File sources, "remote:<url>" for Remote sources.
func (s ContentSource) CacheKey() string {
	switch s.Source {
	case SourceFile:
		return "file:" + s.Path
	case SourceRemote:
		return "remote:" + s.URL
	default:
		return "unknown:" + s.Path + s.URL
	}
}
