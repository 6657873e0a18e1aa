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

package adminserver

// apiResponse is the uniform envelope every admin endpoint replies with,
// grounded on the original ultiproxy ApiResponse<T>: callers always get a
// 200 with success/data/error rather than diffing HTTP status codes.
type apiResponse[T any] struct {
	Success bool    `json:"success"`
	Data    *T      `json:"data,omitempty"`
	Error   *string `json:"error,omitempty"`
}

func success[T any](data T) apiResponse[T] {
	return apiResponse[T]{Success: true, Data: &data}
}

func failure[T any](msg string) apiResponse[T] {
	return apiResponse[T]{Success: false, Error: &msg}
}

// ruleTestRequest is the body of POST /api/rules/{name}/test.
type ruleTestRequest struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// ruleTestResult mirrors the original RuleTestResult shape.
type ruleTestResult struct {
	Matched    bool   `json:"matched"`
	RuleName   string `json:"rule_name,omitempty"`
	TargetURL  string `json:"target_url,omitempty"`
}

// configValidationResult mirrors the original ConfigValidationResult shape.
type configValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// contentSourceInfo describes one configured content source. Bucket is the
// source's cache key hashed through xxhash and cut to its low byte, which
// is what a dashboard should key on when grouping per-source stats: the
// cache key itself is unbounded (derived from file paths and URLs an
// operator controls), so using it directly as a Prometheus-style label
// would let config content drive label cardinality. Bucket is a
// fixed-width, low-cardinality stand-in.
type contentSourceInfo struct {
	Identifier string `json:"identifier"`
	SourceType string `json:"source_type"`
	SplitBy    string `json:"split_by"`
	CacheTTL   string `json:"cache_ttl"`
	Bucket     string `json:"bucket"`
}

// cacheStats mirrors the original CacheStats shape, backed by real numbers
// instead of the original's placeholder zeros.
type cacheStats struct {
	TotalEntries int    `json:"total_entries"`
	HitCount     uint64 `json:"hit_count"`
	MissCount    uint64 `json:"miss_count"`
	HitRatio     string `json:"hit_ratio"`
}

// healthStatus mirrors the original HealthStatus shape.
type healthStatus struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	RuleCount  int    `json:"rule_count"`
	CacheSize  string `json:"cache_size"`
}

// systemStatus mirrors the original get_status shape.
type systemStatus struct {
	RulesCount    int    `json:"rules_count"`
	RequestsOK    uint64 `json:"requests_ok"`
	RequestsError uint64 `json:"requests_error"`
	Host          string `json:"host"`
	Port          uint16 `json:"port"`
	WebUIPort     uint16 `json:"web_ui_port"`
	LoggingLevel  string `json:"logging_level"`
}
