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

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relayforge/relayforge/config"
)

// fakeEngine is a minimal, mutex-protected stand-in for *proxyengine.Engine
// so handlers can be exercised without real upstreams.
type fakeEngine struct {
	mu        sync.Mutex
	rules     []config.ForwardingRule
	updateErr error
	startedAt time.Time
	cacheSize int
	hits      uint64
	misses    uint64
	reqOK     uint64
	reqErr    uint64
}

func (f *fakeEngine) GetRules() []config.ForwardingRule {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]config.ForwardingRule, len(f.rules))
	copy(out, f.rules)
	return out
}

func (f *fakeEngine) UpdateRules(rules []config.ForwardingRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.rules = rules
	return nil
}

func (f *fakeEngine) ClearCache()                              {}
func (f *fakeEngine) CacheSize() int                           { return f.cacheSize }
func (f *fakeEngine) CacheHitMiss() (hits, misses uint64)       { return f.hits, f.misses }
func (f *fakeEngine) RequestCounts() (ok, failed uint64)        { return f.reqOK, f.reqErr }
func (f *fakeEngine) StartedAt() time.Time                      { return f.startedAt }

func newTestServer(t *testing.T, engine *fakeEngine) *Server {
	t.Helper()
	cfg := &config.Config{
		Server:  config.ServerConfig{Host: "0.0.0.0", Port: 8080, WebUIPort: 8081},
		Logging: config.LoggingConfig{Level: "info"},
	}
	return New(engine, cfg, t.TempDir()+"/unused.toml", zap.NewNop(), prometheus.NewRegistry())
}

func decodeAPI[T any](t *testing.T, rec *httptest.ResponseRecorder) apiResponse[T] {
	t.Helper()
	var resp apiResponse[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthPlain(t *testing.T) {
	s := newTestServer(t, &fakeEngine{startedAt: time.Now()})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "OK", rec.Body.String())
}

func TestListRulesEmpty(t *testing.T) {
	s := newTestServer(t, &fakeEngine{startedAt: time.Now()})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rules", nil))

	resp := decodeAPI[[]config.ForwardingRule](t, rec)
	assert.True(t, resp.Success)
	assert.Empty(t, *resp.Data)
}

func TestCreateRuleThenList(t *testing.T) {
	engine := &fakeEngine{startedAt: time.Now()}
	s := newTestServer(t, engine)

	body, _ := json.Marshal(config.ForwardingRule{Name: "r1", Path: "/a/**", TargetURLs: []string{"http://u"}})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rules", bytes.NewReader(body)))

	resp := decodeAPI[string](t, rec)
	require.True(t, resp.Success)
	assert.Len(t, engine.GetRules(), 1)
}

func TestCreateDuplicateRuleNameFails(t *testing.T) {
	engine := &fakeEngine{rules: []config.ForwardingRule{{Name: "r1", Path: "/a", TargetURLs: []string{"http://u"}}}, startedAt: time.Now()}
	s := newTestServer(t, engine)

	body, _ := json.Marshal(config.ForwardingRule{Name: "r1", Path: "/b", TargetURLs: []string{"http://u"}})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rules", bytes.NewReader(body)))

	resp := decodeAPI[string](t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Contains(t, *resp.Error, "already exists")
}

func TestDeleteRuleNotFound(t *testing.T) {
	s := newTestServer(t, &fakeEngine{startedAt: time.Now()})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/rules/missing", nil))

	resp := decodeAPI[string](t, rec)
	assert.False(t, resp.Success)
}

func TestTestRuleMatches(t *testing.T) {
	engine := &fakeEngine{
		rules:     []config.ForwardingRule{{Name: "r1", Path: "/api/**", TargetURLs: []string{"http://u1"}}},
		startedAt: time.Now(),
	}
	s := newTestServer(t, engine)

	body, _ := json.Marshal(ruleTestRequest{Method: http.MethodGet, Path: "/api/foo"})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rules/r1/test", bytes.NewReader(body)))

	resp := decodeAPI[ruleTestResult](t, rec)
	require.True(t, resp.Success)
	assert.True(t, resp.Data.Matched)
	assert.Equal(t, "http://u1", resp.Data.TargetURL)
}

func TestValidateConfigRejectsMissingRules(t *testing.T) {
	s := newTestServer(t, &fakeEngine{startedAt: time.Now()})

	body, _ := json.Marshal(config.Config{Server: config.ServerConfig{Host: "h", Port: 1}})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/config/validate", bytes.NewReader(body)))

	resp := decodeAPI[configValidationResult](t, rec)
	require.True(t, resp.Success)
	assert.False(t, resp.Data.IsValid)
	assert.NotEmpty(t, resp.Data.Errors)
}

func TestCacheStatsComputesRatio(t *testing.T) {
	engine := &fakeEngine{hits: 3, misses: 1, cacheSize: 4, startedAt: time.Now()}
	s := newTestServer(t, engine)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/content/cache/stats", nil))

	resp := decodeAPI[cacheStats](t, rec)
	require.True(t, resp.Success)
	assert.Equal(t, 4, resp.Data.TotalEntries)
	assert.Equal(t, "75.0%", resp.Data.HitRatio)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := newTestServer(t, &fakeEngine{startedAt: time.Now()})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
