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

// Package adminserver is the control-plane HTTP surface: rule CRUD,
// config inspection/validation/reload, cache management, health and
// metrics. It is the Admin HTTP surface of SPEC_FULL.md §4.8, grounded on
// the original ultiproxy api/mod.rs route table and api/handlers/*.rs,
// rebuilt on the chi router the way the teacher builds its own HTTP
// surfaces on top of a mux.
package adminserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/relayforge/relayforge/config"
	"github.com/relayforge/relayforge/internal/router"
)

// Engine is the subset of *proxyengine.Engine the admin surface drives.
// Declared as an interface so handlers can be exercised against a fake in
// tests without standing up real upstreams.
type Engine interface {
	GetRules() []config.ForwardingRule
	UpdateRules(rules []config.ForwardingRule) error
	ClearCache()
	CacheSize() int
	CacheHitMiss() (hits, misses uint64)
	RequestCounts() (ok, failed uint64)
	StartedAt() time.Time
}

// Server is the admin/metrics HTTP surface. It holds the last-known-good
// Config under a mutex, separately from the Router's live rule set, so
// GET /api/config can answer without touching the data plane.
type Server struct {
	mux *chi.Mux

	engine Engine
	logger *zap.Logger

	mu         sync.RWMutex
	cfg        *config.Config
	configPath string
}

// New builds the admin mux. reg is the Prometheus registry metrics were
// registered against; its collectors are exposed at /metrics.
func New(engine Engine, cfg *config.Config, configPath string, logger *zap.Logger, reg prometheus.Gatherer) *Server {
	s := &Server{
		engine:     engine,
		logger:     logger,
		cfg:        cfg,
		configPath: configPath,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", s.handleHealthPlain)
	r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.handleGetConfig)
		r.Put("/config", s.handlePutConfig)
		r.Post("/config/reload", s.handleReloadConfig)
		r.Post("/config/validate", s.handleValidateConfig)

		r.Get("/rules", s.handleListRules)
		r.Post("/rules", s.handleCreateRule)
		r.Route("/rules/{name}", func(r chi.Router) {
			r.Put("/", s.handleUpdateRule)
			r.Delete("/", s.handleDeleteRule)
			r.Post("/test", s.handleTestRule)
		})

		r.Get("/content/sources", s.handleListSources)
		r.Post("/content/cache/clear", s.handleClearCache)
		r.Get("/content/cache/stats", s.handleCacheStats)

		r.Get("/health", s.handleHealthJSON)
		r.Get("/status", s.handleStatus)
	})

	s.mux = r
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// SetConfig replaces the last-known-good config the admin surface reports,
// called after a successful reload from the PUT/reload endpoints or from
// the background config.Watcher.
func (s *Server) SetConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Server) currentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Server) handleHealthPlain(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, success(s.currentConfig()))
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var newCfg config.Config
	if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
		writeJSON(w, http.StatusOK, failure[string]("invalid request body: "+err.Error()))
		return
	}
	if err := newCfg.Validate(); err != nil {
		writeJSON(w, http.StatusOK, failure[string]("invalid configuration: "+err.Error()))
		return
	}
	if err := s.engine.UpdateRules(newCfg.ForwardingRules); err != nil {
		writeJSON(w, http.StatusOK, failure[string]("failed to apply proxy rules: "+err.Error()))
		return
	}
	s.SetConfig(&newCfg)
	writeJSON(w, http.StatusOK, success("configuration updated"))
}

func (s *Server) handleReloadConfig(w http.ResponseWriter, r *http.Request) {
	newCfg, err := config.LoadFile(s.configPath)
	if err != nil {
		writeJSON(w, http.StatusOK, failure[string]("failed to load configuration: "+err.Error()))
		return
	}
	if err := s.engine.UpdateRules(newCfg.ForwardingRules); err != nil {
		writeJSON(w, http.StatusOK, failure[string]("failed to apply proxy rules: "+err.Error()))
		return
	}
	s.SetConfig(newCfg)
	s.logger.Info("admin: config reloaded on demand", zap.String("path", s.configPath))
	writeJSON(w, http.StatusOK, success("configuration reloaded"))
}

func (s *Server) handleValidateConfig(w http.ResponseWriter, r *http.Request) {
	var candidate config.Config
	result := configValidationResult{}
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		result.Errors = append(result.Errors, "invalid request body: "+err.Error())
	} else if err := candidate.Validate(); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	result.IsValid = len(result.Errors) == 0
	writeJSON(w, http.StatusOK, success(result))
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, success(s.engine.GetRules()))
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule config.ForwardingRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusOK, failure[string]("invalid request body: "+err.Error()))
		return
	}

	rules := s.engine.GetRules()
	for _, existing := range rules {
		if existing.Name == rule.Name {
			writeJSON(w, http.StatusOK, failure[string](fmt.Sprintf("rule %q already exists", rule.Name)))
			return
		}
	}

	next := append(append([]config.ForwardingRule{}, rules...), rule)
	if err := s.engine.UpdateRules(next); err != nil {
		writeJSON(w, http.StatusOK, failure[string]("failed to apply proxy rules: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, success(fmt.Sprintf("rule %q created", rule.Name)))
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var updated config.ForwardingRule
	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		writeJSON(w, http.StatusOK, failure[string]("invalid request body: "+err.Error()))
		return
	}

	rules := s.engine.GetRules()
	found := false
	for i, existing := range rules {
		if existing.Name == name {
			rules[i] = updated
			found = true
			break
		}
	}
	if !found {
		writeJSON(w, http.StatusOK, failure[string](fmt.Sprintf("rule %q not found", name)))
		return
	}

	if err := s.engine.UpdateRules(rules); err != nil {
		writeJSON(w, http.StatusOK, failure[string]("failed to apply proxy rules: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, success(fmt.Sprintf("rule %q updated", name)))
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rules := s.engine.GetRules()
	next := make([]config.ForwardingRule, 0, len(rules))
	found := false
	for _, existing := range rules {
		if existing.Name == name {
			found = true
			continue
		}
		next = append(next, existing)
	}
	if !found {
		writeJSON(w, http.StatusOK, failure[string](fmt.Sprintf("rule %q not found", name)))
		return
	}

	if err := s.engine.UpdateRules(next); err != nil {
		writeJSON(w, http.StatusOK, failure[string]("failed to apply proxy rules: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, success(fmt.Sprintf("rule %q deleted", name)))
}

func (s *Server) handleTestRule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req ruleTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, failure[string]("invalid request body: "+err.Error()))
		return
	}

	for _, rule := range s.engine.GetRules() {
		if rule.Name != name {
			continue
		}
		matched, target := router.TestPath(rule, req.Path)
		result := ruleTestResult{Matched: matched}
		if matched {
			result.RuleName = rule.Name
			result.TargetURL = target
		}
		writeJSON(w, http.StatusOK, success(result))
		return
	}
	writeJSON(w, http.StatusOK, failure[ruleTestResult](fmt.Sprintf("rule %q not found", name)))
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	var out []contentSourceInfo
	for _, rule := range s.engine.GetRules() {
		for key, src := range rule.HeaderReplacements {
			out = append(out, describeSource(rule.Name, "header", key, src))
		}
		for key, src := range rule.BodyReplacements {
			out = append(out, describeSource(rule.Name, "body", key, src))
		}
	}
	writeJSON(w, http.StatusOK, success(out))
}

func describeSource(ruleName, kind, key string, src config.ContentSource) contentSourceInfo {
	identifier := fmt.Sprintf("%s:%s:%s", ruleName, kind, key)
	sum := xxhash.Sum64String(src.CacheKey())
	return contentSourceInfo{
		Identifier: identifier,
		SourceType: string(src.Source),
		SplitBy:    string(src.SplitBy),
		CacheTTL:   humanize.RelTime(time.Now(), time.Now().Add(time.Duration(src.CacheTTLOrDefault())*time.Second), "", ""),
		Bucket:     fmt.Sprintf("%02x", sum&0xff),
	}
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.engine.ClearCache()
	writeJSON(w, http.StatusOK, success("cache cleared"))
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses := s.engine.CacheHitMiss()
	total := hits + misses
	ratio := "0%"
	if total > 0 {
		ratio = fmt.Sprintf("%.1f%%", float64(hits)/float64(total)*100)
	}
	stats := cacheStats{
		TotalEntries: s.engine.CacheSize(),
		HitCount:     hits,
		MissCount:    misses,
		HitRatio:     ratio,
	}
	writeJSON(w, http.StatusOK, success(stats))
}

func (s *Server) handleHealthJSON(w http.ResponseWriter, r *http.Request) {
	health := healthStatus{
		Status:    "healthy",
		Uptime:    humanize.RelTime(s.engine.StartedAt(), time.Now(), "", ""),
		RuleCount: len(s.engine.GetRules()),
		CacheSize: humanize.Comma(int64(s.engine.CacheSize())),
	}
	writeJSON(w, http.StatusOK, success(health))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.currentConfig()
	ok, failed := s.engine.RequestCounts()
	status := systemStatus{
		RulesCount:    len(s.engine.GetRules()),
		RequestsOK:    ok,
		RequestsError: failed,
		LoggingLevel:  cfg.Logging.Level,
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		WebUIPort:     cfg.Server.WebUIPort,
	}
	writeJSON(w, http.StatusOK, success(status))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
