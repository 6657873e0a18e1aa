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

// Package metrics holds the Prometheus collectors the proxy engine reports
// through, mirroring the teacher's internal/metrics registration pattern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the data plane touches.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	CacheOperations    *prometheus.CounterVec
	SelectorAdvances   *prometheus.CounterVec
	ForwardDuration    *prometheus.HistogramVec
}

// New creates and registers the collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayforge",
			Name:      "requests_total",
			Help:      "Total data-plane requests by matched rule and outcome.",
		}, []string{"rule", "outcome"}),
		CacheOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayforge",
			Name:      "cache_operations_total",
			Help:      "Content cache lookups by result.",
		}, []string{"result"}),
		SelectorAdvances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayforge",
			Name:      "selector_advances_total",
			Help:      "Round-robin selector advances by kind (url, token).",
		}, []string{"kind"}),
		ForwardDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relayforge",
			Name:      "forward_duration_seconds",
			Help:      "Time spent forwarding a request to an upstream and relaying its response.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"rule"}),
	}

	reg.MustRegister(m.RequestsTotal, m.CacheOperations, m.SelectorAdvances, m.ForwardDuration)
	return m
}
