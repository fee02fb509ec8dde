// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package telemetry exposes the gateway's Prometheus metrics. Only global
// series are registered — never per-client labels, whose cardinality is
// unbounded.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Decision labels attached to abusegate_requests_total.
const (
	DecisionAllow    = "allow"
	DecisionThrottle = "throttle"
	DecisionBlock    = "block"
	DecisionBanned   = "banned"
	DecisionUpstream = "upstream_error"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "abusegate_requests_total",
		Help: "Requests handled by the pipeline, by enforcement decision",
	}, []string{"decision"})
	riskScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "abusegate_risk_score",
		Help:    "Distribution of computed risk scores",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
	})
	upstreamSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "abusegate_upstream_duration_seconds",
		Help:    "Latency of upstream round trips",
		Buckets: prometheus.DefBuckets,
	})
	throttleDelaySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "abusegate_throttle_delay_seconds",
		Help:    "Delay inserted before forwarding throttled requests",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 3},
	})
	activeClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "abusegate_active_clients",
		Help: "Fingerprints currently tracked by the traffic analyzer",
	})
	activeBans = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "abusegate_active_bans",
		Help: "Entries currently held by the ban ledger",
	})
)

func init() {
	// Registered eagerly; harmless if /metrics is never mounted.
	prometheus.MustRegister(requestsTotal, riskScore, upstreamSeconds, throttleDelaySeconds, activeClients, activeBans)
}

// RecordDecision counts one pipeline outcome.
func RecordDecision(decision string) { requestsTotal.WithLabelValues(decision).Inc() }

// RecordRisk observes one computed risk score.
func RecordRisk(score float64) { riskScore.Observe(score) }

// RecordUpstream observes one upstream round-trip latency.
func RecordUpstream(d time.Duration) { upstreamSeconds.Observe(d.Seconds()) }

// RecordThrottleDelay observes one inserted throttle delay.
func RecordThrottleDelay(d time.Duration) { throttleDelaySeconds.Observe(d.Seconds()) }

// SetActiveClients updates the tracked-fingerprint gauge.
func SetActiveClients(n int) { activeClients.Set(float64(n)) }

// SetActiveBans updates the ban-ledger gauge.
func SetActiveBans(n int) { activeBans.Set(float64(n)) }
