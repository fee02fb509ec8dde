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

package analysis

import (
	"math"
	"sync"
	"time"
)

// maxPayloadSamples bounds the per-client payload ring; the oldest sample is
// dropped once the ring is full.
const maxPayloadSamples = 1000

// TrafficMetrics is a point-in-time snapshot of one client's behavior.
// RiskScore is the score recorded by the previous request: the pipeline
// writes the fresh score back via UpdateRiskScore only after scoring, so an
// observer always sees the last completed assessment.
type TrafficMetrics struct {
	RPS             float64
	Burstiness      float64
	TotalRequests   int
	EndpointEntropy float64
	ErrorRate       float64
	RiskScore       float64
	ErrorCount4xx   int
	ErrorCount5xx   int
	AvgPayloadSize  int
}

// ClientStats aggregates everything tracked for a single fingerprint.
// The mutex guards all fields; callers outside this package never touch it.
type ClientStats struct {
	mu sync.Mutex

	window         *SlidingWindow
	endpointCounts map[string]int
	payloadSizes   []int
	errorCount4xx  int
	errorCount5xx  int
	// totalTracked counts every recorded request, including those that have
	// since aged out of the window.
	totalTracked  int
	lastRiskScore float64
	lastSeen      time.Time
}

func newClientStats(window time.Duration) *ClientStats {
	return &ClientStats{
		window:         NewSlidingWindow(window),
		endpointCounts: make(map[string]int),
	}
}

// snapshotLocked computes the derived metrics. Caller holds s.mu.
func (s *ClientStats) snapshotLocked() TrafficMetrics {
	m := TrafficMetrics{
		RPS:             s.window.Rate(),
		Burstiness:      s.window.Burstiness(),
		TotalRequests:   s.window.Count(),
		EndpointEntropy: entropyBits(s.endpointCounts),
		RiskScore:       s.lastRiskScore,
		ErrorCount4xx:   s.errorCount4xx,
		ErrorCount5xx:   s.errorCount5xx,
	}
	if s.totalTracked > 0 {
		m.ErrorRate = float64(s.errorCount4xx+s.errorCount5xx) / float64(s.totalTracked)
	}
	if len(s.payloadSizes) > 0 {
		var sum int
		for _, v := range s.payloadSizes {
			sum += v
		}
		m.AvgPayloadSize = sum / len(s.payloadSizes)
	}
	return m
}

// entropyBits is the Shannon entropy, in bits, of the endpoint histogram.
func entropyBits(counts map[string]int) float64 {
	var total int
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// Analyzer owns the fingerprint → ClientStats registry.
//
// Locking discipline: the registry lock is always acquired before any
// per-record lock, never the other way around, and no caller holds more than
// one record lock at a time. No file or network I/O happens under either.
type Analyzer struct {
	mu         sync.RWMutex
	clients    map[string]*ClientStats
	windowSize time.Duration
}

// NewAnalyzer creates an analyzer whose per-client windows span windowSize.
func NewAnalyzer(windowSize time.Duration) *Analyzer {
	return &Analyzer{
		clients:    make(map[string]*ClientStats),
		windowSize: windowSize,
	}
}

// getOrCreate returns the stats record for a fingerprint, inserting a fresh
// one on first sight. Read-lock first; on a miss, take the write lock and
// re-check so two concurrent first-requests cannot produce duplicate records.
func (a *Analyzer) getOrCreate(fingerprint string) *ClientStats {
	a.mu.RLock()
	stats, ok := a.clients[fingerprint]
	a.mu.RUnlock()
	if ok {
		return stats
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if stats, ok = a.clients[fingerprint]; ok {
		return stats
	}
	stats = newClientStats(a.windowSize)
	a.clients[fingerprint] = stats
	return stats
}

// UpdateAndGetMetrics is the hot path: it records one request for the
// fingerprint and returns the resulting metric snapshot. An empty endpoint
// leaves the histogram untouched; a non-positive payload size leaves the
// payload ring untouched.
func (a *Analyzer) UpdateAndGetMetrics(fingerprint, endpoint string, payloadSize int) TrafficMetrics {
	stats := a.getOrCreate(fingerprint)

	stats.mu.Lock()
	defer stats.mu.Unlock()

	stats.window.Record()
	stats.totalTracked++
	stats.lastSeen = timeNow()
	if endpoint != "" {
		stats.endpointCounts[endpoint]++
	}
	if payloadSize > 0 {
		stats.payloadSizes = append(stats.payloadSizes, payloadSize)
		if len(stats.payloadSizes) > maxPayloadSamples {
			stats.payloadSizes = stats.payloadSizes[1:]
		}
	}
	return stats.snapshotLocked()
}

// RecordError increments the client's 4xx/5xx counters. Unknown fingerprints
// are a silent no-op: an upstream response may arrive after the record was
// evicted.
func (a *Analyzer) RecordError(fingerprint string, is4xx, is5xx bool) {
	a.mu.RLock()
	stats, ok := a.clients[fingerprint]
	a.mu.RUnlock()
	if !ok {
		return
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()
	if is4xx {
		stats.errorCount4xx++
	}
	if is5xx {
		stats.errorCount5xx++
	}
}

// UpdateRiskScore stores the score computed for the client's latest request.
// Unknown fingerprints are a silent no-op.
func (a *Analyzer) UpdateRiskScore(fingerprint string, score float64) {
	a.mu.RLock()
	stats, ok := a.clients[fingerprint]
	a.mu.RUnlock()
	if !ok {
		return
	}

	stats.mu.Lock()
	stats.lastRiskScore = score
	stats.mu.Unlock()
}

// SnapshotAll returns a metric snapshot for every tracked client. The walk is
// per-record atomic but not registry atomic: records touched during the walk
// may or may not reflect the concurrent update. Intended for the dashboard.
func (a *Analyzer) SnapshotAll() map[string]TrafficMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]TrafficMetrics, len(a.clients))
	for fp, stats := range a.clients {
		stats.mu.Lock()
		out[fp] = stats.snapshotLocked()
		stats.mu.Unlock()
	}
	return out
}

// ClientCount returns the number of tracked fingerprints.
func (a *Analyzer) ClientCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.clients)
}

// EvictIdle removes clients that have not sent a request for at least age and
// returns how many were dropped. Records live for the process lifetime by
// default; this hook exists for deployments that must bound memory and is
// only invoked when an eviction age is configured.
func (a *Analyzer) EvictIdle(age time.Duration) int {
	now := timeNow()

	a.mu.Lock()
	defer a.mu.Unlock()
	var evicted int
	for fp, stats := range a.clients {
		stats.mu.Lock()
		idle := now.Sub(stats.lastSeen) >= age
		stats.mu.Unlock()
		if idle {
			delete(a.clients, fp)
			evicted++
		}
	}
	return evicted
}
