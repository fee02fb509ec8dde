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

// Package analysis tracks per-client request behavior over a sliding time
// window and derives the feature metrics consumed by the risk scorer.
package analysis

import "time"

// timeNow is abstracted for testability. time.Time values returned by
// time.Now carry a monotonic clock reading, so window arithmetic survives
// wall-clock adjustment.
var timeNow = time.Now

// SlidingWindow retains the arrival timestamps of the last windowSize worth
// of requests. It is NOT safe for concurrent use; the owning ClientStats
// mutex serializes access.
type SlidingWindow struct {
	windowSize time.Duration
	arrivals   []time.Time
}

// NewSlidingWindow creates a window spanning the given duration.
func NewSlidingWindow(windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{windowSize: windowSize}
}

// Record prunes expired entries and appends the current instant.
// After it returns, every retained timestamp t satisfies now-t <= windowSize.
func (w *SlidingWindow) Record() {
	now := timeNow()
	w.prune(now)
	w.arrivals = append(w.arrivals, now)
}

// prune drops entries older than the window. Front-only: arrivals are in
// arrival order, so the first retained entry bounds the rest.
func (w *SlidingWindow) prune(now time.Time) {
	i := 0
	for i < len(w.arrivals) && now.Sub(w.arrivals[i]) > w.windowSize {
		i++
	}
	if i > 0 {
		w.arrivals = append(w.arrivals[:0], w.arrivals[i:]...)
	}
}

// Count returns the number of requests currently inside the window.
func (w *SlidingWindow) Count() int {
	w.prune(timeNow())
	return len(w.arrivals)
}

// Rate returns requests per second averaged over the full window span.
// A window that is not yet full is deliberately NOT compensated for; doing
// so would report spuriously high rates for brand-new clients.
func (w *SlidingWindow) Rate() float64 {
	w.prune(timeNow())
	return float64(len(w.arrivals)) / w.windowSize.Seconds()
}

// Burstiness returns the population variance of inter-arrival intervals in
// milliseconds squared. Automated clients produce near-zero variance; human
// bursts produce large variance. Zero when fewer than two arrivals remain.
func (w *SlidingWindow) Burstiness() float64 {
	w.prune(timeNow())
	n := len(w.arrivals)
	if n < 2 {
		return 0
	}

	intervals := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		ms := float64(w.arrivals[i].Sub(w.arrivals[i-1])) / float64(time.Millisecond)
		intervals = append(intervals, ms)
	}

	var sum float64
	for _, v := range intervals {
		sum += v
	}
	mean := sum / float64(len(intervals))

	var sqSum float64
	for _, v := range intervals {
		d := v - mean
		sqSum += d * d
	}
	return sqSum / float64(len(intervals))
}
