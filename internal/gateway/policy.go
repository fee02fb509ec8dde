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

package gateway

import (
	"errors"
	"sync"
	"time"
)

// ErrThrottleExceedsBlock rejects a policy whose throttle threshold is above
// its block threshold; such a policy could never throttle.
var ErrThrottleExceedsBlock = errors.New("threshold_throttle must not exceed threshold_block")

// Policy holds the process-wide enforcement tunables.
type Policy struct {
	ThresholdBlock    float64
	ThresholdThrottle float64
	ThrottleMaxDelay  time.Duration
	BanDuration       time.Duration
	BackendURL        string
}

// DefaultPolicy returns the shipped defaults; the backend URL must still be
// configured before the proxy can forward.
func DefaultPolicy() Policy {
	return Policy{
		ThresholdBlock:    0.8,
		ThresholdThrottle: 0.5,
		ThrottleMaxDelay:  3000 * time.Millisecond,
		BanDuration:       300 * time.Second,
	}
}

// PolicyStore guards the policy record: read by every request, written
// rarely. Get returns a copy so callers never hold a reference into the
// guarded storage.
type PolicyStore struct {
	mu     sync.RWMutex
	policy Policy
}

// NewPolicyStore creates a store seeded with the given policy, after
// clamping its thresholds. An invalid seed falls back to defaults.
func NewPolicyStore(p Policy) *PolicyStore {
	s := &PolicyStore{policy: DefaultPolicy()}
	_ = s.Set(p)
	return s
}

// Get returns a copy of the current policy.
func (s *PolicyStore) Get() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Set validates and installs a new policy. Thresholds are clamped to [0,1];
// a throttle threshold above the block threshold is rejected and the prior
// policy is retained.
func (s *PolicyStore) Set(p Policy) error {
	p.ThresholdBlock = clampUnit(p.ThresholdBlock)
	p.ThresholdThrottle = clampUnit(p.ThresholdThrottle)
	if p.ThresholdThrottle > p.ThresholdBlock {
		return ErrThrottleExceedsBlock
	}
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
	return nil
}

// SetBackendURL replaces only the backend URL, keeping the thresholds.
func (s *PolicyStore) SetBackendURL(url string) {
	s.mu.Lock()
	s.policy.BackendURL = url
	s.mu.Unlock()
}

// BackendURL returns the current backend URL.
func (s *PolicyStore) BackendURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy.BackendURL
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
