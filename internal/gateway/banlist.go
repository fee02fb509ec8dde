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
	"sync"
	"time"
)

// timeNow is abstracted for testability.
var timeNow = time.Now

// BanEntry records one active ban.
type BanEntry struct {
	BannedUntil time.Time
	RiskAtBan   float64
}

// BanLedger is a time-bounded deny-list keyed by client fingerprint.
// Bans are fixed-duration and reset on each new offense; there is no
// allow-list, no permanent ban and no backoff. Expired entries are removed
// lazily on lookup, which is the only reclamation path.
type BanLedger struct {
	mu     sync.Mutex
	banned map[string]BanEntry
}

// NewBanLedger creates an empty ledger.
func NewBanLedger() *BanLedger {
	return &BanLedger{banned: make(map[string]BanEntry)}
}

// Ban records (or overwrites) a ban for the fingerprint lasting the given
// duration, and returns the resulting entry.
func (b *BanLedger) Ban(fingerprint string, duration time.Duration, risk float64) BanEntry {
	entry := BanEntry{BannedUntil: timeNow().Add(duration), RiskAtBan: risk}
	b.mu.Lock()
	b.banned[fingerprint] = entry
	b.mu.Unlock()
	return entry
}

// IsBanned reports whether the fingerprint has an unexpired ban. An expired
// entry is removed before returning false.
func (b *BanLedger) IsBanned(fingerprint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.banned[fingerprint]
	if !ok {
		return false
	}
	if timeNow().After(entry.BannedUntil) {
		delete(b.banned, fingerprint)
		return false
	}
	return true
}

// Len returns the number of entries currently held, expired or not.
func (b *BanLedger) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.banned)
}
