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

package persistence

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSetter captures SetEx calls for assertion.
type fakeSetter struct {
	keys   []string
	values []string
	ttls   []time.Duration
	err    error
}

func (f *fakeSetter) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
	f.ttls = append(f.ttls, ttl)
	return nil
}

func TestRedisSink_RecordBans(t *testing.T) {
	setter := &fakeSetter{}
	sink := NewRedisSink(setter)

	events := []BanEvent{
		{Fingerprint: "aaaa", Risk: 0.912, BannedUntil: time.Now().Add(5 * time.Minute)},
		{Fingerprint: "bbbb", Risk: 0.85, BannedUntil: time.Now().Add(-time.Second)}, // already expired
		{Fingerprint: "cccc", Risk: 1.0, BannedUntil: time.Now().Add(time.Minute)},
	}
	if err := sink.RecordBans(context.Background(), events); err != nil {
		t.Fatalf("RecordBans() error = %v", err)
	}

	if len(setter.keys) != 2 {
		t.Fatalf("SetEx calls = %d, want 2 (expired event skipped)", len(setter.keys))
	}
	if setter.keys[0] != "ban:aaaa" || setter.keys[1] != "ban:cccc" {
		t.Fatalf("keys = %v, want [ban:aaaa ban:cccc]", setter.keys)
	}
	if setter.values[0] != "0.912" {
		t.Fatalf("value = %q, want formatted risk 0.912", setter.values[0])
	}
	for i, ttl := range setter.ttls {
		if ttl <= 0 {
			t.Fatalf("ttl[%d] = %v, want positive remaining duration", i, ttl)
		}
	}
}

func TestRedisSink_PropagatesError(t *testing.T) {
	wantErr := errors.New("connection refused")
	sink := NewRedisSink(&fakeSetter{err: wantErr})

	err := sink.RecordBans(context.Background(), []BanEvent{
		{Fingerprint: "aaaa", Risk: 0.9, BannedUntil: time.Now().Add(time.Minute)},
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("RecordBans() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestBanKey(t *testing.T) {
	if got := BanKey("deadbeef"); got != "ban:deadbeef" {
		t.Fatalf("BanKey = %q, want ban:deadbeef", got)
	}
}
