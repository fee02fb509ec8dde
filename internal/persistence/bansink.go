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

// Package persistence mirrors ban events to an external store for
// out-of-process inspection. The ledger itself stays in memory; the sink is
// an audit trail, not a source of truth, so a sink failure never affects
// enforcement.
package persistence

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// BanEvent is one ban as applied by the pipeline.
type BanEvent struct {
	Fingerprint string
	Risk        float64
	BannedUntil time.Time
}

// Sink receives batches of ban events.
type Sink interface {
	RecordBans(ctx context.Context, events []BanEvent) error
}

// LoggingSink writes ban events to the log. It lets the auditor run without
// a real Redis; useful for demos and tests.
type LoggingSink struct {
	Log zerolog.Logger
}

func (s LoggingSink) RecordBans(ctx context.Context, events []BanEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	for _, e := range events {
		s.Log.Info().
			Str("fingerprint", e.Fingerprint).
			Float64("risk", e.Risk).
			Time("banned_until", e.BannedUntil).
			Msg("ban recorded")
	}
	return nil
}

// RedisSetter abstracts the minimal surface we need from a Redis client.
// Implementations may wrap github.com/redis/go-redis/v9 or any equivalent.
type RedisSetter interface {
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
}

// GoRedisSetter is a production Redis client wrapper implementing
// RedisSetter using github.com/redis/go-redis/v9.
type GoRedisSetter struct{ c *redis.Client }

// NewGoRedisSetter constructs a setter for an address like "127.0.0.1:6379".
func NewGoRedisSetter(addr string) *GoRedisSetter {
	return &GoRedisSetter{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (g *GoRedisSetter) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return g.c.Set(ctx, key, value, ttl).Err()
}

// RedisSink stores each ban as ban:<fingerprint> with a TTL equal to the
// remaining ban duration, so the key expires with the ban and the keyspace
// cannot grow without bound.
type RedisSink struct {
	client RedisSetter
}

// NewRedisSink returns a sink backed by the given client.
func NewRedisSink(client RedisSetter) *RedisSink {
	return &RedisSink{client: client}
}

// BanKey is the Redis key layout, public for interoperability with tooling.
func BanKey(fingerprint string) string { return "ban:" + fingerprint }

func (r *RedisSink) RecordBans(ctx context.Context, events []BanEvent) error {
	for _, e := range events {
		ttl := time.Until(e.BannedUntil)
		if ttl <= 0 {
			continue // already expired by the time we flush
		}
		value := fmt.Sprintf("%.3f", e.Risk)
		if err := r.client.SetEx(ctx, BanKey(e.Fingerprint), value, ttl); err != nil {
			return fmt.Errorf("redis set %s: %w", BanKey(e.Fingerprint), err)
		}
	}
	return nil
}
