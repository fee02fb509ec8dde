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
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Evictor is the analyzer hook the auditor drives when idle-client eviction
// is enabled.
type Evictor interface {
	EvictIdle(age time.Duration) int
}

// AuditorOptions configures the background auditor.
type AuditorOptions struct {
	// FlushInterval controls how often buffered ban events are written to
	// the sink. Defaults to 5s when zero.
	FlushInterval time.Duration
	// Buffer is the event channel capacity. When full, events are dropped
	// with a warning rather than blocking the request path. Defaults to 256.
	Buffer int
	// EvictionAge, when positive, drops analyzer records idle for at least
	// this long. Zero disables eviction: client records then live for the
	// process lifetime.
	EvictionAge time.Duration
	// EvictionInterval controls the sweep cadence. Defaults to 10m.
	EvictionInterval time.Duration
}

// Auditor runs the gateway's background maintenance: batching ban events to
// the sink, and (optionally) sweeping idle client records. It never blocks
// the hot path and a sink failure is logged, not propagated.
type Auditor struct {
	sink    Sink
	evictor Evictor
	log     zerolog.Logger
	opts    AuditorOptions

	events   chan BanEvent
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

// NewAuditor creates an auditor. evictor may be nil when eviction is
// disabled.
func NewAuditor(sink Sink, evictor Evictor, log zerolog.Logger, opts AuditorOptions) *Auditor {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.EvictionInterval <= 0 {
		opts.EvictionInterval = 10 * time.Minute
	}
	return &Auditor{
		sink:     sink,
		evictor:  evictor,
		log:      log,
		opts:     opts,
		events:   make(chan BanEvent, opts.Buffer),
		stopChan: make(chan struct{}),
	}
}

// Record enqueues a ban event without blocking. Dropped events only cost
// audit visibility; enforcement already happened in the ledger.
func (a *Auditor) Record(e BanEvent) {
	select {
	case a.events <- e:
	default:
		a.log.Warn().Str("fingerprint", e.Fingerprint).Msg("audit buffer full, ban event dropped")
	}
}

// Start launches the background goroutines.
func (a *Auditor) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.flushLoop()
	}()
	if a.evictor != nil && a.opts.EvictionAge > 0 {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.evictionLoop()
		}()
	}
}

// Stop drains and flushes any pending events, then stops the loops. Safe to
// call more than once.
func (a *Auditor) Stop() {
	if !atomic.CompareAndSwapUint32(&a.stopped, 0, 1) {
		return
	}
	close(a.stopChan)
	a.wg.Wait()
}

func (a *Auditor) flushLoop() {
	ticker := time.NewTicker(a.opts.FlushInterval)
	defer ticker.Stop()

	var pending []BanEvent
	for {
		select {
		case e := <-a.events:
			pending = append(pending, e)
		case <-ticker.C:
			pending = a.flush(pending)
		case <-a.stopChan:
			// Final flush: drain whatever is still queued.
			for {
				select {
				case e := <-a.events:
					pending = append(pending, e)
					continue
				default:
				}
				break
			}
			a.flush(pending)
			return
		}
	}
}

// flush writes pending events to the sink and returns the (possibly
// retained) batch. On failure the batch is kept for the next tick.
func (a *Auditor) flush(pending []BanEvent) []BanEvent {
	if len(pending) == 0 {
		return pending
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.FlushInterval)
	defer cancel()
	if err := a.sink.RecordBans(ctx, pending); err != nil {
		a.log.Error().Err(err).Int("events", len(pending)).Msg("ban audit flush failed")
		return pending
	}
	return pending[:0]
}

func (a *Auditor) evictionLoop() {
	ticker := time.NewTicker(a.opts.EvictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := a.evictor.EvictIdle(a.opts.EvictionAge); n > 0 {
				a.log.Info().Int("evicted", n).Msg("idle client records evicted")
			}
		case <-a.stopChan:
			return
		}
	}
}
