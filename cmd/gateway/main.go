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

// Package main runs the abuse-detection reverse proxy.
//
// The gateway sits in front of one upstream backend and decides, per
// request, whether to forward, delay or reject it based on a per-client
// behavioral risk score. It is wired from:
//  1. The traffic analyzer (per-client sliding-window statistics).
//  2. The scoring engine (rule-based, with a model extension point).
//  3. The ban ledger and policy store.
//  4. The request pipeline and management API.
//  5. A background auditor mirroring ban events to Redis (or the log).
//
// Quick start:
//
//	go run ./cmd/gateway -http_addr :8080 -backend_url http://localhost:9000
//	curl http://localhost:8080/anything        # proxied
//	curl http://localhost:8080/api/stats       # management (needs a login token)
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"abusegate/internal/analysis"
	"abusegate/internal/auth"
	"abusegate/internal/config"
	"abusegate/internal/gateway"
	"abusegate/internal/persistence"
	"abusegate/internal/scoring"
)

func main() {
	httpAddr := flag.String("http_addr", ":8080", "HTTP listen address")
	configPath := flag.String("config", "config.json", "Path to the JSON config file")
	backendURL := flag.String("backend_url", "", "Upstream backend URL (BACKEND_URL env overrides)")
	windowSize := flag.Duration("window", 60*time.Second, "Sliding analysis window per client")
	upstreamTimeout := flag.Duration("upstream_timeout", 30*time.Second, "Deadline for each upstream call")
	usersFile := flag.String("users_file", "users.json", "Path of the user registry file (empty disables persistence)")
	redisAddr := flag.String("redis_addr", "", "Redis address for the ban audit trail (empty logs bans instead)")
	auditFlush := flag.Duration("audit_flush", 5*time.Second, "How often buffered ban events are flushed")
	evictionAge := flag.Duration("eviction_age", 0, "Evict client records idle for this long (0 keeps them for the process lifetime)")
	evictionInterval := flag.Duration("eviction_interval", 10*time.Minute, "How often to scan for idle client records")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	fileCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("loading config failed")
	}
	policy := fileCfg.Policy()
	policy.BackendURL = *backendURL
	if env := os.Getenv("BACKEND_URL"); env != "" {
		policy.BackendURL = env
	}

	analyzer := analysis.NewAnalyzer(*windowSize)
	engine := scoring.NewEngine(nil, log)
	engine.LoadModel(fileCfg.MLModel.Path)
	bans := gateway.NewBanLedger()
	policyStore := gateway.NewPolicyStore(policy)
	users := auth.NewManager(*usersFile)

	var sink persistence.Sink
	if *redisAddr != "" {
		sink = persistence.NewRedisSink(persistence.NewGoRedisSetter(*redisAddr))
		log.Info().Str("addr", *redisAddr).Msg("ban audit trail backed by redis")
	} else {
		sink = persistence.LoggingSink{Log: log}
	}
	auditor := persistence.NewAuditor(sink, analyzer, log, persistence.AuditorOptions{
		FlushInterval:    *auditFlush,
		EvictionAge:      *evictionAge,
		EvictionInterval: *evictionInterval,
	})
	auditor.Start()

	pipeline := gateway.NewPipeline(gateway.PipelineOptions{
		Analyzer:        analyzer,
		Engine:          engine,
		Bans:            bans,
		Policy:          policyStore,
		Log:             log,
		UpstreamTimeout: *upstreamTimeout,
		OnBan: func(fp string, risk float64, until time.Time) {
			auditor.Record(persistence.BanEvent{Fingerprint: fp, Risk: risk, BannedUntil: until})
		},
	})
	server := gateway.NewServer(pipeline, analyzer, policyStore, users, log)

	httpServer := &http.Server{
		Addr:         *httpAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", *httpAddr).Str("backend", policyStore.BackendURL()).Msg("gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")

	// Stop the auditor first so any pending ban events get a final flush.
	auditor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("gateway stopped")
}
