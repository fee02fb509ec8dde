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
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"abusegate/internal/analysis"
	"abusegate/internal/auth"
)

// Server ties the management API and the proxy pipeline to one router.
// Management paths (/api/..., /metrics, /healthz) are reserved; every other
// method and path is proxied.
type Server struct {
	pipeline *Pipeline
	analyzer *analysis.Analyzer
	policy   *PolicyStore
	users    *auth.Manager
	log      zerolog.Logger
}

// NewServer wires a server from its collaborators.
func NewServer(pipeline *Pipeline, analyzer *analysis.Analyzer, policy *PolicyStore, users *auth.Manager, log zerolog.Logger) *Server {
	return &Server{
		pipeline: pipeline,
		analyzer: analyzer,
		policy:   policy,
		users:    users,
		log:      log,
	}
}

// Router builds the HTTP handler: management routes first, then the proxy as
// the catch-all for everything unmatched.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/config/backend", s.handleUpdateBackend)
		r.Get("/config/backend", s.handleGetBackend)
		r.Get("/stats", s.handleStats)
		r.Get("/logs", s.handleLogs)
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/profile", s.handleProfile)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "time": time.Now().UTC()})
	})

	// Everything else, every method, is proxied.
	r.NotFound(s.pipeline.ServeHTTP)
	r.MethodNotAllowed(s.pipeline.ServeHTTP)
	return r
}
