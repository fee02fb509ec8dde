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
)

type backendRequest struct {
	URL string `json:"url"`
}

// handleUpdateBackend handles POST /api/config/backend. Malformed JSON and a
// missing or empty url are rejected with 400 and no side effects.
func (s *Server) handleUpdateBackend(w http.ResponseWriter, r *http.Request) {
	var req backendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.URL == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "URL required"})
		return
	}
	s.policy.SetBackendURL(req.URL)
	s.log.Info().Str("url", req.URL).Msg("backend URL updated")
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated", "url": req.URL})
}

// handleGetBackend handles GET /api/config/backend.
func (s *Server) handleGetBackend(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"url": s.policy.BackendURL()})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
