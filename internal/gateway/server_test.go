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
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abusegate/internal/auth"
)

type serverFixture struct {
	*pipelineFixture
	router http.Handler
	users  *auth.Manager
}

func newServerFixture(t *testing.T, score float64, handler http.HandlerFunc) *serverFixture {
	t.Helper()
	pf := newPipelineFixture(t, score, handler)
	users := auth.NewManager("") // in-memory only
	srv := NewServer(pf.pipeline, pf.analyzer, pf.policy, users, zerolog.Nop())
	return &serverFixture{pipelineFixture: pf, router: srv.Router(), users: users}
}

func (f *serverFixture) request(method, path, body, token string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

// login registers (if needed) and logs in, returning a live session token.
func (f *serverFixture) login(t *testing.T) string {
	t.Helper()
	_ = f.users.Register("ops", "hunter2", "ops@example.com")
	token, err := f.users.Login("ops", "hunter2")
	require.NoError(t, err)
	return token
}

func TestServer_BackendConfigRoundTrip(t *testing.T) {
	f := newServerFixture(t, 0, func(w http.ResponseWriter, r *http.Request) {})

	w := f.request("POST", "/api/config/backend", `{"url":"http://backend:9000"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var updated map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "updated", updated["status"])
	assert.Equal(t, "http://backend:9000", updated["url"])

	w = f.request("GET", "/api/config/backend", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "http://backend:9000", got["url"])
}

func TestServer_BackendConfigRejectsBadInput(t *testing.T) {
	f := newServerFixture(t, 0, func(w http.ResponseWriter, r *http.Request) {})
	prior := f.policy.BackendURL()

	w := f.request("POST", "/api/config/backend", `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.request("POST", "/api/config/backend", `{"url":""}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, prior, f.policy.BackendURL(), "rejected update must not change the backend")
}

func TestServer_StatsRequiresAuth(t *testing.T) {
	f := newServerFixture(t, 0, func(w http.ResponseWriter, r *http.Request) {})

	w := f.request("GET", "/api/stats", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.request("GET", "/api/stats", "", "bogus-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_StatsAggregates(t *testing.T) {
	f := newServerFixture(t, 0.75, func(w http.ResponseWriter, r *http.Request) {})
	token := f.login(t)

	// One proxied request creates one tracked client with risk 0.75.
	// 0.75 is below the block threshold (0.8) but above the throttle
	// threshold, so shrink the delay to keep the test fast.
	pol := f.policy.Get()
	pol.ThrottleMaxDelay = 0
	require.NoError(t, f.policy.Set(pol))
	f.request("GET", "/proxied/path", "", "")

	w := f.request("GET", "/api/stats", "", token)
	require.Equal(t, http.StatusOK, w.Code)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Clients, 1)
	assert.Equal(t, 1, resp.Clients[0].Total)
	assert.Equal(t, 0.75, resp.Clients[0].RiskScore)
	assert.Equal(t, 1, resp.Global.ActiveClients)
	assert.Equal(t, 1, resp.Global.TotalRequestsTracked)
	assert.Equal(t, 0.75, resp.Global.AvgRiskScore)
	assert.Equal(t, 1, resp.Global.HighRiskClients, "0.75 > 0.7 counts as high risk")
}

func TestServer_LogsPlaceholder(t *testing.T) {
	f := newServerFixture(t, 0, func(w http.ResponseWriter, r *http.Request) {})
	token := f.login(t)

	w := f.request("GET", "/api/logs", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.request("GET", "/api/logs", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Not implemented")
}

func TestServer_AuthFlow(t *testing.T) {
	f := newServerFixture(t, 0, func(w http.ResponseWriter, r *http.Request) {})

	w := f.request("POST", "/api/auth/signup", `{"username":"alice","password":"pw","email":"a@example.com"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.request("POST", "/api/auth/signup", `{"username":"alice","password":"other","email":"a@example.com"}`, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "User exists")

	w = f.request("POST", "/api/auth/login", `{"username":"alice","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.request("POST", "/api/auth/login", `{"username":"alice","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var login map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login["token"])
	assert.Equal(t, "alice", login["username"])

	w = f.request("GET", "/api/auth/profile", "", login["token"])
	require.Equal(t, http.StatusOK, w.Code)
	var profile map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, "alice", profile["username"])
	assert.Equal(t, "a@example.com", profile["email"])
	assert.Equal(t, "admin", profile["role"], "first account gets the admin role")

	w = f.request("GET", "/api/auth/profile", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_Healthz(t *testing.T) {
	f := newServerFixture(t, 0, func(w http.ResponseWriter, r *http.Request) {})
	w := f.request("GET", "/healthz", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

// TestServer_CatchAllProxies: any path outside the management surface, with
// any method, reaches the upstream through the pipeline.
func TestServer_CatchAllProxies(t *testing.T) {
	var gotURI string
	f := newServerFixture(t, 0, func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		_, _ = w.Write([]byte("upstream says hi"))
	})

	w := f.request("DELETE", "/v1/widgets/42?hard=true", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "upstream says hi", w.Body.String())
	assert.Equal(t, "/v1/widgets/42?hard=true", gotURI)
	assert.Equal(t, int64(1), f.hits.Load())
}

func TestServer_MetricsEndpoint(t *testing.T) {
	f := newServerFixture(t, 0, func(w http.ResponseWriter, r *http.Request) {})
	w := f.request("GET", "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "abusegate_")
	assert.Equal(t, int64(0), f.hits.Load(), "metrics must not be proxied")
}
