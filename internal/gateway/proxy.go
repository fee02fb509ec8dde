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
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/failsafehttp"
	"github.com/failsafe-go/failsafe-go/timeout"
	"github.com/rs/zerolog"

	"abusegate/internal/analysis"
	"abusegate/internal/scoring"
	"abusegate/internal/telemetry"
)

// Response bodies emitted by the pipeline.
const (
	bodyBlocked    = "Access Denied: High Risk Detected - Temporarily Banned"
	bodyBanned     = "Too Many Requests: Temporarily Banned"
	bodyBadGateway = "Bad Gateway"
)

// hopHeaders are regenerated by the local HTTP stack and must not be copied
// from the upstream response.
var hopHeaders = []string{"Content-Length", "Transfer-Encoding", "Content-Encoding", "Connection"}

// PipelineOptions configures the request pipeline.
type PipelineOptions struct {
	Analyzer *analysis.Analyzer
	Engine   *scoring.Engine
	Bans     *BanLedger
	Policy   *PolicyStore
	Log      zerolog.Logger

	// UpstreamTimeout bounds each upstream call. Zero leaves the call bounded
	// only by the incoming request's own deadline.
	UpstreamTimeout time.Duration

	// OnBan, when set, is invoked after a ban is applied (outside all locks).
	// Used to feed the audit trail.
	OnBan func(fingerprint string, risk float64, until time.Time)
}

// Pipeline is the per-request state machine of the proxy:
// fingerprint → ban check → measure → score → decide → forward → post-account.
// It implements http.Handler and is safe for concurrent use.
type Pipeline struct {
	analyzer *analysis.Analyzer
	engine   *scoring.Engine
	bans     *BanLedger
	policy   *PolicyStore
	log      zerolog.Logger
	onBan    func(fingerprint string, risk float64, until time.Time)
	client   *http.Client
}

// NewPipeline wires a pipeline from its collaborators. The upstream client
// never follows redirects (they belong to the requesting client) and is
// bounded by a timeout policy when one is configured.
func NewPipeline(opts PipelineOptions) *Pipeline {
	var transport http.RoundTripper = http.DefaultTransport
	if opts.UpstreamTimeout > 0 {
		// No retry policy is composed here: the upstream is called at most
		// once per request.
		transport = failsafehttp.NewRoundTripper(transport,
			timeout.New[*http.Response](opts.UpstreamTimeout))
	}
	return &Pipeline{
		analyzer: opts.Analyzer,
		engine:   opts.Engine,
		bans:     opts.Bans,
		policy:   opts.Policy,
		log:      opts.Log,
		onBan:    opts.OnBan,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fp := FingerprintRequest(r)

	// Ban check before any accounting: banned clients get a flat 429 and
	// never reach the upstream.
	if p.bans.IsBanned(fp) {
		telemetry.RecordDecision(telemetry.DecisionBanned)
		respondText(w, http.StatusTooManyRequests, bodyBanned)
		return
	}

	payloadSize := 0
	if r.ContentLength > 0 {
		payloadSize = int(r.ContentLength)
	}
	metrics := p.analyzer.UpdateAndGetMetrics(fp, r.URL.Path, payloadSize)

	features := []float64{metrics.RPS, metrics.Burstiness, metrics.EndpointEntropy, metrics.ErrorRate}
	score := p.engine.PredictRisk(features)
	telemetry.RecordRisk(score)

	pol := p.policy.Get()
	p.log.Debug().
		Str("fingerprint", fp).
		Str("path", r.URL.Path).
		Float64("rps", metrics.RPS).
		Float64("burstiness", metrics.Burstiness).
		Float64("risk", score).
		Msg("request measured")

	if score > pol.ThresholdBlock {
		entry := p.bans.Ban(fp, pol.BanDuration, score)
		p.analyzer.UpdateRiskScore(fp, score)
		telemetry.RecordDecision(telemetry.DecisionBlock)
		telemetry.SetActiveBans(p.bans.Len())
		p.log.Warn().Str("fingerprint", fp).Float64("risk", score).Msg("client banned")
		if p.onBan != nil {
			p.onBan(fp, score, entry.BannedUntil)
		}
		respondText(w, http.StatusForbidden, bodyBlocked)
		return
	}

	if score > pol.ThresholdThrottle {
		delay := throttleDelay(score, pol)
		telemetry.RecordThrottleDelay(delay)
		p.log.Info().Str("fingerprint", fp).Float64("risk", score).Dur("delay", delay).Msg("client throttled")
		// A parked goroutine, not a pinned worker: cancellation of the
		// incoming request aborts the wait.
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-r.Context().Done():
			p.analyzer.UpdateRiskScore(fp, score)
			return
		}
		telemetry.RecordDecision(telemetry.DecisionThrottle)
	} else {
		telemetry.RecordDecision(telemetry.DecisionAllow)
	}

	p.forward(w, r, fp, score)
	telemetry.SetActiveClients(p.analyzer.ClientCount())
}

// throttleDelay interpolates linearly between the throttle and block
// thresholds, reaching the maximum delay at the block threshold.
func throttleDelay(score float64, pol Policy) time.Duration {
	span := pol.ThresholdBlock - pol.ThresholdThrottle
	if span <= 0 {
		return pol.ThrottleMaxDelay
	}
	frac := (score - pol.ThresholdThrottle) / span
	return time.Duration(frac * float64(pol.ThrottleMaxDelay))
}

// forward performs the upstream round trip and relays the response. No
// analyzer or ledger lock is held while the upstream call is in flight.
func (p *Pipeline) forward(w http.ResponseWriter, r *http.Request, fp string, score float64) {
	backend := p.policy.BackendURL()
	if backend == "" {
		p.log.Error().Msg("no backend configured")
		telemetry.RecordDecision(telemetry.DecisionUpstream)
		p.analyzer.UpdateRiskScore(fp, score)
		respondText(w, http.StatusBadGateway, bodyBadGateway)
		return
	}

	target := strings.TrimSuffix(backend, "/") + r.URL.RequestURI()
	upReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		p.log.Error().Err(err).Str("target", target).Msg("building upstream request failed")
		telemetry.RecordDecision(telemetry.DecisionUpstream)
		p.analyzer.UpdateRiskScore(fp, score)
		respondText(w, http.StatusBadGateway, bodyBadGateway)
		return
	}
	upReq.Header = r.Header.Clone()

	start := timeNow()
	resp, err := p.client.Do(upReq)
	if err != nil {
		// The client did not cause this failure; it is not counted in the
		// client's error statistics.
		p.log.Error().Err(err).Str("target", target).Msg("upstream request failed")
		telemetry.RecordDecision(telemetry.DecisionUpstream)
		p.analyzer.UpdateRiskScore(fp, score)
		respondText(w, http.StatusBadGateway, bodyBadGateway)
		return
	}
	defer resp.Body.Close()
	telemetry.RecordUpstream(timeNow().Sub(start))

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		p.analyzer.RecordError(fp, true, false)
	} else if resp.StatusCode >= 500 && resp.StatusCode < 600 {
		p.analyzer.RecordError(fp, false, true)
	}
	p.analyzer.UpdateRiskScore(fp, score)

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.log.Debug().Err(err).Msg("copying upstream body interrupted")
	}
}

// copyResponseHeaders relays upstream headers minus the hop-by-hop and
// framing set, matched case-insensitively.
func copyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		if isHopHeader(key) {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func isHopHeader(key string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(key, h) {
			return true
		}
	}
	return false
}

func respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
