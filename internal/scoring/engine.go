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

package scoring

import (
	"os"

	"github.com/rs/zerolog"
)

// highRiskLogThreshold is the score above which the engine emits a warning.
const highRiskLogThreshold = 0.7

// Engine is the scoring entry point used by the pipeline. It wraps a Scorer
// and adds model loading with graceful fallback: if no model file is present
// (or a model runtime is not integrated) the rule-based scorer serves all
// traffic. Nothing here is fatal.
type Engine struct {
	scorer Scorer
	log    zerolog.Logger
}

// NewEngine returns an engine backed by the given scorer. A nil scorer
// selects the rule-based default.
func NewEngine(scorer Scorer, log zerolog.Logger) *Engine {
	if scorer == nil {
		scorer = RuleScorer{}
	}
	return &Engine{scorer: scorer, log: log}
}

// LoadModel records the configured model path and checks whether a model
// file exists there. A learned-model runtime is an extension point that is
// not wired in; the engine always degrades to rule-based scoring, and this
// method only reports what it found so operators are not surprised.
func (e *Engine) LoadModel(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		e.log.Warn().Str("path", path).Msg("model file not found, using rule-based scoring")
		return
	}
	e.log.Info().Str("path", path).Msg("model runtime not integrated, using rule-based scoring")
}

// PredictRisk scores a feature vector and logs high-risk detections.
func (e *Engine) PredictRisk(features []float64) float64 {
	score := e.scorer.Score(features)
	if score > highRiskLogThreshold {
		ev := e.log.Warn().Float64("score", score)
		if len(features) > FeatureRPS {
			ev = ev.Float64("rps", features[FeatureRPS])
		}
		if len(features) > FeatureBurstiness {
			ev = ev.Float64("burstiness", features[FeatureBurstiness])
		}
		ev.Msg("high risk client detected")
	}
	return score
}
