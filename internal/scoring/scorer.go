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

// Package scoring turns a client's feature vector into a risk score in [0,1].
//
// The default scorer is rule-based and fully deterministic; a learned model
// can be substituted by providing another Scorer at construction time without
// touching the request pipeline.
package scoring

// Feature vector positions. Trailing features are optional; a missing
// feature is treated as zero.
const (
	FeatureRPS = iota
	FeatureBurstiness
	FeatureEndpointEntropy
	FeatureErrorRate
)

// Scorer maps a feature vector to a risk score in [0,1].
type Scorer interface {
	Score(features []float64) float64
}

// RuleScorer is the deterministic piecewise scoring function. It is total
// and side-effect free: the same input always produces the same output.
type RuleScorer struct{}

// Score implements Scorer. Fewer than two features yields 0.
func (RuleScorer) Score(features []float64) float64 {
	if len(features) < 2 {
		return 0
	}
	rps := features[FeatureRPS]
	burstiness := features[FeatureBurstiness]

	var risk float64

	// Request-rate factor, 0.60 weight total.
	switch {
	case rps > 100:
		risk += 0.60
	case rps > 50:
		risk += 0.45
	case rps > 20:
		risk += 0.25
	case rps > 10:
		risk += 0.10
	}

	// Burstiness factor, 0.40 weight total. Very bursty traffic is bot-like;
	// near-zero variance at a sustained rate is scripted.
	switch {
	case burstiness > 3000:
		risk += 0.40
	case burstiness > 1500:
		risk += 0.20
	case burstiness < 100 && rps > 5:
		risk += 0.15
	}

	// Combined penalty when both factors are elevated.
	if rps > 75 && burstiness > 2500 {
		risk += 0.20
	}

	return clamp01(risk)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
