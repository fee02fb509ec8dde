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

// Package config parses the gateway's JSON configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"abusegate/internal/gateway"
)

// MLModel is the scoring and enforcement block of the config file. All keys
// are optional; zero values take the documented defaults.
type MLModel struct {
	Path               string  `json:"path"`
	ThresholdBlock     float64 `json:"threshold_block"`
	ThresholdThrottle  float64 `json:"threshold_throttle"`
	ThrottleMaxDelayMs int     `json:"throttle_max_delay_ms"`
	BanDurationSeconds int     `json:"ban_duration_seconds"`
}

// File is the full config file shape.
type File struct {
	MLModel MLModel `json:"ml_model"`
}

// Load reads and parses the file at path. A missing path returns the zero
// File without error; callers overlay defaults via Policy.
func Load(path string) (File, error) {
	var f File
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parsing config: %w", err)
	}
	return f, nil
}

// Policy converts the file into an enforcement policy, filling defaults for
// unset keys. The backend URL is not a config-file key; it comes from the
// BACKEND_URL environment variable or the management API.
func (f File) Policy() gateway.Policy {
	p := gateway.DefaultPolicy()
	if f.MLModel.ThresholdBlock > 0 {
		p.ThresholdBlock = f.MLModel.ThresholdBlock
	}
	if f.MLModel.ThresholdThrottle > 0 {
		p.ThresholdThrottle = f.MLModel.ThresholdThrottle
	}
	if f.MLModel.ThrottleMaxDelayMs > 0 {
		p.ThrottleMaxDelay = time.Duration(f.MLModel.ThrottleMaxDelayMs) * time.Millisecond
	}
	if f.MLModel.BanDurationSeconds > 0 {
		p.BanDuration = time.Duration(f.MLModel.BanDurationSeconds) * time.Second
	}
	return p
}
