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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"abusegate/internal/gateway"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.Policy() != gateway.DefaultPolicy() {
		t.Fatalf("missing file policy = %+v, want defaults", f.Policy())
	}
}

func TestLoad_EmptyPathYieldsDefaults(t *testing.T) {
	f, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if f.Policy() != gateway.DefaultPolicy() {
		t.Fatalf("empty path policy = %+v, want defaults", f.Policy())
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load() accepted malformed JSON")
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"ml_model": {
			"path": "models/risk.onnx",
			"threshold_block": 0.9,
			"threshold_throttle": 0.6,
			"throttle_max_delay_ms": 1500,
			"ban_duration_seconds": 600
		}
	}`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.MLModel.Path != "models/risk.onnx" {
		t.Fatalf("Path = %q", f.MLModel.Path)
	}

	p := f.Policy()
	if p.ThresholdBlock != 0.9 || p.ThresholdThrottle != 0.6 {
		t.Fatalf("thresholds = (%v, %v), want (0.9, 0.6)", p.ThresholdBlock, p.ThresholdThrottle)
	}
	if p.ThrottleMaxDelay != 1500*time.Millisecond {
		t.Fatalf("ThrottleMaxDelay = %v, want 1.5s", p.ThrottleMaxDelay)
	}
	if p.BanDuration != 600*time.Second {
		t.Fatalf("BanDuration = %v, want 10m", p.BanDuration)
	}
	if p.BackendURL != "" {
		t.Fatalf("BackendURL = %q, config file must not set it", p.BackendURL)
	}
}

// TestLoad_PartialConfig: unset keys keep their defaults.
func TestLoad_PartialConfig(t *testing.T) {
	path := writeConfig(t, `{"ml_model": {"threshold_block": 0.95}}`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	p := f.Policy()
	def := gateway.DefaultPolicy()
	if p.ThresholdBlock != 0.95 {
		t.Fatalf("ThresholdBlock = %v, want 0.95", p.ThresholdBlock)
	}
	if p.ThresholdThrottle != def.ThresholdThrottle || p.ThrottleMaxDelay != def.ThrottleMaxDelay || p.BanDuration != def.BanDuration {
		t.Fatalf("unset keys overridden: %+v", p)
	}
}
