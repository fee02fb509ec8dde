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
	"net/http/httptest"
	"regexp"
	"testing"
)

var hex32 = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestFingerprint_DeterministicAndOpaque(t *testing.T) {
	a := Fingerprint("10.0.0.1", "Bearer tok", "curl/8.0")
	b := Fingerprint("10.0.0.1", "Bearer tok", "curl/8.0")
	if a != b {
		t.Fatalf("same triple produced different fingerprints: %s vs %s", a, b)
	}
	if !hex32.MatchString(a) {
		t.Fatalf("fingerprint %q is not 32 hex chars", a)
	}
}

func TestFingerprint_DistinctTriples(t *testing.T) {
	base := Fingerprint("10.0.0.1", "auth", "ua")
	variants := []string{
		Fingerprint("10.0.0.2", "auth", "ua"),
		Fingerprint("10.0.0.1", "other", "ua"),
		Fingerprint("10.0.0.1", "auth", "other"),
		Fingerprint("", "", ""),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d collided with base fingerprint", i)
		}
	}
}

// TestFingerprintRequest: the peer port must not influence the identity, and
// the header triple must match the direct form.
func TestFingerprintRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/x", nil)
	r.RemoteAddr = "192.0.2.7:4242"
	r.Header.Set("Authorization", "Bearer tok")
	r.Header.Set("User-Agent", "test-agent")

	want := Fingerprint("192.0.2.7", "Bearer tok", "test-agent")
	if got := FingerprintRequest(r); got != want {
		t.Fatalf("FingerprintRequest = %s, want %s", got, want)
	}

	r.RemoteAddr = "192.0.2.7:9999"
	if got := FingerprintRequest(r); got != want {
		t.Fatalf("port change altered fingerprint: %s", got)
	}
}
