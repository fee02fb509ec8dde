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

// Package gateway composes the traffic analyzer, risk scorer, ban ledger and
// policy store into the request-handling pipeline of the reverse proxy, and
// serves the management API surface around it.
package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
)

// Fingerprint derives the opaque client identifier from the peer IP and the
// Authorization and User-Agent headers: SHA-256 over "ip|auth|ua" truncated
// to 16 bytes, rendered as 32 hex characters. Empty constituents concatenate
// as empty strings, so the identifier is deterministic for any triple.
func Fingerprint(ip, authorization, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "|" + authorization + "|" + userAgent))
	return hex.EncodeToString(sum[:16])
}

// FingerprintRequest extracts the triple from an incoming request.
func FingerprintRequest(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return Fingerprint(ip, r.Header.Get("Authorization"), r.Header.Get("User-Agent"))
}
