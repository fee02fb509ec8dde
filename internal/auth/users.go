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

// Package auth implements the dashboard's user accounts and bearer-token
// sessions. Users are persisted to a JSON file; sessions are in-memory only
// and die with the process.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

var (
	// ErrUserExists rejects a signup for a username already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials rejects a login with a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is one registered account. The password is stored as a SHA-256 hash,
// never in the clear.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Email        string `json:"email"`
	Role         string `json:"role"`
}

// Manager holds the account registry and active sessions.
type Manager struct {
	mu       sync.Mutex
	users    map[string]User
	sessions map[string]string // token → username
	filePath string            // empty disables persistence
}

// NewManager creates a manager persisting to filePath. An empty path keeps
// everything in memory. A missing or unreadable file is not an error: the
// registry just starts empty.
func NewManager(filePath string) *Manager {
	m := &Manager{
		users:    make(map[string]User),
		sessions: make(map[string]string),
		filePath: filePath,
	}
	m.load()
	return m
}

func (m *Manager) load() {
	if m.filePath == "" {
		return
	}
	data, err := os.ReadFile(m.filePath)
	if err != nil {
		return
	}
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return
	}
	for _, u := range users {
		m.users[u.Username] = u
	}
}

// save writes the registry to disk. Caller holds m.mu.
func (m *Manager) save() error {
	if m.filePath == "" {
		return nil
	}
	users := make([]User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.filePath, data, 0o600); err != nil {
		return fmt.Errorf("saving users: %w", err)
	}
	return nil
}

// Register creates a new account. The first registered user gets the admin
// role; everyone after is a viewer.
func (m *Manager) Register(username, password, email string) error {
	if username == "" || password == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; ok {
		return ErrUserExists
	}
	role := "viewer"
	if len(m.users) == 0 {
		role = "admin"
	}
	m.users[username] = User{
		Username:     username,
		PasswordHash: hashPassword(password),
		Email:        email,
		Role:         role,
	}
	return m.save()
}

// Login checks the credentials and, on success, opens a session and returns
// its bearer token.
func (m *Manager) Login(username, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok || u.PasswordHash != hashPassword(password) {
		return "", ErrInvalidCredentials
	}
	token := newToken()
	m.sessions[token] = username
	return token, nil
}

// UsernameFromToken resolves a session token; ok is false for unknown or
// empty tokens.
func (m *Manager) UsernameFromToken(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.sessions[token]
	return name, ok
}

// GetUser returns the account for a username.
func (m *Manager) GetUser(username string) (User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	return u, ok
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func newToken() string {
	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // crypto/rand failure means the process cannot run safely
	}
	return hex.EncodeToString(b[:])
}
