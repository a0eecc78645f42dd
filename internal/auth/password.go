// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any username or password
// mismatch. The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AdminVerifier checks admin login credentials against a bcrypt hash
// configured out-of-band. Plaintext passwords are never stored.
type AdminVerifier struct {
	username     string
	passwordHash []byte
}

// NewAdminVerifier creates a verifier. Both username and hash must be
// configured; an empty hash disables admin login entirely.
func NewAdminVerifier(username, passwordHash string) (*AdminVerifier, error) {
	if username == "" {
		return nil, errors.New("admin username is required")
	}
	if passwordHash == "" {
		return nil, errors.New("admin password hash is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, errors.New("admin password hash is not a valid bcrypt hash")
	}
	return &AdminVerifier{username: username, passwordHash: []byte(passwordHash)}, nil
}

// Verify checks the credentials in constant time.
func (v *AdminVerifier) Verify(username, password string) error {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(v.username)) == 1
	err := bcrypt.CompareHashAndPassword(v.passwordHash, []byte(password))
	if !usernameMatch || err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash suitable for the admin
// configuration. Cost 12 balances login latency against brute force.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
