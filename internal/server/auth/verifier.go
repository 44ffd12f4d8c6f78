// Package auth provides the pluggable password-verifier boundary. The server
// stores whatever opaque string the configured verifier produces and never
// interprets it itself.
package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// PasswordVerifier turns a plaintext password into a stored verifier string
// and checks candidates against it.
type PasswordVerifier interface {
	// Hash derives the stored verifier from a plaintext password.
	Hash(password string) (string, error)

	// Verify reports whether candidate matches the stored verifier.
	Verify(stored, candidate string) bool
}

// PlainVerifier stores the password as-is and compares in constant time.
// This mirrors the legacy system's behavior and is the default; use
// BcryptVerifier for anything beyond local development.
type PlainVerifier struct{}

func (PlainVerifier) Hash(password string) (string, error) {
	return password, nil
}

func (PlainVerifier) Verify(stored, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

// BcryptVerifier stores a bcrypt hash of the password.
type BcryptVerifier struct {
	// Cost of the bcrypt key derivation; zero means bcrypt.DefaultCost.
	Cost int
}

func (v BcryptVerifier) Hash(password string) (string, error) {
	cost := v.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (v BcryptVerifier) Verify(stored, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
}
