package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrProviderKeyNotConfigured is returned when no provider key hash is set.
var ErrProviderKeyNotConfigured = errors.New("identity provider key not configured")

// HashProviderKey hashes the shared identity-bridge key with the given cost.
func HashProviderKey(key string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ProviderVerifier checks the key presented by the identity bridge.
type ProviderVerifier struct {
	hash []byte
}

// NewProviderVerifier builds a verifier. An empty hash rejects every key.
func NewProviderVerifier(hash string) *ProviderVerifier {
	return &ProviderVerifier{hash: []byte(hash)}
}

// Verify compares a plaintext key against the configured hash.
func (v *ProviderVerifier) Verify(key string) error {
	if v == nil || len(v.hash) == 0 {
		return ErrProviderKeyNotConfigured
	}
	if key == "" {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(key))
}
