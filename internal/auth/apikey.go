// Package auth provides bearer API key generation/hashing and the RBAC
// permission matrix for the Console.
//
// API keys authenticate as their owning user and carry no additional role.
// Unlike a login credential, the hash must be directly queryable — the
// handshake looks a key up by its hash, not by scanning every row — so
// hashing is deterministic SHA-256, not a salted, slow KDF.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

const keyLength = 32 // bytes of randomness; 64 hex chars on the wire

// GenerateAPIKey returns a new random 64-hex-char key.
func GenerateAPIKey() (string, error) {
	b := make([]byte, keyLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashAPIKey returns the hex-encoded SHA-256 digest stored as ApiKey.key_hash.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// CompareHash does a constant-time comparison of a freshly-computed hash
// against the stored one, defending against timing side channels even
// though the hash itself is a simple digest.
func CompareHash(candidate, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(stored)) == 1
}

// IssuedKey is returned once at creation time; only Hash is persisted.
type IssuedKey struct {
	PlaintextKey string
	Hash         string
	CreatedAt    time.Time
}

func IssueAPIKey() (*IssuedKey, error) {
	key, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	return &IssuedKey{PlaintextKey: key, Hash: HashAPIKey(key), CreatedAt: time.Now().UTC()}, nil
}

// ValidateAPIKeyFormat checks the raw key is 64 hex characters.
func ValidateAPIKeyFormat(key string) error {
	if len(key) != keyLength*2 {
		return fmt.Errorf("api key must be %d characters, got %d", keyLength*2, len(key))
	}
	if _, err := hex.DecodeString(key); err != nil {
		return fmt.Errorf("api key must be hexadecimal")
	}
	return nil
}
