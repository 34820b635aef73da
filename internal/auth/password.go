package auth

import (
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const (
	pbkdf2Iterations = 100_000
	saltBytes        = 32
	keyBytes         = 32
)

// HashPassword derives a PBKDF2-SHA256 hash for the password with a fresh
// random salt. Both return values are hex-encoded for storage.
func HashPassword(password string) (hash, salt string, err error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}
	salt = hex.EncodeToString(raw)

	key, err := pbkdf2.Key(sha256.New, password, []byte(salt), pbkdf2Iterations, keyBytes)
	if err != nil {
		return "", "", fmt.Errorf("failed to derive key: %w", err)
	}

	return hex.EncodeToString(key), salt, nil
}

// VerifyPassword checks a password against a stored hash and salt in
// constant time.
func VerifyPassword(password, storedHash, salt string) bool {
	key, err := pbkdf2.Key(sha256.New, password, []byte(salt), pbkdf2Iterations, keyBytes)
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(storedHash)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(key, expected) == 1
}
