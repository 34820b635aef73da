package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	manager := NewJWTManager(DefaultJWTConfig("test-secret"))
	userID := uuid.New()
	sessionID := uuid.New()

	token, err := manager.GenerateToken(userID, "user@example.com", sessionID)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}

	gotUser, err := claims.GetUserID()
	if err != nil || gotUser != userID {
		t.Errorf("expected user ID %s, got %s (err %v)", userID, gotUser, err)
	}
	gotSession, err := claims.GetSessionID()
	if err != nil || gotSession != sessionID {
		t.Errorf("expected session ID %s, got %s (err %v)", sessionID, gotSession, err)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("expected email claim, got %q", claims.Email)
	}
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	token, err := NewJWTManager(DefaultJWTConfig("secret-a")).
		GenerateToken(uuid.New(), "user@example.com", uuid.New())
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewJWTManager(DefaultJWTConfig("secret-b")).ValidateToken(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	cfg := DefaultJWTConfig("test-secret")
	cfg.Expiry = -time.Minute
	token, err := NewJWTManager(cfg).GenerateToken(uuid.New(), "user@example.com", uuid.New())
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewJWTManager(DefaultJWTConfig("test-secret")).ValidateToken(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}
