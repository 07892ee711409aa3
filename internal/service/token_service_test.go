package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prepdeck/mockexam-backend/internal/config"
)

func testTokenConfig(secret string) *config.Config {
	return &config.Config{
		TokenSecret: secret,
		TokenExpiry: time.Hour,
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	svc := NewTokenService(testTokenConfig("unit-test-secret"))
	sessionID := uuid.New()

	token, err := svc.GenerateSessionToken(sessionID)
	if err != nil {
		t.Fatalf("GenerateSessionToken: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeSession {
		t.Errorf("token_type = %q, want %q", claims.TokenType, TokenTypeSession)
	}

	got, err := claims.SessionUUID()
	if err != nil {
		t.Fatalf("SessionUUID: %v", err)
	}
	if got != sessionID {
		t.Errorf("session ID = %s, want %s", got, sessionID)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	signer := NewTokenService(testTokenConfig("secret-one"))
	verifier := NewTokenService(testTokenConfig("secret-two"))

	token, err := signer.GenerateSessionToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateSessionToken: %v", err)
	}

	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("token signed with a different secret must not validate")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewTokenService(testTokenConfig("unit-test-secret"))

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := svc.ValidateToken(tok); err == nil {
			t.Errorf("ValidateToken(%q) succeeded, want error", tok)
		}
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	cfg := testTokenConfig("unit-test-secret")
	cfg.TokenExpiry = -time.Minute
	svc := NewTokenService(cfg)

	token, err := svc.GenerateSessionToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateSessionToken: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("expired token must not validate")
	}
}
