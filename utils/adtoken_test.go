package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/torreads/adledger/config"
)

func setupAdTokenConfig(t *testing.T) {
	t.Helper()
	config.SetForTest(config.AppConfig{
		AdTokenEnabled: true,
		AdTokenSecret:  "test-secret",
		AdTokenTTLSec:  120,
		AdDurationSec:  15,
	})
}

func TestAdToken_RejectedBeforeAdFinishes(t *testing.T) {
	setupAdTokenConfig(t)

	token, expiresIn, err := GenerateAdToken("alice", time.Now())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if expiresIn != 120 {
		t.Errorf("expires_in = %d, want 120", expiresIn)
	}

	if _, err := ParseAdToken(token, "alice"); !errors.Is(err, ErrAdTokenEarly) {
		t.Fatalf("err = %v, want ErrAdTokenEarly", err)
	}
}

func TestAdToken_ValidAfterAdDuration(t *testing.T) {
	setupAdTokenConfig(t)

	// Issue as if the ad started 20 seconds ago; the 15s gate has passed.
	token, _, err := GenerateAdToken("alice", time.Now().Add(-20*time.Second))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseAdToken(token, "alice")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "alice" {
		t.Errorf("user = %q, want alice", claims.UserID)
	}
	if claims.SessionID == "" {
		t.Error("session id missing")
	}
}

func TestAdToken_UserMismatch(t *testing.T) {
	setupAdTokenConfig(t)

	token, _, err := GenerateAdToken("alice", time.Now().Add(-20*time.Second))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ParseAdToken(token, "bob"); !errors.Is(err, ErrAdTokenMismatch) {
		t.Fatalf("err = %v, want ErrAdTokenMismatch", err)
	}
}

func TestAdToken_Expired(t *testing.T) {
	setupAdTokenConfig(t)

	token, _, err := GenerateAdToken("alice", time.Now().Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ParseAdToken(token, "alice"); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("err = %v, want token expired", err)
	}
}

func TestAdToken_Garbage(t *testing.T) {
	setupAdTokenConfig(t)

	if _, err := ParseAdToken("not-a-token", "alice"); err == nil {
		t.Fatal("garbage token should fail to parse")
	}
}
