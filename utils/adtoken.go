package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/torreads/adledger/config"
)

// AdTokenClaims is the claim ticket issued when a client starts watching an
// ad. NotBefore is pushed past the ad duration so a scripted claim cannot
// land before the ad could possibly have finished.
type AdTokenClaims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

var (
	// ErrAdTokenEarly means the token exists but the ad cannot have finished yet.
	ErrAdTokenEarly = errors.New("ad still playing")
	// ErrAdTokenMismatch means the token belongs to a different identity.
	ErrAdTokenMismatch = errors.New("ad token user mismatch")
)

// GenerateAdToken issues a claim ticket for userID. The returned expiry is
// the number of seconds in which the ticket must be redeemed.
func GenerateAdToken(userID string, now time.Time) (token string, expiresIn int, err error) {
	cfg := config.Get()
	notBefore := now.Add(time.Duration(cfg.AdDurationSec) * time.Second)
	expiresAt := now.Add(time.Duration(cfg.AdTokenTTLSec) * time.Second)

	claims := AdTokenClaims{
		UserID:    userID,
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(notBefore),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(cfg.AdTokenSecret))
	if err != nil {
		return "", 0, err
	}
	return signed, cfg.AdTokenTTLSec, nil
}

// ParseAdToken validates a claim ticket and checks it was issued for userID.
func ParseAdToken(tokenStr, userID string) (*AdTokenClaims, error) {
	cfg := config.Get()
	parsed, err := jwt.ParseWithClaims(tokenStr, &AdTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.AdTokenSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrAdTokenEarly
		}
		return nil, err
	}
	claims, ok := parsed.Claims.(*AdTokenClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID != userID {
		return nil, ErrAdTokenMismatch
	}
	return claims, nil
}
