package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// IssueToken signs an HS256 token identifying clientID, valid for ttl.
func IssueToken(secret, clientID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   clientID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// verifyToken checks that raw is a valid HS256 token issued for clientID.
func verifyToken(secret, raw, clientID string) error {
	if raw == "" {
		return fmt.Errorf("%w: token required", ErrUnauthorized)
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if claims.Subject != clientID {
		return fmt.Errorf("%w: token subject %q does not match client %q", ErrUnauthorized, claims.Subject, clientID)
	}
	return nil
}
