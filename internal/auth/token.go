package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiryBuffer is how close to expiry a token is reported as expiring soon.
const TokenExpiryBuffer = 5 * time.Minute

// TokenInfo holds the claims the client cares about. Signatures are not verified;
// the server remains the authority on validity.
type TokenInfo struct {
	Subject   string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	Type      string    `json:"type,omitempty" yaml:"type,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

// Inspect decodes the claims of a JWT without verifying its signature.
func Inspect(token string) (*TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	info := &TokenInfo{}
	switch sub := claims["sub"].(type) {
	case string:
		info.Subject = sub
	case float64:
		info.Subject = strconv.FormatFloat(sub, 'f', -1, 64)
	}
	if typ, ok := claims["type"].(string); ok {
		info.Type = typ
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("failed to read token expiry: %w", err)
	}
	if exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}

// HasExpiry reports whether the token carries an exp claim.
func (t *TokenInfo) HasExpiry() bool {
	return !t.ExpiresAt.IsZero()
}

// Expired reports whether the token is past its expiry at now.
func (t *TokenInfo) Expired(now time.Time) bool {
	return t.HasExpiry() && !now.Before(t.ExpiresAt)
}

// ExpiringSoon reports whether the token expires within TokenExpiryBuffer of now.
func (t *TokenInfo) ExpiringSoon(now time.Time) bool {
	return t.HasExpiry() && !now.Before(t.ExpiresAt.Add(-TokenExpiryBuffer))
}

// MinutesUntilExpiry is negative once the token has expired.
func (t *TokenInfo) MinutesUntilExpiry(now time.Time) int64 {
	return int64(t.ExpiresAt.Sub(now) / time.Minute)
}
