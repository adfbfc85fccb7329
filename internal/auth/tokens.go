package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that cannot be accepted:
// malformed, expired, forged, or carrying the wrong use claim.
var ErrInvalidToken = errors.New("invalid token")

const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// Claims are the JWT claims carried by access and refresh tokens.
type Claims struct {
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies signed access and refresh tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager creates a token manager signing with the given secret.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if accessTTL <= 0 {
		accessTTL = 5 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// IssueAccessToken mints a short-lived access token for the user.
func (m *TokenManager) IssueAccessToken(userID string) (string, error) {
	return m.issue(userID, useAccess, m.accessTTL)
}

// IssueRefreshToken mints a long-lived refresh token for the user.
func (m *TokenManager) IssueRefreshToken(userID string) (string, error) {
	return m.issue(userID, useRefresh, m.refreshTTL)
}

func (m *TokenManager) issue(userID, use string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken validates an access token and returns the subject user
// ID. Verification fails closed: any parse, signature, expiry, or use-claim
// problem yields ErrInvalidToken.
func (m *TokenManager) VerifyAccessToken(tokenString string) (string, error) {
	return m.verify(tokenString, useAccess)
}

// VerifyRefreshToken validates a refresh token and returns the subject user ID.
func (m *TokenManager) VerifyRefreshToken(tokenString string) (string, error) {
	return m.verify(tokenString, useRefresh)
}

func (m *TokenManager) verify(tokenString, wantUse string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" || claims.TokenUse != wantUse {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
