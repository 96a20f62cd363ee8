package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenManager handles token operations
type TokenManager struct {
	secretKey []byte
	method    jwt.SigningMethod
	lifetime  time.Duration
	now       func() time.Time
}

// NewTokenManager creates a new TokenManager. algorithm must name an HMAC
// signing method (HS256, HS384 or HS512).
func NewTokenManager(secretKey, algorithm string, lifetime time.Duration) (*TokenManager, error) {
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %q", algorithm)
	}
	if secretKey == "" {
		return nil, errors.New("secret key is required")
	}
	if lifetime <= 0 {
		return nil, errors.New("token lifetime must be positive")
	}
	return &TokenManager{
		secretKey: []byte(secretKey),
		method:    method,
		lifetime:  lifetime,
		now:       time.Now,
	}, nil
}

// GenerateToken creates a signed token whose subject is username
func (tm *TokenManager) GenerateToken(username string) (string, error) {
	now := tm.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ExpiresAt: jwt.NewNumericDate(now.Add(tm.lifetime)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(tm.method, claims)
	return token.SignedString(tm.secretKey)
}

// ValidateToken checks signature, algorithm and expiry and returns the subject.
func (tm *TokenManager) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return tm.secretKey, nil
		},
		jwt.WithValidMethods([]string{tm.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
