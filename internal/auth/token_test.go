package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager("test-secret", "HS256", 30*time.Minute)
	require.NoError(t, err)
	return tm
}

func TestNewTokenManager(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		algorithm string
		lifetime  time.Duration
		wantErr   bool
	}{
		{name: "HS256", secret: "s", algorithm: "HS256", lifetime: time.Minute},
		{name: "HS512", secret: "s", algorithm: "HS512", lifetime: time.Minute},
		{name: "asymmetric algorithm", secret: "s", algorithm: "RS256", lifetime: time.Minute, wantErr: true},
		{name: "unknown algorithm", secret: "s", algorithm: "nope", lifetime: time.Minute, wantErr: true},
		{name: "empty secret", secret: "", algorithm: "HS256", lifetime: time.Minute, wantErr: true},
		{name: "zero lifetime", secret: "s", algorithm: "HS256", lifetime: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenManager(tt.secret, tt.algorithm, tt.lifetime)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	tm := newTestTokenManager(t)

	token, err := tm.GenerateToken("alice")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	subject, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestValidateTokenExpired(t *testing.T) {
	tm := newTestTokenManager(t)
	issued := time.Now()
	tm.now = func() time.Time { return issued }

	token, err := tm.GenerateToken("alice")
	require.NoError(t, err)

	tm.now = func() time.Time { return issued.Add(31 * time.Minute) }
	_, err = tm.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)

	tm.now = func() time.Time { return issued.Add(29 * time.Minute) }
	_, err = tm.ValidateToken(token)
	assert.NoError(t, err)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	tm := newTestTokenManager(t)
	other, err := NewTokenManager("other-secret", "HS256", time.Minute)
	require.NoError(t, err)

	token, err := other.GenerateToken("alice")
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenWrongAlgorithm(t *testing.T) {
	tm := newTestTokenManager(t)

	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenMissingClaims(t *testing.T) {
	tm := newTestTokenManager(t)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tm.ValidateToken(noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "alice",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tm.ValidateToken(noExpiry)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenGarbage(t *testing.T) {
	tm := newTestTokenManager(t)

	_, err := tm.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
