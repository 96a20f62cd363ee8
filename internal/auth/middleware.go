package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pixeon-io/pixeon/internal/common"
	"github.com/pixeon-io/pixeon/internal/models"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// Verifier resolves a bearer token to a user
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware creates a middleware that validates bearer tokens and puts
// the authenticated user in the request context.
func AuthMiddleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				Unauthorized(w, common.ErrAuth.Error())
				return
			}

			user, err := v.Verify(r.Context(), token)
			if err != nil {
				Unauthorized(w, common.ErrAuth.Error())
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext retrieves the authenticated user from the context
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}

// Unauthorized writes a 401 JSON error with the bearer challenge header.
func Unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
