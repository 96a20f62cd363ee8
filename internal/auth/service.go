// Package auth registers users, checks their credentials and issues and
// verifies the bearer tokens that authenticate every other request.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/pixeon-io/pixeon/internal/common"
	"github.com/pixeon-io/pixeon/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// LoginFailedMessage is returned for every login failure so callers cannot
// tell an unknown user from a wrong password.
const LoginFailedMessage = "incorrect username or password"

// UserStore defines the interface for user storage operations
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByLogin(ctx context.Context, identifier string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// Service implements registration, login and token verification.
type Service struct {
	users  UserStore
	tokens *TokenManager
	log    *slog.Logger
	cost   int

	// compared against when the login identifier is unknown
	dummyHash []byte
}

// NewService creates a Service with the default bcrypt cost.
func NewService(users UserStore, tokens *TokenManager, log *slog.Logger) *Service {
	return NewServiceWithCost(users, tokens, log, bcrypt.DefaultCost)
}

// NewServiceWithCost is NewService with an explicit bcrypt cost. Tests use
// bcrypt.MinCost.
func NewServiceWithCost(users UserStore, tokens *TokenManager, log *slog.Logger, cost int) *Service {
	dummy, err := bcrypt.GenerateFromPassword([]byte("pixeon-dummy-password"), cost)
	if err != nil {
		panic(err)
	}
	return &Service{
		users:     users,
		tokens:    tokens,
		log:       log,
		cost:      cost,
		dummyHash: dummy,
	}
}

// Register creates a new account. The returned user carries no password hash.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)

	if len(password) < MinPasswordLength {
		return nil, common.Newf(common.ErrValidation, "password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return nil, common.Newf(common.ErrValidation, "password must be at most %d bytes", MaxPasswordBytes)
	}
	if !ValidateUsername(username) {
		return nil, common.Newf(common.ErrValidation, "invalid username")
	}

	// A taken username is a conflict whatever the email looks like.
	exists, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.Newf(common.ErrConflict, "username already registered")
	}
	if !ValidateEmail(email) {
		return nil, common.Newf(common.ErrValidation, "invalid email address")
	}
	exists, err = s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.Newf(common.ErrConflict, "email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user registered", "user_id", user.ID, "username", user.Username)

	user.PasswordHash = ""
	return user, nil
}

// Login checks identifier (username or email) and password and returns a
// session token.
func (s *Service) Login(ctx context.Context, identifier, password string) (string, error) {
	user, err := s.users.GetUserByLogin(ctx, identifier)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return "", err
		}
		bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return "", common.Newf(common.ErrAuth, LoginFailedMessage)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", common.Newf(common.ErrAuth, LoginFailedMessage)
	}

	token, err := s.tokens.GenerateToken(user.Username)
	if err != nil {
		return "", err
	}

	s.log.Info("user logged in", "user_id", user.ID)
	return token, nil
}

// Verify resolves a token to the user it was issued for.
func (s *Service) Verify(ctx context.Context, token string) (*models.User, error) {
	username, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, common.Wrap(common.ErrAuth, err, "")
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Wrap(common.ErrAuth, err, "")
		}
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}
