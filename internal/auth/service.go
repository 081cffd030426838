package auth

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"docvault-backend/internal/policy"
	"docvault-backend/internal/shared/apperr"
	sharedauth "docvault-backend/internal/shared/auth"
	"docvault-backend/internal/users"
)

// Service handles registration and credential login.
type Service struct {
	Users *users.Service
}

// NewService constructs a Service.
func NewService(usersSvc *users.Service) *Service {
	return &Service{Users: usersSvc}
}

// Register creates a new account with the editor role and returns it with a
// signed token.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (users.User, string, error) {
	password = strings.TrimSpace(password)
	if len(password) < 8 {
		return users.User{}, "", apperr.BadRequest("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return users.User{}, "", err
	}

	user, err := s.Users.Create(ctx, email, string(hash), fullName, policy.RoleEditor)
	if err != nil {
		return users.User{}, "", err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return users.User{}, "", err
	}
	return user, token, nil
}

// Login verifies a credential and issues a token. Deactivated accounts are
// rejected.
func (s *Service) Login(ctx context.Context, email, password string) (users.User, string, error) {
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			return users.User{}, "", apperr.BadRequest("invalid email or password")
		}
		return users.User{}, "", err
	}

	// OAuth-only accounts store an unusable credential; any compare
	// failure reads as invalid credentials.
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, "", apperr.BadRequest("invalid email or password")
	}

	if !user.IsActive {
		return users.User{}, "", apperr.Forbidden("account is deactivated")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return users.User{}, "", err
	}
	return user, token, nil
}

func (s *Service) issueToken(user users.User) (string, error) {
	return sharedauth.SignToken(sharedauth.Claims{
		Email: user.Email,
		Name:  user.FullName,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.ID,
		},
	})
}
