package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"docvault-backend/internal/policy"
	"docvault-backend/internal/shared/apperr"
)

// Service contains business logic for user accounts.
type Service struct {
	Repo Repo
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Create registers a new user with an already-hashed credential.
func (s *Service) Create(ctx context.Context, email, passwordHash, fullName string, role policy.Role) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" || passwordHash == "" {
		return User{}, apperr.BadRequest("email and password are required")
	}
	if !role.Valid() {
		return User{}, apperr.BadRequest("invalid role %q", role)
	}

	now := time.Now().UTC()
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailConflict) {
			return User{}, apperr.BadRequest("email already registered")
		}
		return User{}, err
	}
	return user, nil
}

// GetByEmail looks a user up for credential verification.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	user, err := s.Repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, err
	}
	return user, nil
}

// Get returns a user record, visible to the user themselves or an admin.
func (s *Service) Get(ctx context.Context, actor policy.Actor, userID string) (User, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if d := policy.CanViewUser(actor, user.ID); !d.Allowed {
		return User{}, apperr.Forbidden("%s", d.Reason)
	}
	return user, nil
}

// List returns all users; admin only.
func (s *Service) List(ctx context.Context, actor policy.Actor) ([]User, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("only admins can list users")
	}
	return s.Repo.List(ctx)
}

// UpdateInput carries optional user mutations; nil fields are left unchanged.
type UpdateInput struct {
	FullName *string
	Role     *policy.Role
	IsActive *bool
}

// Update applies profile and administrative changes to a user. Profile
// fields require self or admin; role and active changes are admin-only and
// never self-targeted.
func (s *Service) Update(ctx context.Context, actor policy.Actor, userID string, in UpdateInput) (User, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return User{}, err
	}

	if in.FullName != nil {
		if d := policy.CanUpdateUserProfile(actor, user.ID); !d.Allowed {
			return User{}, apperr.Forbidden("%s", d.Reason)
		}
		user.FullName = strings.TrimSpace(*in.FullName)
	}

	if in.Role != nil || in.IsActive != nil {
		if d := policy.CanManageUser(actor, user.ID); !d.Allowed {
			return User{}, apperr.Forbidden("%s", d.Reason)
		}
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return User{}, apperr.BadRequest("invalid role %q", *in.Role)
		}
		user.Role = *in.Role
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}

	user.UpdatedAt = time.Now().UTC()
	if err := s.Repo.Update(ctx, user); err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, err
	}
	return user, nil
}

// Delete removes a user; admin only, never self.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, userID string) error {
	user, err := s.find(ctx, userID)
	if err != nil {
		return err
	}
	if d := policy.CanManageUser(actor, user.ID); !d.Allowed {
		return apperr.Forbidden("%s", d.Reason)
	}
	if err := s.Repo.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return err
	}
	return nil
}

func (s *Service) find(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, apperr.BadRequest("user id is required")
	}
	user, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, err
	}
	return user, nil
}
