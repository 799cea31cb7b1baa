package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

// UserService manages principals. Every operation is admin-only.
type UserService struct {
	users  repository.UserRepository
	hasher auth.PasswordHasher
	logger *zap.Logger
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, hasher auth.PasswordHasher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, hasher: hasher, logger: logger}
}

// UserCreateInput describes a new principal.
type UserCreateInput struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
}

// UserUpdateInput replaces profile fields. A nil Password keeps the stored hash.
type UserUpdateInput struct {
	Username string
	Email    string
	Password *string
	Role     domain.Role
}

// Create registers a principal with a hashed password.
func (s *UserService) Create(ctx context.Context, principal auth.PrincipalContext, input UserCreateInput) (*domain.User, error) {
	if err := auth.Authorize(principal, auth.OpUserCreate, nil); err != nil {
		return nil, err
	}
	if input.Role == "" {
		input.Role = domain.RoleUser
	}
	if err := validateProfile(input.Username, input.Email, &input.Password, input.Role); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Username:     strings.TrimSpace(input.Username),
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: hash,
		Role:         input.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, translateStoreError(err, "user", "")
	}
	s.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("actor", principal.CredentialName))
	return user, nil
}

// List returns every principal.
func (s *UserService) List(ctx context.Context, principal auth.PrincipalContext) ([]domain.User, error) {
	if err := auth.Authorize(principal, auth.OpUserList, nil); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

// Get returns one principal.
func (s *UserService) Get(ctx context.Context, principal auth.PrincipalContext, id string) (*domain.User, error) {
	if err := auth.Authorize(principal, auth.OpUserRead, nil); err != nil {
		return nil, err
	}
	if err := validID("user", id); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "user", id)
	}
	return user, nil
}

// Update replaces a principal's profile and optionally its password.
func (s *UserService) Update(ctx context.Context, principal auth.PrincipalContext, id string, input UserUpdateInput) (*domain.User, error) {
	if err := auth.Authorize(principal, auth.OpUserUpdate, nil); err != nil {
		return nil, err
	}
	if err := validID("user", id); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "user", id)
	}
	if input.Role == "" {
		input.Role = user.Role
	}
	if err := validateProfile(input.Username, input.Email, input.Password, input.Role); err != nil {
		return nil, err
	}

	user.Username = strings.TrimSpace(input.Username)
	user.Email = strings.TrimSpace(input.Email)
	user.Role = input.Role
	if input.Password != nil {
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, translateStoreError(err, "user", id)
	}
	return user, nil
}

// Delete removes a principal. Tasks it owned become unowned.
func (s *UserService) Delete(ctx context.Context, principal auth.PrincipalContext, id string) error {
	if err := auth.Authorize(principal, auth.OpUserDelete, nil); err != nil {
		return err
	}
	if err := validID("user", id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return translateStoreError(err, "user", id)
	}
	s.logger.Info("user deleted", zap.String("user_id", id), zap.String("actor", principal.CredentialName))
	return nil
}

func validateProfile(username, email string, password *string, role domain.Role) error {
	errs := fieldErrors{}
	errs.require("username", username)
	errs.maxLen("username", username, maxUsernameLength)
	errs.email("email", email)
	if password != nil {
		switch {
		case len(*password) < minPasswordLength:
			errs["password"] = "must be at least 6 characters"
		case len(*password) > maxPasswordLength:
			errs["password"] = "must be at most 72 bytes"
		}
	}
	if !role.Valid() {
		errs["role"] = "must be ADMIN or USER"
	}
	return errs.err()
}

func translateStoreError(err error, resource, id string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		details := map[string]any{}
		if id != "" {
			details["id"] = id
		}
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperrors.NewConflict("email already registered", nil)
	default:
		return apperrors.NewInternalError(err)
	}
}
