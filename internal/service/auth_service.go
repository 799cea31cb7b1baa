package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

// LoginResult is an issued token plus display info for the client.
type LoginResult struct {
	Token       auth.Token
	UserID      string
	DisplayName string
	Email       string
	Role        domain.Role
}

// AuthService verifies credential pairs and mints tokens.
type AuthService struct {
	users  repository.UserRepository
	hasher auth.PasswordHasher
	tokens *auth.TokenCodec
	now    func() time.Time
	logger *zap.Logger

	decoyOnce sync.Once
	decoyHash string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Hasher   auth.PasswordHasher
	Tokens   *auth.TokenCodec
	Now      func() time.Time
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:  deps.UserRepo,
		hasher: deps.Hasher,
		tokens: deps.Tokens,
		now:    now,
		logger: logger,
	}
}

// Login authenticates email and password. An unknown email and a wrong
// password fail with the same AUTHENTICATION_FAILED error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperrors.NewAuthenticationFailed()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInternalError(err)
		}
		// Spend the same hashing work as a real mismatch.
		s.hasher.Verify(s.decoy(), password)
		s.logger.Debug("login rejected", zap.String("reason", "unknown_email"))
		return nil, apperrors.NewAuthenticationFailed()
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		s.logger.Debug("login rejected", zap.String("reason", "password_mismatch"), zap.String("user_id", user.ID))
		return nil, apperrors.NewAuthenticationFailed()
	}

	token, err := s.tokens.Issue(user.Email, user.Role, s.now())
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{
		Token:       token,
		UserID:      user.ID,
		DisplayName: user.Username,
		Email:       user.Email,
		Role:        user.Role,
	}, nil
}

func (s *AuthService) decoy() string {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash("decoy-password-for-missing-accounts")
		if err == nil {
			s.decoyHash = hash
		}
	})
	return s.decoyHash
}

// AdminAccount describes the administrator created at startup.
type AdminAccount struct {
	Email    string
	Username string
	Password string
}

// BootstrapAdmin creates the administrator account unless one already exists
// under the same email. An empty password disables the step.
func BootstrapAdmin(ctx context.Context, users repository.UserRepository, hasher auth.PasswordHasher, admin AdminAccount, logger *zap.Logger) error {
	if admin.Password == "" {
		logger.Info("admin bootstrap skipped; no password configured")
		return nil
	}
	exists, err := users.ExistsByEmail(ctx, admin.Email)
	if err != nil {
		return err
	}
	if exists {
		logger.Debug("admin already present", zap.String("email", admin.Email))
		return nil
	}

	hash, err := hasher.Hash(admin.Password)
	if err != nil {
		return err
	}
	user := &domain.User{
		Username:     admin.Username,
		Email:        admin.Email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil
		}
		return err
	}
	logger.Info("admin account created", zap.String("email", admin.Email), zap.String("user_id", user.ID))
	return nil
}
