package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

const bearerScheme = "Bearer"

// RequestAuthenticator turns the Authorization header into a PrincipalContext.
// A missing header yields the anonymous principal; a header that fails
// validation rejects the request before any handler runs.
type RequestAuthenticator struct {
	tokens TokenDecoder
	now    func() time.Time
	logger *zap.Logger
}

// NewRequestAuthenticator constructs the middleware. A nil clock uses time.Now.
func NewRequestAuthenticator(tokens TokenDecoder, now func() time.Time, logger *zap.Logger) *RequestAuthenticator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestAuthenticator{tokens: tokens, now: now, logger: logger}
}

// Handle is the fiber handler.
func (m *RequestAuthenticator) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		setPrincipal(c, Anonymous())
		return c.Next()
	}

	tokenText, ok := bearerToken(authHeader)
	if !ok {
		m.logger.Debug("rejected authorization header", zap.String("reason", "scheme"))
		return apperrors.NewTokenError(apperrors.CodeTokenMalformed, errors.New("authorization header must use the Bearer scheme"))
	}

	principal, err := m.tokens.Decode(tokenText, m.now())
	if err != nil {
		code := tokenErrorCode(err)
		m.logger.Debug("rejected token", zap.String("code", code), zap.Error(err))
		return apperrors.NewTokenError(code, err)
	}

	setPrincipal(c, principal)
	return c.Next()
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], bearerScheme) {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func tokenErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return apperrors.CodeTokenExpired
	case errors.Is(err, ErrTokenMalformed):
		return apperrors.CodeTokenMalformed
	default:
		return apperrors.CodeTokenInvalid
	}
}
