package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/auth"
	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

// RequestLogger logs every request once and records its metrics. It must run
// inside the error middleware so it sees the handler error before rendering.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		outcome := "anonymous"
		if principal := auth.PrincipalFromContext(c); principal.Authenticated() {
			outcome = "authenticated"
		}
		if err != nil {
			domainErr := apperrors.ToDomainError(err)
			status = domainErr.HTTPStatus
			if isAuthCode(domainErr.Code) {
				outcome = domainErr.Code
			}
		}

		route := c.Route().Path
		metrics.RecordRequest(route, c.Method(), status, latency)
		metrics.RecordAuthDecision(outcome)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}
		if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
			fields = append(fields, zap.String("request_id", id))
		}
		logger.Info("request", fields...)
		return err
	}
}

func isAuthCode(code string) bool {
	switch code {
	case apperrors.CodeTokenMalformed,
		apperrors.CodeTokenInvalid,
		apperrors.CodeTokenExpired,
		apperrors.CodeUnauthorized,
		apperrors.CodeForbidden,
		apperrors.CodeAuthenticationFailed:
		return true
	}
	return false
}
