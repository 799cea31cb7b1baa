package handlers

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

// parseBody decodes the JSON body, reporting decoding failures such as an
// unknown enum value as VALIDATION_FAILED.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"body": err.Error()})
	}
	return nil
}
