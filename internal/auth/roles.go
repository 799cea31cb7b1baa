package auth

import "github.com/gofiber/fiber/v2"

// RequireOperation applies the resource-independent part of op's rule before
// the handler runs. Ownership is still decided by the service.
func RequireOperation(op Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := Precheck(PrincipalFromContext(c), op); err != nil {
			return err
		}
		return c.Next()
	}
}
