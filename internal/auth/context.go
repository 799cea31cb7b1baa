package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-service/internal/domain"
)

const principalKey = "auth_principal"

// PrincipalContext is the validated identity of one request. The zero value
// is the anonymous principal.
type PrincipalContext struct {
	CredentialName string
	Role           domain.Role
}

// Anonymous returns the context used when no token was presented.
func Anonymous() PrincipalContext {
	return PrincipalContext{}
}

// Authenticated reports whether the context carries a validated identity.
func (p PrincipalContext) Authenticated() bool {
	return p.CredentialName != "" && p.Role.Valid()
}

// IsAdmin reports whether the caller holds the ADMIN role.
func (p PrincipalContext) IsAdmin() bool {
	return p.Authenticated() && p.Role == domain.RoleAdmin
}

// PrincipalFromContext returns the principal attached by the request
// authenticator, or the anonymous principal.
func PrincipalFromContext(c *fiber.Ctx) PrincipalContext {
	principal, ok := c.Locals(principalKey).(PrincipalContext)
	if !ok {
		return Anonymous()
	}
	return principal
}

func setPrincipal(c *fiber.Ctx, principal PrincipalContext) {
	c.Locals(principalKey, principal)
}
