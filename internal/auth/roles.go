package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maplebear/saf-portal/internal/domain"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

// RequireRole ensures the principal's role includes min.
func RequireRole(min domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.User.Role.Includes(min) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
