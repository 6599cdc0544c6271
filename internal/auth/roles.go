package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/trade-desk/pkg/util"
)

// RequireIdentity ensures a resolved identity is attached to the request.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := FromFiber(c).CurrentIdentity(); !ok {
			return apperrors.NewUnauthorized("sign in required")
		}
		return c.Next()
	}
}

// RequireTrader ensures the caller holds trader privilege. Privilege is
// re-derived from the allow-list on every request, never read from the token.
func RequireTrader() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ic := FromFiber(c)
		if _, ok := ic.CurrentIdentity(); !ok {
			return apperrors.NewUnauthorized("sign in required")
		}
		if !ic.IsPrivileged() {
			return apperrors.NewAuthorizationError("trader privilege required")
		}
		return c.Next()
	}
}
