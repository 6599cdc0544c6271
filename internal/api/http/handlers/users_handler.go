package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trade-desk/internal/api/dto"
	"github.com/spec-kit/trade-desk/internal/auth"
	"github.com/spec-kit/trade-desk/internal/domain"
	"github.com/spec-kit/trade-desk/internal/service"
	apperrors "github.com/spec-kit/trade-desk/pkg/util"
)

// ProviderKeyHeader carries the identity bridge's shared key.
const ProviderKeyHeader = "X-Provider-Key"

// UsersHandler exposes session endpoints for end users and traders.
type UsersHandler struct {
	authService *service.AuthService
}

// NewUsersHandler creates handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{authService: authService}
}

// IdentityCallback POST /auth/steam/callback.
func (h *UsersHandler) IdentityCallback(c *fiber.Ctx) error {
	var req dto.IdentityCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.authService.SignIn(c.UserContext(), c.Get(ProviderKeyHeader), domain.Identity{
		ID:          req.SteamID,
		DisplayName: req.PersonaName,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.AuthResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Identity: dto.IdentityResponse{
			ID:          session.Identity.ID,
			DisplayName: session.Identity.DisplayName,
			IsTrader:    h.authService.Privileges().Contains(session.Identity.ID),
		},
	}})
}

// Me GET /auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	ic := auth.FromFiber(c)
	identity, ok := ic.CurrentIdentity()
	if !ok {
		return apperrors.NewUnauthorized("sign in required")
	}
	return c.JSON(fiber.Map{"data": dto.IdentityResponse{
		ID:          identity.ID,
		DisplayName: identity.DisplayName,
		IsTrader:    ic.IsPrivileged(),
	}})
}

// Logout POST /auth/logout.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	sessionID, _ := auth.SessionIDFromFiber(c)
	if err := h.authService.SignOut(c.UserContext(), sessionID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
