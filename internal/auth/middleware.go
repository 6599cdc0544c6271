package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/trade-desk/internal/domain"
	apperrors "github.com/spec-kit/trade-desk/pkg/util"
)

const (
	identityKey = "auth_identity"
	sessionKey  = "auth_session_id"
)

// AuthMiddleware resolves the caller from a bearer session token.
type AuthMiddleware struct {
	tokens     *TokenManager
	sessions   SessionStore
	privileges *Privileges
	logger     *zap.Logger
}

// NewAuthMiddleware constructs middleware. sessions may be nil, in which case
// a valid signature alone is enough to resolve the identity.
func NewAuthMiddleware(tokens *TokenManager, sessions SessionStore, privileges *Privileges, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, sessions: sessions, privileges: privileges, logger: logger}
}

// Handle attaches an IdentityContext to every request. A missing, malformed,
// expired or revoked credential yields an anonymous context, never an error.
// Store outages while looking up the session are reported as retryable.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	ic := Anonymous(m.privileges)
	c.Locals(identityKey, ic)

	token := bearerToken(c)
	if token == "" {
		return c.Next()
	}

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		m.logger.Debug("ignoring invalid session token", zap.Error(err))
		return c.Next()
	}

	identity := &domain.Identity{ID: claims.Subject, DisplayName: claims.DisplayName}
	if m.sessions != nil {
		cached, err := m.sessions.Lookup(c.UserContext(), claims.ID)
		switch {
		case errors.Is(err, ErrSessionNotFound):
			return c.Next()
		case err != nil:
			return apperrors.NewStoreUnavailable(err)
		}
		identity = cached
	}

	c.Locals(identityKey, NewIdentityContext(identity, m.privileges))
	c.Locals(sessionKey, claims.ID)
	return c.Next()
}

// FromFiber returns the IdentityContext attached by Handle, or an anonymous one.
func FromFiber(c *fiber.Ctx) IdentityContext {
	if ic, ok := c.Locals(identityKey).(IdentityContext); ok {
		return ic
	}
	return IdentityContext{}
}

// SessionIDFromFiber returns the id of the session that authenticated the request.
func SessionIDFromFiber(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(sessionKey).(string)
	return id, ok && id != ""
}

func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	// EventSource cannot set headers; the stream endpoint accepts a query token.
	return strings.TrimSpace(c.Query("access_token"))
}
