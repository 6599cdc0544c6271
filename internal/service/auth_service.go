package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/trade-desk/internal/auth"
	"github.com/spec-kit/trade-desk/internal/config"
	"github.com/spec-kit/trade-desk/internal/domain"
	apperrors "github.com/spec-kit/trade-desk/pkg/util"
)

// AuthService turns identities vouched for by the external provider into
// signed sessions.
type AuthService struct {
	tokenMgr   *auth.TokenManager
	sessions   auth.SessionStore
	verifier   *auth.ProviderVerifier
	privileges *auth.Privileges
	logger     *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Sessions   auth.SessionStore
	Privileges *auth.Privileges
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Privileges == nil {
		deps.Privileges = auth.NewPrivileges(cfg.TraderIDs)
	}
	return &AuthService{
		tokenMgr:   auth.NewTokenManager(cfg.SessionSecret, cfg.SessionTTL()),
		sessions:   deps.Sessions,
		verifier:   auth.NewProviderVerifier(cfg.ProviderKeyHash),
		privileges: deps.Privileges,
		logger:     deps.Logger,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Privileges exposes the trader allow-list.
func (s *AuthService) Privileges() *auth.Privileges {
	return s.privileges
}

// SignIn issues a session for an identity returned by the provider. The
// provider must present the shared key.
func (s *AuthService) SignIn(ctx context.Context, providerKey string, identity domain.Identity) (*auth.Session, error) {
	if err := s.verifier.Verify(providerKey); err != nil {
		s.logger.Warn("rejected identity callback", zap.Error(err))
		return nil, apperrors.NewUnauthorized("identity provider not recognised")
	}

	identity.ID = strings.TrimSpace(identity.ID)
	identity.DisplayName = strings.TrimSpace(identity.DisplayName)
	if identity.ID == "" {
		return nil, apperrors.NewValidationError("identity id is required", map[string]any{"field": "steamid"})
	}
	if identity.DisplayName == "" {
		identity.DisplayName = identity.ID
	}

	session, err := s.tokenMgr.Issue(identity)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if s.sessions != nil {
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, apperrors.NewStoreUnavailable(err)
		}
	}

	s.logger.Info("session issued",
		zap.String("identity_id", identity.ID),
		zap.Bool("trader", s.privileges.Contains(identity.ID)),
		zap.Time("expires_at", session.ExpiresAt))
	return session, nil
}

// SignOut revokes a session. Revoking an unknown session succeeds.
func (s *AuthService) SignOut(ctx context.Context, sessionID string) error {
	if s.sessions == nil || sessionID == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return apperrors.NewStoreUnavailable(err)
	}
	return nil
}
