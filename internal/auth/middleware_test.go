package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/trade-desk/internal/domain"
	apperrors "github.com/spec-kit/trade-desk/pkg/util"
)

type whoami struct {
	ID     string `json:"id"`
	Trader bool   `json:"trader"`
}

func newTestApp(t *testing.T, sessions SessionStore) (*fiber.App, *TokenManager) {
	t.Helper()
	tokens := NewTokenManager("secret", time.Hour)
	mw := NewAuthMiddleware(tokens, sessions, NewPrivileges([]string{"T1"}), zap.NewNop())

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code})
		},
	})
	app.Use(mw.Handle)
	app.Get("/whoami", func(c *fiber.Ctx) error {
		ic := FromFiber(c)
		identity, _ := ic.CurrentIdentity()
		return c.JSON(whoami{ID: identity.ID, Trader: ic.IsPrivileged()})
	})
	app.Get("/private", RequireIdentity(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Get("/trader", RequireTrader(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	return app, tokens
}

func doGet(t *testing.T, app *fiber.App, path, token string) (int, whoami) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var body whoami
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &body)
	return resp.StatusCode, body
}

func TestMalformedTokenIsAnonymous(t *testing.T) {
	app, _ := newTestApp(t, nil)
	status, body := doGet(t, app, "/whoami", "garbage")
	if status != fiber.StatusOK || body.ID != "" {
		t.Fatalf("expected anonymous 200, got %d %+v", status, body)
	}
	if status, _ := doGet(t, app, "/private", "garbage"); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestPrivilegeIsDerivedPerRequest(t *testing.T) {
	sessions := NewMemorySessionStore()
	app, tokens := newTestApp(t, sessions)

	userSession, _ := tokens.Issue(domain.Identity{ID: "U1"})
	traderSession, _ := tokens.Issue(domain.Identity{ID: "T1"})
	_ = sessions.Save(context.Background(), userSession)
	_ = sessions.Save(context.Background(), traderSession)

	if _, body := doGet(t, app, "/whoami", traderSession.Token); body.ID != "T1" || !body.Trader {
		t.Fatalf("expected trader identity, got %+v", body)
	}
	if status, _ := doGet(t, app, "/trader", userSession.Token); status != fiber.StatusForbidden {
		t.Fatalf("expected 403 for user, got %d", status)
	}
	if status, _ := doGet(t, app, "/trader", traderSession.Token); status != fiber.StatusNoContent {
		t.Fatalf("expected 204 for trader, got %d", status)
	}
}

func TestRevokedSessionIsAnonymous(t *testing.T) {
	sessions := NewMemorySessionStore()
	app, tokens := newTestApp(t, sessions)
	session, _ := tokens.Issue(domain.Identity{ID: "U1"})
	_ = sessions.Save(context.Background(), session)
	_ = sessions.Revoke(context.Background(), session.ID)

	if status, _ := doGet(t, app, "/private", session.Token); status != fiber.StatusUnauthorized {
		t.Fatalf("expected revoked session to be rejected, got %d", status)
	}
}

func TestQueryTokenFallback(t *testing.T) {
	app, tokens := newTestApp(t, nil)
	session, _ := tokens.Issue(domain.Identity{ID: "U9"})
	status, body := doGet(t, app, "/whoami?access_token="+session.Token, "")
	if status != fiber.StatusOK || body.ID != "U9" {
		t.Fatalf("expected query token to resolve, got %d %+v", status, body)
	}
}
