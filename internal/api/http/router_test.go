package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/trade-desk/internal/api/http/handlers"
	"github.com/spec-kit/trade-desk/internal/auth"
	"github.com/spec-kit/trade-desk/internal/board"
	"github.com/spec-kit/trade-desk/internal/config"
	"github.com/spec-kit/trade-desk/internal/events"
	"github.com/spec-kit/trade-desk/internal/observability"
	"github.com/spec-kit/trade-desk/internal/realtime"
	"github.com/spec-kit/trade-desk/internal/repository"
	"github.com/spec-kit/trade-desk/internal/service"
)

const bridgeKey = "bridge-key"

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code      string `json:"code"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

type testServer struct {
	app     *fiber.App
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, limiter *IdentityRateLimiter) *testServer {
	t.Helper()
	logger := zap.NewNop()
	hash, err := auth.HashProviderKey(bridgeKey, 4)
	if err != nil {
		t.Fatal(err)
	}
	authCfg := config.AuthConfig{
		SessionSecret:     "test-secret",
		SessionTTLMinutes: 60,
		ProviderKeyHash:   hash,
		TraderIDs:         []string{"T1"},
	}

	metrics := observability.NewMetrics()
	store := repository.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher(logger)
	channel := realtime.NewChannel(realtime.Options{Logger: logger, Observer: metrics})
	t.Cleanup(channel.Close)
	b := board.New(logger)
	b.Register(dispatcher)
	locks := service.NewTicketLocks()

	privileges := auth.NewPrivileges(authCfg.TraderIDs)
	sessions := auth.NewMemorySessionStore()
	authService := service.NewAuthService(authCfg, service.AuthDependencies{Sessions: sessions, Privileges: privileges, Logger: logger})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo: store.Tickets(), Dispatcher: dispatcher, Channel: channel, Locks: locks, Recorder: metrics, Logger: logger,
		CloseStreamsOnDelete: true,
	})
	messages := service.NewMessageService(service.MessageDependencies{
		TicketRepo: store.Tickets(), MessageRepo: store.Messages(), Dispatcher: dispatcher, Channel: channel, Locks: locks, Recorder: metrics, Logger: logger,
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("trade-desk", "test", nil),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets, messages),
		Stream:         handlers.NewStreamHandler(messages, logger, time.Second, 8),
		TraderTickets:  handlers.NewTraderTicketsHandler(tickets, b),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), sessions, privileges, logger),
		Metrics:        metrics,
		WriteLimiter:   limiter,
	})
	return &testServer{app: app, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var env envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, env
}

func (s *testServer) signIn(t *testing.T, id, name string) string {
	t.Helper()
	status, env := s.do(t, "POST", "/auth/steam/callback", "",
		map[string]string{"steamid": id, "personaname": name}, "X-Provider-Key", bridgeKey)
	if status != fiber.StatusCreated {
		t.Fatalf("sign in %s: status %d", id, status)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil || out.Token == "" {
		t.Fatalf("sign in response: %s", env.Data)
	}
	return out.Token
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func TestIdentityCallbackRequiresProviderKey(t *testing.T) {
	s := newTestServer(t, nil)
	status, env := s.do(t, "POST", "/auth/steam/callback", "", map[string]string{"steamid": "U1"}, "X-Provider-Key", "wrong")
	if status != fiber.StatusUnauthorized || env.Error == nil {
		t.Fatalf("status = %d, env = %+v", status, env)
	}
	status, _ = s.do(t, "POST", "/auth/steam/callback", "", map[string]string{"steamid": " "}, "X-Provider-Key", bridgeKey)
	if status != fiber.StatusBadRequest {
		t.Fatalf("blank id status = %d", status)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.signIn(t, "T1", "Trader One")

	status, env := s.do(t, "GET", "/auth/me", token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("me status = %d", status)
	}
	me := decode[struct {
		ID       string `json:"id"`
		IsTrader bool   `json:"is_trader"`
	}](t, env.Data)
	if me.ID != "T1" || !me.IsTrader {
		t.Fatalf("me = %+v", me)
	}

	if status, _ := s.do(t, "POST", "/auth/logout", token, nil); status != fiber.StatusNoContent {
		t.Fatalf("logout status = %d", status)
	}
	if status, _ := s.do(t, "GET", "/auth/me", token, nil); status != fiber.StatusUnauthorized {
		t.Fatalf("revoked session still accepted: %d", status)
	}
}

func TestTicketFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	user := s.signIn(t, "U1", "Sniper")
	other := s.signIn(t, "U2", "Other")
	trader := s.signIn(t, "T1", "Trader")

	if status, _ := s.do(t, "GET", "/tickets", "", nil); status != fiber.StatusUnauthorized {
		t.Fatalf("anonymous list status = %d", status)
	}

	status, env := s.do(t, "POST", "/tickets", user, map[string]any{"title": "Buy AWP", "type": "purchase", "message": "want it", "skin": "AWP | Dragon Lore"})
	if status != fiber.StatusCreated {
		t.Fatalf("create status = %d %+v", status, env.Error)
	}
	created := decode[struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
		Owner  string `json:"steam_id"`
	}](t, env.Data)
	if created.Status != "pending" || created.Owner != "U1" {
		t.Fatalf("created = %+v", created)
	}
	ticketPath := fmt.Sprintf("/tickets/%d", created.ID)

	if status, env := s.do(t, "POST", "/tickets", user, map[string]any{"title": "x", "message": "y", "type": "gift"}); status != fiber.StatusBadRequest || env.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("unknown type status = %d", status)
	}

	if status, _ := s.do(t, "POST", ticketPath+"/messages", user, map[string]string{"content": "any update?"}); status != fiber.StatusCreated {
		t.Fatalf("user message status = %d", status)
	}
	if status, _ := s.do(t, "POST", ticketPath+"/messages", user, map[string]string{"content": "as staff", "sender": "trader"}); status != fiber.StatusForbidden {
		t.Fatalf("spoofed sender status = %d", status)
	}
	if status, _ := s.do(t, "GET", ticketPath+"/messages", other, nil); status != fiber.StatusForbidden {
		t.Fatalf("foreign thread read status = %d", status)
	}

	if status, _ := s.do(t, "GET", "/admin/tickets", user, nil); status != fiber.StatusForbidden {
		t.Fatalf("user dashboard status = %d", status)
	}
	status, env = s.do(t, "GET", "/admin/tickets?search=sniper", trader, nil)
	if status != fiber.StatusOK {
		t.Fatalf("dashboard status = %d", status)
	}
	rows := decode[[]struct {
		ID           int64 `json:"id"`
		MessageCount int   `json:"message_count"`
	}](t, env.Data)
	if len(rows) != 1 || rows[0].ID != created.ID || rows[0].MessageCount != 1 {
		t.Fatalf("dashboard rows = %+v", rows)
	}

	adminPath := fmt.Sprintf("/admin/tickets/%d", created.ID)
	if status, _ := s.do(t, "PATCH", adminPath+"/status", trader, map[string]string{"status": "archived"}); status != fiber.StatusBadRequest {
		t.Fatalf("bad status update = %d", status)
	}
	if status, _ := s.do(t, "PATCH", adminPath+"/status", trader, map[string]string{"status": "in-progress"}); status != fiber.StatusOK {
		t.Fatalf("status update = %d", status)
	}
	status, env = s.do(t, "GET", "/admin/tickets/summary", trader, nil)
	summary := decode[struct {
		InProgress int `json:"in_progress"`
		Total      int `json:"total"`
	}](t, env.Data)
	if status != fiber.StatusOK || summary.InProgress != 1 || summary.Total != 1 {
		t.Fatalf("summary = %d %+v", status, summary)
	}

	if status, _ := s.do(t, "POST", ticketPath+"/messages", trader, map[string]string{"content": "checking now"}); status != fiber.StatusCreated {
		t.Fatalf("trader message status = %d", status)
	}
	status, env = s.do(t, "GET", ticketPath+"/messages", user, nil)
	thread := decode[[]struct {
		Sender  string `json:"sender"`
		Content string `json:"content"`
	}](t, env.Data)
	if status != fiber.StatusOK || len(thread) != 2 || thread[0].Sender != "user" || thread[1].Sender != "trader" {
		t.Fatalf("thread = %d %+v", status, thread)
	}

	if status, _ := s.do(t, "DELETE", adminPath, trader, nil); status != fiber.StatusNoContent {
		t.Fatalf("delete status = %d", status)
	}
	if status, env := s.do(t, "DELETE", adminPath, trader, nil); status != fiber.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("second delete status = %d", status)
	}
	if status, _ := s.do(t, "GET", ticketPath+"/messages", trader, nil); status != fiber.StatusNotFound {
		t.Fatalf("messages after delete status = %d", status)
	}
	if status, _ := s.do(t, "GET", ticketPath+"/stream", trader, nil); status != fiber.StatusNotFound {
		t.Fatalf("stream after delete status = %d", status)
	}
	status, env = s.do(t, "GET", "/tickets", user, nil)
	if mine := decode[[]json.RawMessage](t, env.Data); status != fiber.StatusOK || len(mine) != 0 {
		t.Fatalf("user tickets after delete = %d %d", status, len(mine))
	}
}

func TestClearRequiresTrader(t *testing.T) {
	s := newTestServer(t, nil)
	user := s.signIn(t, "U1", "u")
	trader := s.signIn(t, "T1", "t")
	for i := 0; i < 3; i++ {
		s.do(t, "POST", "/tickets", user, map[string]string{"title": "t", "message": "m"})
	}
	if status, _ := s.do(t, "POST", "/admin/tickets/clear", user, nil); status != fiber.StatusForbidden {
		t.Fatalf("user clear status = %d", status)
	}
	status, env := s.do(t, "POST", "/admin/tickets/clear", trader, nil)
	if status != fiber.StatusOK {
		t.Fatalf("clear status = %d", status)
	}
	if got := decode[struct {
		Removed int64 `json:"removed"`
	}](t, env.Data); got.Removed != 3 {
		t.Fatalf("removed = %d", got.Removed)
	}
}

func TestWriteLimiterRejectsBursts(t *testing.T) {
	limiter := NewIdentityRateLimiter(0.001, 1, nil)
	s := newTestServer(t, limiter)
	user := s.signIn(t, "U1", "u")

	if status, _ := s.do(t, "POST", "/tickets", user, map[string]string{"title": "t", "message": "m"}); status != fiber.StatusCreated {
		t.Fatalf("first create = %d", status)
	}
	status, env := s.do(t, "POST", "/tickets", user, map[string]string{"title": "t", "message": "m"})
	if status != fiber.StatusTooManyRequests || env.Error == nil || env.Error.Code != "RATE_LIMITED" {
		t.Fatalf("second create = %d %+v", status, env.Error)
	}
	other := s.signIn(t, "U2", "v")
	if status, _ := s.do(t, "POST", "/tickets", other, map[string]string{"title": "t", "message": "m"}); status != fiber.StatusCreated {
		t.Fatalf("limiter should be per identity, got %d", status)
	}
}

func TestMetricsAndHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	if status, _ := s.do(t, "GET", "/health/live", "", nil); status != fiber.StatusOK {
		t.Fatalf("live = %d", status)
	}
	if status, _ := s.do(t, "GET", "/health/ready", "", nil); status != fiber.StatusOK {
		t.Fatalf("ready = %d", status)
	}
	if status, _ := s.do(t, "GET", "/nope", "", nil); status != fiber.StatusNotFound {
		t.Fatalf("unknown route = %d", status)
	}

	resp, err := s.app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(raw), `http_requests_total{method="GET",path="/health/live",status="200"} 1`) {
		t.Fatalf("metrics output:\n%s", raw)
	}
}
