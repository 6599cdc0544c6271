package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/trade-desk/internal/api/http/handlers"
	"github.com/spec-kit/trade-desk/internal/auth"
	"github.com/spec-kit/trade-desk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Stream         *handlers.StreamHandler
	TraderTickets  *handlers.TraderTicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	// WriteLimiter throttles ticket and message creation per caller.
	WriteLimiter *IdentityRateLimiter
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	limit := func(c *fiber.Ctx) error { return c.Next() }
	if cfg.WriteLimiter != nil {
		limit = cfg.WriteLimiter.Handler()
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/steam/callback", cfg.Users.IdentityCallback)

	session := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireIdentity())
	session.Get("/me", cfg.Users.Me)
	session.Post("/logout", cfg.Users.Logout)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireIdentity())
	tickets.Post("/", limit, cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/messages", cfg.Tickets.ListMessages)
	tickets.Post("/:id/messages", limit, cfg.Tickets.AppendMessage)
	tickets.Get("/:id/stream", cfg.Stream.Stream)

	admin := app.Group("/admin/tickets", cfg.AuthMiddleware.Handle, auth.RequireTrader())
	admin.Get("/", cfg.TraderTickets.ListTickets)
	admin.Get("/summary", cfg.TraderTickets.Summary)
	admin.Post("/clear", cfg.TraderTickets.ClearTickets)
	admin.Patch("/:id/status", cfg.TraderTickets.UpdateStatus)
	admin.Delete("/:id", cfg.TraderTickets.DeleteTicket)
}
