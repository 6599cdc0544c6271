package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/trade-desk/pkg/util"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	startedAt   time.Time
	names       []string
	deps        map[string]Pinger
}

// NewHealthHandler returns a handler. deps maps a dependency name such as
// "postgres" to its check; a disabled backend should report nil.
func NewHealthHandler(serviceName, version string, deps map[string]Pinger) *HealthHandler {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		startedAt:   time.Now(),
		names:       names,
		deps:        deps,
	}
}

func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "alive",
		"service":        h.serviceName,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// Ready pings every dependency and reports 503 if any fails.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	checks := make(map[string]any, len(h.names))
	failed := false
	for _, name := range h.names {
		if err := h.deps[name].Ping(ctx); err != nil {
			checks[name] = err.Error()
			failed = true
			continue
		}
		checks[name] = "ok"
	}

	if failed {
		return apperrors.NewDomainError(apperrors.CodeStoreUnavailable, "one or more dependencies unavailable",
			fiber.StatusServiceUnavailable, checks)
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": checks})
}
