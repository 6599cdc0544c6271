package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trade-desk/internal/api/dto"
	"github.com/spec-kit/trade-desk/internal/auth"
	"github.com/spec-kit/trade-desk/internal/board"
	"github.com/spec-kit/trade-desk/internal/domain"
	"github.com/spec-kit/trade-desk/internal/service"
	apperrors "github.com/spec-kit/trade-desk/pkg/util"
)

// TraderTicketsHandler serves the operator dashboard. Routes are mounted
// behind auth.RequireTrader; the services re-check privilege anyway.
type TraderTicketsHandler struct {
	tickets *service.TicketService
	board   *board.Board
}

// NewTraderTicketsHandler constructs handler.
func NewTraderTicketsHandler(tickets *service.TicketService, b *board.Board) *TraderTicketsHandler {
	return &TraderTicketsHandler{tickets: tickets, board: b}
}

// ListTickets GET /admin/tickets?search=&status=.
func (h *TraderTicketsHandler) ListTickets(c *fiber.Ctx) error {
	query := board.Query{Search: c.Query("search")}
	if raw := c.Query("status"); raw != "" {
		status, ok := domain.ParseTicketStatus(raw)
		if !ok {
			return apperrors.NewValidationError("unknown status", map[string]any{"status": raw})
		}
		query.Status = &status
	}
	return c.JSON(fiber.Map{"data": dto.NewBoardEntryResponses(h.board.Query(query))})
}

// Summary GET /admin/tickets/summary.
func (h *TraderTicketsHandler) Summary(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewBoardSummaryResponse(h.board.Summary())})
}

// UpdateStatus PATCH /admin/tickets/:id/status.
func (h *TraderTicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status, ok := domain.ParseTicketStatus(req.Status)
	if !ok {
		return apperrors.NewValidationError("unknown status", map[string]any{"status": req.Status})
	}
	ticket, err := h.tickets.UpdateStatus(c.UserContext(), id, status, auth.FromFiber(c).Requester())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// DeleteTicket DELETE /admin/tickets/:id.
func (h *TraderTicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	if err := h.tickets.DeleteTicket(c.UserContext(), id, auth.FromFiber(c).Requester()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ClearTickets POST /admin/tickets/clear.
func (h *TraderTicketsHandler) ClearTickets(c *fiber.Ctx) error {
	removed, err := h.tickets.DeleteAllTickets(c.UserContext(), auth.FromFiber(c).Requester())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ClearResponse{Removed: removed}})
}
