package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trade-desk/internal/api/dto"
	"github.com/spec-kit/trade-desk/internal/auth"
	"github.com/spec-kit/trade-desk/internal/domain"
	"github.com/spec-kit/trade-desk/internal/service"
	apperrors "github.com/spec-kit/trade-desk/pkg/util"
)

// TicketsHandler manages end-user ticket and thread endpoints. Traders use
// the thread endpoints too.
type TicketsHandler struct {
	tickets  *service.TicketService
	messages *service.MessageService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, messages *service.MessageService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, messages: messages}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), service.TicketCreateInput{
		Title:           req.Title,
		Type:            req.Type,
		Message:         req.Message,
		ItemDescription: req.Skin,
	}, auth.FromFiber(c).Requester())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets returns the caller's own tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListTickets(c.UserContext(), service.ListScope{}, auth.FromFiber(c).Requester())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), id, auth.FromFiber(c).Requester())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListMessages GET /tickets/:id/messages.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	thread, err := h.messages.ListMessages(c.UserContext(), id, auth.FromFiber(c).Requester())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageResponses(thread)})
}

// AppendMessage POST /tickets/:id/messages. The stored message is returned
// for acknowledgement only; clients render it when it arrives on the stream.
func (h *TicketsHandler) AppendMessage(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.AppendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.messages.AppendMessage(c.UserContext(), service.AppendMessageInput{
		TicketID: id,
		Sender:   domain.MessageSender(req.Sender),
		Content:  req.Content,
	}, auth.FromFiber(c).Requester())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewMessageResponse(*msg)})
}
