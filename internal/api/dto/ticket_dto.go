package dto

import (
	"time"

	"github.com/spec-kit/trade-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title   string  `json:"title"`
	Type    string  `json:"type"`
	Message string  `json:"message"`
	Skin    *string `json:"skin"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID              int64               `json:"id"`
	Title           string              `json:"title"`
	Type            domain.TicketType   `json:"type"`
	Status          domain.TicketStatus `json:"status"`
	Message         string              `json:"message"`
	Skin            *string             `json:"skin,omitempty"`
	OwnerIdentityID *string             `json:"steam_id,omitempty"`
	OwnerName       *string             `json:"steam_name,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// AppendMessageRequest payload. Sender is optional and must match the caller.
type AppendMessageRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// MessageResponse is the wire form of a thread message.
type MessageResponse struct {
	ID        int64                `json:"id"`
	TicketID  int64                `json:"ticket_id"`
	Sender    domain.MessageSender `json:"sender"`
	Content   string               `json:"content"`
	CreatedAt time.Time            `json:"created_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:              t.ID,
		Title:           t.Title,
		Type:            t.Type,
		Status:          t.Status,
		Message:         t.Message,
		Skin:            t.ItemDescription,
		OwnerIdentityID: t.OwnerIdentityID,
		OwnerName:       t.OwnerDisplayName,
		CreatedAt:       t.CreatedAt,
	}
}

// NewTicketResponses maps a ticket list.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewMessageResponse maps a domain message.
func NewMessageResponse(m domain.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		TicketID:  m.TicketID,
		Sender:    m.Sender,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// NewMessageResponses maps a thread.
func NewMessageResponses(msgs []domain.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NewMessageResponse(m))
	}
	return out
}
