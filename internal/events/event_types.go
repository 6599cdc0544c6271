package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/trade-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketDeleted       EventType = "ticket_deleted"
	EventTicketsCleared      EventType = "tickets_cleared"
	EventTicketMessageAdded  EventType = "ticket_message_added"
)

// Actor describes who caused an event. A nil IdentityID means the system.
type Actor struct {
	IdentityID *string `json:"identity_id,omitempty"`
	Privileged bool    `json:"privileged"`
}

// Event represents a domain event emitted by services after a commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, ticketID int64, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload carries the stored ticket.
type TicketCreatedPayload struct {
	Ticket domain.Ticket `json:"ticket"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Title string `json:"title"`
}

// TicketsClearedPayload payload.
type TicketsClearedPayload struct {
	Removed int64 `json:"removed"`
}

// TicketMessageAddedPayload carries the stored message.
type TicketMessageAddedPayload struct {
	Message     domain.Message `json:"message"`
	BodyPreview string         `json:"body_preview"`
}

// Preview shortens content for logs and notifications.
func Preview(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "…"
}
