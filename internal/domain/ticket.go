package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusCompleted  TicketStatus = "completed"
)

// TicketStatuses lists every storable status in board order.
var TicketStatuses = []TicketStatus{
	TicketStatusPending,
	TicketStatusInProgress,
	TicketStatusCompleted,
}

// Valid reports whether s is one of the three known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusInProgress, TicketStatusCompleted:
		return true
	}
	return false
}

// ParseTicketStatus normalizes user input into a TicketStatus.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	status := TicketStatus(strings.ToLower(strings.TrimSpace(raw)))
	if status == "in_progress" || status == "inprogress" {
		status = TicketStatusInProgress
	}
	return status, status.Valid()
}

// TicketType describes what the requester wants done.
type TicketType string

const (
	TicketTypePurchase TicketType = "purchase"
	TicketTypeSale     TicketType = "sale"
	TicketTypeTrade    TicketType = "trade"
	TicketTypeSupport  TicketType = "support"
	TicketTypeOther    TicketType = "other"
)

// ParseTicketType normalizes user input. An empty value maps to TicketTypeOther.
func ParseTicketType(raw string) (TicketType, bool) {
	t := TicketType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case "":
		return TicketTypeOther, true
	case TicketTypePurchase, TicketTypeSale, TicketTypeTrade, TicketTypeSupport, TicketTypeOther:
		return t, true
	}
	return t, false
}

// Ticket is a user-submitted request tracked through a status lifecycle.
type Ticket struct {
	ID               int64
	Title            string
	Type             TicketType
	Status           TicketStatus
	Message          string
	ItemDescription  *string
	OwnerIdentityID  *string
	OwnerDisplayName *string
	CreatedAt        time.Time
}

// OwnedBy reports whether the ticket belongs to the given identity id.
// Tickets without an owner belong to nobody.
func (t *Ticket) OwnedBy(identityID string) bool {
	return t.OwnerIdentityID != nil && *t.OwnerIdentityID == identityID
}
