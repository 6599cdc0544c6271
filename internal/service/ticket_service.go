package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/trade-desk/internal/auth"
	"github.com/spec-kit/trade-desk/internal/domain"
	"github.com/spec-kit/trade-desk/internal/events"
	"github.com/spec-kit/trade-desk/internal/realtime"
	"github.com/spec-kit/trade-desk/internal/repository"
	apperrors "github.com/spec-kit/trade-desk/pkg/util"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	dispatcher  events.Dispatcher
	channel     *realtime.Channel
	locks       *TicketLocks
	recorder    OperationRecorder
	logger      *zap.Logger
	closeStream bool
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Channel    *realtime.Channel
	Locks      *TicketLocks
	Recorder   OperationRecorder
	Logger     *zap.Logger
	// CloseStreamsOnDelete drops live subscribers of a deleted ticket.
	CloseStreamsOnDelete bool
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title           string
	Type            string
	Message         string
	ItemDescription *string
}

// ListScope selects which tickets ListTickets returns. All requires a
// privileged caller; otherwise OwnerID (defaulting to the caller) is used.
type ListScope struct {
	All     bool
	OwnerID string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Locks == nil {
		deps.Locks = NewTicketLocks()
	}
	if deps.Recorder == nil {
		deps.Recorder = noopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		dispatcher:  deps.Dispatcher,
		channel:     deps.Channel,
		locks:       deps.Locks,
		recorder:    deps.Recorder,
		logger:      deps.Logger,
		closeStream: deps.CloseStreamsOnDelete,
	}
}

// CreateTicket stores a new pending ticket owned by the requester.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput, requester auth.Requester) (ticket *domain.Ticket, err error) {
	defer func() { recordOutcome(s.recorder, "create_ticket", err) }()

	if err := requireIdentity(requester); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	message := strings.TrimSpace(input.Message)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if message == "" {
		return nil, apperrors.NewValidationError("message is required", map[string]any{"field": "message"})
	}
	ticketType, ok := domain.ParseTicketType(input.Type)
	if !ok {
		return nil, apperrors.NewValidationError("unknown ticket type", map[string]any{"field": "type", "value": input.Type})
	}

	identity := *requester.Identity
	ticket = &domain.Ticket{
		Title:            title,
		Type:             ticketType,
		Status:           domain.TicketStatusPending,
		Message:          message,
		ItemDescription:  trimmedOrNil(input.ItemDescription),
		OwnerIdentityID:  &identity.ID,
		OwnerDisplayName: trimmedOrNil(&identity.DisplayName),
	}

	// A reset must not land between the store write and the created event.
	lockTicket, release := s.locks.LockCreate()
	defer release()

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, storeError(err, 0)
	}

	unlock := lockTicket(ticket.ID)
	s.publishEvent(ctx, events.NewEvent(events.EventTicketCreated, ticket.ID, actorOf(requester),
		events.TicketCreatedPayload{Ticket: *ticket}))
	unlock()

	s.logger.Info("ticket created",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("owner_id", identity.ID),
		zap.String("type", string(ticket.Type)))
	return ticket, nil
}

// ListTickets returns tickets in a stable id order.
func (s *TicketService) ListTickets(ctx context.Context, scope ListScope, requester auth.Requester) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{}
	if scope.All {
		if err := requirePrivileged(requester); err != nil {
			return nil, err
		}
	} else {
		if err := requireIdentity(requester); err != nil {
			return nil, err
		}
		owner := scope.OwnerID
		if owner == "" {
			owner = requester.ID()
		}
		if owner != requester.ID() && !requester.Privileged {
			return nil, apperrors.NewAuthorizationError("cannot list another identity's tickets")
		}
		filter.OwnerID = &owner
	}

	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, 0)
	}
	return tickets, nil
}

// GetTicket returns one ticket visible to the requester.
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64, requester auth.Requester) (*domain.Ticket, error) {
	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, ticketID)
	}
	if !canView(ticket, requester) {
		return nil, apperrors.NewAuthorizationError("ticket belongs to another identity")
	}
	return ticket, nil
}

// UpdateStatus sets any of the three statuses on a ticket. Every status is
// reachable from every other one.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID int64, newStatus domain.TicketStatus, requester auth.Requester) (ticket *domain.Ticket, err error) {
	defer func() { recordOutcome(s.recorder, "update_status", err) }()

	if err := requirePrivileged(requester); err != nil {
		return nil, err
	}
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"field": "status", "value": string(newStatus)})
	}

	unlock := s.locks.Lock(ticketID)
	defer unlock()

	ticket, err = s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, ticketID)
	}
	oldStatus := ticket.Status
	if err := s.tickets.UpdateStatus(ctx, ticketID, newStatus); err != nil {
		return nil, storeError(err, ticketID)
	}
	ticket.Status = newStatus

	s.publishEvent(ctx, events.NewEvent(events.EventTicketStatusChanged, ticketID, actorOf(requester),
		events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: newStatus}))
	return ticket, nil
}

// DeleteTicket removes a ticket and its whole thread. An absent ticket
// reports NotFound.
func (s *TicketService) DeleteTicket(ctx context.Context, ticketID int64, requester auth.Requester) (err error) {
	defer func() { recordOutcome(s.recorder, "delete_ticket", err) }()

	if err := requirePrivileged(requester); err != nil {
		return err
	}

	unlock := s.locks.Lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return storeError(err, ticketID)
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return storeError(err, ticketID)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketDeleted, ticketID, actorOf(requester),
		events.TicketDeletedPayload{Title: ticket.Title}))
	if s.closeStream && s.channel != nil {
		if n := s.channel.CloseTicket(ticketID); n > 0 {
			s.logger.Info("closed live viewers of deleted ticket", zap.Int64("ticket_id", ticketID), zap.Int("subscribers", n))
		}
	}
	return nil
}

// DeleteAllTickets clears every ticket and message. It waits for in-flight
// ticket operations and blocks new ones until the reset is committed.
func (s *TicketService) DeleteAllTickets(ctx context.Context, requester auth.Requester) (removed int64, err error) {
	defer func() { recordOutcome(s.recorder, "delete_all_tickets", err) }()

	if err := requirePrivileged(requester); err != nil {
		return 0, err
	}

	unlock := s.locks.LockAll()
	defer unlock()

	removed, err = s.tickets.DeleteAll(ctx)
	if err != nil {
		return 0, storeError(err, 0)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketsCleared, 0, actorOf(requester),
		events.TicketsClearedPayload{Removed: removed}))
	if s.closeStream && s.channel != nil {
		s.channel.CloseAll()
	}
	s.logger.Warn("all tickets cleared", zap.String("actor_id", requester.ID()), zap.Int64("removed", removed))
	return removed, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(context.WithoutCancel(ctx), event)
}

func actorOf(requester auth.Requester) events.Actor {
	if !requester.Resolved() {
		return events.Actor{}
	}
	id := requester.ID()
	return events.Actor{IdentityID: &id, Privileged: requester.Privileged}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
