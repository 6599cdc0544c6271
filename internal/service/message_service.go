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

const previewLength = 80

// MessageService owns ticket threads and their live fan-out.
type MessageService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	dispatcher events.Dispatcher
	channel    *realtime.Channel
	locks      *TicketLocks
	recorder   OperationRecorder
	logger     *zap.Logger
}

// MessageDependencies bundles collaborators for the message service.
type MessageDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	Dispatcher  events.Dispatcher
	Channel     *realtime.Channel
	Locks       *TicketLocks
	Recorder    OperationRecorder
	Logger      *zap.Logger
}

// AppendMessageInput is the untyped call shape from the presentation layer.
// Sender is the caller's claim and may be empty; it is checked against the
// requester's privilege.
type AppendMessageInput struct {
	TicketID int64
	Sender   domain.MessageSender
	Content  string
}

// NewMessageService constructs the service. Locks must be the instance
// shared with TicketService.
func NewMessageService(deps MessageDependencies) *MessageService {
	if deps.Locks == nil {
		deps.Locks = NewTicketLocks()
	}
	if deps.Recorder == nil {
		deps.Recorder = noopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Channel == nil {
		deps.Channel = realtime.NewChannel(realtime.Options{Logger: deps.Logger})
	}
	return &MessageService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		dispatcher: deps.Dispatcher,
		channel:    deps.Channel,
		locks:      deps.Locks,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
	}
}

// AppendMessage stores a message and publishes it to the ticket's live
// viewers once the store has committed it. Non-privileged identities write
// as the user party, privileged ones as the trader party.
func (s *MessageService) AppendMessage(ctx context.Context, input AppendMessageInput, requester auth.Requester) (msg *domain.Message, err error) {
	defer func() { recordOutcome(s.recorder, "append_message", err) }()

	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, apperrors.NewValidationError("content is required", map[string]any{"field": "content"})
	}
	sender := domain.SenderFor(requester.Privileged)
	if input.Sender != "" {
		if !input.Sender.Valid() {
			return nil, apperrors.NewValidationError("unknown sender", map[string]any{"field": "sender", "value": string(input.Sender)})
		}
		if input.Sender != sender {
			return nil, apperrors.NewAuthorizationError("sender does not match the caller's role")
		}
	}

	unlock := s.locks.Lock(input.TicketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, input.TicketID)
	if err != nil {
		return nil, storeError(err, input.TicketID)
	}
	if !canView(ticket, requester) {
		return nil, apperrors.NewAuthorizationError("ticket belongs to another identity")
	}

	return s.commit(ctx, input.TicketID, sender, content, actorOf(requester))
}

// AppendSystemReply stores a trader-side message on behalf of the system.
func (s *MessageService) AppendSystemReply(ctx context.Context, ticketID int64, content string) (msg *domain.Message, err error) {
	defer func() { recordOutcome(s.recorder, "append_system_reply", err) }()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content is required", map[string]any{"field": "content"})
	}

	unlock := s.locks.Lock(ticketID)
	defer unlock()

	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, storeError(err, ticketID)
	}
	return s.commit(ctx, ticketID, domain.SenderTrader, content, events.Actor{Privileged: true})
}

// commit must run under the ticket lock.
func (s *MessageService) commit(ctx context.Context, ticketID int64, sender domain.MessageSender, content string, actor events.Actor) (*domain.Message, error) {
	msg := &domain.Message{TicketID: ticketID, Sender: sender, Content: content}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, storeError(err, ticketID)
	}

	s.channel.Publish(ticketID, *msg)
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(context.WithoutCancel(ctx), events.NewEvent(events.EventTicketMessageAdded, ticketID, actor,
			events.TicketMessageAddedPayload{Message: *msg, BodyPreview: events.Preview(content, previewLength)}))
	}
	return msg, nil
}

// ListMessages returns the thread in creation order. An absent ticket
// reports NotFound.
func (s *MessageService) ListMessages(ctx context.Context, ticketID int64, requester auth.Requester) ([]domain.Message, error) {
	if _, err := s.authorizeRead(ctx, ticketID, requester); err != nil {
		return nil, err
	}
	thread, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, ticketID)
	}
	return thread, nil
}

// Subscribe registers handler for messages appended to the ticket from now
// on. History is not replayed.
func (s *MessageService) Subscribe(ctx context.Context, ticketID int64, requester auth.Requester, handler realtime.Handler) (*realtime.Subscription, error) {
	unlock := s.locks.Lock(ticketID)
	defer unlock()

	if _, err := s.authorizeRead(ctx, ticketID, requester); err != nil {
		return nil, err
	}
	return s.channel.Subscribe(ticketID, handler), nil
}

// Watch subscribes and reads the history as one step: every message is
// either in the returned history or delivered to handler, never both.
func (s *MessageService) Watch(ctx context.Context, ticketID int64, requester auth.Requester, handler realtime.Handler) (*realtime.Subscription, []domain.Message, error) {
	unlock := s.locks.Lock(ticketID)
	defer unlock()

	if _, err := s.authorizeRead(ctx, ticketID, requester); err != nil {
		return nil, nil, err
	}
	history, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, storeError(err, ticketID)
	}
	return s.channel.Subscribe(ticketID, handler), history, nil
}

func (s *MessageService) authorizeRead(ctx context.Context, ticketID int64, requester auth.Requester) (*domain.Ticket, error) {
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
