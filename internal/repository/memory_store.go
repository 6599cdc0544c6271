package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/trade-desk/internal/domain"
)

// MemoryStore keeps tickets and messages in process memory. It satisfies both
// TicketRepository and MessageRepository and is used when no DSN is configured.
type MemoryStore struct {
	mu           sync.RWMutex
	tickets      map[int64]domain.Ticket
	messages     map[int64][]domain.Message
	nextTicketID int64
	nextMsgID    int64
	now          func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:  make(map[int64]domain.Ticket),
		messages: make(map[int64][]domain.Message),
		now:      time.Now,
	}
}

// Tickets exposes the store as a TicketRepository.
func (s *MemoryStore) Tickets() TicketRepository { return memoryTickets{s} }

// Messages exposes the store as a MessageRepository.
func (s *MemoryStore) Messages() MessageRepository { return memoryMessages{s} }

type memoryTickets struct{ s *MemoryStore }

func (r memoryTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTicketID++
	ticket.ID = s.nextTicketID
	ticket.CreatedAt = s.now().UTC()
	s.tickets[ticket.ID] = copyTicket(*ticket)
	return nil
}

func (r memoryTickets) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyTicket(ticket)
	return &out, nil
}

func (r memoryTickets) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Ticket, 0, len(s.tickets))
	for _, ticket := range s.tickets {
		if filter.OwnerID != nil && !ticket.OwnedBy(*filter.OwnerID) {
			continue
		}
		result = append(result, copyTicket(ticket))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r memoryTickets) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return ErrNotFound
	}
	ticket.Status = status
	s.tickets[id] = ticket
	return nil
}

func (r memoryTickets) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[id]; !ok {
		return ErrNotFound
	}
	delete(s.tickets, id)
	delete(s.messages, id)
	return nil
}

func (r memoryTickets) DeleteAll(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := int64(len(s.tickets))
	s.tickets = make(map[int64]domain.Ticket)
	s.messages = make(map[int64][]domain.Message)
	return removed, nil
}

type memoryMessages struct{ s *MemoryStore }

func (r memoryMessages) Append(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[msg.TicketID]; !ok {
		return ErrNotFound
	}
	createdAt := s.now().UTC()
	thread := s.messages[msg.TicketID]
	if n := len(thread); n > 0 && !createdAt.After(thread[n-1].CreatedAt) {
		createdAt = thread[n-1].CreatedAt.Add(time.Microsecond)
	}
	s.nextMsgID++
	msg.ID = s.nextMsgID
	msg.CreatedAt = createdAt
	s.messages[msg.TicketID] = append(thread, *msg)
	return nil
}

func (r memoryMessages) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread := s.messages[ticketID]
	out := make([]domain.Message, len(thread))
	copy(out, thread)
	return out, nil
}

func copyTicket(t domain.Ticket) domain.Ticket {
	t.ItemDescription = copyString(t.ItemDescription)
	t.OwnerIdentityID = copyString(t.OwnerIdentityID)
	t.OwnerDisplayName = copyString(t.OwnerDisplayName)
	return t
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
