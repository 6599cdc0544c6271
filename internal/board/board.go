// Package board keeps the operator dashboard's view of every ticket.
//
// The board is a read model: it is loaded once from the store and then
// changed only by ticket and message events, so every dashboard session
// reads the same state instead of patching its own copy.
package board

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/trade-desk/internal/domain"
	"github.com/spec-kit/trade-desk/internal/events"
	"github.com/spec-kit/trade-desk/internal/repository"
)

// Entry is one ticket as the dashboard sees it.
type Entry struct {
	Ticket       domain.Ticket `json:"ticket"`
	MessageCount int           `json:"message_count"`
	LastActivity time.Time     `json:"last_activity"`
}

// Query narrows Board.Query results. Empty fields match everything.
type Query struct {
	Search string
	Status *domain.TicketStatus
}

// Summary holds per-status counts.
type Summary struct {
	Total    int                         `json:"total"`
	ByStatus map[domain.TicketStatus]int `json:"by_status"`
}

// Board is safe for concurrent use.
type Board struct {
	mu      sync.RWMutex
	entries map[int64]*Entry
	logger  *zap.Logger
}

// New returns an empty board.
func New(logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Board{entries: make(map[int64]*Entry), logger: logger}
}

// Load replaces the board contents with the current store state.
func (b *Board) Load(ctx context.Context, tickets repository.TicketRepository, messages repository.MessageRepository) error {
	all, err := tickets.List(ctx, repository.TicketFilter{})
	if err != nil {
		return fmt.Errorf("load tickets: %w", err)
	}

	entries := make(map[int64]*Entry, len(all))
	for _, t := range all {
		entry := &Entry{Ticket: t, LastActivity: t.CreatedAt}
		thread, err := messages.ListByTicket(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("load messages for ticket %d: %w", t.ID, err)
		}
		entry.MessageCount = len(thread)
		if n := len(thread); n > 0 && thread[n-1].CreatedAt.After(entry.LastActivity) {
			entry.LastActivity = thread[n-1].CreatedAt
		}
		entries[t.ID] = entry
	}

	b.mu.Lock()
	b.entries = entries
	b.mu.Unlock()
	b.logger.Info("board loaded", zap.Int("tickets", len(entries)))
	return nil
}

// Register subscribes the board to every event that changes it.
func (b *Board) Register(dispatcher events.Dispatcher) {
	for _, t := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketDeleted,
		events.EventTicketsCleared,
		events.EventTicketMessageAdded,
	} {
		dispatcher.Subscribe(t, b.Handle)
	}
}

// Handle applies one event.
func (b *Board) Handle(_ context.Context, event events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		b.entries[payload.Ticket.ID] = &Entry{Ticket: payload.Ticket, LastActivity: payload.Ticket.CreatedAt}
	case events.TicketStatusChangedPayload:
		if entry, ok := b.entries[event.TicketID]; ok {
			entry.Ticket.Status = payload.NewStatus
			entry.LastActivity = event.Timestamp
		}
	case events.TicketDeletedPayload:
		delete(b.entries, event.TicketID)
	case events.TicketsClearedPayload:
		b.entries = make(map[int64]*Entry)
	case events.TicketMessageAddedPayload:
		entry, ok := b.entries[event.TicketID]
		if !ok {
			return fmt.Errorf("message for unknown ticket %d", event.TicketID)
		}
		entry.MessageCount++
		if payload.Message.CreatedAt.After(entry.LastActivity) {
			entry.LastActivity = payload.Message.CreatedAt
		}
	default:
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	return nil
}

// Query returns matching entries, newest ticket first.
func (b *Board) Query(q Query) []Entry {
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	b.mu.RLock()
	out := make([]Entry, 0, len(b.entries))
	for _, entry := range b.entries {
		if q.Status != nil && entry.Ticket.Status != *q.Status {
			continue
		}
		if needle != "" && !matches(entry.Ticket, needle) {
			continue
		}
		out = append(out, *entry)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Ticket.ID > out[j].Ticket.ID })
	return out
}

// Get returns one entry.
func (b *Board) Get(ticketID int64) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.entries[ticketID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Summary counts tickets per status. Every status is present, even at zero.
func (b *Board) Summary() Summary {
	s := Summary{ByStatus: make(map[domain.TicketStatus]int, len(domain.TicketStatuses))}
	for _, status := range domain.TicketStatuses {
		s.ByStatus[status] = 0
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, entry := range b.entries {
		s.ByStatus[entry.Ticket.Status]++
		s.Total++
	}
	return s
}

func matches(t domain.Ticket, needle string) bool {
	if strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strconv.FormatInt(t.ID, 10), needle) ||
		strings.Contains(strings.ToLower(string(t.Type)), needle) {
		return true
	}
	return t.OwnerDisplayName != nil && strings.Contains(strings.ToLower(*t.OwnerDisplayName), needle)
}
