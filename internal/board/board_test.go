package board

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/trade-desk/internal/domain"
	"github.com/spec-kit/trade-desk/internal/events"
	"github.com/spec-kit/trade-desk/internal/repository"
)

func strPtr(s string) *string { return &s }

func seed(t *testing.T) (*repository.MemoryStore, []domain.Ticket) {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	tickets := []domain.Ticket{
		{Title: "Buy AWP Dragon Lore", Type: domain.TicketTypePurchase, Status: domain.TicketStatusPending, Message: "m", OwnerIdentityID: strPtr("U1"), OwnerDisplayName: strPtr("Sniper")},
		{Title: "Sell karambit", Type: domain.TicketTypeSale, Status: domain.TicketStatusInProgress, Message: "m", OwnerIdentityID: strPtr("U2"), OwnerDisplayName: strPtr("KnifeGuy")},
		{Title: "Account help", Type: domain.TicketTypeSupport, Status: domain.TicketStatusCompleted, Message: "m"},
	}
	for i := range tickets {
		if err := store.Tickets().Create(ctx, &tickets[i]); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Messages().Append(ctx, &domain.Message{TicketID: tickets[0].ID, Sender: domain.SenderUser, Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	return store, tickets
}

func TestLoadAndQuery(t *testing.T) {
	store, tickets := seed(t)
	b := New(nil)
	if err := b.Load(context.Background(), store.Tickets(), store.Messages()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	all := b.Query(Query{})
	if len(all) != 3 || all[0].Ticket.ID != tickets[2].ID {
		t.Fatalf("expected newest first, got %+v", all)
	}

	cases := []struct {
		search string
		want   int64
	}{
		{"dragon", tickets[0].ID},
		{"KNIFEGUY", tickets[1].ID},
		{"support", tickets[2].ID},
	}
	for _, tc := range cases {
		got := b.Query(Query{Search: tc.search})
		if len(got) != 1 || got[0].Ticket.ID != tc.want {
			t.Fatalf("search %q = %+v", tc.search, got)
		}
	}

	pending := domain.TicketStatusPending
	got := b.Query(Query{Status: &pending})
	if len(got) != 1 || got[0].MessageCount != 1 {
		t.Fatalf("status filter = %+v", got)
	}
}

func TestSearchMatchesTicketID(t *testing.T) {
	store, tickets := seed(t)
	b := New(nil)
	if err := b.Load(context.Background(), store.Tickets(), store.Messages()); err != nil {
		t.Fatal(err)
	}
	got := b.Query(Query{Search: "2"})
	found := false
	for _, e := range got {
		if e.Ticket.ID == tickets[1].ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("id search missed ticket %d: %+v", tickets[1].ID, got)
	}
}

func TestEventsKeepBoardCurrent(t *testing.T) {
	b := New(nil)
	d := events.NewInMemoryDispatcher(nil)
	b.Register(d)
	ctx := context.Background()

	created := domain.Ticket{ID: 10, Title: "Trade", Type: domain.TicketTypeTrade, Status: domain.TicketStatusPending, CreatedAt: time.Now()}
	_ = d.Publish(ctx, events.NewEvent(events.EventTicketCreated, 10, events.Actor{}, events.TicketCreatedPayload{Ticket: created}))
	_ = d.Publish(ctx, events.NewEvent(events.EventTicketStatusChanged, 10, events.Actor{}, events.TicketStatusChangedPayload{
		OldStatus: domain.TicketStatusPending, NewStatus: domain.TicketStatusCompleted,
	}))
	later := time.Now().Add(time.Minute)
	_ = d.Publish(ctx, events.NewEvent(events.EventTicketMessageAdded, 10, events.Actor{}, events.TicketMessageAddedPayload{
		Message: domain.Message{ID: 1, TicketID: 10, CreatedAt: later},
	}))

	entry, ok := b.Get(10)
	if !ok || entry.Ticket.Status != domain.TicketStatusCompleted || entry.MessageCount != 1 || !entry.LastActivity.Equal(later) {
		t.Fatalf("entry = %+v", entry)
	}

	summary := b.Summary()
	if summary.Total != 1 || summary.ByStatus[domain.TicketStatusCompleted] != 1 || summary.ByStatus[domain.TicketStatusPending] != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	_ = d.Publish(ctx, events.NewEvent(events.EventTicketDeleted, 10, events.Actor{}, events.TicketDeletedPayload{}))
	if _, ok := b.Get(10); ok {
		t.Fatalf("deleted ticket still on board")
	}

	_ = d.Publish(ctx, events.NewEvent(events.EventTicketCreated, 11, events.Actor{}, events.TicketCreatedPayload{Ticket: domain.Ticket{ID: 11}}))
	_ = d.Publish(ctx, events.NewEvent(events.EventTicketsCleared, 0, events.Actor{}, events.TicketsClearedPayload{Removed: 1}))
	if b.Summary().Total != 0 {
		t.Fatalf("clear did not empty the board")
	}
}

func TestHandleRejectsMessageForUnknownTicket(t *testing.T) {
	b := New(nil)
	err := b.Handle(context.Background(), events.NewEvent(events.EventTicketMessageAdded, 99, events.Actor{}, events.TicketMessageAddedPayload{}))
	if err == nil {
		t.Fatalf("expected error")
	}
}
