package events

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherIsolatesHandlerFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))

	var order []string
	d.Subscribe(EventTicketDeleted, func(context.Context, Event) error {
		order = append(order, "failing")
		return errors.New("webhook down")
	})
	d.Subscribe(EventTicketDeleted, func(context.Context, Event) error {
		order = append(order, "panicking")
		panic("boom")
	})
	d.Subscribe(EventTicketDeleted, func(_ context.Context, e Event) error {
		order = append(order, "ok")
		if e.TicketID != 4 {
			t.Errorf("ticket id = %d", e.TicketID)
		}
		return nil
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		t.Errorf("unrelated handler invoked")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventTicketDeleted, 4, Actor{}, TicketDeletedPayload{Title: "x"}))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(order) != 3 || order[2] != "ok" {
		t.Fatalf("handlers ran %v", order)
	}
	if logs.Len() != 2 {
		t.Fatalf("expected two logged failures, got %d", logs.Len())
	}
}

func TestNewEventStampsIdentity(t *testing.T) {
	a := NewEvent(EventTicketsCleared, 0, Actor{}, TicketsClearedPayload{Removed: 2})
	b := NewEvent(EventTicketsCleared, 0, Actor{}, nil)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("event ids must be unique: %q %q", a.ID, b.ID)
	}
	if a.Timestamp.IsZero() {
		t.Fatalf("timestamp not set")
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("short", 10); got != "short" {
		t.Fatalf("Preview = %q", got)
	}
	if got := Preview("ключ к победе", 4); got != "ключ…" {
		t.Fatalf("Preview = %q", got)
	}
}
