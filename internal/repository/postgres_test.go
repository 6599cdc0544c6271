package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/trade-desk/internal/domain"
)

var ticketColumns = []string{"id", "title", "type", "status", "message", "item_description", "owner_identity_id", "owner_display_name", "created_at"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestPostgresCreateTicket(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO tickets").
		WithArgs("Buy AWP", domain.TicketTypePurchase, domain.TicketStatusPending, "want it", nil, "U1", "Gabe").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))

	owner, name := "U1", "Gabe"
	ticket := &domain.Ticket{
		Title:            "Buy AWP",
		Type:             domain.TicketTypePurchase,
		Status:           domain.TicketStatusPending,
		Message:          "want it",
		OwnerIdentityID:  &owner,
		OwnerDisplayName: &name,
	}
	if err := repo.Create(context.Background(), ticket); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ticket.ID != 7 || !ticket.CreatedAt.Equal(now) {
		t.Fatalf("unexpected ticket %+v", ticket)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepository(db)

	mock.ExpectQuery("SELECT id, title, type, status.*FROM tickets WHERE id=").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(ticketColumns))

	if _, err := repo.GetByID(context.Background(), 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresListByOwner(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM tickets WHERE owner_identity_id=\\$1 ORDER BY id ASC").
		WithArgs("U1").
		WillReturnRows(sqlmock.NewRows(ticketColumns).
			AddRow(int64(1), "a", "purchase", "pending", "m", nil, "U1", "Gabe", now).
			AddRow(int64(4), "b", "trade", "completed", "m", "AK-47 Redline", "U1", nil, now))

	owner := "U1"
	tickets, err := repo.List(context.Background(), TicketFilter{OwnerID: &owner})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(tickets))
	}
	if tickets[0].ItemDescription != nil || tickets[1].ItemDescription == nil || *tickets[1].ItemDescription != "AK-47 Redline" {
		t.Fatalf("nullable columns mis-scanned: %+v", tickets)
	}
	if tickets[1].Status != domain.TicketStatusCompleted || tickets[1].OwnerDisplayName != nil {
		t.Fatalf("unexpected second ticket %+v", tickets[1])
	}
}

func TestPostgresUpdateStatusMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepository(db)

	mock.ExpectExec("UPDATE tickets SET status").
		WithArgs(domain.TicketStatusInProgress, int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateStatus(context.Background(), 9, domain.TicketStatusInProgress); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresDeleteCascades(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM ticket_messages WHERE ticket_id").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM tickets WHERE id").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Delete(context.Background(), 5); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresDeleteMissingRollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM ticket_messages WHERE ticket_id").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM tickets WHERE id").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := repo.Delete(context.Background(), 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresDeleteAll(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM ticket_messages").WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec("DELETE FROM tickets").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	removed, err := repo.DeleteAll(context.Background())
	if err != nil || removed != 3 {
		t.Fatalf("DeleteAll = %d, %v", removed, err)
	}
}

func TestPostgresAppendMessage(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMessageRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO ticket_messages").
		WithArgs(int64(2), domain.SenderUser, "any update?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))

	msg := &domain.Message{TicketID: 2, Sender: domain.SenderUser, Content: "any update?"}
	if err := repo.Append(context.Background(), msg); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if msg.ID != 11 || !msg.CreatedAt.Equal(now) {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestPostgresAppendToDeletedTicket(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMessageRepository(db)

	mock.ExpectQuery("INSERT INTO ticket_messages").
		WithArgs(int64(2), domain.SenderTrader, "late").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := repo.Append(context.Background(), &domain.Message{TicketID: 2, Sender: domain.SenderTrader, Content: "late"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresListMessagesOrdered(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMessageRepository(db)
	base := time.Now().UTC()

	mock.ExpectQuery("FROM ticket_messages WHERE ticket_id=\\$1 ORDER BY created_at ASC, id ASC").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_id", "sender", "content", "created_at"}).
			AddRow(int64(1), int64(2), "user", "any update?", base).
			AddRow(int64(2), int64(2), "trader", "checking now", base.Add(time.Second)))

	msgs, err := repo.ListByTicket(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListByTicket: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Sender != domain.SenderUser || msgs[1].Sender != domain.SenderTrader {
		t.Fatalf("unexpected messages %+v", msgs)
	}
}
