package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/spec-kit/trade-desk/internal/domain"
)

// ErrNotFound is returned when the targeted ticket does not exist.
var ErrNotFound = errors.New("repository: not found")

// TicketFilter narrows ticket listings. A nil OwnerID lists every ticket.
type TicketFilter struct {
	OwnerID *string
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus) error
	// Delete removes the ticket and every message it owns.
	Delete(ctx context.Context, id int64) error
	// DeleteAll removes every ticket and message, returning the number of tickets removed.
	DeleteAll(ctx context.Context) (int64, error)
}

type ticketRepository struct {
	db *sql.DB
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(db *sql.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, type, status, message, item_description, owner_identity_id, owner_display_name)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query,
		ticket.Title,
		ticket.Type,
		ticket.Status,
		ticket.Message,
		ticket.ItemDescription,
		ticket.OwnerIdentityID,
		ticket.OwnerDisplayName,
	).Scan(&ticket.ID, &ticket.CreatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `
        SELECT id, title, type, status, message, item_description, owner_identity_id, owner_display_name, created_at
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := scanTicket(r.db.QueryRowContext(ctx, query, id), &ticket); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	const base = `
        SELECT id, title, type, status, message, item_description, owner_identity_id, owner_display_name, created_at
        FROM tickets`
	var (
		rows *sql.Rows
		err  error
	)
	if filter.OwnerID != nil {
		rows, err = r.db.QueryContext(ctx, base+` WHERE owner_identity_id=$1 ORDER BY id ASC`, *filter.OwnerID)
	} else {
		rows, err = r.db.QueryContext(ctx, base+` ORDER BY id ASC`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tickets SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ticket_messages WHERE ticket_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (r *ticketRepository) DeleteAll(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ticket_messages`); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tickets`)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, ticket *domain.Ticket) error {
	var (
		itemDescription  sql.NullString
		ownerIdentityID  sql.NullString
		ownerDisplayName sql.NullString
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Type,
		&ticket.Status,
		&ticket.Message,
		&itemDescription,
		&ownerIdentityID,
		&ownerDisplayName,
		&ticket.CreatedAt,
	); err != nil {
		return err
	}
	ticket.ItemDescription = nullableString(itemDescription)
	ticket.OwnerIdentityID = nullableString(ownerIdentityID)
	ticket.OwnerDisplayName = nullableString(ownerDisplayName)
	return nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
