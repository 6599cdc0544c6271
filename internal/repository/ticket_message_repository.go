package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/trade-desk/internal/domain"
)

const pgForeignKeyViolation = "23503"

// MessageRepository manages ticket conversation messages.
type MessageRepository interface {
	// Append stores msg and fills its ID and CreatedAt. CreatedAt never
	// goes backwards within a ticket.
	Append(ctx context.Context, msg *domain.Message) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error)
}

type messageRepository struct {
	db *sql.DB
}

// NewMessageRepository builds the Postgres repository.
func NewMessageRepository(db *sql.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Append(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, sender, content, created_at)
        SELECT $1, $2, $3, GREATEST(clock_timestamp(), COALESCE(MAX(created_at) + INTERVAL '1 microsecond', clock_timestamp()))
        FROM ticket_messages WHERE ticket_id=$1
        RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, msg.TicketID, msg.Sender, msg.Content).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error) {
	const query = `
        SELECT id, ticket_id, sender, content, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.Sender,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
