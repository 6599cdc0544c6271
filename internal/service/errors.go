package service

import (
	"errors"

	"github.com/spec-kit/trade-desk/internal/auth"
	"github.com/spec-kit/trade-desk/internal/domain"
	"github.com/spec-kit/trade-desk/internal/repository"
	apperrors "github.com/spec-kit/trade-desk/pkg/util"
)

// OperationRecorder counts service outcomes. *observability.Metrics satisfies it.
type OperationRecorder interface {
	RecordTicketOperation(operation, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordTicketOperation(string, string) {}

func recordOutcome(rec OperationRecorder, operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperrors.ToDomainError(err).Code
	}
	rec.RecordTicketOperation(operation, outcome)
}

// storeError converts repository failures into the service error taxonomy.
func storeError(err error, ticketID int64) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ticketNotFound(ticketID)
	}
	return apperrors.NewStoreUnavailable(err)
}

func ticketNotFound(ticketID int64) error {
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
}

func requireIdentity(requester auth.Requester) error {
	if !requester.Resolved() {
		return apperrors.NewAuthorizationError("an identity is required")
	}
	return nil
}

func requirePrivileged(requester auth.Requester) error {
	if !requester.Resolved() || !requester.Privileged {
		return apperrors.NewAuthorizationError("trader privilege required")
	}
	return nil
}

// canView reports whether requester may read the ticket and its thread.
// Ownerless tickets are reachable only by privileged identities.
func canView(ticket *domain.Ticket, requester auth.Requester) bool {
	if !requester.Resolved() {
		return false
	}
	return requester.Privileged || ticket.OwnedBy(requester.ID())
}
