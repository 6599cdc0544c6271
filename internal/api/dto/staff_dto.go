package dto

import (
	"time"

	"github.com/spec-kit/trade-desk/internal/board"
	"github.com/spec-kit/trade-desk/internal/domain"
)

// UpdateStatusRequest payload for the trader status control.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// BoardEntryResponse is one dashboard row.
type BoardEntryResponse struct {
	TicketResponse
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
}

// BoardSummaryResponse holds per-status counts.
type BoardSummaryResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
}

// ClearResponse reports a bulk reset.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// NewBoardEntryResponses maps dashboard rows.
func NewBoardEntryResponses(entries []board.Entry) []BoardEntryResponse {
	out := make([]BoardEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, BoardEntryResponse{
			TicketResponse: NewTicketResponse(&entries[i].Ticket),
			MessageCount:   entries[i].MessageCount,
			LastActivity:   entries[i].LastActivity,
		})
	}
	return out
}

// NewBoardSummaryResponse maps status counts.
func NewBoardSummaryResponse(s board.Summary) BoardSummaryResponse {
	return BoardSummaryResponse{
		Total:      s.Total,
		Pending:    s.ByStatus[domain.TicketStatusPending],
		InProgress: s.ByStatus[domain.TicketStatusInProgress],
		Completed:  s.ByStatus[domain.TicketStatusCompleted],
	}
}
