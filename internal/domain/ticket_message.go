package domain

import "time"

// MessageSender indicates which party authored a message.
type MessageSender string

const (
	SenderUser   MessageSender = "user"
	SenderTrader MessageSender = "trader"
)

// Valid reports whether s is a known sender.
func (s MessageSender) Valid() bool {
	return s == SenderUser || s == SenderTrader
}

// Message is an immutable entry in a ticket's conversation thread.
type Message struct {
	ID        int64
	TicketID  int64
	Sender    MessageSender
	Content   string
	CreatedAt time.Time
}
