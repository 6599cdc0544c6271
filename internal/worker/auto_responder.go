package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/trade-desk/internal/domain"
	"github.com/spec-kit/trade-desk/internal/events"
)

// ReplyAppender stores a trader-side reply. *service.MessageService satisfies it.
type ReplyAppender interface {
	AppendSystemReply(ctx context.Context, ticketID int64, content string) (*domain.Message, error)
}

// ReplyCounter is notified of each reply sent.
type ReplyCounter interface {
	RecordAutoReply()
}

// AutoResponder answers every user message with a canned trader
// acknowledgement after a delay. Replies run on their own goroutines because
// event handlers execute while the ticket lock is held.
type AutoResponder struct {
	appender ReplyAppender
	counter  ReplyCounter
	logger   *zap.Logger
	delay    time.Duration
	text     string

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewAutoResponder builds a responder. Call Stop to cancel pending replies.
func NewAutoResponder(appender ReplyAppender, counter ReplyCounter, logger *zap.Logger, delay time.Duration, text string) *AutoResponder {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AutoResponder{
		appender: appender,
		counter:  counter,
		logger:   logger,
		delay:    delay,
		text:     text,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register subscribes the responder to new messages.
func (a *AutoResponder) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketMessageAdded, a.handleMessageAdded)
}

func (a *AutoResponder) handleMessageAdded(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketMessageAddedPayload)
	if !ok || payload.Message.Sender != domain.SenderUser {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return nil
	}
	a.wg.Add(1)
	go a.reply(event.TicketID)
	return nil
}

func (a *AutoResponder) reply(ticketID int64) {
	defer a.wg.Done()

	timer := time.NewTimer(a.delay)
	defer timer.Stop()
	select {
	case <-a.ctx.Done():
		return
	case <-timer.C:
	}

	msg, err := a.appender.AppendSystemReply(a.ctx, ticketID, a.text)
	if err != nil {
		a.logger.Warn("auto reply failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
		return
	}
	if a.counter != nil {
		a.counter.RecordAutoReply()
	}
	a.logger.Debug("auto reply sent", zap.Int64("ticket_id", ticketID), zap.Int64("message_id", msg.ID))
}

// Stop cancels pending replies and waits for running ones.
func (a *AutoResponder) Stop() {
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
	a.cancel()
	a.wg.Wait()
}
