package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/trade-desk/internal/config"
	"github.com/spec-kit/trade-desk/internal/events"
)

// NotificationService turns domain events into fire-and-forget notices.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	wg         sync.WaitGroup
}

const webhookTimeout = 5 * time.Second

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketDeleted, n.handleTicketDeleted)
	n.dispatcher.Subscribe(events.EventTicketsCleared, n.handleTicketsCleared)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
}

func (n *NotificationService) handleTicketCreated(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketCreatedPayload)
	n.logger.Info("TicketCreated",
		zap.Int64("ticket_id", event.TicketID),
		zap.String("title", payload.Ticket.Title),
		zap.String("type", string(payload.Ticket.Type)))
	n.sendWebhook(event)
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketStatusChangedPayload)
	n.logger.Info("TicketStatusChanged",
		zap.Int64("ticket_id", event.TicketID),
		zap.String("old_status", string(payload.OldStatus)),
		zap.String("new_status", string(payload.NewStatus)))
	n.sendWebhook(event)
	return nil
}

func (n *NotificationService) handleTicketDeleted(_ context.Context, event events.Event) error {
	n.logger.Info("TicketDeleted", zap.Int64("ticket_id", event.TicketID))
	n.sendWebhook(event)
	return nil
}

func (n *NotificationService) handleTicketsCleared(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketsClearedPayload)
	n.logger.Warn("TicketsCleared", zap.Int64("removed", payload.Removed))
	n.sendWebhook(event)
	return nil
}

func (n *NotificationService) handleTicketMessageAdded(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketMessageAddedPayload)
	n.logger.Info("TicketMessageAdded",
		zap.Int64("ticket_id", event.TicketID),
		zap.Int64("message_id", payload.Message.ID),
		zap.String("sender", string(payload.Message.Sender)),
		zap.String("preview", payload.BodyPreview))
	return nil
}

// sendWebhook posts the event JSON to the configured URL on its own
// goroutine. Failures are logged and dropped.
func (n *NotificationService) sendWebhook(event events.Event) {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		agent := fiber.Post(url).Timeout(webhookTimeout).JSON(event)
		if err := agent.Parse(); err != nil {
			n.logger.Warn("invalid webhook url", zap.String("url", url), zap.Error(err))
			return
		}
		status, _, errs := agent.Bytes()
		if len(errs) > 0 {
			n.logger.Warn("webhook delivery failed",
				zap.String("event_type", string(event.Type)),
				zap.Int64("ticket_id", event.TicketID),
				zap.Errors("errors", errs))
			return
		}
		if status >= fiber.StatusBadRequest {
			n.logger.Warn("webhook rejected event",
				zap.String("event_type", string(event.Type)),
				zap.Int64("ticket_id", event.TicketID),
				zap.Int("status", status))
			return
		}
		n.logger.Debug("webhook delivered", zap.String("event_id", event.ID), zap.Int("status", status))
	}()
}

// Wait blocks until in-flight webhook posts finish.
func (n *NotificationService) Wait() {
	n.wg.Wait()
}
