package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/trade-desk/internal/config"
	"github.com/spec-kit/trade-desk/internal/events"
	"github.com/spec-kit/trade-desk/internal/service"
)

// Workers owns the background consumers of domain events.
type Workers struct {
	notifications *service.NotificationService
	responder     *AutoResponder
}

// Start registers notification handlers and, when enabled, the canned
// trader acknowledgement. Call Stop on shutdown.
func Start(dispatcher events.Dispatcher, notifications *service.NotificationService, replies ReplyAppender, counter ReplyCounter, cfg config.AutoReplyConfig, logger *zap.Logger) *Workers {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workers{notifications: notifications}
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if cfg.Enabled && replies != nil && dispatcher != nil {
		w.responder = NewAutoResponder(replies, counter, logger.Named("auto_reply"), cfg.Delay(), cfg.Text)
		w.responder.Register(dispatcher)
		logger.Info("auto reply enabled", zap.Duration("delay", cfg.Delay()))
	}
	return w
}

// Stop cancels pending acknowledgements and waits for running ones and for
// in-flight webhook posts.
func (w *Workers) Stop() {
	if w == nil {
		return
	}
	if w.responder != nil {
		w.responder.Stop()
	}
	if w.notifications != nil {
		w.notifications.Wait()
	}
}
