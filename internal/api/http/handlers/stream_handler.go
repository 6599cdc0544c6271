package handlers

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/trade-desk/internal/api/dto"
	"github.com/spec-kit/trade-desk/internal/auth"
	"github.com/spec-kit/trade-desk/internal/domain"
	"github.com/spec-kit/trade-desk/internal/service"
)

var errStreamClosed = errors.New("stream closed")

// StreamHandler serves a ticket thread as Server-Sent Events: the history
// first, then every new message as it is stored.
type StreamHandler struct {
	messages   *service.MessageService
	logger     *zap.Logger
	heartbeat  time.Duration
	bufferSize int
}

// NewStreamHandler constructs handler.
func NewStreamHandler(messages *service.MessageService, logger *zap.Logger, heartbeat time.Duration, bufferSize int) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &StreamHandler{messages: messages, logger: logger, heartbeat: heartbeat, bufferSize: bufferSize}
}

// Stream GET /tickets/:id/stream.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}

	live := make(chan domain.Message, h.bufferSize)
	closed := make(chan struct{})
	sub, history, err := h.messages.Watch(c.UserContext(), id, auth.FromFiber(c).Requester(), func(m domain.Message) error {
		select {
		case live <- m:
			return nil
		case <-closed:
			return errStreamClosed
		}
	})
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	logger := h.logger.With(zap.Int64("ticket_id", id), zap.Uint64("subscription_id", sub.ID()))
	heartbeat := h.heartbeat
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer close(closed)
		defer sub.Unsubscribe()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		reason := pumpStream(w, history, live, sub.Stopped(), ticker.C)
		logger.Debug("ticket stream ended", zap.String("reason", reason))
	}))
	return nil
}

// pumpStream writes history, then live messages until the subscription
// stops or the client goes away. Live messages already covered by history
// are skipped by id. It returns why the stream ended.
func pumpStream(w *bufio.Writer, history []domain.Message, live <-chan domain.Message, stopped <-chan struct{}, heartbeat <-chan time.Time) string {
	var lastID int64
	if _, err := w.WriteString(": stream started\n\n"); err != nil {
		return "client gone"
	}
	for _, m := range history {
		if err := writeEvent(w, "message", m.ID, dto.NewMessageResponse(m)); err != nil {
			return "client gone"
		}
		lastID = m.ID
	}
	if err := writeEvent(w, "ready", 0, fiber.Map{"history": len(history)}); err != nil {
		return "client gone"
	}
	if err := w.Flush(); err != nil {
		return "client gone"
	}

	send := func(m domain.Message) error {
		if m.ID <= lastID {
			return nil
		}
		lastID = m.ID
		if err := writeEvent(w, "message", m.ID, dto.NewMessageResponse(m)); err != nil {
			return err
		}
		return w.Flush()
	}

	for {
		select {
		case m := <-live:
			if err := send(m); err != nil {
				return "client gone"
			}
		case <-heartbeat:
			if _, err := w.WriteString(": ping\n\n"); err != nil {
				return "client gone"
			}
			if err := w.Flush(); err != nil {
				return "client gone"
			}
		case <-stopped:
		drain:
			for {
				select {
				case m := <-live:
					if err := send(m); err != nil {
						return "client gone"
					}
				default:
					break drain
				}
			}
			_ = writeEvent(w, "closed", 0, fiber.Map{"reason": "subscription ended"})
			_ = w.Flush()
			return "subscription ended"
		}
	}
}

func writeEvent(w *bufio.Writer, event string, id int64, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if id > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", id); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
