// Package realtime fans newly stored ticket messages out to live viewers.
//
// Each subscription owns a FIFO mailbox drained by its own goroutine, so a
// slow or failing callback only delays itself. Publish never blocks on a
// callback: it appends to every mailbox of the ticket under one lock, which
// keeps the per-ticket publish order identical for all subscribers.
package realtime

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/trade-desk/internal/domain"
)

// Handler receives messages for one subscription. A returned error or a
// panic is logged and does not affect other subscribers.
type Handler func(msg domain.Message) error

// Observer receives channel lifecycle signals, typically for metrics.
type Observer interface {
	SubscriberAdded()
	SubscriberRemoved()
	MessageDelivered()
	CallbackFailed()
	SubscriberEvicted()
}

// Options configures a Channel.
type Options struct {
	// MaxBacklog is how many undelivered messages a subscriber may queue
	// before it is evicted. Zero or less means 256.
	MaxBacklog int
	Logger     *zap.Logger
	Observer   Observer
}

// Channel is an in-process per-ticket publish/subscribe bus. It holds no
// authoritative state; subscribers re-fetch history after (re)connecting.
type Channel struct {
	mu         sync.Mutex
	topics     map[int64]map[uint64]*Subscription
	nextID     uint64
	closed     bool
	maxBacklog int
	logger     *zap.Logger
	observer   Observer
}

// NewChannel creates an empty channel.
func NewChannel(opts Options) *Channel {
	if opts.MaxBacklog <= 0 {
		opts.MaxBacklog = 256
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	return &Channel{
		topics:     make(map[int64]map[uint64]*Subscription),
		maxBacklog: opts.MaxBacklog,
		logger:     opts.Logger,
		observer:   opts.Observer,
	}
}

// Subscribe registers handler for messages published to ticketID after this
// call returns. Earlier messages are never replayed. On a closed channel the
// returned subscription is already stopped.
func (c *Channel) Subscribe(ticketID int64, handler Handler) *Subscription {
	sub := &Subscription{
		ticketID: ticketID,
		channel:  c,
		handler:  handler,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	c.nextID++
	sub.id = c.nextID
	if c.closed {
		c.mu.Unlock()
		sub.halt()
		close(sub.done)
		return sub
	}
	subs, ok := c.topics[ticketID]
	if !ok {
		subs = make(map[uint64]*Subscription)
		c.topics[ticketID] = subs
	}
	subs[sub.id] = sub
	c.mu.Unlock()

	c.observer.SubscriberAdded()
	go sub.run()
	return sub
}

// Publish queues msg for every subscriber currently registered on ticketID.
// It must be called once per stored message, in commit order.
func (c *Channel) Publish(ticketID int64, msg domain.Message) {
	var evicted []*Subscription

	c.mu.Lock()
	for id, sub := range c.topics[ticketID] {
		if !sub.enqueue(msg, c.maxBacklog) {
			delete(c.topics[ticketID], id)
			evicted = append(evicted, sub)
		}
	}
	if len(c.topics[ticketID]) == 0 {
		delete(c.topics, ticketID)
	}
	c.mu.Unlock()

	for _, sub := range evicted {
		c.logger.Warn("evicting slow subscriber",
			zap.Int64("ticket_id", ticketID),
			zap.Uint64("subscription_id", sub.id),
			zap.Int("max_backlog", c.maxBacklog))
		c.observer.SubscriberEvicted()
		sub.halt()
	}
}

// CloseTicket stops every subscription on ticketID, e.g. after deletion.
func (c *Channel) CloseTicket(ticketID int64) int {
	c.mu.Lock()
	subs := c.topics[ticketID]
	delete(c.topics, ticketID)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.halt()
	}
	return len(subs)
}

// CloseAll stops every subscription but keeps the channel usable.
func (c *Channel) CloseAll() int {
	c.mu.Lock()
	topics := c.topics
	c.topics = make(map[int64]map[uint64]*Subscription)
	c.mu.Unlock()

	n := 0
	for _, subs := range topics {
		for _, sub := range subs {
			sub.halt()
			n++
		}
	}
	return n
}

// Close stops every subscription and rejects new ones.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.CloseAll()
}

// SubscriberCount returns the number of live subscriptions on ticketID.
func (c *Channel) SubscriberCount(ticketID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.topics[ticketID])
}

func (c *Channel) detach(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs, ok := c.topics[sub.ticketID]
	if !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(c.topics, sub.ticketID)
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id       uint64
	ticketID int64
	channel  *Channel
	handler  Handler

	mu      sync.Mutex
	queue   []domain.Message
	stopped bool

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	haltOnce sync.Once
}

// ID returns the subscription identifier, unique within its channel.
func (s *Subscription) ID() uint64 { return s.id }

// TicketID returns the ticket this subscription watches.
func (s *Subscription) TicketID() int64 { return s.ticketID }

// Unsubscribe stops future deliveries without waiting for the callback.
// A message already taken off the queue is in flight: its callback may still
// start after this returns and runs to completion. At most one such message
// exists; every other queued message is discarded. Calling it again, or after
// the channel dropped the subscription, is a no-op.
func (s *Subscription) Unsubscribe() {
	s.channel.detach(s)
	s.halt()
}

// Stopped is closed once the subscription will receive no more messages.
func (s *Subscription) Stopped() <-chan struct{} { return s.stop }

// Done is closed after the delivery goroutine has exited, i.e. once any
// in-flight callback has returned.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) enqueue(msg domain.Message, maxBacklog int) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return true
	}
	if len(s.queue) >= maxBacklog {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Subscription) halt() {
	s.haltOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.queue = nil
		s.mu.Unlock()
		close(s.stop)
		if s.channel != nil {
			s.channel.observer.SubscriberRemoved()
		}
	})
}

// next takes the head of the queue under s.mu. Taking it is the point at
// which the delivery counts as started.
func (s *Subscription) next() (domain.Message, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return domain.Message{}, false, true
	}
	if len(s.queue) == 0 {
		s.queue = nil
		return domain.Message{}, false, false
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return msg, true, false
}

func (s *Subscription) run() {
	defer close(s.done)
	for {
		msg, ok, stopped := s.next()
		if stopped {
			return
		}
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.stop:
				return
			}
		}
		s.deliver(msg)
	}
}

func (s *Subscription) deliver(msg domain.Message) {
	observer := s.channel.observer
	defer func() {
		if r := recover(); r != nil {
			observer.CallbackFailed()
			s.channel.logger.Error("subscriber callback panicked",
				zap.Int64("ticket_id", s.ticketID),
				zap.Uint64("subscription_id", s.id),
				zap.Int64("message_id", msg.ID),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	if err := s.handler(msg); err != nil {
		observer.CallbackFailed()
		s.channel.logger.Warn("subscriber callback failed",
			zap.Int64("ticket_id", s.ticketID),
			zap.Uint64("subscription_id", s.id),
			zap.Int64("message_id", msg.ID),
			zap.Error(err))
		return
	}
	observer.MessageDelivered()
}

type noopObserver struct{}

func (noopObserver) SubscriberAdded()   {}
func (noopObserver) SubscriberRemoved() {}
func (noopObserver) MessageDelivered()  {}
func (noopObserver) CallbackFailed()    {}
func (noopObserver) SubscriberEvicted() {}
