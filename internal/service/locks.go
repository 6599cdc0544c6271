package service

import "sync"

// TicketLocks serializes work on a single ticket. Holding a ticket's lock
// across the store commit and the publish keeps fan-out order equal to
// commit order. LockAll excludes every per-ticket holder and is used by the
// bulk reset.
//
// Locks are not reentrant: event handlers run while a lock is held and must
// not call back into the services synchronously.
type TicketLocks struct {
	global sync.RWMutex

	mu   sync.Mutex
	keys map[int64]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewTicketLocks returns an empty lock table.
func NewTicketLocks() *TicketLocks {
	return &TicketLocks{keys: make(map[int64]*keyLock)}
}

// Lock acquires the lock for ticketID and returns its release func.
func (l *TicketLocks) Lock(ticketID int64) func() {
	l.global.RLock()
	unlock := l.lockKey(ticketID)
	return func() {
		unlock()
		l.global.RUnlock()
	}
}

// LockCreate holds off LockAll while a new ticket is stored and announced.
// The returned lockTicket takes the new ticket's key without re-entering the
// global lock; call it at most once, before release.
func (l *TicketLocks) LockCreate() (lockTicket func(ticketID int64) func(), release func()) {
	l.global.RLock()
	return l.lockKey, l.global.RUnlock
}

func (l *TicketLocks) lockKey(ticketID int64) func() {
	l.mu.Lock()
	k, ok := l.keys[ticketID]
	if !ok {
		k = &keyLock{}
		l.keys[ticketID] = k
	}
	k.refs++
	l.mu.Unlock()

	k.mu.Lock()
	return func() {
		k.mu.Unlock()
		l.mu.Lock()
		k.refs--
		if k.refs == 0 {
			delete(l.keys, ticketID)
		}
		l.mu.Unlock()
	}
}

// LockAll waits for every per-ticket holder and blocks new ones.
func (l *TicketLocks) LockAll() func() {
	l.global.Lock()
	return l.global.Unlock
}

func (l *TicketLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
