package network

import (
	"context"
	"errors"
	"sync"
)

var errMailboxClosed = errors.New("mailbox closed")

// mailbox is an unbounded FIFO queue. push never blocks, so the foreground
// can always hand work to the session and the session can always publish
// results.
type mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{ready: make(chan struct{}, 1)}
}

// push reports false once the mailbox is closed.
func (m *mailbox[T]) push(item T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, item)
	m.mu.Unlock()

	m.signal()
	return true
}

func (m *mailbox[T]) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// tryPop returns the oldest item. closed is true only when the mailbox is
// closed and empty.
func (m *mailbox[T]) tryPop() (item T, ok bool, closed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items) == 0 {
		return item, false, m.closed
	}
	item = m.items[0]
	var zero T
	m.items[0] = zero
	m.items = m.items[1:]
	return item, true, false
}

func (m *mailbox[T]) pop(ctx context.Context) (T, error) {
	for {
		item, ok, closed := m.tryPop()
		if ok {
			return item, nil
		}
		if closed {
			return item, errMailboxClosed
		}

		select {
		case <-ctx.Done():
			return item, ctx.Err()
		case <-m.ready:
		}
	}
}

func (m *mailbox[T]) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

// drain removes and returns every queued item.
func (m *mailbox[T]) drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.items
	m.items = nil
	return items
}

func (m *mailbox[T]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
