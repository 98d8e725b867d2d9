package notify

import (
	"sync/atomic"

	"github.com/bnema/screeps-cli/internal/ports"
)

// Channel coalesces wakeups into a single pending signal.
type Channel struct {
	signal chan struct{}
	closed atomic.Bool
}

var _ ports.Notify = (*Channel)(nil)

func NewChannel() *Channel {
	return &Channel{signal: make(chan struct{}, 1)}
}

func (c *Channel) Wakeup() error {
	if c.closed.Load() {
		return ports.ErrDisconnected
	}

	select {
	case c.signal <- struct{}{}:
	default:
	}
	return nil
}

func (c *Channel) C() <-chan struct{} {
	return c.signal
}

func (c *Channel) Close() {
	c.closed.Store(true)
}

// Noop accepts wakeups and drops them.
type Noop struct{}

func (Noop) Wakeup() error {
	return nil
}
