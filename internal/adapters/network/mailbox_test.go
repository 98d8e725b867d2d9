package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxKeepsOrder(t *testing.T) {
	t.Parallel()

	m := newMailbox[int]()
	for i := range 100 {
		require.True(t, m.push(i))
	}
	assert.Equal(t, 100, m.len())

	for i := range 100 {
		got, err := m.pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
}

func TestMailboxCloseDrainsBeforeReportingClosed(t *testing.T) {
	t.Parallel()

	m := newMailbox[string]()
	m.push("a")
	m.close()
	assert.False(t, m.push("b"))

	item, ok, closed := m.tryPop()
	assert.True(t, ok)
	assert.False(t, closed)
	assert.Equal(t, "a", item)

	_, ok, closed = m.tryPop()
	assert.False(t, ok)
	assert.True(t, closed)

	_, err := m.pop(context.Background())
	assert.ErrorIs(t, err, errMailboxClosed)
}

func TestMailboxPopWaitsForPush(t *testing.T) {
	t.Parallel()

	m := newMailbox[int]()
	go func() {
		time.Sleep(20 * time.Millisecond)
		m.push(7)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := m.pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestMailboxPopHonoursContext(t *testing.T) {
	t.Parallel()

	m := newMailbox[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMailboxDrain(t *testing.T) {
	t.Parallel()

	m := newMailbox[int]()
	m.push(1)
	m.push(2)

	assert.Equal(t, []int{1, 2}, m.drain())
	assert.Zero(t, m.len())
}
