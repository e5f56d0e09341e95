package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomMembership(t *testing.T) {
	room := NewRoom(123456)
	a := NewClient("u1", "alice", nil)
	b := NewClient("u2", "bob", nil)

	require.True(t, room.AddClient(a))
	require.True(t, room.AddClient(b))
	assert.Equal(t, 2, room.Len())

	got, ok := room.Client(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	removed, empty, ok := room.RemoveClient(a.ID)
	require.True(t, ok)
	assert.Same(t, a, removed)
	assert.False(t, empty)

	// Removing the same id again is a no-op.
	_, _, ok = room.RemoveClient(a.ID)
	assert.False(t, ok)

	_, empty, ok = room.RemoveClient(b.ID)
	require.True(t, ok)
	assert.True(t, empty)
}

func TestRoomCloseMembership(t *testing.T) {
	room := NewRoom(123456)
	a := NewClient("u1", "alice", nil)
	require.True(t, room.AddClient(a))

	final := room.CloseMembership()
	require.Len(t, final, 1)
	assert.Same(t, a, final[0])

	// A join holding a stale pointer to this room must be refused.
	assert.False(t, room.AddClient(NewClient("u2", "bob", nil)))
}

func TestRoomIdleSince(t *testing.T) {
	room := NewRoom(123456)
	now := time.Now().UTC()

	assert.False(t, room.IdleSince(now, time.Minute))
	assert.True(t, room.IdleSince(now.Add(2*time.Minute), time.Minute))

	room.Touch()
	assert.False(t, room.IdleSince(now.Add(30*time.Second), time.Minute))
}

func TestClientEnqueueNeverBlocks(t *testing.T) {
	c := NewClient("u1", "alice", nil)

	for i := 0; i < sendQueueSize; i++ {
		require.True(t, c.Enqueue([]byte(`{"type":"ping"}`)))
	}
	// Queue is full now; delivery fails instead of blocking.
	assert.False(t, c.Enqueue([]byte(`{"type":"ping"}`)))
}

func TestClientCloseIdempotent(t *testing.T) {
	c := NewClient("u1", "alice", nil)

	c.Close()
	c.Close()

	assert.True(t, c.Closed())
	assert.False(t, c.Enqueue([]byte(`{"type":"ping"}`)))
}
