package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type hubConn struct {
	id     string
	roomID string

	mu      sync.Mutex
	events  []Event
	failing bool
}

func (c *hubConn) Send(evt Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("write: broken pipe")
	}
	c.events = append(c.events, evt)
	return nil
}

func (c *hubConn) Close() error   { return nil }
func (c *hubConn) ID() string     { return c.id }
func (c *hubConn) RoomID() string { return c.roomID }

func (c *hubConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestHubBroadcastScopedToRoom(t *testing.T) {
	h := NewHub()
	a := &hubConn{id: "a", roomID: "r1"}
	b := &hubConn{id: "b", roomID: "r1"}
	other := &hubConn{id: "c", roomID: "r2"}
	h.Add(a)
	h.Add(b)
	h.Add(other)

	h.Broadcast("r1", Event{Type: TypeMessage})

	require.Equal(t, 1, a.count())
	require.Equal(t, 1, b.count())
	require.Zero(t, other.count())
}

func TestHubFailingConnDoesNotBlockOthers(t *testing.T) {
	h := NewHub()
	bad := &hubConn{id: "bad", roomID: "r1", failing: true}
	good := &hubConn{id: "good", roomID: "r1"}
	h.Add(bad)
	h.Add(good)

	for i := 0; i < 5; i++ {
		h.Broadcast("r1", Event{Type: TypeMessage})
	}

	require.Equal(t, 5, good.count())
	require.Zero(t, bad.count())
}

func TestHubDeliveryOrderPerConn(t *testing.T) {
	h := NewHub()
	c := &hubConn{id: "a", roomID: "r1"}
	h.Add(c)

	for i := 0; i < 20; i++ {
		h.Broadcast("r1", Event{Type: TypeMessage, Payload: fmt.Sprintf("m%d", i)})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.events, 20)
	for i, e := range c.events {
		require.Equal(t, fmt.Sprintf("m%d", i), e.Payload)
	}
}

func TestHubRemove(t *testing.T) {
	h := NewHub()
	c := &hubConn{id: "a", roomID: "r1"}
	h.Add(c)
	h.Remove(c)

	h.Broadcast("r1", Event{Type: TypeMessage})
	require.Zero(t, c.count())

	// removing twice is harmless
	h.Remove(c)
}
