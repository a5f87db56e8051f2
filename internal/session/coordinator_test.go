package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/parleyhq/session-service/internal/domain"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	roster  map[string][]string
	history map[string][]domain.Message

	rosterErr  error
	upsertErr  error
	replaceErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		roster:  make(map[string][]string),
		history: make(map[string][]domain.Message),
	}
}

func (s *fakeStore) UpsertParticipant(_ context.Context, roomID, username string) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.roster[roomID] {
		if u == username {
			return nil
		}
	}
	s.roster[roomID] = append(s.roster[roomID], username)
	return nil
}

func (s *fakeStore) Roster(_ context.Context, roomID string) ([]string, error) {
	if s.rosterErr != nil {
		return nil, s.rosterErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.roster[roomID]...), nil
}

func (s *fakeStore) History(_ context.Context, roomID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.history[roomID]...), nil
}

func (s *fakeStore) Replace(_ context.Context, roomID string, msgs []domain.Message) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[roomID] = append([]domain.Message(nil), msgs...)
	return nil
}

type fakeConn struct {
	id     string
	roomID string

	mu     sync.Mutex
	events []Event
}

func newFakeConn(id, roomID string) *fakeConn {
	return &fakeConn{id: id, roomID: roomID}
}

func (c *fakeConn) Send(evt Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *fakeConn) Close() error   { return nil }
func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) RoomID() string { return c.roomID }

func (c *fakeConn) messages() []MessagePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []MessagePayload
	for _, e := range c.events {
		if e.Type == TypeMessage {
			out = append(out, e.Payload.(MessagePayload))
		}
	}
	return out
}

func (c *fakeConn) lastRoster() *RosterPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == TypeRoster {
			p := c.events[i].Payload.(RosterPayload)
			return &p
		}
	}
	return nil
}

func newTestCoordinator(store *fakeStore) *Coordinator {
	return NewCoordinator(store, store, NewHub())
}

func TestJoinValidatesInput(t *testing.T) {
	c := newTestCoordinator(newFakeStore())

	_, err := c.Join(context.Background(), newFakeConn("c1", "room1"), "  ")
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = c.Join(context.Background(), newFakeConn("c1", ""), "alice")
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestJoinBroadcastsRosterToEarlierParticipants(t *testing.T) {
	c := newTestCoordinator(newFakeStore())
	ctx := context.Background()

	alice := newFakeConn("c-alice", "room1")
	res, err := c.Join(ctx, alice, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Participant.ID)
	require.Equal(t, []domain.RosterEntry{{ParticipantID: 1, Username: "alice"}}, res.Roster)
	require.Empty(t, res.History)

	bob := newFakeConn("c-bob", "room1")
	res, err = c.Join(ctx, bob, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Participant.ID)
	require.Len(t, res.Roster, 2)

	// alice's connection saw the roster update carrying bob
	roster := alice.lastRoster()
	require.NotNil(t, roster)
	require.Equal(t, "room1", roster.RoomID)
	require.Len(t, roster.Participants, 2)
	require.Equal(t, "bob", roster.Participants[1].Username)
}

func TestConcurrentJoinsDistinctUsernames(t *testing.T) {
	store := newFakeStore()
	c := newTestCoordinator(store)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := newFakeConn(fmt.Sprintf("conn-%d", i), "room1")
			_, err := c.Join(ctx, conn, fmt.Sprintf("user-%d", i))
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	roster, err := c.GetRoster(ctx, "room1")
	require.NoError(t, err)
	require.Len(t, roster, n)

	seen := make(map[string]bool)
	for _, e := range roster {
		require.False(t, seen[e.Username], "duplicate roster entry %q", e.Username)
		seen[e.Username] = true
	}
}

func TestDuplicateJoinIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.roster["room1"] = []string{"alice", "bob"}
	store.history["room1"] = []domain.Message{
		{ParticipantID: 1, Username: "alice", RoomID: "room1", Text: "hi"},
	}
	c := newTestCoordinator(store)

	res, err := c.Join(context.Background(), newFakeConn("c1", "room1"), "alice")
	require.NoError(t, err)
	require.Len(t, res.Roster, 2)
	require.Len(t, res.History, 1)

	// a second connection with the same username is fine too
	res, err = c.Join(context.Background(), newFakeConn("c2", "room1"), "alice")
	require.NoError(t, err)
	require.Len(t, res.Roster, 2)
}

func TestJoinSurfacesStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.rosterErr = errors.New("connection refused")
	c := newTestCoordinator(store)

	_, err := c.Join(context.Background(), newFakeConn("c1", "room1"), "alice")
	require.Error(t, err)

	// nothing was registered; a later send is still NotJoined
	_, err = c.Send(context.Background(), "c1", "room1", "hello")
	require.ErrorIs(t, err, domain.ErrNotJoined)
}

func TestSendFanOutOrder(t *testing.T) {
	c := newTestCoordinator(newFakeStore())
	ctx := context.Background()

	alice := newFakeConn("c-alice", "room1")
	bob := newFakeConn("c-bob", "room1")
	resA, err := c.Join(ctx, alice, "alice")
	require.NoError(t, err)
	resB, err := c.Join(ctx, bob, "bob")
	require.NoError(t, err)

	_, err = c.Send(ctx, "c-alice", "room1", "hello")
	require.NoError(t, err)
	_, err = c.Send(ctx, "c-bob", "room1", "hi")
	require.NoError(t, err)

	for _, conn := range []*fakeConn{alice, bob} {
		msgs := conn.messages()
		require.Len(t, msgs, 2, "fan-out includes the sender")
		require.Equal(t, "hello", msgs[0].Text)
		require.Equal(t, "hi", msgs[1].Text)
		require.Equal(t, resA.Participant.ID, msgs[0].ParticipantID)
		require.Equal(t, resB.Participant.ID, msgs[1].ParticipantID)
	}
}

func TestSendRequiresJoin(t *testing.T) {
	c := newTestCoordinator(newFakeStore())
	ctx := context.Background()

	_, err := c.Send(ctx, "nope", "room1", "hello")
	require.ErrorIs(t, err, domain.ErrNotJoined)

	// joined to another room does not count
	_, err = c.Join(ctx, newFakeConn("c1", "room2"), "alice")
	require.NoError(t, err)
	_, err = c.Send(ctx, "c1", "room1", "hello")
	require.ErrorIs(t, err, domain.ErrNotJoined)

	_, err = c.Send(ctx, "c1", "room2", "   ")
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestLeaveFlushesAndSurvivesRestart(t *testing.T) {
	store := newFakeStore()
	c := newTestCoordinator(store)
	ctx := context.Background()

	conn := newFakeConn("c1", "room1")
	_, err := c.Join(ctx, conn, "alice")
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		_, err = c.Send(ctx, "c1", "room1", text)
		require.NoError(t, err)
	}

	c.Leave(ctx, "c1")
	require.Len(t, store.history["room1"], 3)

	// fresh coordinator over the same store simulates a restart
	c2 := newTestCoordinator(store)
	res, err := c2.Join(ctx, newFakeConn("c2", "room1"), "bob")
	require.NoError(t, err)
	require.Len(t, res.History, 3)
	for i, text := range []string{"one", "two", "three"} {
		require.Equal(t, "alice", res.History[i].Username)
		require.Equal(t, text, res.History[i].Text)
	}

	// leave is idempotent and a flush failure never fails the disconnect path
	store.replaceErr = errors.New("down")
	c.Leave(ctx, "c1")
	c2.Leave(ctx, "c2")
}

func TestHistoryOrderMatchesTimestamps(t *testing.T) {
	c := newTestCoordinator(newFakeStore())
	ctx := context.Background()

	_, err := c.Join(ctx, newFakeConn("c1", "room1"), "alice")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err = c.Send(ctx, "c1", "room1", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	hist, err := c.GetHistory(ctx, "room1")
	require.NoError(t, err)
	require.Len(t, hist, 10)
	for i := 1; i < len(hist); i++ {
		require.False(t, hist[i].Timestamp.Before(hist[i-1].Timestamp))
	}
}

func TestPostObserverMessageGuards(t *testing.T) {
	c := newTestCoordinator(newFakeStore())
	ctx := context.Background()

	// unknown room: nothing to reply to
	_, ok := c.PostObserverMessage("ghost", "hello")
	require.False(t, ok)

	conn := newFakeConn("c1", "room1")
	_, err := c.Join(ctx, conn, "alice")
	require.NoError(t, err)

	// empty room: still nothing to reply to
	_, ok = c.PostObserverMessage("room1", "hello")
	require.False(t, ok)

	_, err = c.Send(ctx, "c1", "room1", "hey there")
	require.NoError(t, err)

	msg, ok := c.PostObserverMessage("room1", "hello humans")
	require.True(t, ok)
	require.Equal(t, domain.ObserverID, msg.ParticipantID)
	require.Equal(t, domain.ObserverName, msg.Username)

	// never twice in a row
	_, ok = c.PostObserverMessage("room1", "me again")
	require.False(t, ok)

	// a human message re-arms the observer
	_, err = c.Send(ctx, "c1", "room1", "welcome")
	require.NoError(t, err)
	_, ok = c.PostObserverMessage("room1", "thanks")
	require.True(t, ok)

	msgs := conn.messages()
	require.Equal(t, []string{"hey there", "hello humans", "welcome", "thanks"},
		[]string{msgs[0].Text, msgs[1].Text, msgs[2].Text, msgs[3].Text})
}

func TestMentionFiresObserverTrigger(t *testing.T) {
	c := newTestCoordinator(newFakeStore())
	ctx := context.Background()

	var mu sync.Mutex
	var triggered []string
	c.SetObserverTrigger(func(roomID string) {
		mu.Lock()
		defer mu.Unlock()
		triggered = append(triggered, roomID)
	})

	_, err := c.Join(ctx, newFakeConn("c1", "room1"), "alice")
	require.NoError(t, err)

	_, err = c.Send(ctx, "c1", "room1", "just chatting")
	require.NoError(t, err)
	_, err = c.Send(ctx, "c1", "room1", "@AI what time is it?")
	require.NoError(t, err)
	_, err = c.Send(ctx, "c1", "room1", "  @ai lowercase works too")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"room1", "room1"}, triggered)
}

func TestRoomTail(t *testing.T) {
	c := newTestCoordinator(newFakeStore())
	ctx := context.Background()

	tail, total := c.RoomTail("room1", 8)
	require.Nil(t, tail)
	require.Zero(t, total)

	_, err := c.Join(ctx, newFakeConn("c1", "room1"), "alice")
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		_, err = c.Send(ctx, "c1", "room1", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	tail, total = c.RoomTail("room1", 8)
	require.Equal(t, 12, total)
	require.Len(t, tail, 8)
	require.Equal(t, "m4", tail[0].Text)
	require.Equal(t, "m11", tail[7].Text)
}

func TestGetRosterReadsStore(t *testing.T) {
	store := newFakeStore()
	store.roster["room1"] = []string{"alice", "bob"}
	c := newTestCoordinator(store)

	// no Join happened, the cache is cold; the store still answers
	roster, err := c.GetRoster(context.Background(), "room1")
	require.NoError(t, err)
	require.Equal(t, []domain.RosterEntry{
		{ParticipantID: 1, Username: "alice"},
		{ParticipantID: 2, Username: "bob"},
	}, roster)
}
