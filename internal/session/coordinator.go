package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parleyhq/session-service/internal/domain"
)

// RoomStore is the slice of the persistent store the coordinator needs for
// roster state. Roster reads return empty for rooms that were never persisted.
type RoomStore interface {
	UpsertParticipant(ctx context.Context, roomID, username string) error
	Roster(ctx context.Context, roomID string) ([]string, error)
}

// MessageStore persists per-room message history. Replace has full overwrite
// semantics and is only called from the flush path.
type MessageStore interface {
	History(ctx context.Context, roomID string) ([]domain.Message, error)
	Replace(ctx context.Context, roomID string, msgs []domain.Message) error
}

// JoinResult is the ack returned to a joining connection.
type JoinResult struct {
	Participant domain.Participant
	Roster      []domain.RosterEntry
	History     []domain.Message
}

// roomState is the in-memory mirror of one room. Loaded lazily on first
// access and authoritative for the rest of the process lifetime; roster and
// messages only grow.
type roomState struct {
	mu       sync.Mutex
	loaded   bool
	roster   []string
	messages []domain.Message

	// flushMu serializes store flushes per room without stalling appends.
	flushMu sync.Mutex
}

type connEntry struct {
	conn        Conn
	participant *domain.Participant
}

// Coordinator owns the live participant registry and the per-room state
// cache. It is the sole mutator of both; transports and the observer go
// through its operation set.
type Coordinator struct {
	rooms RoomStore
	msgs  MessageStore
	hub   *Hub

	nextID  atomic.Int64
	trigger func(roomID string) // explicit observer trigger, optional

	mu     sync.Mutex
	conns  map[string]connEntry
	states map[string]*roomState
}

func NewCoordinator(rooms RoomStore, msgs MessageStore, hub *Hub) *Coordinator {
	return &Coordinator{
		rooms:  rooms,
		msgs:   msgs,
		hub:    hub,
		conns:  make(map[string]connEntry),
		states: make(map[string]*roomState),
	}
}

// SetObserverTrigger installs the explicit "@ai" trigger. Must be called
// before the first connection is served.
func (c *Coordinator) SetObserverTrigger(fn func(roomID string)) {
	c.trigger = fn
}

func (c *Coordinator) state(roomID string) *roomState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[roomID]
	if !ok {
		st = &roomState{}
		c.states[roomID] = st
	}
	return st
}

func (c *Coordinator) peekState(roomID string) *roomState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[roomID]
}

// load populates the state from the store on first access. An absent room
// yields empty defaults; a store failure is surfaced and leaves the state
// untouched so the next attempt retries.
func (c *Coordinator) load(ctx context.Context, st *roomState, roomID string) error {
	if st.loaded {
		return nil
	}
	roster, err := c.rooms.Roster(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	history, err := c.msgs.History(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	st.roster = roster
	st.messages = history
	st.loaded = true
	return nil
}

// Join registers the connection in the room, allocating a fresh participant
// id, and returns the current roster and history. The username is appended to
// the persisted roster if absent; re-joining with a known username succeeds
// idempotently. The updated roster is broadcast to the room.
func (c *Coordinator) Join(ctx context.Context, conn Conn, username string) (*JoinResult, error) {
	roomID := conn.RoomID()
	username = strings.TrimSpace(username)
	if roomID == "" || username == "" {
		return nil, domain.ErrInvalidRequest
	}

	st := c.state(roomID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := c.load(ctx, st, roomID); err != nil {
		return nil, err
	}

	if !containsUser(st.roster, username) {
		// Persist first: the in-memory roster must never run ahead of what
		// could not be written.
		if err := c.rooms.UpsertParticipant(ctx, roomID, username); err != nil {
			return nil, fmt.Errorf("persist roster entry: %w", err)
		}
		st.roster = append(st.roster, username)
	}

	p := &domain.Participant{
		ID:       c.nextID.Add(1),
		Username: username,
		RoomID:   roomID,
	}

	c.mu.Lock()
	c.conns[conn.ID()] = connEntry{conn: conn, participant: p}
	c.mu.Unlock()
	c.hub.Add(conn)

	res := &JoinResult{
		Participant: *p,
		Roster:      domain.RosterEntries(st.roster),
		History:     append([]domain.Message(nil), st.messages...),
	}

	c.hub.Broadcast(roomID, Event{
		Type: TypeRoster,
		Payload: RosterPayload{
			RoomID:       roomID,
			Participants: res.Roster,
		},
	})

	return res, nil
}

// Send accepts a message from a joined connection, appends it to the room
// sequence and fans it out to every live participant, sender included.
// Acceptance order under the room lock is the authoritative message order.
func (c *Coordinator) Send(ctx context.Context, connID, roomID, text string) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, domain.ErrInvalidRequest
	}

	c.mu.Lock()
	e, ok := c.conns[connID]
	c.mu.Unlock()
	if !ok || e.participant.RoomID != roomID {
		return domain.Message{}, domain.ErrNotJoined
	}

	st := c.state(roomID)
	st.mu.Lock()
	if err := c.load(ctx, st, roomID); err != nil {
		st.mu.Unlock()
		return domain.Message{}, err
	}

	msg, err := domain.NewMessage(e.participant.ID, e.participant.Username, roomID, text, c.nextTimestamp(st))
	if err != nil {
		st.mu.Unlock()
		return domain.Message{}, err
	}
	st.messages = append(st.messages, msg)
	c.hub.Broadcast(roomID, Event{Type: TypeMessage, Payload: MessageItem(msg)})
	st.mu.Unlock()

	if isObserverMention(text) && c.trigger != nil {
		c.trigger(roomID)
	}

	return msg, nil
}

// nextTimestamp keeps append order and timestamp order aligned. Caller holds
// the room lock.
func (c *Coordinator) nextTimestamp(st *roomState) time.Time {
	ts := time.Now()
	if n := len(st.messages); n > 0 && ts.Before(st.messages[n-1].Timestamp) {
		ts = st.messages[n-1].Timestamp
	}
	return ts
}

// Leave drops the connection from the registry and hub, then flushes the
// room's full message sequence to the store. Flush failures are logged and
// dropped; the disconnect path never fails. The persisted roster keeps the
// username.
func (c *Coordinator) Leave(ctx context.Context, connID string) {
	c.mu.Lock()
	e, ok := c.conns[connID]
	if ok {
		delete(c.conns, connID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	c.hub.Remove(e.conn)
	c.flushRoom(ctx, e.participant.RoomID)
}

func (c *Coordinator) flushRoom(ctx context.Context, roomID string) {
	st := c.peekState(roomID)
	if st == nil {
		return
	}

	st.mu.Lock()
	if !st.loaded {
		st.mu.Unlock()
		return
	}
	snapshot := append([]domain.Message(nil), st.messages...)
	st.mu.Unlock()

	st.flushMu.Lock()
	defer st.flushMu.Unlock()
	if err := c.msgs.Replace(ctx, roomID, snapshot); err != nil {
		slog.Warn("history flush failed", "room", roomID, "messages", len(snapshot), "err", err)
	}
}

// FlushAll writes every loaded room's history back to the store. Used on
// shutdown; best-effort.
func (c *Coordinator) FlushAll(ctx context.Context) {
	for _, roomID := range c.ActiveRooms() {
		c.flushRoom(ctx, roomID)
	}
}

// GetRoster reads the persisted roster, bypassing the in-memory mirror: the
// store is the source of truth for callers that may race a restart.
func (c *Coordinator) GetRoster(ctx context.Context, roomID string) ([]domain.RosterEntry, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidRequest
	}
	usernames, err := c.rooms.Roster(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return domain.RosterEntries(usernames), nil
}

// GetHistory returns the room's ordered message sequence: the in-memory
// sequence once a room is live, the persisted history otherwise.
func (c *Coordinator) GetHistory(ctx context.Context, roomID string) ([]domain.Message, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidRequest
	}
	if st := c.peekState(roomID); st != nil {
		st.mu.Lock()
		if st.loaded {
			out := append([]domain.Message(nil), st.messages...)
			st.mu.Unlock()
			return out, nil
		}
		st.mu.Unlock()
	}
	return c.msgs.History(ctx, roomID)
}

// ActiveRooms lists rooms with live in-memory state.
func (c *Coordinator) ActiveRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.states))
	for id := range c.states {
		out = append(out, id)
	}
	return out
}

// RoomTail returns the last n messages of a live room plus the total count.
// Used by the observer to gate and build its prompt; empty for rooms that are
// not in memory.
func (c *Coordinator) RoomTail(roomID string, n int) ([]domain.Message, int) {
	st := c.peekState(roomID)
	if st == nil {
		return nil, 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.loaded {
		return nil, 0
	}
	total := len(st.messages)
	start := total - n
	if start < 0 {
		start = 0
	}
	return append([]domain.Message(nil), st.messages[start:]...), total
}

// PostObserverMessage appends a synthesized reply from the reserved observer
// identity and broadcasts it. Returns false without appending when the room
// has no messages or the latest one is already from the observer, so the
// observer never chains on itself.
func (c *Coordinator) PostObserverMessage(roomID, text string) (domain.Message, bool) {
	st := c.peekState(roomID)
	if st == nil {
		return domain.Message{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	n := len(st.messages)
	if !st.loaded || n == 0 || st.messages[n-1].ParticipantID == domain.ObserverID {
		return domain.Message{}, false
	}

	msg, err := domain.NewObserverMessage(roomID, text, c.nextTimestamp(st))
	if err != nil {
		return domain.Message{}, false
	}
	st.messages = append(st.messages, msg)
	c.hub.Broadcast(roomID, Event{Type: TypeMessage, Payload: MessageItem(msg)})
	return msg, true
}

func containsUser(roster []string, username string) bool {
	for _, u := range roster {
		if u == username {
			return true
		}
	}
	return false
}

func isObserverMention(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "@ai")
}
