package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/parleyhq/session-service/internal/domain"
	"github.com/parleyhq/session-service/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Server struct {
	upgrader websocket.Upgrader
	coord    *session.Coordinator

	pingEvery time.Duration
}

func NewServer(coord *session.Coordinator) *Server {
	return &Server{
		coord: coord,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// WS endpoint: GET /ws/rooms/{id}?username=...
// Upgrading implies the join; closing the socket implies the leave.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		http.Error(w, "missing username", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, roomID)

	res, err := s.coord.Join(r.Context(), c, username)
	if err != nil {
		code := "store_unavailable"
		if errors.Is(err, domain.ErrInvalidRequest) {
			code = "invalid_request"
		}
		slog.Warn("ws join failed", "room", roomID, "username", username, "err", err)
		_ = c.Send(errorEvent(code, err.Error()))
		_ = c.Close()
		return
	}

	// Ack with identity, roster and history; the roster broadcast from Join
	// already reached everyone in the room, this conn included.
	_ = c.Send(session.Event{
		Type: session.TypeJoined,
		Payload: session.JoinedPayload{
			ParticipantID: res.Participant.ID,
			Username:      res.Participant.Username,
			RoomID:        roomID,
			Roster:        res.Roster,
			History:       session.HistoryItems(res.History),
		},
	})

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	s.coord.Leave(context.WithoutCancel(r.Context()), c.ID())

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "room", roomID, "conn", c.ID(), "err", err)
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var evt session.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}

		switch evt.Type {
		case TypeSend:
			var p SendPayload
			if decode(evt.Payload, &p) != nil {
				continue
			}
			if _, err := s.coord.Send(ctx, c.ID(), c.RoomID(), p.Text); err != nil {
				// Connection-local: the sender hears about it, nobody else.
				switch {
				case errors.Is(err, domain.ErrNotJoined):
					_ = c.Send(errorEvent("not_joined", err.Error()))
				case errors.Is(err, domain.ErrInvalidRequest):
					_ = c.Send(errorEvent("invalid_request", err.Error()))
				default:
					slog.Warn("ws send failed", "room", c.RoomID(), "conn", c.ID(), "err", err)
					_ = c.Send(errorEvent("internal", "message not accepted"))
				}
			}
		default:
			// ignore
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

type wsConn struct {
	conn   *websocket.Conn
	id     string
	roomID string
	sendMu chan struct{}
	closed chan struct{}
}

func newWsConn(c *websocket.Conn, roomID string) *wsConn {
	return &wsConn{
		conn:   c,
		id:     uuid.New().String(),
		roomID: roomID,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(evt session.Event) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(evt)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) ID() string     { return c.id }
func (c *wsConn) RoomID() string { return c.roomID }
