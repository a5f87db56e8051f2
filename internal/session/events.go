package session

import "github.com/parleyhq/session-service/internal/domain"

// Event types fanned out to live connections.
const (
	TypeJoined  = "joined"  // join ack: identity, roster and history snapshot
	TypeMessage = "message" // chat message
	TypeRoster  = "roster"  // roster update
	TypeError   = "error"   // connection-local error
)

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type MessagePayload struct {
	ParticipantID int64  `json:"participant_id"`
	Username      string `json:"username"`
	RoomID        string `json:"room_id"`
	Text          string `json:"text"`
	TSUnix        int64  `json:"ts_unix"`
}

type RosterPayload struct {
	RoomID       string               `json:"room_id"`
	Participants []domain.RosterEntry `json:"participants"`
}

type JoinedPayload struct {
	ParticipantID int64                `json:"participant_id"`
	Username      string               `json:"username"`
	RoomID        string               `json:"room_id"`
	Roster        []domain.RosterEntry `json:"roster"`
	History       []MessagePayload     `json:"history"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func MessageItem(m domain.Message) MessagePayload {
	return MessagePayload{
		ParticipantID: m.ParticipantID,
		Username:      m.Username,
		RoomID:        m.RoomID,
		Text:          m.Text,
		TSUnix:        m.Timestamp.Unix(),
	}
}

func HistoryItems(msgs []domain.Message) []MessagePayload {
	out := make([]MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageItem(m))
	}
	return out
}
