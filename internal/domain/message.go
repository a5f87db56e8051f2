package domain

import (
	"strings"
	"time"
)

type Message struct {
	ParticipantID int64     `db:"participant_id"`
	Username      string    `db:"username"`
	RoomID        string    `db:"room_id"`
	Text          string    `db:"text"`
	Timestamp     time.Time `db:"created_at"`
}

// NewMessage is the single construction path for messages. Malformed input is
// rejected here so nothing downstream has to re-validate shape.
func NewMessage(participantID int64, username, roomID, text string, ts time.Time) (Message, error) {
	username = strings.TrimSpace(username)
	text = strings.TrimSpace(text)
	if roomID == "" || username == "" || text == "" {
		return Message{}, ErrInvalidRequest
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	return Message{
		ParticipantID: participantID,
		Username:      username,
		RoomID:        roomID,
		Text:          text,
		Timestamp:     ts,
	}, nil
}

// NewObserverMessage builds a message authored by the reserved observer identity.
func NewObserverMessage(roomID, text string, ts time.Time) (Message, error) {
	return NewMessage(ObserverID, ObserverName, roomID, text, ts)
}
