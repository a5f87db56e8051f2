package ws

import (
	"encoding/json"

	"github.com/parleyhq/session-service/internal/session"
)

// Inbound event types. Outbound shapes live in the session package; the
// transport only serializes them.
const (
	TypeSend = "send" // chat message from the client
)

type SendPayload struct {
	Text string `json:"text"`
}

func decode(payload any, dst any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

func errorEvent(code, msg string) session.Event {
	return session.Event{
		Type:    session.TypeError,
		Payload: session.ErrorPayload{Code: code, Message: msg},
	}
}
