package http

import (
	"time"

	"github.com/parleyhq/session-service/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateRoomRequest struct {
	RoomID       string `json:"room_id"`
	RoomName     string `json:"room_name"`
	TemplateName string `json:"template_name,omitempty"`
	Username     string `json:"username,omitempty"`
}

type RoomItem struct {
	ID           string    `json:"room_id"`
	Name         string    `json:"name"`
	TemplateName string    `json:"template_name,omitempty"`
	MagicLink    string    `json:"magic_link,omitempty"`
	Archived     bool      `json:"archived"`
	CreatedAt    time.Time `json:"created_at"`
}

type RoomsListResponse struct {
	Items      []RoomItem `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type RoomByNameResponse struct {
	Exists    bool   `json:"exists"`
	RoomID    string `json:"room_id,omitempty"`
	MagicLink string `json:"magic_link,omitempty"`
}

type JoinRequest struct {
	Username string `json:"username"`
}

type ParticipantsResponse struct {
	RoomID       string               `json:"room_id"`
	Participants []domain.RosterEntry `json:"participants"`
}

type MessageItem struct {
	ParticipantID int64     `json:"participant_id"`
	Username      string    `json:"username"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
}

type MessagesResponse struct {
	RoomID   string        `json:"room_id"`
	Messages []MessageItem `json:"messages"`
}

func roomItem(r *domain.Room) RoomItem {
	return RoomItem{
		ID:           r.ID,
		Name:         r.Name,
		TemplateName: r.TemplateName,
		MagicLink:    r.MagicLink,
		Archived:     r.Archived,
		CreatedAt:    r.CreatedAt,
	}
}
