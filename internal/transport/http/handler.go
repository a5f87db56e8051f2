package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/parleyhq/session-service/internal/domain"
	"github.com/parleyhq/session-service/internal/postgres"
	"github.com/parleyhq/session-service/internal/service"
	"github.com/parleyhq/session-service/internal/session"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	roomSvc *service.RoomService
	coord   *session.Coordinator
}

func NewHandler(roomSvc *service.RoomService, coord *session.Coordinator) *Handler {
	return &Handler{roomSvc: roomSvc, coord: coord}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /api/rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	room, err := h.roomSvc.CreateRoom(r.Context(), req.RoomID, req.RoomName, req.TemplateName, req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "room_id and room_name required"})
			return
		}
		slog.Error("handler.CreateRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, roomItem(room))
}

// GET /api/rooms?limit=&cursor=
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	cursor := r.URL.Query().Get("cursor")

	rooms, next, err := h.roomSvc.ListRooms(r.Context(), limit, cursor)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.ListRooms:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(rooms)), NextCursor: next}
	for i := range rooms {
		resp.Items = append(resp.Items, roomItem(&rooms[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /api/rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	room, err := h.roomSvc.GetRoom(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		slog.Error("handler.GetRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, roomItem(room))
}

// GET /api/room-by-name?name=
func (h *Handler) RoomByName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	room, err := h.roomSvc.GetRoomByName(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "name required"})
		case errors.Is(err, domain.ErrRoomNotFound):
			writeJSON(w, http.StatusOK, RoomByNameResponse{Exists: false})
		default:
			slog.Error("handler.RoomByName:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, RoomByNameResponse{
		Exists:    true,
		RoomID:    room.ID,
		MagicLink: room.MagicLink,
	})
}

// POST /api/rooms/{id}/join adds a username to the roster without a live connection.
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	if err := h.roomSvc.PreJoin(r.Context(), roomID, req.Username); err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "room id and username required"})
			return
		}
		slog.Error("handler.JoinRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

// GET /api/rooms/{id}/participants reads the persisted roster (store as source of truth).
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	roster, err := h.coord.GetRoster(r.Context(), roomID)
	if err != nil {
		slog.Error("handler.GetParticipants:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if roster == nil {
		roster = []domain.RosterEntry{}
	}

	writeJSON(w, http.StatusOK, ParticipantsResponse{RoomID: roomID, Participants: roster})
}

// GET /api/rooms/{id}/messages
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	msgs, err := h.coord.GetHistory(r.Context(), roomID)
	if err != nil {
		slog.Error("handler.GetMessages:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := MessagesResponse{RoomID: roomID, Messages: make([]MessageItem, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, MessageItem{
			ParticipantID: m.ParticipantID,
			Username:      m.Username,
			Text:          m.Text,
			Timestamp:     m.Timestamp.Truncate(time.Millisecond),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
