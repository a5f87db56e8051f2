package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/parleyhq/session-service/internal/domain"
	"github.com/parleyhq/session-service/internal/postgres"
)

// RoomService backs the management surface: room creation with template
// resolution, lookups and HTTP pre-joins. Live session traffic goes through
// the coordinator, not here.
type RoomService struct {
	roomRepo     *postgres.RoomRepository
	templateRepo *postgres.TemplateRepository

	publicURL string
}

func NewRoomService(roomRepo *postgres.RoomRepository, templateRepo *postgres.TemplateRepository, publicURL string) *RoomService {
	if publicURL == "" {
		publicURL = "http://localhost:3000"
	}
	return &RoomService{
		roomRepo:     roomRepo,
		templateRepo: templateRepo,
		publicURL:    strings.TrimRight(publicURL, "/"),
	}
}

// CreateRoom ensures the room exists, resolving the template with a fallback
// to the default one. When username is given the creator lands on the roster
// immediately. Creating an existing room is a no-op and still succeeds.
func (s *RoomService) CreateRoom(ctx context.Context, roomID, name, templateName, username string) (*domain.Room, error) {
	roomID = strings.TrimSpace(roomID)
	name = strings.TrimSpace(name)
	if roomID == "" || name == "" {
		return nil, domain.ErrInvalidRequest
	}

	tmpl, err := s.resolveTemplate(ctx, templateName)
	if err != nil {
		return nil, err
	}

	room := &domain.Room{
		ID:           roomID,
		Name:         name,
		TemplateName: tmpl,
		MagicLink:    s.publicURL + "/room/" + roomID,
	}
	if err := s.roomRepo.CreateIfAbsent(ctx, room); err != nil {
		return nil, fmt.Errorf("roomRepo.CreateIfAbsent: %w", err)
	}

	if username = strings.TrimSpace(username); username != "" {
		if err := s.roomRepo.UpsertParticipant(ctx, roomID, username); err != nil {
			return nil, fmt.Errorf("roomRepo.UpsertParticipant: %w", err)
		}
	}

	// Read back: the room may have existed with another template or link.
	return s.roomRepo.Get(ctx, roomID)
}

func (s *RoomService) resolveTemplate(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name != "" {
		t, err := s.templateRepo.GetByName(ctx, name)
		if err == nil {
			return t.Name, nil
		}
		if !errors.Is(err, domain.ErrTemplateNotFound) {
			return "", err
		}
	}
	t, err := s.templateRepo.GetByName(ctx, domain.DefaultTemplateName)
	if err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			return "", nil // no templates seeded; room works without one
		}
		return "", err
	}
	return t.Name, nil
}

func (s *RoomService) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	return s.roomRepo.Get(ctx, id)
}

func (s *RoomService) GetRoomByName(ctx context.Context, name string) (*domain.Room, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.ErrInvalidRequest
	}
	return s.roomRepo.GetByName(ctx, name)
}

// ListRooms returns rooms with cursor pagination.
func (s *RoomService) ListRooms(ctx context.Context, limit int, cursor string) ([]domain.Room, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	return s.roomRepo.List(ctx, limit, cursor)
}

// PreJoin puts a username on the persisted roster without a live connection,
// for callers that reserve a seat over HTTP before opening the websocket.
func (s *RoomService) PreJoin(ctx context.Context, roomID, username string) error {
	roomID = strings.TrimSpace(roomID)
	username = strings.TrimSpace(username)
	if roomID == "" || username == "" {
		return domain.ErrInvalidRequest
	}
	return s.roomRepo.UpsertParticipant(ctx, roomID, username)
}
