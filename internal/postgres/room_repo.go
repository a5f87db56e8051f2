package postgres

import (
	"context"
	"time"

	"github.com/parleyhq/session-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	var rm domain.Room
	query := `SELECT id, name, template_name, magic_link, archived, created_at FROM rooms WHERE id=$1`
	err := r.db.QueryRow(ctx, query, id).
		Scan(&rm.ID, &rm.Name, &rm.TemplateName, &rm.MagicLink, &rm.Archived, &rm.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

func (r *RoomRepository) GetByName(ctx context.Context, name string) (*domain.Room, error) {
	var rm domain.Room
	query := `SELECT id, name, template_name, magic_link, archived, created_at FROM rooms WHERE name=$1`
	err := r.db.QueryRow(ctx, query, name).
		Scan(&rm.ID, &rm.Name, &rm.TemplateName, &rm.MagicLink, &rm.Archived, &rm.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

// CreateIfAbsent inserts the room when it does not exist yet; creating the
// same room twice is a no-op. Template and magic link are never overwritten
// once set.
func (r *RoomRepository) CreateIfAbsent(ctx context.Context, room *domain.Room) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO rooms (id, name, template_name, magic_link)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, room.ID, room.Name, room.TemplateName, room.MagicLink)
	return err
}

// UpsertParticipant appends a username to the room roster. The roster only
// grows; re-adding an existing username is a no-op.
func (r *RoomRepository) UpsertParticipant(ctx context.Context, roomID, username string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO room_roster (room_id, username)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, roomID, username)
	return err
}

// Roster returns the persisted roster in join order.
func (r *RoomRepository) Roster(ctx context.Context, roomID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT username FROM room_roster WHERE room_id=$1 ORDER BY joined_at ASC, username ASC`,
		roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

func (r *RoomRepository) List(ctx context.Context, limit int, cursorStr string) ([]domain.Room, string, error) {
	cur, err := DecodeCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}

	query := `
		SELECT id, name, template_name, magic_link, archived, created_at
		FROM rooms
		WHERE ($1::timestamptz IS NULL OR created_at < $1
		       OR (created_at = $1 AND id < $2))
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, query, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		var rm domain.Room
		if err := rows.Scan(&rm.ID, &rm.Name, &rm.TemplateName, &rm.MagicLink, &rm.Archived, &rm.CreatedAt); err != nil {
			return nil, "", err
		}
		rooms = append(rooms, rm)
	}

	var nextCursor string
	if len(rooms) == limit {
		last := rooms[len(rooms)-1]
		nextCursor, _ = EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return rooms, nextCursor, nil
}

// ArchiveStale marks rooms created before the cutoff as archived and reports
// how many were flipped.
func (r *RoomRepository) ArchiveStale(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx,
		`UPDATE rooms SET archived=true WHERE archived=false AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
