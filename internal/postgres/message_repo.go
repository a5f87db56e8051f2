package postgres

import (
	"context"

	"github.com/parleyhq/session-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// History returns the full message sequence for a room in append order.
func (r *MessageRepository) History(ctx context.Context, roomID string) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT participant_id, username, text, created_at
		FROM room_messages
		WHERE room_id = $1
		ORDER BY seq ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m := domain.Message{RoomID: roomID}
		if err := rows.Scan(&m.ParticipantID, &m.Username, &m.Text, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Replace overwrites the persisted history of a room with the given sequence.
// Used by the flush-on-leave path; the whole swap runs in one transaction so a
// concurrent reader never sees a partially written history.
func (r *MessageRepository) Replace(ctx context.Context, roomID string, msgs []domain.Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM room_messages WHERE room_id=$1`, roomID); err != nil {
		return err
	}
	for _, m := range msgs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO room_messages (room_id, participant_id, username, text, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, roomID, m.ParticipantID, m.Username, m.Text, m.Timestamp); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
