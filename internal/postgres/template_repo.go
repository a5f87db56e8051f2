package postgres

import (
	"context"

	"github.com/parleyhq/session-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TemplateRepository struct {
	db *pgxpool.Pool
}

func NewTemplateRepository(db *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	var t domain.Template
	err := r.db.QueryRow(ctx,
		`SELECT name, prompt FROM templates WHERE name=$1`, name).
		Scan(&t.Name, &t.Prompt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, err
	}
	return &t, nil
}

// PromptForRoom resolves the template prompt attached to a room, empty when
// the room has no template.
func (r *TemplateRepository) PromptForRoom(ctx context.Context, roomID string) (string, error) {
	var prompt string
	err := r.db.QueryRow(ctx, `
		SELECT t.prompt
		FROM rooms r
		JOIN templates t ON t.name = r.template_name
		WHERE r.id = $1
	`, roomID).Scan(&prompt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return prompt, nil
}

// Seed inserts the default templates when the table is empty.
func (r *TemplateRepository) Seed(ctx context.Context, defaults []domain.Template) error {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM templates`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, t := range defaults {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO templates (name, prompt) VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
		`, t.Name, t.Prompt); err != nil {
			return err
		}
	}
	return nil
}
