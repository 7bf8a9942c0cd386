package cart

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/offsetgrid/backend/internal/models"
)

// PostgresStore keeps carts in the carts table (session_id, lines jsonb), so
// a session's cart survives process restarts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Get(ctx context.Context, sessionID string) ([]models.CartLine, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		"SELECT lines FROM carts WHERE session_id = $1", sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var lines []models.CartLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *PostgresStore) Put(ctx context.Context, sessionID string, lines []models.CartLine) error {
	raw, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO carts (session_id, lines, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET lines = $2, updated_at = now()
	`, sessionID, raw)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM carts WHERE session_id = $1", sessionID)
	return err
}
