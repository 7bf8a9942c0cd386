package checkout

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/offsetgrid/backend/internal/models"
)

// PostgresOrders keeps orders in the orders table
// (id uuid, org_id, lines jsonb, created_at). Rows are never updated.
type PostgresOrders struct {
	pool *pgxpool.Pool
}

func NewPostgresOrders(pool *pgxpool.Pool) *PostgresOrders {
	return &PostgresOrders{pool: pool}
}

var _ Orders = (*PostgresOrders)(nil)

func (r *PostgresOrders) Create(ctx context.Context, o *models.Order) error {
	raw, err := json.Marshal(o.Lines)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO orders (id, org_id, lines, created_at) VALUES ($1, $2, $3, $4)
	`, o.ID, o.OrgID, raw, o.CreatedAt)
	return err
}

func (r *PostgresOrders) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, org_id, lines, created_at FROM orders WHERE id = $1
	`, id).Scan(&o.ID, &o.OrgID, &raw, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &o.Lines); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PostgresOrders) ListByOrg(ctx context.Context, orgID string) ([]*models.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, lines, created_at FROM orders
		WHERE org_id = $1 ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Order
	for rows.Next() {
		var o models.Order
		var raw []byte
		if err := rows.Scan(&o.ID, &o.OrgID, &raw, &o.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &o.Lines); err != nil {
			return nil, err
		}
		list = append(list, &o)
	}
	return list, rows.Err()
}
