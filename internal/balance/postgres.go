package balance

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/offsetgrid/backend/internal/models"
)

// PostgresStore keeps holdings in the balances table
// (owner_org_id, class_id, quantity), one row per held class.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Holdings(ctx context.Context, ownerOrgID string) ([]*models.Balance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT owner_org_id, class_id, quantity
		FROM balances WHERE owner_org_id = $1 AND quantity > 0
		ORDER BY class_id
	`, ownerOrgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Balance
	for rows.Next() {
		var b models.Balance
		if err := rows.Scan(&b.OwnerOrgID, &b.ClassID, &b.Quantity); err != nil {
			return nil, err
		}
		list = append(list, &b)
	}
	return list, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, ownerOrgID, classID string) (int64, error) {
	var qty int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM balances
		WHERE owner_org_id = $1 AND class_id = $2
	`, ownerOrgID, classID).Scan(&qty)
	return qty, err
}

func (s *PostgresStore) Add(ctx context.Context, ownerOrgID, classID string, delta int64) (int64, error) {
	cur, err := s.Get(ctx, ownerOrgID, classID)
	if err != nil {
		return 0, err
	}
	if cur+delta < 0 {
		return 0, ErrInsufficientBalance
	}
	var qty int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO balances (owner_org_id, class_id, quantity, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (owner_org_id, class_id)
		DO UPDATE SET quantity = balances.quantity + $3, updated_at = now()
		RETURNING quantity
	`, ownerOrgID, classID, delta).Scan(&qty)
	if err != nil {
		return 0, err
	}
	return qty, nil
}

func (s *PostgresStore) ReplaceAll(ctx context.Context, ownerOrgID string, balances []*models.Balance) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM balances WHERE owner_org_id = $1", ownerOrgID); err != nil {
		return err
	}
	for _, b := range balances {
		if _, err := tx.Exec(ctx, `
			INSERT INTO balances (owner_org_id, class_id, quantity, updated_at)
			VALUES ($1, $2, $3, now())
		`, ownerOrgID, b.ClassID, b.Quantity); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
