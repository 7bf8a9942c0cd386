package retirement

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/offsetgrid/backend/internal/models"
)

// PostgresCertificates keeps certificates in the certificates table. Rows are
// insert-only; certificates are never amended or revoked.
type PostgresCertificates struct {
	pool *pgxpool.Pool
}

func NewPostgresCertificates(pool *pgxpool.Pool) *PostgresCertificates {
	return &PostgresCertificates{pool: pool}
}

var _ Certificates = (*PostgresCertificates)(nil)

func (r *PostgresCertificates) Create(ctx context.Context, c *models.Certificate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO certificates (id, owner_org_id, class_id, quantity, purpose_hash, beneficiary_hash, memo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.OwnerOrgID, c.ClassID, c.Quantity, c.PurposeHash, c.BeneficiaryHash, c.Memo, c.CreatedAt)
	return err
}

func (r *PostgresCertificates) GetByID(ctx context.Context, id string) (*models.Certificate, error) {
	var c models.Certificate
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_org_id, class_id, quantity, purpose_hash, beneficiary_hash, memo, created_at
		FROM certificates WHERE id = $1
	`, id).Scan(&c.ID, &c.OwnerOrgID, &c.ClassID, &c.Quantity, &c.PurposeHash, &c.BeneficiaryHash, &c.Memo, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCertificateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresCertificates) ListByOrg(ctx context.Context, orgID string) ([]*models.Certificate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_org_id, class_id, quantity, purpose_hash, beneficiary_hash, memo, created_at
		FROM certificates WHERE owner_org_id = $1 ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Certificate
	for rows.Next() {
		var c models.Certificate
		if err := rows.Scan(&c.ID, &c.OwnerOrgID, &c.ClassID, &c.Quantity, &c.PurposeHash, &c.BeneficiaryHash, &c.Memo, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}
