// Package registry is the boundary to the external carbon credit registry,
// the source of truth for issuance, ownership and retirement. This service is
// a client and reconciler of that ledger, never the ledger of record.
package registry

import (
	"context"
	"errors"

	"github.com/offsetgrid/backend/internal/models"
)

var (
	// ErrNotFound is returned for unknown projects, classes and certificates.
	ErrNotFound = errors.New("registry: not found")
	// ErrUnavailable is returned for transport-level failures (network error,
	// timeout, 5xx). Callers must treat the outcome of the attempted mutation
	// as unknown.
	ErrUnavailable = errors.New("registry: unavailable")
	// ErrInvalidCredentials is returned by Login for a bad email/password pair.
	ErrInvalidCredentials = errors.New("registry: invalid credentials")
	// ErrRejected is returned when the registry refuses a transfer or
	// retirement outright (insufficient supply or balance on its side).
	ErrRejected = errors.New("registry: request rejected")
)

// TransferRequest moves credits from the registry pool to a buyer org.
// IdempotencyKey is client-derived; the registry is expected to honor it, but
// callers must not assume it does.
type TransferRequest struct {
	ToOrgID        string `json:"toOrgId"`
	ClassID        string `json:"classId"`
	Quantity       int64  `json:"quantity"`
	IdempotencyKey string `json:"-"`
}

// RetireRequest permanently retires held credits. Only content hashes of the
// purpose and beneficiary cross this boundary, never the raw text. OwnerOrgID
// is resolved from the bearer token by the network registry; the fixture needs
// it explicitly.
type RetireRequest struct {
	OwnerOrgID      string `json:"-"`
	ClassID         string `json:"classId"`
	Quantity        int64  `json:"quantity"`
	PurposeHash     string `json:"purposeHash"`
	BeneficiaryHash string `json:"beneficiaryHash"`
	Memo            string `json:"memo,omitempty"`
}

// Retirement is the registry's record of a retirement event.
type Retirement struct {
	ID              string `json:"id"`
	CertificateID   string `json:"certificateId"`
	ClassID         string `json:"classId"`
	Quantity        int64  `json:"quantity"`
	PurposeHash     string `json:"purposeHash"`
	BeneficiaryHash string `json:"beneficiaryHash"`
	Memo            string `json:"memo,omitempty"`
	CreatedAt       string `json:"createdAt"`
}

// Port is the registry capability. Two implementations exist: Client (network)
// and Fixture (deterministic in-memory). The variant is chosen once at wiring
// time; business logic never branches on it.
type Port interface {
	Login(ctx context.Context, email, password string) (token string, user *models.Identity, err error)

	ListProjects(ctx context.Context, status string) ([]*models.Project, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListClasses(ctx context.Context, onlyAvailable bool) ([]*models.Class, error)
	GetClass(ctx context.Context, id string) (*models.Class, error)

	Holdings(ctx context.Context, ownerOrgID string) ([]*models.Balance, error)
	Transfer(ctx context.Context, req TransferRequest) (receiptID string, err error)
	Retire(ctx context.Context, req RetireRequest) (certificateID string, err error)
	GetRetirement(ctx context.Context, certificateID string) (*Retirement, error)
}
