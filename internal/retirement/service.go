// Package retirement permanently retires held credits into certificates.
// Retirement is irreversible, so nothing here retries an ambiguous failure;
// the caller must re-check registry state before resubmitting.
package retirement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/offsetgrid/backend/internal/balance"
	"github.com/offsetgrid/backend/internal/models"
	"github.com/offsetgrid/backend/internal/registry"
	"github.com/offsetgrid/backend/internal/session"
)

// Attestation length caps, applied before hashing.
const (
	MaxPurposeLen     = 280
	MaxBeneficiaryLen = 120
)

var (
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrPurposeTooLong is returned when purpose exceeds MaxPurposeLen.
	ErrPurposeTooLong = errors.New("purpose exceeds maximum length")
	// ErrBeneficiaryTooLong is returned when beneficiary exceeds MaxBeneficiaryLen.
	ErrBeneficiaryTooLong = errors.New("beneficiary exceeds maximum length")
	// ErrCertificateNotFound is returned for unknown certificate ids.
	ErrCertificateNotFound = errors.New("certificate not found")
)

// Certificates is the local certificate store port; the registry remains the
// authority on retirements.
type Certificates interface {
	Create(ctx context.Context, c *models.Certificate) error
	GetByID(ctx context.Context, id string) (*models.Certificate, error)
	ListByOrg(ctx context.Context, orgID string) ([]*models.Certificate, error)
}

// EnqueueReconcileFunc schedules an async holdings reconciliation for the org.
type EnqueueReconcileFunc func(ctx context.Context, ownerOrgID string) error

type Service interface {
	Retire(ctx context.Context, identity models.Identity, classID string, quantity int64, purpose, beneficiary, memo string) (*models.Certificate, error)
	GetCertificate(ctx context.Context, certificateID string) (*models.Certificate, error)
	ListCertificates(ctx context.Context, identity models.Identity) ([]*models.Certificate, error)
}

type service struct {
	registry         registry.Port
	balances         balance.Service
	certs            Certificates
	enqueueReconcile EnqueueReconcileFunc
	log              *slog.Logger
}

func NewService(reg registry.Port, balances balance.Service, certs Certificates, enqueue EnqueueReconcileFunc, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		registry:         reg,
		balances:         balances,
		certs:            certs,
		enqueueReconcile: enqueue,
		log:              log,
	}
}

var _ Service = (*service)(nil)

// HashAttestation computes the stable content hash (SHA-256, hex) of an
// attestation text. Same input, same hash; the raw text never crosses the
// registry boundary.
func HashAttestation(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

func (s *service) Retire(ctx context.Context, identity models.Identity, classID string, quantity int64, purpose, beneficiary, memo string) (*models.Certificate, error) {
	if identity.ID == "" || identity.OrgID == "" {
		return nil, session.ErrUnauthenticated
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if len(purpose) > MaxPurposeLen {
		return nil, ErrPurposeTooLong
	}
	if len(beneficiary) > MaxBeneficiaryLen {
		return nil, ErrBeneficiaryTooLong
	}

	// Local precheck saves a doomed round trip; the registry re-validates as
	// the final authority.
	held, err := s.balances.HoldingFor(ctx, identity.OrgID, classID)
	if err != nil {
		return nil, err
	}
	if quantity > held {
		return nil, balance.ErrInsufficientBalance
	}

	purposeHash := HashAttestation(purpose)
	beneficiaryHash := HashAttestation(beneficiary)

	certID, err := s.registry.Retire(ctx, registry.RetireRequest{
		OwnerOrgID:      identity.OrgID,
		ClassID:         classID,
		Quantity:        quantity,
		PurposeHash:     purposeHash,
		BeneficiaryHash: beneficiaryHash,
		Memo:            memo,
	})
	if err != nil {
		if errors.Is(err, registry.ErrRejected) {
			return nil, balance.ErrInsufficientBalance
		}
		return nil, fmt.Errorf("registry retire: %w", err)
	}

	if err := s.balances.ApplyRetirement(ctx, identity.OrgID, classID, quantity); err != nil {
		s.log.Error("balance reconciliation after retirement failed",
			"org", identity.OrgID, "class", classID, "error", err)
	}

	cert := &models.Certificate{
		ID:              certID,
		OwnerOrgID:      identity.OrgID,
		ClassID:         classID,
		Quantity:        quantity,
		PurposeHash:     purposeHash,
		BeneficiaryHash: beneficiaryHash,
		Memo:            memo,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.certs.Create(ctx, cert); err != nil {
		s.log.Error("certificate store failed", "certificate", certID, "error", err)
	}
	if s.enqueueReconcile != nil {
		if err := s.enqueueReconcile(ctx, identity.OrgID); err != nil {
			s.log.Error("reconcile enqueue failed", "org", identity.OrgID, "error", err)
		}
	}

	s.log.Info("credits retired", "certificate", certID, "class", classID, "quantity", quantity)
	return cert, nil
}

// GetCertificate returns the local record, falling back to the registry's
// retirement lookup for certificates issued elsewhere.
func (s *service) GetCertificate(ctx context.Context, certificateID string) (*models.Certificate, error) {
	cert, err := s.certs.GetByID(ctx, certificateID)
	if err == nil {
		return cert, nil
	}
	if !errors.Is(err, ErrCertificateNotFound) {
		return nil, err
	}
	ret, err := s.registry.GetRetirement(ctx, certificateID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, ErrCertificateNotFound
		}
		return nil, err
	}
	created, _ := time.Parse(time.RFC3339, ret.CreatedAt)
	return &models.Certificate{
		ID:              ret.CertificateID,
		ClassID:         ret.ClassID,
		Quantity:        ret.Quantity,
		PurposeHash:     ret.PurposeHash,
		BeneficiaryHash: ret.BeneficiaryHash,
		Memo:            ret.Memo,
		CreatedAt:       created,
	}, nil
}

func (s *service) ListCertificates(ctx context.Context, identity models.Identity) ([]*models.Certificate, error) {
	return s.certs.ListByOrg(ctx, identity.OrgID)
}
