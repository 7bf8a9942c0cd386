package models

import (
	"time"

	"github.com/google/uuid"
)

// JSON tags are camelCase to match the registry wire format.

// Project statuses, owned by the registry.
const (
	ProjectActive   = "ACTIVE"
	ProjectInactive = "INACTIVE"
	ProjectPending  = "PENDING"
)

// Class statuses. Only FINALIZED classes are purchasable; CANCELLED never is.
const (
	ClassPending   = "PENDING"
	ClassFinalized = "FINALIZED"
	ClassCancelled = "CANCELLED"
)

// Project is a verified mitigation activity. Status and the cumulative totals
// are registry-owned; this service only reads them.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Region       string    `json:"region,omitempty"`
	Country      string    `json:"country,omitempty"`
	Methodology  string    `json:"methodology,omitempty"`
	Status       string    `json:"status"`
	TotalIssued  int64     `json:"totalIssued"`
	TotalRetired int64     `json:"totalRetired"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Class is a fungible batch of credits for one project and vintage.
// issued = retired + remaining + outstanding holder balances, as observed
// through the registry; this service never mutates issued or retired.
type Class struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Vintage   string    `json:"vintage"`
	Issued    int64     `json:"issued"`
	Retired   int64     `json:"retired"`
	Remaining int64     `json:"remaining"`
	FactorRef string    `json:"factorRef,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Available reports whether the class can currently be purchased.
func (c *Class) Available() bool {
	return c.Status == ClassFinalized && c.Remaining > 0
}

// Balance is the quantity of credits of one class held by one org. Credits are
// indivisible units; quantity never goes negative.
type Balance struct {
	OwnerOrgID string `json:"ownerOrgId"`
	ClassID    string `json:"classId"`
	Quantity   int64  `json:"quantity"`
	Class      *Class `json:"class,omitempty"`
}

// CartLine is one (class, quantity) selection. Class is a denormalized
// snapshot taken at add time for display; supply is re-validated at checkout.
type CartLine struct {
	ClassID  string `json:"classId"`
	Quantity int64  `json:"quantity"`
	Class    Class  `json:"class"`
}

// CartTotals is a pure aggregation over cart lines.
type CartTotals struct {
	LineCount     int   `json:"lineCount"`
	TotalQuantity int64 `json:"totalQuantity"`
}

// Order line outcomes.
const (
	LineSettled  = "SETTLED"
	LineRejected = "REJECTED"
	LineFailed   = "FAILED"
)

// OrderLine records the outcome of one attempted cart line. ReceiptID is set
// only for settled lines; FailureCode classifies rejected and failed ones.
type OrderLine struct {
	ClassID     string `json:"classId"`
	Quantity    int64  `json:"quantity"`
	Status      string `json:"status"`
	ReceiptID   string `json:"receiptId,omitempty"`
	FailureCode string `json:"failureCode,omitempty"`
}

// Order is an immutable record of one checkout attempt: every requested line
// plus the receipts actually obtained, in line order. Orders are append-only
// facts, never edited.
type Order struct {
	ID        uuid.UUID   `json:"id"`
	OrgID     string      `json:"orgId"`
	Lines     []OrderLine `json:"lines"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ReceiptIDs returns the receipt ids of settled lines, in line order. The
// slice may be shorter than Lines on partial settlement.
func (o *Order) ReceiptIDs() []string {
	var ids []string
	for _, l := range o.Lines {
		if l.Status == LineSettled && l.ReceiptID != "" {
			ids = append(ids, l.ReceiptID)
		}
	}
	return ids
}

// SettledCount returns how many lines of the order settled.
func (o *Order) SettledCount() int {
	n := 0
	for _, l := range o.Lines {
		if l.Status == LineSettled {
			n++
		}
	}
	return n
}

// Certificate is immutable proof of a retirement. The hashes are content
// hashes of the free-text purpose and beneficiary, never the raw text.
type Certificate struct {
	ID              string    `json:"id"`
	OwnerOrgID      string    `json:"ownerOrgId"`
	ClassID         string    `json:"classId"`
	Quantity        int64     `json:"quantity"`
	PurposeHash     string    `json:"purposeHash"`
	BeneficiaryHash string    `json:"beneficiaryHash"`
	Memo            string    `json:"memo,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Identity is the resolved caller, produced by the session layer and passed
// explicitly into settlement and retirement calls.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	OrgID string `json:"orgId"`
}
