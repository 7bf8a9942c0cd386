package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/offsetgrid/backend/internal/models"
)

// Fixture is a deterministic in-memory registry used in demo mode and tests.
// It enforces the same accounting rules the real registry does: remaining
// supply is decremented on transfer, balances are decremented on retirement,
// and issued = retired + remaining + held holds for every class.
type Fixture struct {
	mu          sync.Mutex
	projects    map[string]*models.Project
	classes     map[string]*models.Class
	users       map[string]*fixtureUser          // email -> user
	balances    map[string]map[string]int64      // orgID -> classID -> qty
	retirements map[string]*Retirement           // certificateID -> retirement
	receipts    map[string]string                // idempotency key -> receiptID
	transferErr map[string]error                 // classID -> injected failure
}

type fixtureUser struct {
	identity     models.Identity
	passwordHash []byte
}

func NewFixture() *Fixture {
	return &Fixture{
		projects:    make(map[string]*models.Project),
		classes:     make(map[string]*models.Class),
		users:       make(map[string]*fixtureUser),
		balances:    make(map[string]map[string]int64),
		retirements: make(map[string]*Retirement),
		receipts:    make(map[string]string),
		transferErr: make(map[string]error),
	}
}

var _ Port = (*Fixture)(nil)

// NewDemoFixture returns a fixture seeded with the demo marketplace: two
// projects, three classes and a buyer account (buyer@buyerco.local / demo1234).
func NewDemoFixture() *Fixture {
	f := NewFixture()
	f.AddProject(&models.Project{
		ID: "proj_001", Name: "Windward Reforestation", Region: "Pacific Northwest",
		Country: "US", Methodology: "VM0047", Status: models.ProjectActive,
		TotalIssued: 1000, CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	f.AddProject(&models.Project{
		ID: "proj_002", Name: "Delta Mangrove Restoration", Region: "Mekong Delta",
		Country: "VN", Methodology: "VM0033", Status: models.ProjectActive,
		TotalIssued: 600, CreatedAt: time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
	})
	f.AddClass(&models.Class{
		ID: "class_001", ProjectID: "proj_001", Vintage: "2023",
		Issued: 1000, Retired: 150, Remaining: 850, Status: models.ClassFinalized,
		CreatedAt: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	})
	f.AddClass(&models.Class{
		ID: "class_002", ProjectID: "proj_002", Vintage: "2024",
		Issued: 600, Retired: 0, Remaining: 600, Status: models.ClassFinalized,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	f.AddClass(&models.Class{
		ID: "class_003", ProjectID: "proj_002", Vintage: "2025",
		Issued: 0, Retired: 0, Remaining: 0, Status: models.ClassPending,
		CreatedAt: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	f.AddUser(models.Identity{
		ID: "user_001", Email: "buyer@buyerco.local", Role: "BUYER", OrgID: "org_001",
	}, "demo1234")
	return f
}

// AddProject seeds a project.
func (f *Fixture) AddProject(p *models.Project) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.projects[p.ID] = &cp
}

// AddClass seeds a class.
func (f *Fixture) AddClass(c *models.Class) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.classes[c.ID] = &cp
}

// AddUser seeds a login. The password is stored bcrypt-hashed, as the real
// registry would.
func (f *Fixture) AddUser(id models.Identity, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[strings.ToLower(id.Email)] = &fixtureUser{identity: id, passwordHash: hash}
}

// SetBalance seeds a holding directly, without going through Transfer.
func (f *Fixture) SetBalance(orgID, classID string, qty int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[orgID] == nil {
		f.balances[orgID] = make(map[string]int64)
	}
	f.balances[orgID][classID] = qty
}

// FailTransfers makes every transfer for classID fail with err until cleared
// with a nil err. Test hook.
func (f *Fixture) FailTransfers(classID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.transferErr, classID)
		return
	}
	f.transferErr[classID] = err
}

func (f *Fixture) Login(_ context.Context, email, password string) (string, *models.Identity, error) {
	f.mu.Lock()
	u, ok := f.users[strings.ToLower(email)]
	f.mu.Unlock()
	if !ok {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	id := u.identity
	return "fixture_" + uuid.New().String(), &id, nil
}

func (f *Fixture) ListProjects(_ context.Context, status string) ([]*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Project
	for _, p := range f.projects {
		if status != "" && p.Status != status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sortByID(out, func(p *models.Project) string { return p.ID })
	return out, nil
}

func (f *Fixture) GetProject(_ context.Context, id string) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *Fixture) ListClasses(_ context.Context, onlyAvailable bool) ([]*models.Class, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Class
	for _, c := range f.classes {
		if onlyAvailable && !c.Available() {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sortByID(out, func(c *models.Class) string { return c.ID })
	return out, nil
}

func (f *Fixture) GetClass(_ context.Context, id string) (*models.Class, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.classes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *Fixture) Holdings(_ context.Context, ownerOrgID string) ([]*models.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Balance
	for classID, qty := range f.balances[ownerOrgID] {
		if qty == 0 {
			continue
		}
		b := &models.Balance{OwnerOrgID: ownerOrgID, ClassID: classID, Quantity: qty}
		if c, ok := f.classes[classID]; ok {
			cp := *c
			b.Class = &cp
		}
		out = append(out, b)
	}
	sortByID(out, func(b *models.Balance) string { return b.ClassID })
	return out, nil
}

func (f *Fixture) Transfer(_ context.Context, req TransferRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.transferErr[req.ClassID]; ok {
		return "", err
	}
	// An honored idempotency key replays the original receipt instead of
	// moving credits twice.
	if req.IdempotencyKey != "" {
		if receipt, ok := f.receipts[req.IdempotencyKey]; ok {
			return receipt, nil
		}
	}

	c, ok := f.classes[req.ClassID]
	if !ok {
		return "", ErrNotFound
	}
	if req.Quantity < 1 || c.Status != models.ClassFinalized || req.Quantity > c.Remaining {
		return "", fmt.Errorf("%w: insufficient supply for class %s", ErrRejected, req.ClassID)
	}

	c.Remaining -= req.Quantity
	if f.balances[req.ToOrgID] == nil {
		f.balances[req.ToOrgID] = make(map[string]int64)
	}
	f.balances[req.ToOrgID][req.ClassID] += req.Quantity

	receipt := "rcpt_" + uuid.New().String()
	if req.IdempotencyKey != "" {
		f.receipts[req.IdempotencyKey] = receipt
	}
	return receipt, nil
}

func (f *Fixture) Retire(_ context.Context, req RetireRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.classes[req.ClassID]
	if !ok {
		return "", ErrNotFound
	}
	held := f.balances[req.OwnerOrgID][req.ClassID]
	if req.Quantity < 1 || req.Quantity > held {
		return "", fmt.Errorf("%w: insufficient balance for class %s", ErrRejected, req.ClassID)
	}

	f.balances[req.OwnerOrgID][req.ClassID] = held - req.Quantity
	c.Retired += req.Quantity
	if p, ok := f.projects[c.ProjectID]; ok {
		p.TotalRetired += req.Quantity
	}

	certID := "cert_" + uuid.New().String()
	f.retirements[certID] = &Retirement{
		ID:              "ret_" + uuid.New().String(),
		CertificateID:   certID,
		ClassID:         req.ClassID,
		Quantity:        req.Quantity,
		PurposeHash:     req.PurposeHash,
		BeneficiaryHash: req.BeneficiaryHash,
		Memo:            req.Memo,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
	}
	return certID, nil
}

func (f *Fixture) GetRetirement(_ context.Context, certificateID string) (*Retirement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.retirements[certificateID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// sortByID keeps fixture listings deterministic across runs.
func sortByID[T any](items []*T, key func(*T) string) {
	sort.Slice(items, func(i, j int) bool { return key(items[i]) < key(items[j]) })
}
