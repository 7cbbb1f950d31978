package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PrepVault/app/models"
	"github.com/ManuelReschke/PrepVault/app/repository"
)

type memPlans struct {
	plans []models.Plan
}

func (m *memPlans) Create(_ context.Context, plan *models.Plan) error {
	plan.ID = uint(len(m.plans) + 1)
	m.plans = append(m.plans, *plan)
	return nil
}

func (m *memPlans) GetByID(_ context.Context, id uint) (*models.Plan, error) {
	for i := range m.plans {
		if m.plans[i].ID == id {
			p := m.plans[i]
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memPlans) GetByCode(_ context.Context, code string) (*models.Plan, error) {
	for i := range m.plans {
		if m.plans[i].Code == strings.ToLower(strings.TrimSpace(code)) {
			p := m.plans[i]
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memPlans) ListActive(_ context.Context) ([]models.Plan, error) {
	var out []models.Plan
	for _, p := range m.plans {
		if p.Status == models.PlanStatusActive {
			out = append(out, p)
		}
	}
	return out, nil
}

// memPayments applies Transition under a mutex so it behaves like the single
// conditional UPDATE the SQL repository issues.
type memPayments struct {
	mu          sync.Mutex
	rows        map[uint]*models.Payment
	nextID      uint
	transitions int32
	createErr   error
}

func newMemPayments() *memPayments {
	return &memPayments{rows: map[uint]*models.Payment{}}
}

func (m *memPayments) Create(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, row := range m.rows {
		if row.GatewayOrderID == p.GatewayOrderID {
			return fmt.Errorf("duplicate gateway order id %s", p.GatewayOrderID)
		}
	}
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memPayments) GetByGatewayOrderID(_ context.Context, orderID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.GatewayOrderID == orderID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memPayments) Transition(_ context.Context, id uint, t repository.PaymentTransition) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status != t.From {
		return false, nil
	}
	row.Status = t.To
	if t.GatewayPaymentID != nil {
		row.GatewayPaymentID = t.GatewayPaymentID
	}
	if t.GatewaySignature != nil {
		row.GatewaySignature = t.GatewaySignature
	}
	if t.PaidAt != nil {
		row.PaidAt = t.PaidAt
	}
	atomic.AddInt32(&m.transitions, 1)
	return true, nil
}

func (m *memPayments) ListByUser(_ context.Context, userID uint, limit int) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payment
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPayments) byOrder(orderID string) models.Payment {
	p, err := m.GetByGatewayOrderID(context.Background(), orderID)
	if err != nil {
		return models.Payment{}
	}
	return *p
}

type memGrants struct {
	mu      sync.Mutex
	rows    map[uint]*models.AccessGrant
	applied int32
}

func newMemGrants() *memGrants {
	return &memGrants{rows: map[uint]*models.AccessGrant{}}
}

func (m *memGrants) Ensure(_ context.Context, userID uint) (*models.AccessGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[userID]
	if !ok {
		row = &models.AccessGrant{ID: uint(len(m.rows) + 1), UserID: userID}
		m.rows[userID] = row
	}
	cp := *row
	return &cp, nil
}

func (m *memGrants) Apply(_ context.Context, userID uint, u repository.GrantUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	exp := u.ExpiresAt
	switch u.Category {
	case models.CategoryArchive:
		row.ArchiveUnlocked, row.ArchiveExpiresAt = true, &exp
	case models.CategoryMaterials:
		row.MaterialsUnlocked, row.MaterialsExpiresAt = true, &exp
	case models.CategoryCombo:
		row.ComboUnlocked, row.ComboExpiresAt = true, &exp
	}
	atomic.AddInt32(&m.applied, 1)
	return nil
}

func (m *memGrants) get(userID uint) *models.AccessGrant {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[userID]
	if !ok {
		return nil
	}
	cp := *row
	return &cp
}

type memNotifications struct {
	mu   sync.Mutex
	rows []models.Notification
	err  error
}

func (m *memNotifications) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	n.ID = uint(len(m.rows) + 1)
	m.rows = append(m.rows, *n)
	return nil
}

func (m *memNotifications) ListByUser(_ context.Context, userID uint, _ int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotifications) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memEvents struct {
	mu   sync.Mutex
	rows []*models.PaymentWebhookEvent
}

func (m *memEvents) Record(_ context.Context, e *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Provider == e.Provider && row.ProviderEventID == e.ProviderEventID {
			row.Deliveries++
			cp := *row
			return false, &cp, nil
		}
	}
	cp := *e
	cp.ID = uint(len(m.rows) + 1)
	cp.Deliveries = 1
	m.rows = append(m.rows, &cp)
	out := cp
	return true, &out, nil
}

func (m *memEvents) MarkProcessed(_ context.Context, id uint, processingError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id {
			now := time.Now()
			row.ProcessedAt = &now
			row.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *memEvents) ListRecent(_ context.Context, limit int) ([]models.PaymentWebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PaymentWebhookEvent
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.rows[i])
	}
	return out, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []GatewayOrderRequest
	err      error
	amount   int64
}

func (g *fakeGateway) CreateOrder(_ context.Context, in GatewayOrderRequest) (*GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, in)
	amount := in.Amount
	if g.amount != 0 {
		amount = g.amount
	}
	return &GatewayOrder{
		ID:       fmt.Sprintf("order_test%03d", len(g.requests)),
		Entity:   "order",
		Amount:   amount,
		Currency: in.Currency,
		Receipt:  in.Receipt,
		Status:   "created",
	}, nil
}

var errBoom = errors.New("boom")

const (
	testKeyID         = "rzp_test_key"
	testKeySecret     = "key-secret"
	testWebhookSecret = "webhook-secret"
)

var testNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type harness struct {
	svc      *Service
	plans    *memPlans
	payments *memPayments
	grants   *memGrants
	notes    *memNotifications
	events   *memEvents
	gateway  *fakeGateway
}

func newHarness() *harness {
	h := &harness{
		plans: &memPlans{plans: []models.Plan{
			{ID: 1, Code: "archive", Name: "Question Archive", Category: models.CategoryArchive, PriceMinor: 0, ValidityDays: 365, Status: models.PlanStatusActive, IsFree: true},
			{ID: 2, Code: "materials", Name: "Study Materials", Category: models.CategoryMaterials, PriceMinor: 29900, ValidityDays: 180, Status: models.PlanStatusActive},
			{ID: 3, Code: "combo", Name: "Archive + Materials", Category: models.CategoryCombo, PriceMinor: 49900, ValidityDays: 365, Status: models.PlanStatusActive},
			{ID: 4, Code: "legacy", Name: "Legacy Pack", Category: models.CategoryMaterials, PriceMinor: 9900, ValidityDays: 30, Status: models.PlanStatusInactive},
		}},
		payments: newMemPayments(),
		grants:   newMemGrants(),
		notes:    &memNotifications{},
		events:   &memEvents{},
		gateway:  &fakeGateway{},
	}
	repos := &repository.Repositories{
		Plan:         h.plans,
		Payment:      h.payments,
		AccessGrant:  h.grants,
		Notification: h.notes,
		WebhookEvent: h.events,
	}
	cfg := Config{
		KeyID:         testKeyID,
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		Currency:      "INR",
	}
	h.svc = NewService(repos, h.gateway, cfg, WithClock(func() time.Time { return testNow }))
	return h
}
