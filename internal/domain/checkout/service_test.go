package checkout

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/niranji/storefront-api/internal/domain/order"
)

// --- Mock implementations ---

type stubVerifier struct {
	ok bool
}

func (s *stubVerifier) Verify(_, _, _ string) bool { return s.ok }

type mockOrderRepo struct {
	mu sync.Mutex

	created    []order.Order
	createErrs []error
	triedIDs   []string

	byPayment map[string]*order.Order
	findErr   error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{byPayment: make(map[string]*order.Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.triedIDs = append(m.triedIDs, o.OrderID)
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	cp := *o
	m.created = append(m.created, cp)
	m.byPayment[o.PaymentID] = &cp
	return nil
}

func (m *mockOrderRepo) FindByPaymentID(_ context.Context, paymentID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}
	if o, ok := m.byPayment[paymentID]; ok {
		return o, nil
	}
	return nil, order.ErrNotFound
}

func (m *mockOrderRepo) UpdateStatus(context.Context, string, order.Status) (*order.Order, error) {
	return nil, order.ErrNotFound
}

func (m *mockOrderRepo) FindByOrderID(context.Context, string) (*order.Order, error) {
	return nil, order.ErrNotFound
}

func (m *mockOrderRepo) FindByUser(context.Context, string) ([]order.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) FindByEmail(context.Context, string) ([]order.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

type mockNotifier struct {
	mu        sync.Mutex
	calls     []Role
	errByRole map[Role]error
	// waitCtx makes Notify block until the dispatch context expires,
	// simulating a hung transport.
	waitCtx bool
}

func (m *mockNotifier) Notify(ctx context.Context, role Role, _ *order.Order) error {
	if m.waitCtx {
		<-ctx.Done()
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, role)
	return m.errByRole[role]
}

func (m *mockNotifier) roles() map[Role]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Role]int)
	for _, r := range m.calls {
		out[r]++
	}
	return out
}

// --- Helpers ---

const testUserID = "507f1f77bcf86cd799439011"

var orderIDPattern = regexp.MustCompile(`^NIRANJI-\d{8}-\d{4}$`)

func validRequest() Request {
	return Request{
		PaymentID:      "pay_1",
		GatewayOrderID: "order_1",
		Signature:      "aabbcc",
		UserID:         testUserID,
		Email:          "a@b.com",
		Shipping:       order.Address{Name: "A"},
		Cart: []order.CartLine{{
			ProductID:    "green-tea-classic",
			Name:         "Tea",
			SelectedSize: order.SizeTier{Size: "250g", Price: decimal.NewFromInt(199)},
			Quantity:     2,
		}},
		Total: decimal.NewFromInt(398),
	}
}

func newTestService(repo *mockOrderRepo, notifier Notifier, ok bool) *Service {
	idgen := order.NewIDGenerator("NIRANJI")
	return NewService(&stubVerifier{ok: ok}, idgen, repo, notifier, time.Second)
}

// --- Tests ---

func TestFinalizeOrder_InvalidUserID(t *testing.T) {
	repo := newMockOrderRepo()
	notifier := &mockNotifier{}
	svc := newTestService(repo, notifier, true)

	for _, userID := range []string{"", "short", "507F1F77BCF86CD799439011", "zzzzzzzzzzzzzzzzzzzzzzzz"} {
		req := validRequest()
		req.UserID = userID

		_, err := svc.FinalizeOrder(context.Background(), req)

		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid, "userID %q", userID)
		assert.Equal(t, "userId", invalid.Field)
	}
	assert.Zero(t, repo.createdCount())
	assert.Empty(t, notifier.roles())
}

func TestFinalizeOrder_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		field  string
	}{
		{"no payment id", func(r *Request) { r.PaymentID = "" }, "paymentId"},
		{"no gateway order id", func(r *Request) { r.GatewayOrderID = "" }, "gatewayOrderId"},
		{"no signature", func(r *Request) { r.Signature = "" }, "signature"},
		{"no email", func(r *Request) { r.Email = "" }, "email"},
		{"empty cart", func(r *Request) { r.Cart = nil }, "cart"},
		{"zero quantity", func(r *Request) { r.Cart[0].Quantity = 0 }, "cart"},
		{"negative price", func(r *Request) { r.Cart[0].SelectedSize.Price = decimal.NewFromInt(-1) }, "cart"},
		{"negative total", func(r *Request) { r.Total = decimal.NewFromInt(-398) }, "total"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockOrderRepo()
			svc := newTestService(repo, &mockNotifier{}, true)

			req := validRequest()
			tt.mutate(&req)

			_, err := svc.FinalizeOrder(context.Background(), req)

			var invalid *InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
			assert.Zero(t, repo.createdCount())
		})
	}
}

func TestFinalizeOrder_SignatureMismatch(t *testing.T) {
	repo := newMockOrderRepo()
	notifier := &mockNotifier{}
	svc := newTestService(repo, notifier, false)

	core, logs := observer.New(zap.WarnLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	_, err := svc.FinalizeOrder(ctx, validRequest())

	require.ErrorIs(t, err, ErrSignatureMismatch)
	assert.Zero(t, repo.createdCount(), "nothing may be persisted on a bad signature")
	assert.Empty(t, notifier.roles(), "nothing may be notified on a bad signature")
	assert.Equal(t, 1, logs.FilterMessage("Payment signature mismatch").Len())
}

func TestFinalizeOrder_Success(t *testing.T) {
	repo := newMockOrderRepo()
	notifier := &mockNotifier{}
	svc := newTestService(repo, notifier, true)

	o, err := svc.FinalizeOrder(context.Background(), validRequest())

	require.NoError(t, err)
	require.Equal(t, 1, repo.createdCount())

	stored := repo.created[0]
	assert.Regexp(t, orderIDPattern, o.OrderID)
	assert.Equal(t, stored.OrderID, o.OrderID)
	assert.Equal(t, order.StatusPaid, stored.Status)
	assert.Equal(t, "pay_1", stored.PaymentID)
	assert.Equal(t, "order_1", stored.GatewayOrderID)
	assert.Equal(t, testUserID, stored.UserID)
	assert.True(t, decimal.NewFromInt(398).Equal(stored.Total))
	require.Len(t, stored.Cart, 1)

	roles := notifier.roles()
	assert.Equal(t, 1, roles[RoleCustomer])
	assert.Equal(t, 1, roles[RoleOperator])
}

func TestFinalizeOrder_NotificationFailureIsNotFatal(t *testing.T) {
	repo := newMockOrderRepo()
	notifier := &mockNotifier{errByRole: map[Role]error{
		RoleCustomer: errors.New("smtp down"),
		RoleOperator: errors.New("smtp down"),
	}}
	svc := newTestService(repo, notifier, true)

	core, logs := observer.New(zap.ErrorLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	o, err := svc.FinalizeOrder(ctx, validRequest())

	require.NoError(t, err, "notification failure must not fail the checkout")
	assert.Regexp(t, orderIDPattern, o.OrderID)
	assert.Equal(t, 1, repo.createdCount())

	// Both roles attempted, both failures independently observable.
	roles := notifier.roles()
	assert.Equal(t, 1, roles[RoleCustomer])
	assert.Equal(t, 1, roles[RoleOperator])
	assert.Equal(t, 2, logs.FilterMessage("Order notification failed").Len())
}

func TestFinalizeOrder_HungNotifierIsBounded(t *testing.T) {
	repo := newMockOrderRepo()
	notifier := &mockNotifier{waitCtx: true}
	idgen := order.NewIDGenerator("NIRANJI")
	svc := NewService(&stubVerifier{ok: true}, idgen, repo, notifier, 50*time.Millisecond)

	start := time.Now()
	_, err := svc.FinalizeOrder(context.Background(), validRequest())

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "dispatch must be bounded by the notify timeout")
}

func TestFinalizeOrder_OrderIDCollisionRetries(t *testing.T) {
	repo := newMockOrderRepo()
	repo.createErrs = []error{order.ErrDuplicateOrderID, order.ErrDuplicateOrderID}
	notifier := &mockNotifier{}

	seq := 0
	idgen := order.NewIDGenerator("NIRANJI", order.WithRand(func(int) int {
		seq++
		return seq
	}))
	svc := NewService(&stubVerifier{ok: true}, idgen, repo, notifier, time.Second)

	o, err := svc.FinalizeOrder(context.Background(), validRequest())

	require.NoError(t, err)
	require.Len(t, repo.triedIDs, 3)
	assert.NotEqual(t, repo.triedIDs[0], repo.triedIDs[1])
	assert.NotEqual(t, repo.triedIDs[1], repo.triedIDs[2])
	assert.Equal(t, repo.triedIDs[2], o.OrderID)
	assert.Equal(t, 1, repo.createdCount())
}

func TestFinalizeOrder_OrderIDCollisionExhausted(t *testing.T) {
	repo := newMockOrderRepo()
	for range maxIDAttempts {
		repo.createErrs = append(repo.createErrs, order.ErrDuplicateOrderID)
	}
	notifier := &mockNotifier{}
	svc := newTestService(repo, notifier, true)

	_, err := svc.FinalizeOrder(context.Background(), validRequest())

	require.ErrorIs(t, err, order.ErrDuplicateOrderID)
	assert.Len(t, repo.triedIDs, maxIDAttempts)
	assert.Zero(t, repo.createdCount())
	assert.Empty(t, notifier.roles(), "no notification without a persisted order")
}

func TestFinalizeOrder_ReplayedPaymentReturnsExistingOrder(t *testing.T) {
	repo := newMockOrderRepo()
	notifier := &mockNotifier{}
	svc := newTestService(repo, notifier, true)

	first, err := svc.FinalizeOrder(context.Background(), validRequest())
	require.NoError(t, err)

	// Same payment id, freshly computed signature: a replayed webhook.
	second, err := svc.FinalizeOrder(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, 1, repo.createdCount(), "a replay must not create a second order")

	roles := notifier.roles()
	assert.Equal(t, 1, roles[RoleCustomer], "a replay must not re-notify")
	assert.Equal(t, 1, roles[RoleOperator], "a replay must not re-notify")
}

func TestFinalizeOrder_ConcurrentReplayRace(t *testing.T) {
	// The bloom filter misses (first sighting), the insert loses the race
	// on the payment_id constraint, and finalize resolves to the winner's
	// order without notifying again.
	repo := newMockOrderRepo()
	existing := &order.Order{OrderID: "NIRANJI-05032026-1234", PaymentID: "pay_1", Status: order.StatusPaid}
	repo.byPayment["pay_1"] = existing
	repo.createErrs = []error{order.ErrDuplicatePayment}
	notifier := &mockNotifier{}
	svc := newTestService(repo, notifier, true)

	o, err := svc.FinalizeOrder(context.Background(), validRequest())

	require.NoError(t, err)
	assert.Equal(t, "NIRANJI-05032026-1234", o.OrderID)
	assert.Zero(t, repo.createdCount())
	assert.Empty(t, notifier.roles(), "the race winner already notified")
}

func TestFinalizeOrder_PersistenceFailure(t *testing.T) {
	repo := newMockOrderRepo()
	repo.createErrs = []error{errors.New("db write failed")}
	notifier := &mockNotifier{}
	svc := newTestService(repo, notifier, true)

	_, err := svc.FinalizeOrder(context.Background(), validRequest())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Empty(t, notifier.roles())
}

func TestFinalizeOrder_TotalMismatchIsLoggedNotRejected(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(repo, &mockNotifier{}, true)

	core, logs := observer.New(zap.WarnLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	req := validRequest()
	req.Total = decimal.NewFromInt(999)

	o, err := svc.FinalizeOrder(ctx, req)

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(999).Equal(o.Total), "client total is trusted")
	assert.Equal(t, 1, logs.FilterMessage("Client total differs from cart sum").Len())
}
