package order_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/storefront-orders/internal/notify"
	"github.com/vasiliy-maslov/storefront-orders/internal/order"
	"github.com/vasiliy-maslov/storefront-orders/internal/ordercode"
	"github.com/vasiliy-maslov/storefront-orders/internal/settings"
	"github.com/vasiliy-maslov/storefront-orders/internal/status"
)

type fakeProduct struct {
	name  string
	image string
	stock int
}

// fakeRepo mirrors the repository's transactional semantics in memory: order
// numbers are unique, stock decrements are conditional, and a failed item
// leaves nothing behind.
type fakeRepo struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*order.Order
	history  map[uuid.UUID][]order.StatusHistory
	products map[uuid.UUID]*fakeProduct

	createErr error // injected, returned before any state change
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:   make(map[uuid.UUID]*order.Order),
		history:  make(map[uuid.UUID][]order.StatusHistory),
		products: make(map[uuid.UUID]*fakeProduct),
	}
}

func (r *fakeRepo) addProduct(t *testing.T, name string, stock int) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	r.products[id] = &fakeProduct{name: name, image: name + ".jpg", stock: stock}
	return id
}

func (r *fakeRepo) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}

	for _, existing := range r.orders {
		if existing.OrderNumber == o.OrderNumber {
			return order.ErrCodeConflict
		}
	}

	// Validate every item before touching stock, so a failure is atomic.
	for _, item := range o.Items {
		p, ok := r.products[item.ProductID]
		if !ok {
			return fmt.Errorf("fake: product %s: %w", item.ProductID, order.ErrProductNotFound)
		}
		if p.stock < item.Quantity {
			return &order.InsufficientStockError{ProductID: item.ProductID, Requested: item.Quantity}
		}
	}

	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		o.ID = id
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	for i := range o.Items {
		item := &o.Items[i]
		p := r.products[item.ProductID]
		p.stock -= item.Quantity
		item.ProductName = p.name
		item.ProductImage = p.image
		item.OrderID = o.ID
	}

	stored := *o
	stored.Items = append([]order.OrderItem(nil), o.Items...)
	r.orders[o.ID] = &stored
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	out := *o
	out.Items = append([]order.OrderItem(nil), o.Items...)
	out.History = append([]order.StatusHistory(nil), r.history[id]...)
	return &out, nil
}

func (r *fakeRepo) GetByNumber(_ context.Context, number string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.orders {
		if o.OrderNumber == number {
			out := *o
			return &out, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (r *fakeRepo) List(_ context.Context, filter order.ListFilter) ([]order.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []order.Order
	for _, o := range r.orders {
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		if filter.PaymentStatus != nil && o.PaymentStatus != *filter.PaymentStatus {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (r *fakeRepo) Update(_ context.Context, id uuid.UUID, patch order.UpdatePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}

	o.UpdatedAt = time.Now().UTC()
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	if patch.PaymentStatus != nil {
		o.PaymentStatus = *patch.PaymentStatus
	}
	if patch.ShippingCompany != nil {
		o.ShippingCompany = *patch.ShippingCompany
	}
	if patch.ShippingMethod != nil {
		o.ShippingMethod = *patch.ShippingMethod
	}
	if patch.EstimatedDelivery != nil {
		o.EstimatedDelivery = patch.EstimatedDelivery
	}
	if patch.ActualDeliveryDate != nil {
		o.ActualDeliveryDate = patch.ActualDeliveryDate
	}
	if patch.ShippingCost != nil {
		o.ShippingCost = *patch.ShippingCost
	}
	if patch.TaxAmount != nil {
		o.TaxAmount = *patch.TaxAmount
	}
	if patch.DiscountAmount != nil {
		o.DiscountAmount = *patch.DiscountAmount
	}
	if patch.AdminNotes != nil {
		o.AdminNotes = *patch.AdminNotes
	}
	if patch.ShippedAt != nil {
		o.ShippedAt = patch.ShippedAt
	}
	if patch.CompletedAt != nil {
		o.CompletedAt = patch.CompletedAt
	}

	if patch.Status != nil && *patch.Status != patch.PrevStatus {
		histID, err := uuid.NewV4()
		if err != nil {
			return err
		}
		r.history[id] = append(r.history[id], order.StatusHistory{
			ID:        histID,
			OrderID:   id,
			OldStatus: patch.PrevStatus,
			NewStatus: *patch.Status,
			ChangedAt: time.Now().UTC(),
		})
	}
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return order.ErrOrderNotFound
	}
	delete(r.orders, id)
	delete(r.history, id)
	return nil
}

func (r *fakeRepo) ProductStock(_ context.Context, productID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return 0, order.ErrProductNotFound
	}
	return p.stock, nil
}

type fakeFallback struct {
	mu     sync.Mutex
	orders []order.Order
}

func (f *fakeFallback) Save(_ context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, *o)
	return nil
}

func (f *fakeFallback) List(_ context.Context) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]order.Order(nil), f.orders...)
	for i := range out {
		out[i].Degraded = true
	}
	return out, nil
}

type failingNotifier struct {
	calls int
}

func (n *failingNotifier) Notify(context.Context, notify.Event) error {
	n.calls++
	return errors.New("sink unavailable")
}

// stubGenerator hands out a fixed sequence of codes.
type stubGenerator struct {
	codes []string
	next  int
}

func (g *stubGenerator) Generate() (string, error) {
	if g.next >= len(g.codes) {
		return "", errors.New("stub exhausted")
	}
	code := g.codes[g.next]
	g.next++
	return code, nil
}

func testSettings() settings.Service {
	return settings.Static(settings.ShippingDefaults{Cost: 20, CompanyName: "Falcon Express"})
}

func newTestService(repo order.Repository) order.Service {
	return order.NewService(repo, ordercode.NewGenerator(), testSettings(), notify.Nop(), nil)
}

func validInput(productID uuid.UUID) order.CreateOrderInput {
	return order.CreateOrderInput{
		CustomerName:   "Omar Khaled",
		CustomerPhone:  "+20100000000",
		DeliveryMethod: order.DeliveryShipping,
		Address:        "12 Nile St",
		Governorate:    "Cairo",
		PaymentMethod:  "cash_on_delivery",
		Items: []order.CreateItemInput{
			{ProductID: productID, Quantity: 2, Price: 100},
		},
	}
}

func TestService_CreateOrder_Validation(t *testing.T) {
	repo := newFakeRepo()
	productID := repo.addProduct(t, "Mug", 10)
	svc := newTestService(repo)

	branchID, err := uuid.NewV4()
	require.NoError(t, err)

	tests := []struct {
		name      string
		mutate    func(in *order.CreateOrderInput)
		wantField string
	}{
		{"missing_customer_name", func(in *order.CreateOrderInput) { in.CustomerName = "" }, "customer_name"},
		{"missing_customer_phone", func(in *order.CreateOrderInput) { in.CustomerPhone = "" }, "customer_phone"},
		{"bad_delivery_method", func(in *order.CreateOrderInput) { in.DeliveryMethod = "drone" }, "delivery_method"},
		{"shipping_without_address", func(in *order.CreateOrderInput) { in.Address = "" }, "address"},
		{"shipping_without_governorate", func(in *order.CreateOrderInput) { in.Governorate = "" }, "governorate"},
		{"pickup_without_branch", func(in *order.CreateOrderInput) {
			in.DeliveryMethod = order.DeliveryPickup
			in.Address = ""
			in.Governorate = ""
			in.BranchID = nil
		}, "branch_id"},
		{"missing_payment_method", func(in *order.CreateOrderInput) { in.PaymentMethod = "" }, "payment_method"},
		{"empty_items", func(in *order.CreateOrderInput) { in.Items = nil }, "items"},
		{"zero_quantity", func(in *order.CreateOrderInput) { in.Items[0].Quantity = 0 }, "items"},
		{"negative_price", func(in *order.CreateOrderInput) { in.Items[0].Price = -1 }, "items"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput(productID)
			in.BranchID = &branchID
			tt.mutate(&in)

			_, err := svc.CreateOrder(context.Background(), in)
			var validationErr *order.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantField, validationErr.Field)
		})
	}
}

func TestService_CreateOrder_ComputesTotals(t *testing.T) {
	repo := newFakeRepo()
	mugID := repo.addProduct(t, "Mug", 10)
	coasterID := repo.addProduct(t, "Coaster", 10)
	svc := newTestService(repo)

	in := validInput(mugID)
	in.Items = []order.CreateItemInput{
		{ProductID: mugID, Quantity: 2, Price: 100},
		{ProductID: coasterID, Quantity: 1, Price: 50},
	}

	created, err := svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)

	// 100*2 + 50*1 + default shipping 20.
	assert.Equal(t, 250.0, created.Total)
	assert.Equal(t, 20.0, created.ShippingCost)
	assert.Equal(t, "Falcon Express", created.ShippingCompany)
	assert.Equal(t, status.OrderPending, created.Status)
	assert.Equal(t, status.PaymentPending, created.PaymentStatus)
	assert.Len(t, created.OrderNumber, ordercode.Length)

	require.Len(t, created.Items, 2)
	assert.Equal(t, 200.0, created.Items[0].TotalPrice)
	assert.Equal(t, "Mug", created.Items[0].ProductName)

	stock, err := repo.ProductStock(context.Background(), mugID)
	require.NoError(t, err)
	assert.Equal(t, 8, stock)
}

func TestService_CreateOrder_ExplicitShippingCostWins(t *testing.T) {
	repo := newFakeRepo()
	productID := repo.addProduct(t, "Mug", 10)
	svc := newTestService(repo)

	in := validInput(productID)
	cost := 35.0
	in.ShippingCost = &cost

	created, err := svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 35.0, created.ShippingCost)
	assert.Equal(t, 235.0, created.Total)
}

func TestService_CreateOrder_NegativeShippingCostFallsBackToDefault(t *testing.T) {
	repo := newFakeRepo()
	productID := repo.addProduct(t, "Mug", 10)
	svc := newTestService(repo)

	in := validInput(productID)
	cost := -5.0
	in.ShippingCost = &cost

	created, err := svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 20.0, created.ShippingCost)
}

func TestService_CreateOrder_RetriesOnCodeConflict(t *testing.T) {
	repo := newFakeRepo()
	productID := repo.addProduct(t, "Mug", 10)

	gen := &stubGenerator{codes: []string{"AAAA2222", "AAAA2222", "BBBB3333"}}
	svc := order.NewService(repo, gen, testSettings(), notify.Nop(), nil)

	first, err := svc.CreateOrder(context.Background(), validInput(productID))
	require.NoError(t, err)
	assert.Equal(t, "AAAA2222", first.OrderNumber)

	second, err := svc.CreateOrder(context.Background(), validInput(productID))
	require.NoError(t, err)
	assert.Equal(t, "BBBB3333", second.OrderNumber, "conflicting code must be regenerated")
}

func TestService_CreateOrder_InsufficientStock(t *testing.T) {
	repo := newFakeRepo()
	productID := repo.addProduct(t, "Mug", 1)
	svc := newTestService(repo)

	in := validInput(productID) // quantity 2 against stock 1

	_, err := svc.CreateOrder(context.Background(), in)
	var stockErr *order.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, productID, stockErr.ProductID)

	stock, err := repo.ProductStock(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, 1, stock, "failed creation must not consume stock")
}

func TestService_CreateOrder_NotificationFailureIsSwallowed(t *testing.T) {
	repo := newFakeRepo()
	productID := repo.addProduct(t, "Mug", 10)
	notifier := &failingNotifier{}
	svc := order.NewService(repo, ordercode.NewGenerator(), testSettings(), notifier, nil)

	created, err := svc.CreateOrder(context.Background(), validInput(productID))
	require.NoError(t, err)
	assert.NotNil(t, created)
	assert.Equal(t, 1, notifier.calls)
}

// Two concurrent checkouts both ask for the whole remaining stock; exactly
// one may win.
func TestService_CreateOrder_ConcurrentStockContention(t *testing.T) {
	repo := newFakeRepo()
	productID := repo.addProduct(t, "Mug", 5)
	svc := newTestService(repo)

	in := validInput(productID)
	in.Items = []order.CreateItemInput{{ProductID: productID, Quantity: 5, Price: 10}}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.CreateOrder(context.Background(), in)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			var stockErr *order.InsufficientStockError
			assert.ErrorAs(t, err, &stockErr)
		}
	}
	assert.Equal(t, 1, succeeded)

	stock, err := repo.ProductStock(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, 0, stock, "total consumed must not exceed the initial stock")
}

func TestService_CreateOrder_FallsBackWhenStoreUnreachable(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	fb := &fakeFallback{}
	svc := order.NewService(repo, ordercode.NewGenerator(), testSettings(), notify.Nop(), fb)

	productID, err := uuid.NewV4()
	require.NoError(t, err)

	created, err := svc.CreateOrder(context.Background(), validInput(productID))
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.True(t, created.Degraded)
	assert.Len(t, fb.orders, 1)
}

func TestService_CreateOrder_StoreErrorDoesNotFallBack(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = errors.New("constraint violated")
	fb := &fakeFallback{}
	svc := order.NewService(repo, ordercode.NewGenerator(), testSettings(), notify.Nop(), fb)

	productID, err := uuid.NewV4()
	require.NoError(t, err)

	_, err = svc.CreateOrder(context.Background(), validInput(productID))
	require.Error(t, err)
	assert.Empty(t, fb.orders)
}

func seedOrder(t *testing.T, repo *fakeRepo, s status.OrderStatus, p status.PaymentStatus) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	repo.orders[id] = &order.Order{
		ID:             id,
		OrderNumber:    "TEST" + id.String()[:4],
		CustomerName:   "Omar Khaled",
		CustomerPhone:  "+20100000000",
		DeliveryMethod: order.DeliveryShipping,
		Address:        "12 Nile St",
		Governorate:    "Cairo",
		PaymentMethod:  "cash_on_delivery",
		Status:         s,
		PaymentStatus:  p,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	return id
}

func TestService_UpdateOrder_AutoPaymentOnDelivered(t *testing.T) {
	repo := newFakeRepo()
	id := seedOrder(t, repo, status.OrderPending, status.PaymentPending)
	svc := newTestService(repo)

	delivered := status.OrderDelivered
	updated, err := svc.UpdateOrder(context.Background(), id, order.UpdateInput{Status: &delivered})
	require.NoError(t, err)

	assert.Equal(t, status.OrderDelivered, updated.Status)
	assert.Equal(t, status.PaymentCashOnDelivery, updated.PaymentStatus)
	assert.NotNil(t, updated.CompletedAt)

	require.Len(t, updated.History, 1)
	assert.Equal(t, status.OrderPending, updated.History[0].OldStatus)
	assert.Equal(t, status.OrderDelivered, updated.History[0].NewStatus)
}

func TestService_UpdateOrder_ExplicitCompatiblePaymentStatus(t *testing.T) {
	repo := newFakeRepo()
	id := seedOrder(t, repo, status.OrderDelivered, status.PaymentCashOnDelivery)
	svc := newTestService(repo)

	collected := status.PaymentCollected
	updated, err := svc.UpdateOrder(context.Background(), id, order.UpdateInput{PaymentStatus: &collected})
	require.NoError(t, err)
	assert.Equal(t, status.PaymentCollected, updated.PaymentStatus)
	assert.Equal(t, status.OrderDelivered, updated.Status)
}

func TestService_UpdateOrder_IncompatiblePaymentStatusRejected(t *testing.T) {
	repo := newFakeRepo()
	id := seedOrder(t, repo, status.OrderPending, status.PaymentPending)
	svc := newTestService(repo)

	refunded := status.PaymentRefunded
	_, err := svc.UpdateOrder(context.Background(), id, order.UpdateInput{PaymentStatus: &refunded})

	var incompatibleErr *order.IncompatiblePaymentStatusError
	require.ErrorAs(t, err, &incompatibleErr)
	assert.Equal(t, []status.PaymentStatus{status.PaymentPending}, incompatibleErr.Available)

	// The order must be untouched.
	current, err := svc.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, status.PaymentPending, current.PaymentStatus)
}

func TestService_UpdateOrder_ExplicitPaymentOverridesAuto(t *testing.T) {
	repo := newFakeRepo()
	id := seedOrder(t, repo, status.OrderShipped, status.PaymentCashOnDelivery)
	svc := newTestService(repo)

	delivered := status.OrderDelivered
	collected := status.PaymentCollected
	updated, err := svc.UpdateOrder(context.Background(), id, order.UpdateInput{
		Status:        &delivered,
		PaymentStatus: &collected,
	})
	require.NoError(t, err)
	assert.Equal(t, status.PaymentCollected, updated.PaymentStatus)
}

func TestService_UpdateOrder_UnknownStatusRejected(t *testing.T) {
	repo := newFakeRepo()
	id := seedOrder(t, repo, status.OrderPending, status.PaymentPending)
	svc := newTestService(repo)

	unknown := status.OrderStatus("archived")
	_, err := svc.UpdateOrder(context.Background(), id, order.UpdateInput{Status: &unknown})

	var validationErr *order.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "status", validationErr.Field)
}

func TestService_UpdateOrder_LogisticsFields(t *testing.T) {
	repo := newFakeRepo()
	id := seedOrder(t, repo, status.OrderConfirmed, status.PaymentPending)
	svc := newTestService(repo)

	company := "Falcon Express"
	method := "door_to_door"
	tax := 12.5
	notes := "fragile, call before delivery"
	updated, err := svc.UpdateOrder(context.Background(), id, order.UpdateInput{
		ShippingCompany: &company,
		ShippingMethod:  &method,
		TaxAmount:       &tax,
		AdminNotes:      &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, company, updated.ShippingCompany)
	assert.Equal(t, method, updated.ShippingMethod)
	assert.Equal(t, tax, updated.TaxAmount)
	assert.Equal(t, notes, updated.AdminNotes)
	assert.Empty(t, updated.History, "no status change, no history row")
}

func TestService_UpdateOrder_ShippedAtStampedOnce(t *testing.T) {
	repo := newFakeRepo()
	id := seedOrder(t, repo, status.OrderConfirmed, status.PaymentPending)
	svc := newTestService(repo)

	shipped := status.OrderShipped
	updated, err := svc.UpdateOrder(context.Background(), id, order.UpdateInput{Status: &shipped})
	require.NoError(t, err)
	require.NotNil(t, updated.ShippedAt)
	firstStamp := *updated.ShippedAt

	// Back to confirmed and shipped again: the original stamp survives.
	confirmed := status.OrderConfirmed
	_, err = svc.UpdateOrder(context.Background(), id, order.UpdateInput{Status: &confirmed})
	require.NoError(t, err)
	again, err := svc.UpdateOrder(context.Background(), id, order.UpdateInput{Status: &shipped})
	require.NoError(t, err)
	require.NotNil(t, again.ShippedAt)
	assert.Equal(t, firstStamp, *again.ShippedAt)
}

func TestService_UpdateOrder_NotFound(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	id, err := uuid.NewV4()
	require.NoError(t, err)

	delivered := status.OrderDelivered
	_, err = svc.UpdateOrder(context.Background(), id, order.UpdateInput{Status: &delivered})
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestService_DeleteOrder(t *testing.T) {
	repo := newFakeRepo()
	id := seedOrder(t, repo, status.OrderPending, status.PaymentPending)
	svc := newTestService(repo)

	require.NoError(t, svc.DeleteOrder(context.Background(), id))

	_, err := svc.GetOrder(context.Background(), id)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
	assert.Empty(t, repo.history[id])

	assert.ErrorIs(t, svc.DeleteOrder(context.Background(), id), order.ErrOrderNotFound)
}

func TestService_GetOrderByNumber_MalformedCode(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	_, err := svc.GetOrderByNumber(context.Background(), "not-a-code")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestService_ListOrders_MergesFallback(t *testing.T) {
	repo := newFakeRepo()
	seedOrder(t, repo, status.OrderPending, status.PaymentPending)

	fb := &fakeFallback{}
	capturedID, err := uuid.NewV4()
	require.NoError(t, err)
	fb.orders = append(fb.orders, order.Order{
		ID:            capturedID,
		OrderNumber:   "FALLBK12",
		Status:        status.OrderPending,
		PaymentStatus: status.PaymentPending,
	})

	svc := order.NewService(repo, ordercode.NewGenerator(), testSettings(), notify.Nop(), fb)

	orders, total, err := svc.ListOrders(context.Background(), order.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, orders, 2)

	degraded := 0
	for _, o := range orders {
		if o.Degraded {
			degraded++
		}
	}
	assert.Equal(t, 1, degraded)
}
