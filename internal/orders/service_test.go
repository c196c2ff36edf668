package orders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/telestars/premium-backend/internal/lifecycle"
	"github.com/telestars/premium-backend/internal/settings"
	"github.com/telestars/premium-backend/pkg/config"
	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/enums"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/nowpayments"
	"github.com/telestars/premium-backend/pkg/pagination"
)

type stubRepo struct {
	Repository

	customers    map[int64]*models.Customer
	orders       map[string]*models.Order
	transactions []*models.PaymentTransaction

	guardedRows    int64
	guardedCalls   int
	guardedUpdates []map[string]any
	storedOnMiss   *models.Order
	createErrs     []error
	createdOrders  []*models.Order
	listPage       []models.Order
	listNext       *pagination.Cursor
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		customers:   map[int64]*models.Customer{},
		orders:      map[string]*models.Order{},
		guardedRows: 1,
	}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) UpsertCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	if existing, ok := s.customers[customer.TelegramID]; ok {
		existing.Username = customer.Username
		return existing, nil
	}
	s.customers[customer.TelegramID] = customer
	return customer, nil
}

func (s *stubRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	s.orders[order.OrderNumber] = order
	s.createdOrders = append(s.createdOrders, order)
	return order, nil
}

func (s *stubRepo) FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, ok := s.orders[orderNumber]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubRepo) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.storedOnMiss != nil {
		return s.storedOnMiss, nil
	}
	for _, order := range s.orders {
		if order.ID == id {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) UpdateOrderGuarded(ctx context.Context, orderID uuid.UUID, expected string, updates map[string]any) (int64, error) {
	s.guardedCalls++
	s.guardedUpdates = append(s.guardedUpdates, updates)
	return s.guardedRows, nil
}

func (s *stubRepo) CreateTransaction(ctx context.Context, transaction *models.PaymentTransaction) (*models.PaymentTransaction, error) {
	s.transactions = append(s.transactions, transaction)
	return transaction, nil
}

func (s *stubRepo) CountTransactionsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	for _, tx := range s.transactions {
		if tx.OrderID == orderID {
			count++
		}
	}
	return count, nil
}

func (s *stubRepo) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	for number, order := range s.orders {
		if order.ID == orderID {
			delete(s.orders, number)
		}
	}
	return nil
}

func (s *stubRepo) ListOrders(ctx context.Context, query ListOrdersQuery) ([]models.Order, *pagination.Cursor, error) {
	return s.listPage, s.listNext, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubPayments struct {
	payment *nowpayments.Payment
	err     error
	lastReq nowpayments.PaymentRequest
}

func (s *stubPayments) CreatePayment(ctx context.Context, req nowpayments.PaymentRequest) (*nowpayments.Payment, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.payment, nil
}

type stubSettings struct {
	snapshot *settings.Snapshot
	err      error
}

func (s *stubSettings) Snapshot(ctx context.Context) (*settings.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

func threeMonthPlan() settings.Plan {
	return settings.Plan{
		ID:           "3m",
		Name:         "Premium 3 months",
		Price:        decimal.RequireFromString("12.99"),
		Currency:     "usd",
		PeriodMonths: 3,
	}
}

func newTestService(t *testing.T, repo *stubRepo, payments *stubPayments) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Repo:              repo,
		TransactionRunner: stubTxRunner{},
		Payments:          payments,
		Settings:          &stubSettings{snapshot: &settings.Snapshot{Plans: []settings.Plan{threeMonthPlan()}}},
		OrdersConfig:      config.OrdersConfig{PaymentWindow: 24 * time.Hour},
		PaymentsConfig:    config.NowPaymentsConfig{PayCurrency: "trx", IPNCallbackURL: "https://api.telestars.io/webhooks/nowpayments"},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestCreateOrderSnapshotsPlan(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(t, repo, &stubPayments{})

	username := "buyer"
	order, err := service.CreateOrder(context.Background(), CreateOrderInput{
		TelegramID:        42,
		Username:          &username,
		PlanID:            "3m",
		FulfillmentTarget: "@someuser",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if order.PlanName != "Premium 3 months" || order.PlanPeriodMonths != 3 {
		t.Fatal("plan snapshot not copied onto order")
	}
	if !order.Amount.Equal(decimal.RequireFromString("12.99")) {
		t.Fatalf("unexpected amount %s", order.Amount)
	}
	if order.FulfillmentTarget != "someuser" {
		t.Fatalf("expected leading @ stripped, got %q", order.FulfillmentTarget)
	}
	if order.ExpiresAt == nil {
		t.Fatal("payment window deadline not set")
	}
	if len(order.OrderNumber) != 9 || order.OrderNumber[:3] != "TS-" {
		t.Fatalf("unexpected order number format %q", order.OrderNumber)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(t, repo, &stubPayments{})
	ctx := context.Background()

	_, err := service.CreateOrder(ctx, CreateOrderInput{TelegramID: 42, PlanID: "3m"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty target, got %v", err)
	}

	_, err = service.CreateOrder(ctx, CreateOrderInput{PlanID: "3m", FulfillmentTarget: "user"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing telegram id, got %v", err)
	}

	_, err = service.CreateOrder(ctx, CreateOrderInput{TelegramID: 42, PlanID: "12m", FulfillmentTarget: "user"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown plan, got %v", err)
	}
}

func TestInitiatePaymentHappyPath(t *testing.T) {
	repo := newStubRepo()
	payments := &stubPayments{payment: &nowpayments.Payment{
		PaymentID:   json.Number("5077125931"),
		PayAddress:  "TXyzAddress",
		PayAmount:   decimal.RequireFromString("187.5"),
		PayCurrency: "trx",
	}}
	service := newTestService(t, repo, payments)

	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "TS-000001",
		Status:      enums.OrderStatusPending,
		Amount:      decimal.RequireFromString("12.99"),
		Currency:    "usd",
		PlanName:    "Premium 3 months",
	}
	repo.orders[order.OrderNumber] = order

	result, err := service.InitiatePayment(context.Background(), "TS-000001")
	if err != nil {
		t.Fatalf("initiate payment: %v", err)
	}
	if order.Status != enums.OrderStatusAwaitingPayment {
		t.Fatalf("expected awaiting_payment, got %s", order.Status)
	}
	if order.PaymentID == nil || *order.PaymentID != "5077125931" {
		t.Fatal("payment id not attached to order")
	}
	if order.PaymentURL == nil || *order.PaymentURL != "TXyzAddress" {
		t.Fatal("pay address not stored as payment url")
	}
	if len(repo.transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(repo.transactions))
	}
	tx := repo.transactions[0]
	if tx.Status != enums.PaymentStatusWaiting {
		t.Fatalf("expected waiting transaction, got %s", tx.Status)
	}
	if tx.PaymentID != "5077125931" || tx.OrderID != order.ID {
		t.Fatal("transaction not linked to order and provider payment")
	}
	if result.PayAddress != "TXyzAddress" || result.PayCurrency != "trx" {
		t.Fatalf("unexpected payment instructions %+v", result)
	}
	if payments.lastReq.OrderID != "TS-000001" || payments.lastReq.IPNCallbackURL == "" {
		t.Fatalf("unexpected provider request %+v", payments.lastReq)
	}
}

func TestInitiatePaymentRequiresPendingOrder(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(t, repo, &stubPayments{})

	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "TS-000002",
		Status:      enums.OrderStatusAwaitingPayment,
	}
	repo.orders[order.OrderNumber] = order

	_, err := service.InitiatePayment(context.Background(), "TS-000002")
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	_, err = service.InitiatePayment(context.Background(), "TS-MISSING")
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApplyTransitionLostRace(t *testing.T) {
	repo := newStubRepo()
	repo.guardedRows = 0

	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "TS-000003",
		Status:      enums.OrderStatusAwaitingPayment,
	}
	repo.storedOnMiss = &models.Order{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Status:      enums.OrderStatusCancelled,
	}

	_, err := ApplyTransition(context.Background(), repo, order, lifecycle.PaymentConfirmed{}, time.Now().UTC())
	if !pkgerrors.HasCode(err, pkgerrors.CodeOrderTerminal) {
		t.Fatalf("expected terminal error after lost race, got %v", err)
	}
	if order.Status != enums.OrderStatusCancelled {
		t.Fatal("order not refreshed from stored state")
	}
	if repo.guardedCalls != 1 {
		t.Fatalf("expected 1 guarded update, got %d", repo.guardedCalls)
	}
}

func TestApplyTransitionWritesOnlyTouchedColumns(t *testing.T) {
	repo := newStubRepo()

	notes := "operator note from another session"
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "TS-000004",
		Status:      enums.OrderStatusAwaitingPayment,
		AdminNotes:  &notes,
	}
	repo.orders[order.OrderNumber] = order

	_, err := ApplyTransition(context.Background(), repo, order, lifecycle.PaymentConfirmed{}, time.Now().UTC())
	if err != nil {
		t.Fatalf("transition: %v", err)
	}

	if len(repo.guardedUpdates) != 1 {
		t.Fatalf("expected 1 guarded update, got %d", len(repo.guardedUpdates))
	}
	updates := repo.guardedUpdates[0]
	if _, ok := updates["status"]; !ok {
		t.Fatal("status missing from guarded update")
	}
	for _, column := range []string{"admin_notes", "payment_id", "payment_url", "activation_link"} {
		if _, ok := updates[column]; ok {
			t.Fatalf("%s written by a transition that never touched it", column)
		}
	}
}

func TestDeleteAbandonedGuards(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(t, repo, &stubPayments{})
	ctx := context.Background()

	pending := &models.Order{ID: uuid.New(), OrderNumber: "TS-1", Status: enums.OrderStatusPending}
	repo.orders[pending.OrderNumber] = pending

	paid := &models.Order{ID: uuid.New(), OrderNumber: "TS-2", Status: enums.OrderStatusPending}
	repo.orders[paid.OrderNumber] = paid
	repo.transactions = append(repo.transactions, &models.PaymentTransaction{ID: uuid.New(), OrderID: paid.ID})

	active := &models.Order{ID: uuid.New(), OrderNumber: "TS-3", Status: enums.OrderStatusAwaitingPayment}
	repo.orders[active.OrderNumber] = active

	if err := service.DeleteAbandoned(ctx, "TS-1"); err != nil {
		t.Fatalf("delete pending order: %v", err)
	}
	if _, ok := repo.orders["TS-1"]; ok {
		t.Fatal("pending order not deleted")
	}

	err := service.DeleteAbandoned(ctx, "TS-2")
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for order with payment history, got %v", err)
	}

	err = service.DeleteAbandoned(ctx, "TS-3")
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for non-pending order, got %v", err)
	}
}

func TestCreateOrderRetriesOnNumberCollision(t *testing.T) {
	repo := newStubRepo()
	repo.createErrs = []error{duplicateOrderNumberErr{}}
	service := newTestService(t, repo, &stubPayments{})

	order, err := service.CreateOrder(context.Background(), CreateOrderInput{
		TelegramID:        42,
		PlanID:            "3m",
		FulfillmentTarget: "user",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order == nil || len(repo.createdOrders) != 1 {
		t.Fatal("retry did not produce exactly one stored order")
	}
}

func TestListEncodesNextCursor(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(t, repo, &stubPayments{})

	cursor := &pagination.Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()}
	repo.listPage = []models.Order{{ID: uuid.New()}}
	repo.listNext = cursor

	list, err := service.List(context.Background(), ListOrdersQuery{Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.NextCursor == "" {
		t.Fatal("expected encoded next cursor")
	}
	decoded, err := pagination.ParseCursor(list.NextCursor)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	if decoded.ID != cursor.ID {
		t.Fatal("cursor round trip mismatch")
	}
}

type duplicateOrderNumberErr struct{}

func (duplicateOrderNumberErr) Error() string {
	return `duplicate key value violates unique constraint "orders_order_number_key"`
}
