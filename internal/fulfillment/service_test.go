package fulfillment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/telestars/premium-backend/internal/orders"
	"github.com/telestars/premium-backend/internal/settings"
	"github.com/telestars/premium-backend/pkg/callinoo"
	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/enums"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
)

type stubRepo struct {
	orders.Repository

	order        *models.Order
	guardedRows  int64
	guardedCalls int
	noteUpdates  []map[string]any
}

func (s *stubRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubRepo) FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	if s.order == nil || s.order.OrderNumber != orderNumber {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubRepo) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubRepo) UpdateOrderGuarded(ctx context.Context, orderID uuid.UUID, expected string, updates map[string]any) (int64, error) {
	s.guardedCalls++
	return s.guardedRows, nil
}

func (s *stubRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	s.noteUpdates = append(s.noteUpdates, updates)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubSettings struct {
	flags settings.FeatureFlags
}

func (s *stubSettings) Snapshot(ctx context.Context) (*settings.Snapshot, error) {
	return &settings.Snapshot{Flags: s.flags}, nil
}

type stubProvisioner struct {
	premium *callinoo.PremiumOrder
	err     error

	lastUsername string
	lastMonths   int
}

func (s *stubProvisioner) CreatePremium(ctx context.Context, username string, periodMonths int) (*callinoo.PremiumOrder, error) {
	s.lastUsername = username
	s.lastMonths = periodMonths
	if s.err != nil {
		return nil, s.err
	}
	return s.premium, nil
}

type stubBalance struct {
	balance *callinoo.Balance
}

func (s *stubBalance) GetBalance(ctx context.Context) (*callinoo.Balance, error) {
	return s.balance, nil
}

type stubNotifier struct {
	done chan enums.NotificationEvent
}

func (s *stubNotifier) NotifyCustomer(ctx context.Context, order *models.Order, event enums.NotificationEvent) {
	if s.done != nil {
		s.done <- event
	}
}

func (s *stubNotifier) NotifyOperators(ctx context.Context, order *models.Order, event enums.NotificationEvent) {
}

func reviewOrder(status enums.OrderStatus) *models.Order {
	return &models.Order{
		ID:                uuid.New(),
		OrderNumber:       "TS-000001",
		Status:            status,
		FulfillmentTarget: "someuser",
		PlanPeriodMonths:  3,
	}
}

func newFulfillmentService(t *testing.T, repo *stubRepo, opts ...func(*ServiceParams)) *Service {
	t.Helper()
	params := ServiceParams{
		Repo:              repo,
		TransactionRunner: stubTxRunner{},
		Settings:          &stubSettings{flags: settings.FeatureFlags{AutomaticFulfillment: true}},
	}
	for _, opt := range opts {
		opt(&params)
	}
	service, err := NewService(params)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestApproveAutomaticPath(t *testing.T) {
	repo := &stubRepo{order: reviewOrder(enums.OrderStatusAdminReview), guardedRows: 1}
	provider := &stubProvisioner{premium: &callinoo.PremiumOrder{
		OrderID:        "sup-77",
		ActivationLink: "https://t.me/+abc",
		Status:         "completed",
	}}
	notifier := &stubNotifier{done: make(chan enums.NotificationEvent, 1)}
	service := newFulfillmentService(t, repo, func(p *ServiceParams) {
		p.Automatic = NewAutomaticFulfiller(provider, time.Second)
		p.Notifier = notifier
	})

	order, err := service.Approve(context.Background(), "TS-000001", "looks good", "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if order.Status != enums.OrderStatusApproved {
		t.Fatalf("expected approved, got %s", order.Status)
	}
	if order.ActivationLink == nil || *order.ActivationLink != "https://t.me/+abc" {
		t.Fatal("activation link not recorded")
	}
	if order.AdminNotes == nil || !strings.Contains(*order.AdminNotes, "sup-77") {
		t.Fatal("supplier order id not noted")
	}
	if provider.lastUsername != "someuser" || provider.lastMonths != 3 {
		t.Fatalf("provisioning called with %s/%d", provider.lastUsername, provider.lastMonths)
	}

	select {
	case event := <-notifier.done:
		if event != enums.NotificationEventOrderApproved {
			t.Fatalf("unexpected notification %s", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("approval notification never fired")
	}
}

func TestApproveManualLinkOverridesAutomatic(t *testing.T) {
	repo := &stubRepo{order: reviewOrder(enums.OrderStatusAdminReview), guardedRows: 1}
	provider := &stubProvisioner{premium: &callinoo.PremiumOrder{ActivationLink: "https://t.me/+auto"}}
	service := newFulfillmentService(t, repo, func(p *ServiceParams) {
		p.Automatic = NewAutomaticFulfiller(provider, time.Second)
	})

	order, err := service.Approve(context.Background(), "TS-000001", "", "https://t.me/+manual")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if order.ActivationLink == nil || *order.ActivationLink != "https://t.me/+manual" {
		t.Fatal("manual link not used")
	}
	if provider.lastUsername != "" {
		t.Fatal("automatic provisioning called despite manual link")
	}
}

func TestApproveProvisioningFailureKeepsClaim(t *testing.T) {
	repo := &stubRepo{order: reviewOrder(enums.OrderStatusAdminReview), guardedRows: 1}
	provider := &stubProvisioner{err: pkgerrors.New(pkgerrors.CodeDependency, "quota exceeded")}
	service := newFulfillmentService(t, repo, func(p *ServiceParams) {
		p.Automatic = NewAutomaticFulfiller(provider, time.Second)
	})

	_, err := service.Approve(context.Background(), "TS-000001", "", "")
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	// the claim stays so the operator finishes via supplier-complete or reject
	if repo.order.Status != enums.OrderStatusSupplierProcessing {
		t.Fatalf("expected supplier_processing after failed provisioning, got %s", repo.order.Status)
	}
	if len(repo.noteUpdates) != 1 {
		t.Fatalf("expected 1 audit note write, got %d", len(repo.noteUpdates))
	}
	if repo.order.AdminNotes == nil || !strings.Contains(*repo.order.AdminNotes, "quota exceeded") {
		t.Fatal("failure reason not appended to notes")
	}
}

func TestApproveLosingRaceSkipsSupplier(t *testing.T) {
	repo := &stubRepo{order: reviewOrder(enums.OrderStatusAdminReview), guardedRows: 0}
	provider := &stubProvisioner{premium: &callinoo.PremiumOrder{ActivationLink: "https://t.me/+auto"}}
	service := newFulfillmentService(t, repo, func(p *ServiceParams) {
		p.Automatic = NewAutomaticFulfiller(provider, time.Second)
	})

	_, err := service.Approve(context.Background(), "TS-000001", "", "")
	if err == nil {
		t.Fatal("expected the losing approval to fail")
	}
	if provider.lastUsername != "" {
		t.Fatalf("supplier charged despite losing the claim: %s", provider.lastUsername)
	}
}

func TestApproveWithoutLinkWhenAutomaticDisabled(t *testing.T) {
	repo := &stubRepo{order: reviewOrder(enums.OrderStatusAdminReview), guardedRows: 1}
	service := newFulfillmentService(t, repo, func(p *ServiceParams) {
		p.Settings = &stubSettings{flags: settings.FeatureFlags{}}
	})
	before := *repo.order

	_, err := service.Approve(context.Background(), "TS-000001", "", "")
	if !pkgerrors.HasCode(err, pkgerrors.CodeMissingArtifact) {
		t.Fatalf("expected missing artifact, got %v", err)
	}
	if repo.guardedCalls != 0 || len(repo.noteUpdates) != 0 {
		t.Fatal("order written despite missing artifact")
	}
	if repo.order.Status != before.Status || repo.order.AdminNotes != nil || !repo.order.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatal("order mutated despite missing artifact")
	}
}

func TestApproveRequiresAdminReview(t *testing.T) {
	repo := &stubRepo{order: reviewOrder(enums.OrderStatusAwaitingPayment), guardedRows: 1}
	service := newFulfillmentService(t, repo)

	_, err := service.Approve(context.Background(), "TS-000001", "", "https://t.me/+x")
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	repo := &stubRepo{order: reviewOrder(enums.OrderStatusAdminReview), guardedRows: 1}
	service := newFulfillmentService(t, repo)

	_, err := service.Reject(context.Background(), "TS-000001", "  ")
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	order, err := service.Reject(context.Background(), "TS-000001", "duplicate order")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if order.Status != enums.OrderStatusRejected {
		t.Fatalf("expected rejected, got %s", order.Status)
	}
	if order.AdminNotes == nil || !strings.Contains(*order.AdminNotes, "duplicate order") {
		t.Fatal("rejection reason not noted")
	}
}

func TestCreditAndSupplierFlow(t *testing.T) {
	repo := &stubRepo{order: reviewOrder(enums.OrderStatusAwaitingCredit), guardedRows: 1}
	notifier := &stubNotifier{done: make(chan enums.NotificationEvent, 2)}
	service := newFulfillmentService(t, repo, func(p *ServiceParams) { p.Notifier = notifier })

	order, err := service.ConfirmCredit(context.Background(), "TS-000001")
	if err != nil {
		t.Fatalf("confirm credit: %v", err)
	}
	if order.Status != enums.OrderStatusSupplierProcessing {
		t.Fatalf("expected supplier_processing, got %s", order.Status)
	}

	order, err = service.CompleteSupplier(context.Background(), "TS-000001", "https://t.me/+done")
	if err != nil {
		t.Fatalf("complete supplier: %v", err)
	}
	if order.Status != enums.OrderStatusApproved {
		t.Fatalf("expected approved, got %s", order.Status)
	}
	if order.ActivationLink == nil || *order.ActivationLink != "https://t.me/+done" {
		t.Fatal("supplier artifact not recorded")
	}
}

func TestCompleteSupplierRequiresLink(t *testing.T) {
	repo := &stubRepo{order: reviewOrder(enums.OrderStatusSupplierProcessing), guardedRows: 1}
	service := newFulfillmentService(t, repo)

	_, err := service.CompleteSupplier(context.Background(), "TS-000001", "")
	if !pkgerrors.HasCode(err, pkgerrors.CodeMissingArtifact) {
		t.Fatalf("expected missing artifact, got %v", err)
	}
}

func TestSupplierBalancePassthrough(t *testing.T) {
	repo := &stubRepo{order: reviewOrder(enums.OrderStatusAdminReview)}
	service := newFulfillmentService(t, repo, func(p *ServiceParams) {
		p.Balance = &stubBalance{balance: &callinoo.Balance{
			Amount:   decimal.RequireFromString("250.00"),
			Currency: "usd",
		}}
	})

	balance, err := service.SupplierBalance(context.Background())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Currency != "usd" {
		t.Fatalf("unexpected balance %+v", balance)
	}

	bare := newFulfillmentService(t, repo)
	if _, err := bare.SupplierBalance(context.Background()); !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error without client, got %v", err)
	}
}
