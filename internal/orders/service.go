package orders

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/telestars/premium-backend/internal/lifecycle"
	"github.com/telestars/premium-backend/internal/settings"
	"github.com/telestars/premium-backend/pkg/config"
	"github.com/telestars/premium-backend/pkg/db"
	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/enums"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
	"github.com/telestars/premium-backend/pkg/nowpayments"
	"github.com/telestars/premium-backend/pkg/pagination"
)

const orderNumberAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentCreator interface {
	CreatePayment(ctx context.Context, req nowpayments.PaymentRequest) (*nowpayments.Payment, error)
}

type settingsProvider interface {
	Snapshot(ctx context.Context) (*settings.Snapshot, error)
}

// Service owns order creation, payment initiation, and reads.
type Service struct {
	repo     Repository
	tx       txRunner
	payments paymentCreator
	settings settingsProvider
	cfg      config.OrdersConfig
	payCfg   config.NowPaymentsConfig
	logger   *logger.Logger
}

// ServiceParams wires service dependencies.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Payments          paymentCreator
	Settings          settingsProvider
	OrdersConfig      config.OrdersConfig
	PaymentsConfig    config.NowPaymentsConfig
	Logger            *logger.Logger
}

// NewService validates dependencies and builds the orders service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("orders repository is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.Settings == nil {
		return nil, errors.New("settings provider is required")
	}
	return &Service{
		repo:     params.Repo,
		tx:       params.TransactionRunner,
		payments: params.Payments,
		settings: params.Settings,
		cfg:      params.OrdersConfig,
		payCfg:   params.PaymentsConfig,
		logger:   params.Logger,
	}, nil
}

// CreateOrder materializes a PENDING order with a plan snapshot taken from the
// current settings.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	target := strings.TrimPrefix(strings.TrimSpace(input.FulfillmentTarget), "@")
	if target == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fulfillment target is required")
	}
	if input.TelegramID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer telegram id is required")
	}

	snapshot, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	plan := snapshot.PlanByID(input.PlanID)
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("plan %q not found", input.PlanID))
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.cfg.PaymentWindow)

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		customer, err := repo.UpsertCustomer(ctx, &models.Customer{
			ID:         uuid.New(),
			TelegramID: input.TelegramID,
			Username:   input.Username,
			FirstName:  input.FirstName,
			LastName:   input.LastName,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upserting customer")
		}

		currency := plan.Currency
		if currency == "" {
			currency = "usd"
		}

		for attempt := 0; attempt < orderNumberAttempts; attempt++ {
			order := &models.Order{
				ID:                uuid.New(),
				OrderNumber:       generateOrderNumber(),
				CustomerID:        customer.ID,
				PlanID:            plan.ID,
				PlanName:          plan.Name,
				PlanPeriodMonths:  plan.PeriodMonths,
				Amount:            plan.Price,
				Currency:          currency,
				Status:            enums.OrderStatusPending,
				FulfillmentTarget: target,
				ExpiresAt:         &expiresAt,
			}
			created, err = repo.CreateOrder(ctx, order)
			if err == nil {
				return nil
			}
			if !db.IsUniqueViolation(err, "orders_order_number_key") {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
			}
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "exhausted order number attempts")
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		ctx = s.logger.WithOrderNumber(ctx, created.OrderNumber)
		s.logger.Info(ctx, "order created")
	}
	return created, nil
}

// InitiatePayment creates the provider payment for a PENDING order and moves
// it to AWAITING_PAYMENT with a WAITING transaction attached.
func (s *Service) InitiatePayment(ctx context.Context, orderNumber string) (*InitiatePaymentResult, error) {
	if s.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment provider not configured")
	}

	order, err := s.repo.FindOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", orderNumber))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("order %s is %s, payment can only be initiated once", order.OrderNumber, order.Status))
	}

	payCurrency := s.payCfg.PayCurrency
	if payCurrency == "" {
		payCurrency = "trx"
	}
	payment, err := s.payments.CreatePayment(ctx, nowpayments.PaymentRequest{
		PriceAmount:      order.Amount,
		PriceCurrency:    order.Currency,
		PayCurrency:      payCurrency,
		OrderID:          order.OrderNumber,
		OrderDescription: fmt.Sprintf("%s for %s", order.PlanName, order.FulfillmentTarget),
		IPNCallbackURL:   s.payCfg.IPNCallbackURL,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var transaction *models.PaymentTransaction
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := ApplyTransition(ctx, repo, order, lifecycle.PaymentInitiated{
			PaymentID:  payment.PaymentID.String(),
			PaymentURL: payment.PayAddress,
		}, now); err != nil {
			return err
		}

		transaction, err = repo.CreateTransaction(ctx, &models.PaymentTransaction{
			ID:          uuid.New(),
			OrderID:     order.ID,
			PaymentID:   payment.PaymentID.String(),
			Amount:      order.Amount,
			Currency:    order.Currency,
			PayCurrency: payCurrency,
			Status:      enums.PaymentStatusWaiting,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating payment transaction")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		ctx = s.logger.WithOrderNumber(ctx, order.OrderNumber)
		ctx = s.logger.WithPaymentID(ctx, payment.PaymentID.String())
		s.logger.Info(ctx, "payment initiated")
	}

	return &InitiatePaymentResult{
		Order:       order,
		Transaction: transaction,
		PayAddress:  payment.PayAddress,
		PayAmount:   payment.PayAmount,
		PayCurrency: payment.PayCurrency,
	}, nil
}

// GetByOrderNumber loads a single order.
func (s *Service) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, err := s.repo.FindOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", orderNumber))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

// List returns one admin page of orders plus the cursor for the next.
func (s *Service) List(ctx context.Context, query ListOrdersQuery) (*OrderList, error) {
	ordersPage, next, err := s.repo.ListOrders(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	list := &OrderList{Orders: ordersPage}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list, nil
}

// AppendNote attaches a timestamped operator note to the order.
func (s *Service) AppendNote(ctx context.Context, orderNumber, note string) (*models.Order, error) {
	trimmed := strings.TrimSpace(note)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note text is required")
	}

	order, err := s.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	lifecycle.AppendNote(order, now, trimmed)
	if err := s.repo.UpdateOrder(ctx, order.ID, map[string]any{
		"admin_notes": order.AdminNotes,
		"updated_at":  now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing order note")
	}
	return order, nil
}

// DeleteAbandoned removes a PENDING order that never reached payment
// initiation. Orders with any transaction history are kept forever.
func (s *Service) DeleteAbandoned(ctx context.Context, orderNumber string) error {
	order, err := s.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return err
	}
	if order.Status != enums.OrderStatusPending {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("order %s is %s, only pending orders can be deleted", order.OrderNumber, order.Status))
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.CountTransactionsByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting transactions")
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("order %s has payment history and cannot be deleted", order.OrderNumber))
		}
		if err := repo.DeleteOrder(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting order")
		}
		return nil
	})
}

// generateOrderNumber produces a short human-quotable id. Uniqueness is
// enforced by the DB constraint; collisions retry.
func generateOrderNumber() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return fmt.Sprintf("TS-%06d", time.Now().UnixNano()%1_000_000)
	}
	return fmt.Sprintf("TS-%06d", n.Int64())
}
