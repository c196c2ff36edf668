package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/telestars/premium-backend/internal/lifecycle"
	"github.com/telestars/premium-backend/internal/orders"
	"github.com/telestars/premium-backend/internal/settings"
	"github.com/telestars/premium-backend/pkg/callinoo"
	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/enums"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
)

const notifyTimeout = 10 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type settingsProvider interface {
	Snapshot(ctx context.Context) (*settings.Snapshot, error)
}

type notifier interface {
	NotifyCustomer(ctx context.Context, order *models.Order, event enums.NotificationEvent)
	NotifyOperators(ctx context.Context, order *models.Order, event enums.NotificationEvent)
}

type balanceProvider interface {
	GetBalance(ctx context.Context) (*callinoo.Balance, error)
}

// Service drives operator decisions and supplier provisioning for orders under
// review.
type Service struct {
	repo      orders.Repository
	tx        txRunner
	settings  settingsProvider
	notifier  notifier
	automatic Fulfiller
	balance   balanceProvider
	logger    *logger.Logger
}

// ServiceParams wires service dependencies.
type ServiceParams struct {
	Repo              orders.Repository
	TransactionRunner txRunner
	Settings          settingsProvider
	Notifier          notifier
	Automatic         Fulfiller
	Balance           balanceProvider
	Logger            *logger.Logger
}

// NewService validates dependencies and builds the fulfillment service.
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
		repo:      params.Repo,
		tx:        params.TransactionRunner,
		settings:  params.Settings,
		notifier:  params.Notifier,
		automatic: params.Automatic,
		balance:   params.Balance,
		logger:    params.Logger,
	}, nil
}

// Approve completes an order under admin review. An operator-supplied link
// approves directly. With no link and automatic fulfillment enabled the
// supplier path runs instead; without either, approval fails and the order is
// left exactly as it was.
func (s *Service) Approve(ctx context.Context, orderNumber, notes, manualLink string) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusAdminReview {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("order %s is %s, approval needs admin review", order.OrderNumber, order.Status))
	}

	if strings.TrimSpace(manualLink) == "" {
		snapshot, err := s.settings.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if snapshot.Flags.AutomaticFulfillment && s.automatic != nil {
			return s.approveAutomatic(ctx, order, notes)
		}
	}

	artifact, err := ManualFulfiller{Link: manualLink}.Fulfill(ctx, order)
	if err != nil {
		// operator input problem, not a provisioning outage
		return nil, err
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		_, err := orders.ApplyTransition(ctx, repo, order, lifecycle.AdminApproved{
			ActivationLink: artifact.ActivationLink,
			Notes:          notes,
		}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		ctx := s.logger.WithOrderNumber(ctx, order.OrderNumber)
		s.logger.Info(ctx, "order approved")
	}
	s.notifyAsync(order, enums.NotificationEventOrderApproved)
	return order, nil
}

// approveAutomatic claims the order with a guarded move to supplier_processing
// before any supplier call, so the loser of a concurrent approval never
// charges the supplier. A provisioning failure keeps the claim with the
// failure noted; the operator finishes via supplier-complete or rejects.
func (s *Service) approveAutomatic(ctx context.Context, order *models.Order, notes string) (*models.Order, error) {
	now := time.Now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		_, err := orders.ApplyTransition(ctx, repo, order, lifecycle.ProvisioningStarted{}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	artifact, err := s.automatic.Fulfill(ctx, order)
	if err != nil {
		s.recordProvisioningFailure(ctx, order, time.Now().UTC(), err)
		return nil, err
	}

	approveNotes := notes
	if artifact.SupplierOrderID != "" {
		supplierLine := fmt.Sprintf("supplier order %s", artifact.SupplierOrderID)
		if approveNotes == "" {
			approveNotes = supplierLine
		} else {
			approveNotes = approveNotes + "; " + supplierLine
		}
	}

	now = time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		_, err := orders.ApplyTransition(ctx, repo, order, lifecycle.SupplierCompleted{
			ActivationLink: artifact.ActivationLink,
			Notes:          approveNotes,
		}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		ctx := s.logger.WithOrderNumber(ctx, order.OrderNumber)
		s.logger.Info(ctx, "order approved")
	}
	s.notifyAsync(order, enums.NotificationEventOrderApproved)
	return order, nil
}

// Reject refuses an order with an operator-supplied reason.
func (s *Service) Reject(ctx context.Context, orderNumber, reason string) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		_, err := orders.ApplyTransition(ctx, repo, order, lifecycle.AdminRejected{Reason: reason}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		ctx := s.logger.WithOrderNumber(ctx, order.OrderNumber)
		s.logger.Info(ctx, "order rejected")
	}
	s.notifyAsync(order, enums.NotificationEventOrderRejected)
	return order, nil
}

// ConfirmCredit acknowledges upstream supplier credit and hands the order to
// the back-office supplier flow.
func (s *Service) ConfirmCredit(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		_, err := orders.ApplyTransition(ctx, repo, order, lifecycle.CreditConfirmed{}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		ctx := s.logger.WithOrderNumber(ctx, order.OrderNumber)
		s.logger.Info(ctx, "supplier credit confirmed")
	}
	s.notifyAsync(order, enums.NotificationEventSupplierHandoff)
	return order, nil
}

// CompleteSupplier closes the back-office flow with the supplier's artifact.
func (s *Service) CompleteSupplier(ctx context.Context, orderNumber, activationLink string) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		_, err := orders.ApplyTransition(ctx, repo, order, lifecycle.SupplierCompleted{ActivationLink: activationLink}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		ctx := s.logger.WithOrderNumber(ctx, order.OrderNumber)
		s.logger.Info(ctx, "supplier fulfillment completed")
	}
	s.notifyAsync(order, enums.NotificationEventOrderApproved)
	return order, nil
}

// SupplierBalance reports the remaining supplier credit for the admin surface.
func (s *Service) SupplierBalance(ctx context.Context) (*callinoo.Balance, error) {
	if s.balance == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "supplier client not configured")
	}
	return s.balance.GetBalance(ctx)
}

func (s *Service) loadOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, err := s.repo.FindOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", orderNumber))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

func (s *Service) recordProvisioningFailure(ctx context.Context, order *models.Order, now time.Time, cause error) {
	lifecycle.AppendNote(order, now, fmt.Sprintf("provisioning failed: %v", cause))
	if err := s.repo.UpdateOrder(ctx, order.ID, map[string]any{
		"admin_notes": order.AdminNotes,
		"updated_at":  now,
	}); err != nil && s.logger != nil {
		ctx := s.logger.WithOrderNumber(ctx, order.OrderNumber)
		s.logger.Error(ctx, "recording provisioning failure", err)
	}
	if s.logger != nil {
		ctx := s.logger.WithOrderNumber(ctx, order.OrderNumber)
		s.logger.Error(ctx, "provisioning call failed", cause)
	}
}

func (s *Service) notifyAsync(order *models.Order, event enums.NotificationEvent) {
	if s.notifier == nil {
		return
	}
	snapshot := *order
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		s.notifier.NotifyCustomer(ctx, &snapshot, event)
		s.notifier.NotifyOperators(ctx, &snapshot, event)
	}()
}
