package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/telestars/premium-backend/internal/lifecycle"
	"github.com/telestars/premium-backend/internal/orders"
	"github.com/telestars/premium-backend/internal/settings"
	"github.com/telestars/premium-backend/pkg/config"
	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/enums"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
	"github.com/telestars/premium-backend/pkg/metrics"
	"github.com/telestars/premium-backend/pkg/nowpayments"
	"github.com/telestars/premium-backend/pkg/types"
)

// Callback outcomes reported on metrics.
const (
	OutcomeConfirmed            = "confirmed"
	OutcomeStatusUpdated        = "status_updated"
	OutcomeReplay               = "replay"
	OutcomeRegressionIgnored    = "regression_ignored"
	OutcomeMalformedPayload     = "malformed_payload"
	OutcomeAuthenticationFailed = "authentication_failed"
	OutcomeTransactionNotFound  = "transaction_not_found"
	OutcomeOrphanedTransaction  = "orphaned_transaction"
	OutcomeError                = "error"
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

type idempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// CallbackResult reports what a provider callback did.
type CallbackResult struct {
	Outcome     string
	OrderNumber string
	Status      enums.PaymentStatus
}

// Service reconciles inbound provider callbacks against stored transactions
// and drives the order lifecycle off confirmed payments.
type Service struct {
	repo        orders.Repository
	tx          txRunner
	settings    settingsProvider
	notifier    notifier
	idempotency idempotencyStore
	metrics     *metrics.PaymentMetrics
	cfg         config.NowPaymentsConfig
	logger      *logger.Logger
}

// ServiceParams wires service dependencies.
type ServiceParams struct {
	Repo              orders.Repository
	TransactionRunner txRunner
	Settings          settingsProvider
	Notifier          notifier
	Idempotency       idempotencyStore
	Metrics           *metrics.PaymentMetrics
	Config            config.NowPaymentsConfig
	Logger            *logger.Logger
}

// NewService validates dependencies and builds the payments service.
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
		repo:        params.Repo,
		tx:          params.TransactionRunner,
		settings:    params.Settings,
		notifier:    params.Notifier,
		idempotency: params.Idempotency,
		metrics:     params.Metrics,
		cfg:         params.Config,
		logger:      params.Logger,
	}, nil
}

// HandleCallback turns one raw provider callback into a verified transaction
// update, and a confirmed payment into the PAYMENT_RECEIVED transition.
// Signature verification happens before any lookup so unauthenticated callers
// learn nothing about stored payment ids. The raw payload lands on the
// transaction row in the same transaction as the derived changes, so a
// provider retry after a crash re-runs cleanly from the top.
func (s *Service) HandleCallback(ctx context.Context, rawPayload []byte, signature string) (*CallbackResult, error) {
	started := time.Now()
	result, err := s.handle(ctx, rawPayload, signature)

	outcome := OutcomeError
	if result != nil {
		outcome = result.Outcome
	}
	s.metrics.IncCallback(outcome)
	s.metrics.ObserveCallbackDuration(outcome, time.Since(started))
	return result, err
}

func (s *Service) handle(ctx context.Context, rawPayload []byte, signature string) (*CallbackResult, error) {
	payload, err := nowpayments.ParseIPN(rawPayload)
	if err != nil {
		return &CallbackResult{Outcome: OutcomeMalformedPayload}, err
	}

	if err := nowpayments.VerifyIPNSignature(rawPayload, signature, s.cfg.IPNSecret); err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeAuthenticationFailed) && s.logger != nil {
			ctx := s.logger.WithPaymentID(ctx, payload.PaymentID.String())
			s.logger.Error(ctx, "ipn signature verification failed, possible forged callback", err)
		}
		return &CallbackResult{Outcome: OutcomeAuthenticationFailed}, err
	}

	if s.logger != nil {
		ctx = s.logger.WithPaymentID(ctx, payload.PaymentID.String())
	}

	incoming, err := enums.ParsePaymentStatus(payload.PaymentStatus)
	if err != nil {
		return &CallbackResult{Outcome: OutcomeMalformedPayload},
			pkgerrors.Wrap(pkgerrors.CodeMalformedPayload, err, "unknown payment status")
	}

	guardKey, acquired := s.markPayload(ctx, rawPayload)
	if !acquired {
		s.log(ctx, "duplicate ipn payload short-circuited")
		return &CallbackResult{Outcome: OutcomeReplay, Status: incoming}, nil
	}

	result, err := s.reconcile(ctx, payload, incoming, rawPayload)
	if err != nil && guardKey != "" && s.idempotency != nil {
		// release the replay guard so the provider retry is not swallowed
		if delErr := s.idempotency.Del(ctx, guardKey); delErr != nil && s.logger != nil {
			s.logger.Warn(ctx, fmt.Sprintf("releasing ipn replay guard: %v", delErr))
		}
	}
	return result, err
}

func (s *Service) reconcile(ctx context.Context, payload *nowpayments.IPNPayload, incoming enums.PaymentStatus, rawPayload []byte) (*CallbackResult, error) {
	now := time.Now().UTC()

	var (
		outcome     = OutcomeStatusUpdated
		order       *models.Order
		fromStatus  enums.OrderStatus
		notifyOrder bool
	)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		transaction, err := repo.FindTransactionByPaymentID(ctx, payload.PaymentID.String())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = OutcomeTransactionNotFound
				return pkgerrors.New(pkgerrors.CodeTransactionNotFound,
					fmt.Sprintf("no transaction for payment %s", payload.PaymentID))
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment transaction")
		}

		if transaction.Status == incoming && transaction.CompletedAt != nil {
			outcome = OutcomeReplay
			return nil
		}

		if incoming.RegressesFrom(transaction.Status) {
			outcome = OutcomeRegressionIgnored
			s.log(ctx, fmt.Sprintf("ignoring out-of-order status %s after %s", incoming, transaction.Status))
			return nil
		}

		updates := map[string]any{
			"status":     incoming,
			"ipn_data":   auditData(rawPayload),
			"updated_at": now,
		}
		confirmed := incoming.ConfirmsFunds()
		if confirmed && transaction.CompletedAt == nil {
			updates["completed_at"] = now
		}
		if err := repo.UpdateTransaction(ctx, transaction.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting transaction status")
		}

		if !confirmed {
			return nil
		}

		order, err = repo.FindOrderByID(ctx, transaction.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = OutcomeOrphanedTransaction
				s.log(ctx, fmt.Sprintf("transaction %s references missing order %s", transaction.ID, transaction.OrderID))
				return pkgerrors.New(pkgerrors.CodeOrphanedTransaction,
					fmt.Sprintf("transaction %s has no order", transaction.ID))
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order for confirmed payment")
		}

		if order.Status != enums.OrderStatusAwaitingPayment {
			// a prior callback already moved the order on; transaction audit
			// fields above are still updated
			outcome = OutcomeReplay
			return nil
		}

		snapshot, err := s.settings.Snapshot(ctx)
		if err != nil {
			return err
		}

		fromStatus = order.Status
		if _, err := orders.ApplyTransition(ctx, repo, order, lifecycle.PaymentConfirmed{}, now); err != nil {
			return err
		}
		if _, err := orders.ApplyTransition(ctx, repo, order, lifecycle.ReviewQueued{
			CreditInsufficient: !snapshot.Flags.SupplierCreditSufficient,
		}, now); err != nil {
			return err
		}

		outcome = OutcomeConfirmed
		notifyOrder = true
		return nil
	})
	if err != nil {
		if outcome == OutcomeStatusUpdated || outcome == OutcomeConfirmed {
			outcome = OutcomeError
		}
		return &CallbackResult{Outcome: outcome, Status: incoming}, err
	}

	result := &CallbackResult{Outcome: outcome, Status: incoming}
	if order != nil {
		result.OrderNumber = order.OrderNumber
	}

	if notifyOrder {
		s.metrics.IncTransition(fromStatus.String(), order.Status.String())
		if s.logger != nil {
			ctx := s.logger.WithOrderNumber(ctx, order.OrderNumber)
			s.logger.Info(ctx, "payment confirmed, order queued for review")
		}
		s.notifyAsync(order, enums.NotificationEventPaymentReceived)
	}
	return result, nil
}

// markPayload takes the redis replay guard for a byte-identical payload.
// Redis being down never blocks reconciliation; the DB-level replay check
// still holds.
func (s *Service) markPayload(ctx context.Context, rawPayload []byte) (string, bool) {
	if s.idempotency == nil {
		return "", true
	}
	sum := sha256.Sum256(rawPayload)
	key := s.idempotency.IdempotencyKey("ipn", hex.EncodeToString(sum[:]))
	ok, err := s.idempotency.SetNX(ctx, key, "1", s.cfg.IdempotencyTTL)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn(ctx, fmt.Sprintf("ipn replay guard unavailable: %v", err))
		}
		return "", true
	}
	return key, ok
}

// notifyAsync posts lifecycle notifications on a detached goroutine so the
// provider response never waits on message delivery.
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

func (s *Service) log(ctx context.Context, msg string) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(ctx, msg)
}

func auditData(rawPayload []byte) types.JSONMap {
	var data types.JSONMap
	if err := json.Unmarshal(rawPayload, &data); err != nil {
		return types.JSONMap{"raw": string(rawPayload)}
	}
	return data
}
