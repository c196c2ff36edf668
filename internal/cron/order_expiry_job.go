package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/telestars/premium-backend/internal/lifecycle"
	"github.com/telestars/premium-backend/internal/orders"
	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/enums"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
)

const expirySweepBatchSize = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	NotifyCustomer(ctx context.Context, order *models.Order, event enums.NotificationEvent)
}

// OrderExpiryJobParams configure the stale order sweeper.
type OrderExpiryJobParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Repo     orders.Repository
	Notifier notifier
}

// NewOrderExpiryJob builds the cron job that cancels unpaid orders past their
// payment window.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &orderExpiryJob{
		logg:     params.Logger,
		db:       params.DB,
		repo:     params.Repo,
		notifier: params.Notifier,
		now:      time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg     *logger.Logger
	db       txRunner
	repo     orders.Repository
	notifier notifier
	now      func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

// Run sweeps PENDING/AWAITING_PAYMENT orders past expires_at and cancels
// them. Re-runs are idempotent: already-cancelled orders are no-ops and
// orders that lose the guard race are skipped.
func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	stale, err := j.repo.FindExpiredOrders(ctx, cutoff, expirySweepBatchSize)
	if err != nil {
		return fmt.Errorf("query expired orders: %w", err)
	}

	var errs []error
	expired := 0
	for i := range stale {
		order := stale[i]
		if err := j.expireOrder(ctx, &order); err != nil {
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.OrderNumber, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": expired, "scanned": len(stale)})
	j.logg.Info(logCtx, "order expiry sweep complete")
	return multierr.Combine(errs...)
}

func (j *orderExpiryJob) expireOrder(ctx context.Context, order *models.Order) error {
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)
		_, err := orders.ApplyTransition(ctx, repo, order, lifecycle.Expired{}, j.now().UTC())
		return err
	})
	if err != nil {
		// a payment confirmation or a concurrent sweep won the race
		if pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) || pkgerrors.HasCode(err, pkgerrors.CodeOrderTerminal) {
			logCtx := j.logg.WithOrderNumber(ctx, order.OrderNumber)
			j.logg.Warn(logCtx, fmt.Sprintf("skipping expiry, order moved to %s", order.Status))
			return nil
		}
		return err
	}

	if j.notifier != nil && order.Status == enums.OrderStatusCancelled {
		notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		j.notifier.NotifyCustomer(notifyCtx, order, enums.NotificationEventOrderExpired)
	}
	return nil
}
