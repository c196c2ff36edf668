package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/telestars/premium-backend/internal/orders"
	"github.com/telestars/premium-backend/internal/settings"
	"github.com/telestars/premium-backend/pkg/config"
	"github.com/telestars/premium-backend/pkg/db/models"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
)

// Session stages.
const (
	StageAwaitingTarget = "awaiting_target"
)

// Session is the short-lived record between a customer picking a plan and
// supplying the fulfillment target. No Order exists until both are present.
type Session struct {
	TelegramID int64     `json:"telegram_id"`
	PlanID     string    `json:"plan_id"`
	Stage      string    `json:"stage"`
	StartedAt  time.Time `json:"started_at"`
}

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	IntakeSessionKey(customerKey string) string
}

type orderCreator interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error)
}

type settingsProvider interface {
	Snapshot(ctx context.Context) (*settings.Snapshot, error)
}

// Service owns the pending-intake flow ahead of order creation.
type Service struct {
	store    sessionStore
	orders   orderCreator
	settings settingsProvider
	cfg      config.IntakeConfig
	logger   *logger.Logger
}

// ServiceParams wires service dependencies.
type ServiceParams struct {
	Store    sessionStore
	Orders   orderCreator
	Settings settingsProvider
	Config   config.IntakeConfig
	Logger   *logger.Logger
}

// NewService validates dependencies and builds the intake service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, errors.New("session store is required")
	}
	if params.Orders == nil {
		return nil, errors.New("order creator is required")
	}
	if params.Settings == nil {
		return nil, errors.New("settings provider is required")
	}
	return &Service{
		store:    params.Store,
		orders:   params.Orders,
		settings: params.Settings,
		cfg:      params.Config,
		logger:   params.Logger,
	}, nil
}

// ChoosePlan opens a pending session for the customer. Re-choosing replaces
// the previous session.
func (s *Service) ChoosePlan(ctx context.Context, telegramID int64, planID string) (*Session, error) {
	if telegramID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer telegram id is required")
	}

	snapshot, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot.PlanByID(planID) == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("plan %q not found", planID))
	}

	session := &Session{
		TelegramID: telegramID,
		PlanID:     planID,
		Stage:      StageAwaitingTarget,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Current returns the pending session for the customer, if any.
func (s *Service) Current(ctx context.Context, telegramID int64) (*Session, error) {
	raw, err := s.store.Get(ctx, s.key(telegramID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no pending intake session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading intake session")
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding intake session")
	}
	return &session, nil
}

// ProvideTarget completes the pending session with the fulfillment target and
// materializes the order. The session is consumed on success.
func (s *Service) ProvideTarget(ctx context.Context, telegramID int64, target string, customer CustomerInfo) (*models.Order, error) {
	session, err := s.Current(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.CreateOrder(ctx, orders.CreateOrderInput{
		TelegramID:        telegramID,
		Username:          customer.Username,
		FirstName:         customer.FirstName,
		LastName:          customer.LastName,
		PlanID:            session.PlanID,
		FulfillmentTarget: target,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.Del(ctx, s.key(telegramID)); err != nil && s.logger != nil {
		s.logger.Warn(ctx, fmt.Sprintf("clearing consumed intake session: %v", err))
	}
	return order, nil
}

// Cancel discards the pending session.
func (s *Service) Cancel(ctx context.Context, telegramID int64) error {
	if err := s.store.Del(ctx, s.key(telegramID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "discarding intake session")
	}
	return nil
}

// CustomerInfo carries optional customer profile fields from the chat surface.
type CustomerInfo struct {
	Username  *string
	FirstName *string
	LastName  *string
}

func (s *Service) save(ctx context.Context, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding intake session")
	}
	ttl := s.cfg.SessionTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if err := s.store.Set(ctx, s.key(session.TelegramID), payload, ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing intake session")
	}
	return nil
}

func (s *Service) key(telegramID int64) string {
	return s.store.IntakeSessionKey(strconv.FormatInt(telegramID, 10))
}
