package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/telestars/premium-backend/api/responses"
	"github.com/telestars/premium-backend/api/validators"
	"github.com/telestars/premium-backend/internal/intake"
	"github.com/telestars/premium-backend/internal/orders"
	"github.com/telestars/premium-backend/pkg/db/models"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
)

type intakeOrdersService interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error)
	InitiatePayment(ctx context.Context, orderNumber string) (*orders.InitiatePaymentResult, error)
	DeleteAbandoned(ctx context.Context, orderNumber string) error
}

type intakeSessionService interface {
	ChoosePlan(ctx context.Context, telegramID int64, planID string) (*intake.Session, error)
	Current(ctx context.Context, telegramID int64) (*intake.Session, error)
	ProvideTarget(ctx context.Context, telegramID int64, target string, customer intake.CustomerInfo) (*models.Order, error)
	Cancel(ctx context.Context, telegramID int64) error
}

type createOrderRequest struct {
	TelegramID        int64   `json:"telegram_id" validate:"required"`
	PlanID            string  `json:"plan_id" validate:"required"`
	FulfillmentTarget string  `json:"fulfillment_target" validate:"required"`
	Username          *string `json:"username,omitempty"`
	FirstName         *string `json:"first_name,omitempty"`
	LastName          *string `json:"last_name,omitempty"`
}

type initiatePaymentResponse struct {
	Order       *OrderView      `json:"order"`
	PayAddress  string          `json:"pay_address"`
	PayAmount   decimal.Decimal `json:"pay_amount"`
	PayCurrency string          `json:"pay_currency"`
}

// IntakeCreateOrder materializes a PENDING order from a completed intake.
func IntakeCreateOrder(svc intakeOrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), orders.CreateOrderInput{
			TelegramID:        body.TelegramID,
			Username:          body.Username,
			FirstName:         body.FirstName,
			LastName:          body.LastName,
			PlanID:            body.PlanID,
			FulfillmentTarget: body.FulfillmentTarget,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, orderView(order))
	}
}

// IntakeInitiatePayment creates the provider payment for a PENDING order.
func IntakeInitiatePayment(svc intakeOrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		result, err := svc.InitiatePayment(r.Context(), orderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, initiatePaymentResponse{
			Order:       orderView(result.Order),
			PayAddress:  result.PayAddress,
			PayAmount:   result.PayAmount,
			PayCurrency: result.PayCurrency,
		})
	}
}

// IntakeAbandonOrder deletes a PENDING order the customer walked away from
// before initiating payment.
func IntakeAbandonOrder(svc intakeOrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		if err := svc.DeleteAbandoned(r.Context(), orderNumber); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type startSessionRequest struct {
	TelegramID int64  `json:"telegram_id" validate:"required"`
	PlanID     string `json:"plan_id" validate:"required"`
}

type provideTargetRequest struct {
	FulfillmentTarget string  `json:"fulfillment_target" validate:"required"`
	Username          *string `json:"username,omitempty"`
	FirstName         *string `json:"first_name,omitempty"`
	LastName          *string `json:"last_name,omitempty"`
}

// IntakeStartSession opens a pending intake session for a chosen plan.
func IntakeStartSession(svc intakeSessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intake service unavailable"))
			return
		}

		var body startSessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.ChoosePlan(r.Context(), body.TelegramID, body.PlanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// IntakeSessionStatus returns the customer's pending session, if any.
func IntakeSessionStatus(svc intakeSessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intake service unavailable"))
			return
		}

		telegramID, err := telegramIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Current(r.Context(), telegramID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// IntakeProvideTarget completes the pending session and materializes the
// PENDING order.
func IntakeProvideTarget(svc intakeSessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intake service unavailable"))
			return
		}

		telegramID, err := telegramIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body provideTargetRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ProvideTarget(r.Context(), telegramID, body.FulfillmentTarget, intake.CustomerInfo{
			Username:  body.Username,
			FirstName: body.FirstName,
			LastName:  body.LastName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, orderView(order))
	}
}

// IntakeCancelSession discards the customer's pending session.
func IntakeCancelSession(svc intakeSessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intake service unavailable"))
			return
		}

		telegramID, err := telegramIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), telegramID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

func telegramIDParam(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "telegramID"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "telegram id must be a positive number")
	}
	return id, nil
}
