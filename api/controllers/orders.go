package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/telestars/premium-backend/api/responses"
	"github.com/telestars/premium-backend/internal/orders"
	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/enums"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
)

type orderReader interface {
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
}

type customerOrderStatus struct {
	OrderNumber    string     `json:"order_number"`
	StatusText     string     `json:"status_text"`
	PlanName       string     `json:"plan_name"`
	ActivationLink *string    `json:"activation_link,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// CustomerOrderStatus returns the coarse customer-facing order view. Internal
// lifecycle states never leak through this endpoint.
func CustomerOrderStatus(svc orderReader, logg *logger.Logger) http.HandlerFunc {
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

		order, err := svc.GetByOrderNumber(r.Context(), orderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view := customerOrderStatus{
			OrderNumber: order.OrderNumber,
			StatusText:  orders.StatusText(order.Status),
			PlanName:    order.PlanName,
		}
		if order.Status == enums.OrderStatusApproved {
			view.ActivationLink = order.ActivationLink
		}
		if order.Status == enums.OrderStatusAwaitingPayment {
			view.ExpiresAt = order.ExpiresAt
		}
		responses.WriteSuccess(w, view)
	}
}
