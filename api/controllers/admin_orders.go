package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/telestars/premium-backend/api/responses"
	"github.com/telestars/premium-backend/api/validators"
	"github.com/telestars/premium-backend/internal/orders"
	"github.com/telestars/premium-backend/pkg/callinoo"
	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/enums"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
	"github.com/telestars/premium-backend/pkg/pagination"
)

type adminOrdersService interface {
	List(ctx context.Context, query orders.ListOrdersQuery) (*orders.OrderList, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	AppendNote(ctx context.Context, orderNumber, note string) (*models.Order, error)
}

type fulfillmentService interface {
	Approve(ctx context.Context, orderNumber, notes, manualLink string) (*models.Order, error)
	Reject(ctx context.Context, orderNumber, reason string) (*models.Order, error)
	ConfirmCredit(ctx context.Context, orderNumber string) (*models.Order, error)
	CompleteSupplier(ctx context.Context, orderNumber, activationLink string) (*models.Order, error)
	SupplierBalance(ctx context.Context) (*callinoo.Balance, error)
}

type adminOrderListResponse struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

type approveOrderRequest struct {
	Notes          string `json:"notes,omitempty"`
	ActivationLink string `json:"activation_link,omitempty"`
}

type rejectOrderRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type supplierCompleteRequest struct {
	ActivationLink string `json:"activation_link" validate:"required"`
}

type appendNoteRequest struct {
	Note string `json:"note" validate:"required"`
}

// AdminListOrders returns one page of orders, newest first.
func AdminListOrders(svc adminOrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}

		query := orders.ListOrdersQuery{Limit: limit, Cursor: cursor}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			query.Status = &status
		}

		list, err := svc.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, adminOrderListResponse{
			Orders:     orderViews(list.Orders),
			NextCursor: list.NextCursor,
		})
	}
}

// AdminOrderDetail returns the full admin projection of a single order.
func AdminOrderDetail(svc adminOrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		order, err := svc.GetByOrderNumber(r.Context(), orderNumberParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderView(order))
	}
}

// AdminApproveOrder completes an order under review, optionally with an
// operator-supplied activation link.
func AdminApproveOrder(svc fulfillmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		var body approveOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Approve(r.Context(), orderNumberParam(r), body.Notes, body.ActivationLink)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderView(order))
	}
}

// AdminRejectOrder refuses an order with an operator-supplied reason.
func AdminRejectOrder(svc fulfillmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		var body rejectOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Reject(r.Context(), orderNumberParam(r), body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderView(order))
	}
}

// AdminConfirmCredit hands an order waiting on supplier credit to the
// back-office supplier flow.
func AdminConfirmCredit(svc fulfillmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		order, err := svc.ConfirmCredit(r.Context(), orderNumberParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderView(order))
	}
}

// AdminSupplierComplete closes the back-office supplier flow with the
// supplier's activation link.
func AdminSupplierComplete(svc fulfillmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		var body supplierCompleteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CompleteSupplier(r.Context(), orderNumberParam(r), body.ActivationLink)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderView(order))
	}
}

// AdminAppendNote attaches a timestamped operator note.
func AdminAppendNote(svc adminOrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var body appendNoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.AppendNote(r.Context(), orderNumberParam(r), body.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderView(order))
	}
}

// AdminSupplierBalance reports the remaining supplier credit.
func AdminSupplierBalance(svc fulfillmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		balance, err := svc.SupplierBalance(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

func orderNumberParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "orderNumber"))
}
