package controllers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/telestars/premium-backend/pkg/db/models"
)

// OrderView is the admin-facing order projection.
type OrderView struct {
	OrderNumber       string          `json:"order_number"`
	Status            string          `json:"status"`
	PlanID            string          `json:"plan_id"`
	PlanName          string          `json:"plan_name"`
	PlanPeriodMonths  int             `json:"plan_period_months"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	FulfillmentTarget string          `json:"fulfillment_target"`
	PaymentID         *string         `json:"payment_id,omitempty"`
	PaymentURL        *string         `json:"payment_url,omitempty"`
	ActivationLink    *string         `json:"activation_link,omitempty"`
	AdminNotes        *string         `json:"admin_notes,omitempty"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func orderView(order *models.Order) *OrderView {
	if order == nil {
		return nil
	}
	return &OrderView{
		OrderNumber:       order.OrderNumber,
		Status:            order.Status.String(),
		PlanID:            order.PlanID,
		PlanName:          order.PlanName,
		PlanPeriodMonths:  order.PlanPeriodMonths,
		Amount:            order.Amount,
		Currency:          order.Currency,
		FulfillmentTarget: order.FulfillmentTarget,
		PaymentID:         order.PaymentID,
		PaymentURL:        order.PaymentURL,
		ActivationLink:    order.ActivationLink,
		AdminNotes:        order.AdminNotes,
		ExpiresAt:         order.ExpiresAt,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
}

func orderViews(orders []models.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, *orderView(&orders[i]))
	}
	return views
}
