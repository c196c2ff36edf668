package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/enums"
	"github.com/telestars/premium-backend/pkg/pagination"
)

// CreateOrderInput carries everything intake collected for a new order.
type CreateOrderInput struct {
	TelegramID        int64
	Username          *string
	FirstName         *string
	LastName          *string
	PlanID            string
	FulfillmentTarget string
}

// InitiatePaymentResult bundles the order and its fresh transaction along with
// the customer-facing payment instructions.
type InitiatePaymentResult struct {
	Order       *models.Order
	Transaction *models.PaymentTransaction
	PayAddress  string
	PayAmount   decimal.Decimal
	PayCurrency string
}

// ListOrdersQuery filters the admin order listing.
type ListOrdersQuery struct {
	Status     *enums.OrderStatus
	CustomerID *uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
}

// OrderList is one page of the admin listing.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}

// StatusText maps internal order state to the coarse text customers see.
// Raw taxonomy never leaks here.
func StatusText(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusPending:
		return "Your order is being prepared."
	case enums.OrderStatusAwaitingPayment:
		return "Waiting for your payment."
	case enums.OrderStatusPaymentReceived, enums.OrderStatusAdminReview,
		enums.OrderStatusAwaitingCredit, enums.OrderStatusSupplierProcessing:
		return "Payment received. Your order is being processed."
	case enums.OrderStatusApproved:
		return "Your subscription is active. Check your activation link."
	case enums.OrderStatusRejected:
		return "Your order could not be completed. Contact support."
	case enums.OrderStatusCancelled:
		return "Your order was cancelled."
	default:
		return "Order status unavailable."
	}
}
