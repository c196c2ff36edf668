package enums

import "fmt"

// OrderStatus tracks the lifecycle of a subscription order.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "pending"
	OrderStatusAwaitingPayment    OrderStatus = "awaiting_payment"
	OrderStatusPaymentReceived    OrderStatus = "payment_received"
	OrderStatusAdminReview        OrderStatus = "admin_review"
	OrderStatusAwaitingCredit     OrderStatus = "awaiting_credit"
	OrderStatusSupplierProcessing OrderStatus = "supplier_processing"
	OrderStatusApproved           OrderStatus = "approved"
	OrderStatusRejected           OrderStatus = "rejected"
	OrderStatusCancelled          OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusAwaitingPayment,
	OrderStatusPaymentReceived,
	OrderStatusAdminReview,
	OrderStatusAwaitingCredit,
	OrderStatusSupplierProcessing,
	OrderStatusApproved,
	OrderStatusRejected,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave this status.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusApproved, OrderStatusRejected, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
