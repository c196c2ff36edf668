package enums

// NotificationEvent names the order lifecycle moments that trigger messages.
type NotificationEvent string

const (
	NotificationEventPaymentReceived NotificationEvent = "payment_received"
	NotificationEventOrderApproved   NotificationEvent = "order_approved"
	NotificationEventOrderRejected   NotificationEvent = "order_rejected"
	NotificationEventOrderExpired    NotificationEvent = "order_expired"
	NotificationEventSupplierHandoff NotificationEvent = "supplier_handoff"
)

// String implements fmt.Stringer.
func (n NotificationEvent) String() string {
	return string(n)
}
