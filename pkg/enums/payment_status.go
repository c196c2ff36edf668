package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus mirrors the provider-reported state of a payment transaction.
type PaymentStatus string

const (
	PaymentStatusWaiting       PaymentStatus = "waiting"
	PaymentStatusConfirming    PaymentStatus = "confirming"
	PaymentStatusConfirmed     PaymentStatus = "confirmed"
	PaymentStatusSending       PaymentStatus = "sending"
	PaymentStatusPartiallyPaid PaymentStatus = "partially_paid"
	PaymentStatusFinished      PaymentStatus = "finished"
	PaymentStatusFailed        PaymentStatus = "failed"
	PaymentStatusRefunded      PaymentStatus = "refunded"
	PaymentStatusExpired       PaymentStatus = "expired"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusWaiting,
	PaymentStatusConfirming,
	PaymentStatusConfirmed,
	PaymentStatusSending,
	PaymentStatusPartiallyPaid,
	PaymentStatusFinished,
	PaymentStatusFailed,
	PaymentStatusRefunded,
	PaymentStatusExpired,
}

// paymentStatusRank orders statuses so regressions can be detected. Terminal
// statuses share the top rank; a transaction never moves between them.
var paymentStatusRank = map[PaymentStatus]int{
	PaymentStatusWaiting:       1,
	PaymentStatusPartiallyPaid: 2,
	PaymentStatusConfirming:    3,
	PaymentStatusConfirmed:     4,
	PaymentStatusSending:       5,
	PaymentStatusFinished:      6,
	PaymentStatusFailed:        6,
	PaymentStatusRefunded:      6,
	PaymentStatusExpired:       6,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ConfirmsFunds reports whether the provider considers the payment funded.
func (p PaymentStatus) ConfirmsFunds() bool {
	return p == PaymentStatusFinished || p == PaymentStatusConfirmed
}

// Rank returns the forward-only ordering position of the status.
func (p PaymentStatus) Rank() int {
	return paymentStatusRank[p]
}

// RegressesFrom reports whether applying p after current would move backward.
func (p PaymentStatus) RegressesFrom(current PaymentStatus) bool {
	return p.Rank() < current.Rank()
}

// ParsePaymentStatus converts raw provider input into a PaymentStatus.
// Providers report statuses in either case.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
