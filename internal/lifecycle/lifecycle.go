package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/enums"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
)

// Result reports the applied transition.
type Result struct {
	From enums.OrderStatus
	To   enums.OrderStatus
	// Touched lists the order columns the event wrote beyond status and
	// updated_at, so persistence only writes what the event changed.
	Touched []string
	// NoOp is set when the event was accepted without changing the order
	// (idempotent expiry of an already-cancelled order).
	NoOp bool
}

// Transition applies event to order in memory. State, timestamps, and event
// payload (notes, artifacts, payment references) mutate together; on error the
// order is left untouched. Persistence is the caller's job and must guard the
// write with the returned source status.
func Transition(order *models.Order, event Event, now time.Time) (Result, error) {
	if order == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeInternal, "order is required")
	}
	if event == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeInternal, "event is required")
	}

	from := order.Status

	if from.IsTerminal() {
		if _, ok := event.(Expired); ok && from == enums.OrderStatusCancelled {
			return Result{From: from, To: from, NoOp: true}, nil
		}
		return Result{}, pkgerrors.New(pkgerrors.CodeOrderTerminal,
			fmt.Sprintf("order %s is terminal (%s), event %s not allowed", order.OrderNumber, from, event.Name()))
	}

	var to enums.OrderStatus
	var touched []string
	switch ev := event.(type) {
	case PaymentInitiated:
		if from != enums.OrderStatusPending {
			return Result{}, invalidTransition(order, event, enums.OrderStatusPending)
		}
		paymentID := strings.TrimSpace(ev.PaymentID)
		if paymentID == "" {
			return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required to initiate payment")
		}
		order.PaymentID = &paymentID
		touched = append(touched, "payment_id")
		if url := strings.TrimSpace(ev.PaymentURL); url != "" {
			order.PaymentURL = &url
			touched = append(touched, "payment_url")
		}
		to = enums.OrderStatusAwaitingPayment

	case PaymentConfirmed:
		if from != enums.OrderStatusAwaitingPayment {
			return Result{}, invalidTransition(order, event, enums.OrderStatusAwaitingPayment)
		}
		to = enums.OrderStatusPaymentReceived

	case ReviewQueued:
		if from != enums.OrderStatusPaymentReceived {
			return Result{}, invalidTransition(order, event, enums.OrderStatusPaymentReceived)
		}
		if ev.CreditInsufficient {
			to = enums.OrderStatusAwaitingCredit
		} else {
			to = enums.OrderStatusAdminReview
		}

	case AdminApproved:
		if from != enums.OrderStatusAdminReview {
			return Result{}, invalidTransition(order, event, enums.OrderStatusAdminReview)
		}
		link := strings.TrimSpace(ev.ActivationLink)
		if link == "" {
			return Result{}, pkgerrors.New(pkgerrors.CodeMissingArtifact,
				fmt.Sprintf("order %s cannot be approved without an activation link", order.OrderNumber))
		}
		order.ActivationLink = &link
		touched = append(touched, "activation_link")
		if notes := strings.TrimSpace(ev.Notes); notes != "" {
			AppendNote(order, now, notes)
			touched = append(touched, "admin_notes")
		}
		to = enums.OrderStatusApproved

	case ProvisioningStarted:
		if from != enums.OrderStatusAdminReview {
			return Result{}, invalidTransition(order, event, enums.OrderStatusAdminReview)
		}
		to = enums.OrderStatusSupplierProcessing

	case AdminRejected:
		switch from {
		case enums.OrderStatusAdminReview, enums.OrderStatusAwaitingCredit, enums.OrderStatusSupplierProcessing:
		default:
			return Result{}, invalidTransition(order, event, enums.OrderStatusAdminReview)
		}
		reason := strings.TrimSpace(ev.Reason)
		if reason == "" {
			return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
		}
		AppendNote(order, now, "rejected: "+reason)
		touched = append(touched, "admin_notes")
		to = enums.OrderStatusRejected

	case CreditConfirmed:
		if from != enums.OrderStatusAwaitingCredit {
			return Result{}, invalidTransition(order, event, enums.OrderStatusAwaitingCredit)
		}
		to = enums.OrderStatusSupplierProcessing

	case SupplierCompleted:
		if from != enums.OrderStatusSupplierProcessing {
			return Result{}, invalidTransition(order, event, enums.OrderStatusSupplierProcessing)
		}
		link := strings.TrimSpace(ev.ActivationLink)
		if link == "" {
			return Result{}, pkgerrors.New(pkgerrors.CodeMissingArtifact,
				fmt.Sprintf("order %s cannot be completed without an activation link", order.OrderNumber))
		}
		order.ActivationLink = &link
		touched = append(touched, "activation_link")
		if notes := strings.TrimSpace(ev.Notes); notes != "" {
			AppendNote(order, now, notes)
			touched = append(touched, "admin_notes")
		}
		to = enums.OrderStatusApproved

	case Expired:
		if from != enums.OrderStatusPending && from != enums.OrderStatusAwaitingPayment {
			return Result{}, invalidTransition(order, event, enums.OrderStatusPending)
		}
		if order.ExpiresAt == nil || now.Before(*order.ExpiresAt) {
			return Result{}, pkgerrors.New(pkgerrors.CodeInvalidTransition,
				fmt.Sprintf("order %s has not passed its payment window", order.OrderNumber))
		}
		to = enums.OrderStatusCancelled

	default:
		return Result{}, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown lifecycle event %T", event))
	}

	order.Status = to
	if now.After(order.UpdatedAt) {
		order.UpdatedAt = now
	}
	return Result{From: from, To: to, Touched: touched}, nil
}

// AppendNote adds a timestamped line to the order's audit notes.
func AppendNote(order *models.Order, now time.Time, text string) {
	line := fmt.Sprintf("[%s] %s", now.UTC().Format(time.RFC3339), strings.TrimSpace(text))
	if order.AdminNotes == nil || strings.TrimSpace(*order.AdminNotes) == "" {
		order.AdminNotes = &line
		return
	}
	joined := *order.AdminNotes + "\n" + line
	order.AdminNotes = &joined
}

func invalidTransition(order *models.Order, event Event, want enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition,
		fmt.Sprintf("order %s in status %s cannot accept %s (requires %s)", order.OrderNumber, order.Status, event.Name(), want))
}
