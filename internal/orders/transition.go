package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/telestars/premium-backend/internal/lifecycle"
	"github.com/telestars/premium-backend/pkg/db/models"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
)

// ApplyTransition runs the lifecycle transition on order in memory and
// persists the mutated fields behind a status guard. The repo must be bound to
// the surrounding transaction. When the guard write touches zero rows another
// transition won the race; the order is reloaded and the failure is evaluated
// against the stored state, so exactly one of two concurrent transitions
// succeeds from a given source status.
func ApplyTransition(ctx context.Context, repo Repository, order *models.Order, event lifecycle.Event, now time.Time) (lifecycle.Result, error) {
	result, err := lifecycle.Transition(order, event, now)
	if err != nil {
		return result, err
	}
	if result.NoOp {
		return result, nil
	}

	// Only columns the event wrote go into the guarded update, so a
	// concurrent note append is never clobbered by an unrelated transition.
	updates := map[string]any{
		"status":     order.Status,
		"updated_at": order.UpdatedAt,
	}
	for _, column := range result.Touched {
		switch column {
		case "payment_id":
			updates[column] = order.PaymentID
		case "payment_url":
			updates[column] = order.PaymentURL
		case "activation_link":
			updates[column] = order.ActivationLink
		case "admin_notes":
			updates[column] = order.AdminNotes
		}
	}

	rows, err := repo.UpdateOrderGuarded(ctx, order.ID, result.From.String(), updates)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting order transition")
	}
	if rows > 0 {
		return result, nil
	}

	stored, loadErr := repo.FindOrderByID(ctx, order.ID)
	if loadErr != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, loadErr, "reloading order after lost transition race")
	}
	*order = *stored

	if stored.Status.IsTerminal() {
		return result, pkgerrors.New(pkgerrors.CodeOrderTerminal,
			fmt.Sprintf("order %s moved to terminal status %s concurrently", stored.OrderNumber, stored.Status))
	}
	return result, pkgerrors.New(pkgerrors.CodeInvalidTransition,
		fmt.Sprintf("order %s changed to %s concurrently, %s no longer applies", stored.OrderNumber, stored.Status, event.Name()))
}
