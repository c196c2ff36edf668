package fulfillment

import (
	"context"
	"strings"
	"time"

	"github.com/telestars/premium-backend/pkg/callinoo"
	"github.com/telestars/premium-backend/pkg/db/models"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
)

// Artifact is what a fulfiller hands back once a subscription exists.
type Artifact struct {
	ActivationLink  string
	SupplierOrderID string
}

// Fulfiller produces the activation artifact for an approved order.
type Fulfiller interface {
	Fulfill(ctx context.Context, order *models.Order) (*Artifact, error)
}

type provisioner interface {
	CreatePremium(ctx context.Context, username string, periodMonths int) (*callinoo.PremiumOrder, error)
}

// AutomaticFulfiller provisions subscriptions through the supplier API with a
// bounded timeout per call.
type AutomaticFulfiller struct {
	provider provisioner
	timeout  time.Duration
}

// NewAutomaticFulfiller wraps the provisioning client.
func NewAutomaticFulfiller(provider provisioner, timeout time.Duration) *AutomaticFulfiller {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AutomaticFulfiller{provider: provider, timeout: timeout}
}

// Fulfill calls the supplier and returns its activation artifact.
func (f *AutomaticFulfiller) Fulfill(ctx context.Context, order *models.Order) (*Artifact, error) {
	if f == nil || f.provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "provisioning client not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	premium, err := f.provider.CreatePremium(ctx, order.FulfillmentTarget, order.PlanPeriodMonths)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		ActivationLink:  premium.ActivationLink,
		SupplierOrderID: premium.OrderID,
	}, nil
}

// ManualFulfiller echoes an operator-supplied activation link.
type ManualFulfiller struct {
	Link string
}

// Fulfill returns the operator artifact, requiring a non-empty link.
func (f ManualFulfiller) Fulfill(ctx context.Context, order *models.Order) (*Artifact, error) {
	link := strings.TrimSpace(f.Link)
	if link == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMissingArtifact, "activation link is required for manual fulfillment")
	}
	return &Artifact{ActivationLink: link}, nil
}
