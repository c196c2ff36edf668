package lifecycle

// Event is a tagged lifecycle event applied to an order.
type Event interface {
	// Name labels the event in logs and audit notes.
	Name() string
}

// PaymentInitiated records that a provider payment was created for the order.
type PaymentInitiated struct {
	PaymentID  string
	PaymentURL string
}

func (PaymentInitiated) Name() string { return "payment_initiated" }

// PaymentConfirmed records that the provider confirmed funds.
type PaymentConfirmed struct{}

func (PaymentConfirmed) Name() string { return "payment_confirmed" }

// ReviewQueued moves a funded order into the review queue. When supplier
// credit is flagged insufficient the order takes the manual credit path.
type ReviewQueued struct {
	CreditInsufficient bool
}

func (ReviewQueued) Name() string { return "review_queued" }

// AdminApproved completes the order with a fulfillment artifact.
type AdminApproved struct {
	ActivationLink string
	Notes          string
}

func (AdminApproved) Name() string { return "admin_approved" }

// ProvisioningStarted claims an order under review for automatic supplier
// provisioning. The guarded write for this event decides concurrent approvals
// before the supplier is charged.
type ProvisioningStarted struct{}

func (ProvisioningStarted) Name() string { return "provisioning_started" }

// AdminRejected terminates the order with an operator-supplied reason.
type AdminRejected struct {
	Reason string
}

func (AdminRejected) Name() string { return "admin_rejected" }

// CreditConfirmed acknowledges upstream credit is available for manual
// fulfillment.
type CreditConfirmed struct{}

func (CreditConfirmed) Name() string { return "credit_confirmed" }

// SupplierCompleted finishes the supplier path with the artifact.
type SupplierCompleted struct {
	ActivationLink string
	Notes          string
}

func (SupplierCompleted) Name() string { return "supplier_completed" }

// Expired cancels an order whose payment window lapsed.
type Expired struct{}

func (Expired) Name() string { return "expired" }
