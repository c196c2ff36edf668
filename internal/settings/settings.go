package settings

import (
	"github.com/shopspring/decimal"
)

// Setting keys persisted in the key-value store.
const (
	KeyPlans           = "plans"
	KeyFeatureFlags    = "feature_flags"
	KeyOperatorChatIDs = "operator_chat_ids"
	KeyAdminChannel    = "admin_channel"
	KeyPublicChannel   = "public_channel"
	KeySupportContact  = "support_contact"
)

// Plan is one entry of the subscription catalog.
type Plan struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	PeriodMonths int             `json:"period_months"`
}

// FeatureFlags toggles optional behavior per operation.
type FeatureFlags struct {
	AutomaticFulfillment     bool `json:"automatic_fulfillment"`
	SupplierCreditSufficient bool `json:"supplier_credit_sufficient"`
	NotificationsEnabled     bool `json:"notifications_enabled"`
}

// Snapshot is an immutable read of the configuration store. Callers fetch one
// per operation and never mutate it.
type Snapshot struct {
	Plans           []Plan
	Flags           FeatureFlags
	OperatorChatIDs []int64
	AdminChannel    string
	PublicChannel   string
	SupportContact  string
}

// PlanByID returns the catalog entry for id, or nil.
func (s *Snapshot) PlanByID(id string) *Plan {
	for i := range s.Plans {
		if s.Plans[i].ID == id {
			return &s.Plans[i]
		}
	}
	return nil
}
