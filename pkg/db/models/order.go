package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/telestars/premium-backend/pkg/enums"
)

// Order is a subscription purchase moving through the lifecycle. The plan
// fields are a snapshot taken at creation; later catalog edits never touch
// existing orders.
type Order struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       string               `gorm:"column:order_number;uniqueIndex;not null"`
	CustomerID        uuid.UUID            `gorm:"column:customer_id;type:uuid;not null"`
	PlanID            string               `gorm:"column:plan_id;not null"`
	PlanName          string               `gorm:"column:plan_name;not null"`
	PlanPeriodMonths  int                  `gorm:"column:plan_period_months;not null"`
	Amount            decimal.Decimal      `gorm:"column:amount;type:numeric(18,8);not null"`
	Currency          string               `gorm:"column:currency;not null;default:'usd'"`
	Status            enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	FulfillmentTarget string               `gorm:"column:fulfillment_target;not null"`
	PaymentID         *string              `gorm:"column:payment_id"`
	PaymentURL        *string              `gorm:"column:payment_url"`
	ActivationLink    *string              `gorm:"column:activation_link"`
	AdminNotes        *string              `gorm:"column:admin_notes"`
	Transactions      []PaymentTransaction `gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`
	ExpiresAt         *time.Time           `gorm:"column:expires_at"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
