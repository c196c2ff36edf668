package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/telestars/premium-backend/pkg/enums"
	"github.com/telestars/premium-backend/pkg/types"
)

// PaymentTransaction records provider-side payment progress for an order.
// IPNData keeps the raw callback payload verbatim for audit.
type PaymentTransaction struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	PaymentID   string              `gorm:"column:payment_id;uniqueIndex;not null"`
	Amount      decimal.Decimal     `gorm:"column:amount;type:numeric(18,8);not null"`
	Currency    string              `gorm:"column:currency;not null;default:'usd'"`
	PayCurrency string              `gorm:"column:pay_currency;not null;default:'trx'"`
	Status      enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'waiting'"`
	IPNData     types.JSONMap       `gorm:"column:ipn_data;type:jsonb"`
	CompletedAt *time.Time          `gorm:"column:completed_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
