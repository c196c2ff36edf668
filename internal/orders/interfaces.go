package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/pagination"
)

// Repository defines persistence operations for orders, transactions, and the
// customers they belong to.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error)
	FindCustomerByTelegramID(ctx context.Context, telegramID int64) (*models.Customer, error)
	FindCustomerByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListOrders(ctx context.Context, query ListOrdersQuery) ([]models.Order, *pagination.Cursor, error)
	// UpdateOrderGuarded applies updates only while the row still holds the
	// expected status, returning the number of rows touched.
	UpdateOrderGuarded(ctx context.Context, orderID uuid.UUID, expected string, updates map[string]any) (int64, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	CreateTransaction(ctx context.Context, transaction *models.PaymentTransaction) (*models.PaymentTransaction, error)
	FindTransactionByPaymentID(ctx context.Context, paymentID string) (*models.PaymentTransaction, error)
	CountTransactionsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindExpiredOrders(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}
