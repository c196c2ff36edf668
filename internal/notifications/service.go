package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/telestars/premium-backend/internal/orders"
	"github.com/telestars/premium-backend/internal/settings"
	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/enums"
	"github.com/telestars/premium-backend/pkg/logger"
)

// Notifier posts lifecycle messages to the customer and the operator channel.
// Calls are fire-and-forget: failures are logged and never propagated back
// into the transition that triggered them.
type Notifier interface {
	NotifyCustomer(ctx context.Context, order *models.Order, event enums.NotificationEvent)
	NotifyOperators(ctx context.Context, order *models.Order, event enums.NotificationEvent)
}

type sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type customerFinder interface {
	FindCustomerByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

type settingsProvider interface {
	Snapshot(ctx context.Context) (*settings.Snapshot, error)
}

// Service is the Telegram bot implementation of Notifier.
type Service struct {
	sender    sender
	customers customerFinder
	settings  settingsProvider
	logger    *logger.Logger
}

// ServiceParams wires service dependencies.
type ServiceParams struct {
	Sender    sender
	Customers customerFinder
	Settings  settingsProvider
	Logger    *logger.Logger
}

// NewService validates dependencies and builds the notifications service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Sender == nil {
		return nil, errors.New("telegram sender is required")
	}
	if params.Customers == nil {
		return nil, errors.New("customer finder is required")
	}
	if params.Settings == nil {
		return nil, errors.New("settings provider is required")
	}
	return &Service{
		sender:    params.Sender,
		customers: params.Customers,
		settings:  params.Settings,
		logger:    params.Logger,
	}, nil
}

// NotifyCustomer sends the event message to the order's customer.
func (s *Service) NotifyCustomer(ctx context.Context, order *models.Order, event enums.NotificationEvent) {
	snapshot, err := s.settings.Snapshot(ctx)
	if err != nil {
		s.logFailure(ctx, order, event, err)
		return
	}
	if !snapshot.Flags.NotificationsEnabled {
		return
	}

	customer, err := s.customers.FindCustomerByID(ctx, order.CustomerID)
	if err != nil {
		s.logFailure(ctx, order, event, err)
		return
	}

	text := customerText(order, event, snapshot.SupportContact)
	if text == "" {
		return
	}
	if err := s.sender.SendMessage(ctx, customer.TelegramID, text); err != nil {
		s.logFailure(ctx, order, event, err)
	}
}

// NotifyOperators fans the event message out to every operator chat plus the
// admin channel when one is configured.
func (s *Service) NotifyOperators(ctx context.Context, order *models.Order, event enums.NotificationEvent) {
	snapshot, err := s.settings.Snapshot(ctx)
	if err != nil {
		s.logFailure(ctx, order, event, err)
		return
	}
	if !snapshot.Flags.NotificationsEnabled {
		return
	}

	text := operatorText(order, event)
	chats := append([]int64{}, snapshot.OperatorChatIDs...)
	if channel, err := strconv.ParseInt(strings.TrimSpace(snapshot.AdminChannel), 10, 64); err == nil {
		chats = append(chats, channel)
	}
	for _, chatID := range chats {
		if err := s.sender.SendMessage(ctx, chatID, text); err != nil {
			s.logFailure(ctx, order, event, err)
		}
	}
}

func (s *Service) logFailure(ctx context.Context, order *models.Order, event enums.NotificationEvent, err error) {
	if s.logger == nil {
		return
	}
	ctx = s.logger.WithOrderNumber(ctx, order.OrderNumber)
	ctx = s.logger.WithField(ctx, "notification_event", event.String())
	s.logger.Warn(ctx, fmt.Sprintf("notification delivery failed: %v", err))
}

func customerText(order *models.Order, event enums.NotificationEvent, supportContact string) string {
	switch event {
	case enums.NotificationEventPaymentReceived:
		return fmt.Sprintf("✅ Payment received for order <b>%s</b>.\n%s",
			order.OrderNumber, orders.StatusText(order.Status))
	case enums.NotificationEventOrderApproved:
		link := ""
		if order.ActivationLink != nil {
			link = *order.ActivationLink
		}
		return fmt.Sprintf("🎉 Order <b>%s</b> is complete!\n%s subscription is active.\nActivation link: %s",
			order.OrderNumber, order.PlanName, link)
	case enums.NotificationEventOrderRejected:
		text := fmt.Sprintf("❌ Order <b>%s</b> could not be completed.", order.OrderNumber)
		if supportContact != "" {
			text += fmt.Sprintf("\nContact support: %s", supportContact)
		}
		return text
	case enums.NotificationEventOrderExpired:
		return fmt.Sprintf("⌛ Order <b>%s</b> expired without payment and was cancelled.", order.OrderNumber)
	default:
		return ""
	}
}

func operatorText(order *models.Order, event enums.NotificationEvent) string {
	switch event {
	case enums.NotificationEventPaymentReceived:
		return fmt.Sprintf("💰 Payment received\nOrder: %s\nPlan: %s\nTarget: @%s\nAmount: %s %s",
			order.OrderNumber, order.PlanName, order.FulfillmentTarget,
			order.Amount.String(), strings.ToUpper(order.Currency))
	case enums.NotificationEventSupplierHandoff:
		return fmt.Sprintf("📦 Order %s handed to supplier processing\nTarget: @%s",
			order.OrderNumber, order.FulfillmentTarget)
	default:
		return fmt.Sprintf("Order %s: %s", order.OrderNumber, event)
	}
}
