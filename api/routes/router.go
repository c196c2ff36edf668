package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telestars/premium-backend/api/controllers"
	webhookcontrollers "github.com/telestars/premium-backend/api/controllers/webhooks"
	"github.com/telestars/premium-backend/api/middleware"
	"github.com/telestars/premium-backend/internal/auth"
	"github.com/telestars/premium-backend/internal/intake"
	"github.com/telestars/premium-backend/internal/orders"
	"github.com/telestars/premium-backend/internal/payments"
	"github.com/telestars/premium-backend/internal/settings"
	"github.com/telestars/premium-backend/pkg/callinoo"
	"github.com/telestars/premium-backend/pkg/config"
	"github.com/telestars/premium-backend/pkg/db"
	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/logger"
	"github.com/telestars/premium-backend/pkg/redis"
)

type authService interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
}

type ordersService interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error)
	InitiatePayment(ctx context.Context, orderNumber string) (*orders.InitiatePaymentResult, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	List(ctx context.Context, query orders.ListOrdersQuery) (*orders.OrderList, error)
	AppendNote(ctx context.Context, orderNumber, note string) (*models.Order, error)
	DeleteAbandoned(ctx context.Context, orderNumber string) error
}

type intakeService interface {
	ChoosePlan(ctx context.Context, telegramID int64, planID string) (*intake.Session, error)
	Current(ctx context.Context, telegramID int64) (*intake.Session, error)
	ProvideTarget(ctx context.Context, telegramID int64, target string, customer intake.CustomerInfo) (*models.Order, error)
	Cancel(ctx context.Context, telegramID int64) error
}

type paymentsService interface {
	HandleCallback(ctx context.Context, rawPayload []byte, signature string) (*payments.CallbackResult, error)
}

type fulfillmentService interface {
	Approve(ctx context.Context, orderNumber, notes, manualLink string) (*models.Order, error)
	Reject(ctx context.Context, orderNumber, reason string) (*models.Order, error)
	ConfirmCredit(ctx context.Context, orderNumber string) (*models.Order, error)
	CompleteSupplier(ctx context.Context, orderNumber, activationLink string) (*models.Order, error)
	SupplierBalance(ctx context.Context) (*callinoo.Balance, error)
}

type settingsService interface {
	Snapshot(ctx context.Context) (*settings.Snapshot, error)
	List(ctx context.Context) ([]models.Setting, error)
	Update(ctx context.Context, values map[string]string) error
}

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Auth        authService
	Orders      ordersService
	Intake      intakeService
	Payments    paymentsService
	Fulfillment fulfillmentService
	Settings    settingsService
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginUsernameLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/nowpayments/ipn", webhookcontrollers.NowPaymentsIPN(params.Payments, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(params.Redis, logg))

		r.Get("/plans", controllers.ListPlans(params.Settings, logg))
		r.Route("/intake/sessions", func(r chi.Router) {
			r.Post("/", controllers.IntakeStartSession(params.Intake, logg))
			r.Get("/{telegramID}", controllers.IntakeSessionStatus(params.Intake, logg))
			r.Post("/{telegramID}/target", controllers.IntakeProvideTarget(params.Intake, logg))
			r.Delete("/{telegramID}", controllers.IntakeCancelSession(params.Intake, logg))
		})
		r.Route("/intake/orders", func(r chi.Router) {
			r.Post("/", controllers.IntakeCreateOrder(params.Orders, logg))
			r.Post("/{orderNumber}/payment", controllers.IntakeInitiatePayment(params.Orders, logg))
			r.Delete("/{orderNumber}", controllers.IntakeAbandonOrder(params.Orders, logg))
		})
		r.Get("/orders/{orderNumber}", controllers.CustomerOrderStatus(params.Orders, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, params.Redis, logg)).
			Post("/auth/login", controllers.AdminAuthLogin(params.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(params.Redis, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminListOrders(params.Orders, logg))
				r.Get("/{orderNumber}", controllers.AdminOrderDetail(params.Orders, logg))
				r.Post("/{orderNumber}/approve", controllers.AdminApproveOrder(params.Fulfillment, logg))
				r.Post("/{orderNumber}/reject", controllers.AdminRejectOrder(params.Fulfillment, logg))
				r.Post("/{orderNumber}/confirm-credit", controllers.AdminConfirmCredit(params.Fulfillment, logg))
				r.Post("/{orderNumber}/supplier-complete", controllers.AdminSupplierComplete(params.Fulfillment, logg))
				r.Post("/{orderNumber}/notes", controllers.AdminAppendNote(params.Orders, logg))
			})

			r.Get("/supplier/balance", controllers.AdminSupplierBalance(params.Fulfillment, logg))

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", controllers.AdminListSettings(params.Settings, logg))
				r.Put("/", controllers.AdminUpdateSettings(params.Settings, logg))
			})
		})
	})

	return r
}
