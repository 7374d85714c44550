package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studiohubhq/studiohub-backend/api/controllers"
	webhookcontrollers "github.com/studiohubhq/studiohub-backend/api/controllers/webhooks"
	"github.com/studiohubhq/studiohub-backend/api/middleware"
	"github.com/studiohubhq/studiohub-backend/internal/auth"
	"github.com/studiohubhq/studiohub-backend/internal/bookings"
	"github.com/studiohubhq/studiohub-backend/internal/notifications"
	"github.com/studiohubhq/studiohub-backend/internal/orders"
	"github.com/studiohubhq/studiohub-backend/internal/rentals"
	"github.com/studiohubhq/studiohub-backend/internal/wallet"
	squarewebhook "github.com/studiohubhq/studiohub-backend/internal/webhooks/square"
	"github.com/studiohubhq/studiohub-backend/pkg/auth/session"
	"github.com/studiohubhq/studiohub-backend/pkg/config"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
	"github.com/studiohubhq/studiohub-backend/pkg/logger"
	"github.com/studiohubhq/studiohub-backend/pkg/redis"
	"github.com/studiohubhq/studiohub-backend/pkg/square"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// RouterParams bundles the services the HTTP surface depends on.
type RouterParams struct {
	Config               *config.Config
	Logger               *logger.Logger
	RedisClient          *redis.Client
	SessionManager       sessionManager
	AuthService          auth.Service
	RegisterService      auth.RegisterService
	RentalsService       rentals.Service
	BookingsService      bookings.Service
	OrdersService        orders.Service
	WalletService        wallet.Service
	NotificationsService notifications.Service
	SquareClient         *square.Client
	SquareWebhookService *squarewebhook.Service
	SquareWebhookGuard   *squarewebhook.IdempotencyGuard
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
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/square", webhookcontrollers.SquareWebhook(params.SquareWebhookService, params.SquareClient, params.SquareWebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, params.RedisClient, logg)).
			With(middleware.Idempotency(params.RedisClient, logg)).
			Post("/register", controllers.AuthRegister(params.RegisterService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, params.RedisClient, logg)).
			Post("/login", controllers.AuthLogin(params.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(params.AuthService, logg))
		r.With(middleware.Auth(cfg.JWT, params.SessionManager, logg)).
			Post("/logout", controllers.AuthLogout(params.AuthService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, params.SessionManager, logg))
		r.Use(middleware.Idempotency(params.RedisClient, logg))

		r.Route("/rentals", func(r chi.Router) {
			r.Get("/", controllers.ListRentals(params.RentalsService, logg))
			r.Post("/", controllers.CreateRental(params.RentalsService, logg))
			r.Get("/{rentalID}", controllers.GetRental(params.RentalsService, logg))
			r.Delete("/{rentalID}", controllers.DeleteRental(params.RentalsService, logg))
			r.Post("/{rentalID}/restore", controllers.RestoreRental(params.RentalsService, logg))
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", controllers.ListBookings(params.BookingsService, logg))
			r.Post("/", controllers.CreateBooking(params.BookingsService, logg))
			r.Get("/{bookingID}", controllers.GetBooking(params.BookingsService, logg))
			r.Post("/{bookingID}/decision", controllers.DecideBooking(params.BookingsService, logg))
			r.Post("/{bookingID}/cancel", controllers.CancelBooking(params.BookingsService, logg))
			r.Post("/{bookingID}/complaint", controllers.FileBookingComplaint(params.BookingsService, logg))
			r.Post("/{bookingID}/dispute", controllers.FileBookingDispute(params.BookingsService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(params.OrdersService, logg))
			r.Get("/{orderID}", controllers.GetOrder(params.OrdersService, logg))
			r.Post("/{orderID}/accept", controllers.AcceptOffer(params.OrdersService, logg))
			r.Post("/{orderID}/pay/card", controllers.PayOrderByCard(params.OrdersService, logg))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletBalance(params.WalletService, logg))
			r.Post("/pay", controllers.WalletPay(params.WalletService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(params.NotificationsService, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(params.NotificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(params.NotificationsService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
			r.Post("/offers", controllers.CreateOffer(params.OrdersService, logg))
			r.Post("/rentals/{rentalID}/decision", controllers.DecideRental(params.RentalsService, logg))
			r.Post("/bookings/{bookingID}/release-escrow", controllers.ReleaseEscrow(params.WalletService, logg))
		})
	})

	return r
}
