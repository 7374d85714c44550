package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/studiohubhq/studiohub-backend/api/routes"
	"github.com/studiohubhq/studiohub-backend/internal/auth"
	"github.com/studiohubhq/studiohub-backend/internal/bookings"
	"github.com/studiohubhq/studiohub-backend/internal/notifications"
	"github.com/studiohubhq/studiohub-backend/internal/orders"
	"github.com/studiohubhq/studiohub-backend/internal/rentals"
	"github.com/studiohubhq/studiohub-backend/internal/users"
	"github.com/studiohubhq/studiohub-backend/internal/wallet"
	squarewebhook "github.com/studiohubhq/studiohub-backend/internal/webhooks/square"
	"github.com/studiohubhq/studiohub-backend/pkg/auth/session"
	"github.com/studiohubhq/studiohub-backend/pkg/config"
	"github.com/studiohubhq/studiohub-backend/pkg/db"
	"github.com/studiohubhq/studiohub-backend/pkg/logger"
	"github.com/studiohubhq/studiohub-backend/pkg/migrate"
	"github.com/studiohubhq/studiohub-backend/pkg/outbox"
	"github.com/studiohubhq/studiohub-backend/pkg/redis"
	"github.com/studiohubhq/studiohub-backend/pkg/square"
)

const squareWebhookDedupeTTL = 48 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	rentalRepo := rentals.NewRepository(dbClient.DB())
	bookingRepo := bookings.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	walletRepo := wallet.NewRepository(dbClient.DB())
	notificationRepo := notifications.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	rentalsService, err := rentals.NewService(rentalRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create rentals service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationRepo, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	bookingsService, err := bookings.NewService(bookings.ServiceParams{
		BookingRepo:       bookingRepo,
		RentalFinder:      rentalRepo,
		Quoter:            rentalsService,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create bookings service", err)
		os.Exit(1)
	}

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create square client", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		OrderRepo:         orderRepo,
		Users:             userRepo,
		Notifier:          notificationsService,
		Outbox:            outboxService,
		CardGateway:       squareClient,
		TransactionRunner: dbClient,
		ReferralPercent:   int64(cfg.Wallet.ReferralPercent),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	walletService, err := wallet.NewService(wallet.ServiceParams{
		WalletRepo:         walletRepo,
		BookingRepo:        bookingRepo,
		Rentals:            rentalRepo,
		Orders:             ordersService,
		Notifier:           notificationsService,
		Outbox:             outboxService,
		TransactionRunner:  dbClient,
		PlatformFeePercent: int64(cfg.Wallet.PlatformFeePercent),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	squareWebhookService, err := squarewebhook.NewService(squarewebhook.ServiceParams{
		Orders:            ordersService,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create square webhook service", err)
		os.Exit(1)
	}

	squareWebhookGuard, err := squarewebhook.NewIdempotencyGuard(redisClient, squareWebhookDedupeTTL, "square-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create square webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:               cfg,
			Logger:               logg,
			RedisClient:          redisClient,
			SessionManager:       sessionManager,
			AuthService:          authService,
			RegisterService:      registerService,
			RentalsService:       rentalsService,
			BookingsService:      bookingsService,
			OrdersService:        ordersService,
			WalletService:        walletService,
			NotificationsService: notificationsService,
			SquareClient:         squareClient,
			SquareWebhookService: squareWebhookService,
			SquareWebhookGuard:   squareWebhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
