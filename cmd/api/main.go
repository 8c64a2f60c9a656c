package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mapmarket/mapmarket-backend/api/routes"
	"github.com/mapmarket/mapmarket-backend/internal/billing"
	"github.com/mapmarket/mapmarket-backend/internal/cart"
	"github.com/mapmarket/mapmarket-backend/internal/notifications"
	"github.com/mapmarket/mapmarket-backend/internal/orders"
	"github.com/mapmarket/mapmarket-backend/internal/otp"
	"github.com/mapmarket/mapmarket-backend/internal/payments"
	"github.com/mapmarket/mapmarket-backend/internal/products"
	"github.com/mapmarket/mapmarket-backend/internal/qrpayments"
	"github.com/mapmarket/mapmarket-backend/internal/timeline"
	"github.com/mapmarket/mapmarket-backend/internal/users"
	"github.com/mapmarket/mapmarket-backend/internal/wishlist"
	"github.com/mapmarket/mapmarket-backend/pkg/config"
	"github.com/mapmarket/mapmarket-backend/pkg/db"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
	"github.com/mapmarket/mapmarket-backend/pkg/metrics"
	"github.com/mapmarket/mapmarket-backend/pkg/migrate"
	"github.com/mapmarket/mapmarket-backend/pkg/redis"
)

const webhookDedupTTL = 24 * time.Hour

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

	gormDB := dbClient.DB()
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	usersRepo := users.NewRepository(gormDB)
	productsRepo := products.NewRepository(gormDB)
	reviewsRepo := products.NewReviewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	wishlistRepo := wishlist.NewRepository(gormDB)
	billingRepo := billing.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	otpRepo := otp.NewRepository(gormDB)
	attemptsRepo := payments.NewRepository(gormDB)
	qrRepo := qrpayments.NewRepository(gormDB)

	recorder, err := timeline.NewRecorder(timeline.NewRepository(gormDB))
	requireResource(logg, "timeline recorder", err)

	mailer, err := notifications.NewSendgridMailer(cfg.Email)
	requireResource(logg, "sendgrid mailer", err)

	notifier, err := notifications.NewNotifier(mailer, logg)
	requireResource(logg, "notifier", err)

	usersSvc, err := users.NewService(users.ServiceParams{
		Repo:      usersRepo,
		Counter:   redisClient,
		JWT:       cfg.JWT,
		Password:  cfg.Password,
		RateLimit: cfg.RateLimit,
		Logger:    logg,
	})
	requireResource(logg, "users service", err)

	productsSvc, err := products.NewService(productsRepo, reviewsRepo, ordersRepo, dbClient, logg)
	requireResource(logg, "products service", err)

	cartSvc, err := cart.NewService(cartRepo, productsRepo, logg)
	requireResource(logg, "cart service", err)

	wishlistSvc, err := wishlist.NewService(wishlistRepo, productsRepo, logg)
	requireResource(logg, "wishlist service", err)

	billingSvc, err := billing.NewService(billingRepo, dbClient, logg)
	requireResource(logg, "billing service", err)

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, products.NewCatalogAdapter(productsRepo), recorder, notifier, cfg.OTP, logg)
	requireResource(logg, "orders service", err)

	reconciler, err := payments.NewReconciler(attemptsRepo, ordersRepo, dbClient, recorder, paymentMetrics, logg)
	requireResource(logg, "payment reconciler", err)

	razorpayClient, err := payments.NewRazorpayClient(cfg.Razorpay, paymentMetrics)
	requireResource(logg, "razorpay client", err)

	stripeGateway, err := payments.NewStripeGateway(context.Background(), cfg.Stripe, logg)
	requireResource(logg, "stripe gateway", err)

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Attempts:   attemptsRepo,
		Orders:     ordersRepo,
		Razorpay:   razorpayClient,
		Stripe:     stripeGateway,
		Reconciler: reconciler,
		Logger:     logg,
	})
	requireResource(logg, "payments service", err)

	webhookGuard, err := payments.NewIdempotencyGuard(redisClient, webhookDedupTTL, "payment-webhook")
	requireResource(logg, "webhook idempotency guard", err)

	renderer, err := qrpayments.NewHTTPRenderer(cfg.UPI.RendererURL, 10*time.Second)
	requireResource(logg, "qr renderer", err)

	qrSvc, err := qrpayments.NewService(qrpayments.ServiceParams{
		Repo:       qrRepo,
		Orders:     ordersRepo,
		Attempts:   attemptsRepo,
		Reconciler: reconciler,
		Tx:         dbClient,
		Renderer:   renderer,
		UPI:        cfg.UPI,
		QR:         cfg.QR,
		Logger:     logg,
	})
	requireResource(logg, "qr payment service", err)

	otpSvc, err := otp.NewService(otpRepo, redisClient, notifier, cfg.OTP, logg)
	requireResource(logg, "otp service", err)

	router := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Users:         usersSvc,
		Products:      productsSvc,
		Cart:          cartSvc,
		Wishlist:      wishlistSvc,
		Billing:       billingSvc,
		Orders:        ordersSvc,
		Payments:      paymentsSvc,
		QRPayments:    qrSvc,
		OTP:           otpSvc,
		StripeGateway: stripeGateway,
		WebhookGuard:  webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		graceCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+resource, err)
	os.Exit(1)
}
