package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mintgate/api/internal/catalog"
	"github.com/mintgate/api/internal/handlers"
	"github.com/mintgate/api/internal/mailer"
	"github.com/mintgate/api/internal/payments"
	"github.com/mintgate/api/internal/platform/config"
	"github.com/mintgate/api/internal/platform/observability"
	"github.com/mintgate/api/internal/platform/requestctx"
	"github.com/mintgate/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		var vErr *config.ValidationError
		if errors.As(err, &vErr) {
			logger.Fatal("configuration incomplete", zap.Strings("fields", vErr.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	eventLogger := newEventLogger(logger)

	provider, err := payments.NewPayPalProvider(payments.PayPalProviderConfig{
		ClientID:     cfg.PSP.PayPalClientID,
		ClientSecret: cfg.PSP.PayPalSecret,
		Environment:  cfg.PSP.Environment,
		Logger:       eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment provider", zap.Error(err))
	}

	receiptMailer, err := mailer.NewReceiptMailer(mailer.ReceiptMailerConfig{
		APIKey:      cfg.Email.SendGridAPIKey,
		FromAddress: cfg.Email.FromAddress,
		Subject:     cfg.Email.Subject,
		Logger:      eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise receipt mailer", zap.Error(err))
	}

	store := catalog.NewMemoryStore(catalog.Defaults())

	pricingService, err := services.NewPricingService(services.PricingServiceDeps{
		Store:          store,
		Currency:       cfg.Pricing.Currency,
		DefaultProduct: cfg.Pricing.DefaultProduct,
		Logger:         eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Provider: provider,
		Store:    store,
		Mailer:   receiptMailer,
		Currency: cfg.Pricing.Currency,
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.TraceMiddleware(),
			observability.InjectLoggerMiddleware(logger),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithPricingRoutes(handlers.NewPricingHandlers(pricingService).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(orderService, cfg.Pricing.DefaultProduct).Routes),
		handlers.WithStaticRoutes(handlers.NewStaticHandlers(cfg.Server.StaticDir).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(
		zap.String("addr", server.Addr),
		zap.String("environment", cfg.PSP.Environment),
	)
	go func() {
		serverLogger.Info("mintgate api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		l := observability.FromContext(ctx)
		if l == nil || l == requestctx.NoopLogger() {
			l = logger
		}
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		l.Info(event, zapFields...)
	}
}
