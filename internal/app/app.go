package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/offer-checkout/internal/domain/customer"
	"github.com/xenking/offer-checkout/internal/domain/notification"
	"github.com/xenking/offer-checkout/internal/domain/offer"
	"github.com/xenking/offer-checkout/internal/domain/order"
	"github.com/xenking/offer-checkout/internal/domain/payment"
	"github.com/xenking/offer-checkout/internal/domain/voucher"
	"github.com/xenking/offer-checkout/internal/handler"
	"github.com/xenking/offer-checkout/internal/paygate"
	"github.com/xenking/offer-checkout/internal/sparkpost"
	"github.com/xenking/offer-checkout/internal/storage/postgres"
	"github.com/xenking/offer-checkout/pkg/health"
	"github.com/xenking/offer-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.Bool("payment_sandbox", cfg.Payment.Sandbox),
		zap.Bool("mail_enabled", cfg.Mail.Enabled),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// External services.
	gateway, err := newGateway(cfg.Payment, m)
	if err != nil {
		return errors.Wrap(err, "create payment gateway")
	}
	mailer, err := newMailer(cfg.Mail, m)
	if err != nil {
		return errors.Wrap(err, "create mailer")
	}

	// Confirmation dispatcher. Stopped after the server so in-flight orders
	// can still queue their emails.
	dispatcher := notification.NewDispatcher(mailer,
		notification.NewComposer(cfg.Mail.Template, cfg.Mail.UseDraftTemplate),
		notification.DispatcherConfig{
			Workers:         cfg.Notifications.Workers,
			QueueSize:       cfg.Notifications.QueueSize,
			MaxRetries:      cfg.Notifications.MaxRetries,
			InitialInterval: cfg.Notifications.InitialInterval,
			SendTimeout:     cfg.Mail.Timeout,
		},
	)
	dispatcher.Start(zctx.Base(ctx, lg.Named("notify")))

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("notifications", time.Second,
		health.QueueDepthCheck(dispatcher.Pending, cfg.Notifications.QueueSize-1),
	)
	healthSvc.Start(zctx.Base(ctx, lg.Named("health")), 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	offerRepo := postgres.NewOfferRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	// Domain services.
	catalog := offer.NewCatalog(offerRepo)
	orderService, err := order.NewService(
		catalog,
		customer.NewResolver(customerRepo),
		gateway,
		orderRepo,
		voucher.NewRandomGenerator(),
		dispatcher,
		order.Config{
			PersistAttempts:        cfg.Orders.PersistAttempts,
			PersistInitialInterval: cfg.Orders.PersistInitialInterval,
			TracerProvider:         m.TracerProvider(),
			MeterProvider:          m.MeterProvider(),
		},
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// Router: health endpoints + API routes on one server.
	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	handler.NewHandler(catalog, orderService, gateway).Register(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Covers a slow processor round trip plus the order write.
		WriteTimeout:   cfg.Payment.Timeout + 15*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("checkout-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "X-Request-ID"},
				ExposeHeaders:    []string{"X-Request-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:        cfg.RateLimit.Max,
				Window:     cfg.RateLimit.Window,
				TrustProxy: cfg.RateLimit.TrustProxy,
			}),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		lg.Info("Draining confirmations", zap.Int("pending", dispatcher.Pending()))
		dispatcher.Stop(shutdownCtx)
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func newGateway(cfg PaymentConfig, m *app.Telemetry) (payment.Gateway, error) {
	if cfg.Sandbox {
		return paygate.Sandbox{}, nil
	}
	return paygate.NewClient(paygate.Config{
		Environment:    cfg.Environment,
		BaseURL:        cfg.BaseURL,
		MerchantID:     cfg.MerchantID,
		PublicKey:      cfg.PublicKey,
		PrivateKey:     cfg.PrivateKey,
		Timeout:        cfg.Timeout,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
}

func newMailer(cfg MailConfig, m *app.Telemetry) (notification.Mailer, error) {
	if !cfg.Enabled {
		return sparkpost.LogMailer{}, nil
	}
	return sparkpost.NewClient(sparkpost.Config{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		Timeout:        cfg.Timeout,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
}
