package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/eubiosis/checkout/internal/brevo"
	"github.com/eubiosis/checkout/internal/domain/auth"
	"github.com/eubiosis/checkout/internal/domain/cart"
	"github.com/eubiosis/checkout/internal/domain/checkout"
	"github.com/eubiosis/checkout/internal/domain/notify"
	"github.com/eubiosis/checkout/internal/domain/subscriber"
	"github.com/eubiosis/checkout/internal/effect"
	"github.com/eubiosis/checkout/internal/handler"
	"github.com/eubiosis/checkout/internal/payfast"
	"github.com/eubiosis/checkout/internal/storage/objectstore"
	"github.com/eubiosis/checkout/internal/storage/postgres"
	redisstore "github.com/eubiosis/checkout/internal/storage/redis"
	"github.com/eubiosis/checkout/pkg/health"
	"github.com/eubiosis/checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis for sessions and carts.
	rdb, err := redisstore.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "create redis client")
	}
	defer func() { _ = rdb.Close() }()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)

	// Collaborators.
	rec, err := effect.NewRecorder(m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create effect recorder")
	}
	if cfg.Brevo.APIKey == "" {
		lg.Warn("Brevo API key is not set, order emails will fail")
	}
	mailer := brevo.NewClient(brevo.Config{
		APIKey:      cfg.Brevo.APIKey,
		URL:         cfg.Brevo.URL,
		SenderName:  cfg.Brevo.SenderName,
		SenderEmail: cfg.Brevo.SenderEmail,
	}, brevo.Options{
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
		Timeout:        cfg.Brevo.Timeout,
	})
	dispatcher, err := notify.NewDispatcher(mailer, rec, notify.Config{
		Admin:   notify.Recipient{Email: cfg.Brevo.AdminEmail, Name: cfg.Brevo.AdminName},
		SiteURL: cfg.PublicBaseURL,
	})
	if err != nil {
		return errors.Wrap(err, "create notification dispatcher")
	}
	proofs := objectstore.NewStore(objectstore.Config{
		BaseURL:    cfg.Storage.URL,
		ServiceKey: cfg.Storage.ServiceKey,
		Bucket:     cfg.Storage.Bucket,
	}, nil, m.TracerProvider())
	gateway := payfast.NewBuilder(payfast.Config{
		MerchantID:  cfg.PayFast.MerchantID,
		MerchantKey: cfg.PayFast.MerchantKey,
		Passphrase:  cfg.PayFast.Passphrase,
		ProcessURL:  cfg.PayFast.ProcessURL,
		ReturnURL:   cfg.PayFast.ReturnURL,
		CancelURL:   cfg.PayFast.CancelURL,
		NotifyURL:   cfg.PayFast.NotifyURL,
	})
	apiKeys, err := auth.ParseStaticKeys(cfg.Admin.APIKeys)
	if err != nil {
		return errors.Wrap(err, "parse admin api keys")
	}

	// Repositories.
	orderRepo := postgres.NewOrderRepository(pool)
	subscriberRepo := postgres.NewSubscriberRepository(pool)
	sessionStore := redisstore.NewSessionStore(rdb, cfg.Session.CheckoutTTL)
	cartStore := redisstore.NewCartStore(rdb, cfg.Session.CartTTL)

	// Domain services.
	checkoutSvc, err := checkout.NewService(checkout.Deps{
		Sessions: sessionStore,
		Orders:   orderRepo,
		Notifier: dispatcher,
		Proofs:   proofs,
		Gateway:  gateway,
		Recorder: rec,
		Meter:    m.MeterProvider(),
	}, checkout.Config{
		DefaultBundleDiscountPercent: cfg.Pricing.BundleDiscount,
		LimitedDealDiscountPercent:   cfg.Pricing.LimitedDealDiscount,
		SellerNumber:                 cfg.WhatsApp.SellerNumber,
	})
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}
	subscriberSvc := subscriber.NewService(subscriberRepo)
	go func() {
		if err := subscriberSvc.Warm(ctx); err != nil {
			lg.Warn("Subscriber filter warm-up failed", zap.Error(err))
		}
	}()

	// HTTP handlers.
	h := handler.NewHandler(handler.HandlerConfig{
		RedirectDelay:              cfg.PayFast.RedirectDelay,
		LimitedDealDiscountPercent: cfg.Pricing.LimitedDealDiscount,
		MaxProofBytes:              cfg.Storage.MaxProofMB << 20,
	}, handler.Deps{
		Checkout:    checkoutSvc,
		Cart:        cart.NewService(cartStore, checkoutSvc.BundleDiscounts()...),
		Subscribers: subscriberSvc,
		Orders:      orderRepo,
		Mailer:      dispatcher,
		APIKeys:     apiKeys,
		Pepper:      []byte(cfg.Admin.APIKeyPepper),
	})
	router := h.Routes()
	healthSvc.Mount(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}
	healthSvc.SetReady(true)

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
