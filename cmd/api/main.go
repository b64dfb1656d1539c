// Command api serves the storefront HTTP API.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/sweetcrumb/storefront/api"
	"github.com/sweetcrumb/storefront/api/routes"
	"github.com/sweetcrumb/storefront/internal/auth"
	"github.com/sweetcrumb/storefront/internal/cart"
	"github.com/sweetcrumb/storefront/internal/catalog"
	"github.com/sweetcrumb/storefront/internal/checkout"
	"github.com/sweetcrumb/storefront/internal/orders"
	"github.com/sweetcrumb/storefront/internal/payments"
	"github.com/sweetcrumb/storefront/internal/profiles"
	"github.com/sweetcrumb/storefront/internal/users"
	stripewebhook "github.com/sweetcrumb/storefront/internal/webhooks/stripe"
	"github.com/sweetcrumb/storefront/pkg/auth/session"
	"github.com/sweetcrumb/storefront/pkg/config"
	"github.com/sweetcrumb/storefront/pkg/db"
	"github.com/sweetcrumb/storefront/pkg/instance"
	"github.com/sweetcrumb/storefront/pkg/logger"
	"github.com/sweetcrumb/storefront/pkg/metrics"
	"github.com/sweetcrumb/storefront/pkg/migrate"
	"github.com/sweetcrumb/storefront/pkg/redis"
	pkgstripe "github.com/sweetcrumb/storefront/pkg/stripe"
	"github.com/sweetcrumb/storefront/pkg/tracing"
)

func main() {
	boot := context.Background()
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "api"}).Error(boot, "config.load", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	if envErr != nil {
		logg.Debug(boot, "no .env file; using process environment")
	}

	if err := run(cfg, logg); err != nil {
		logg.Error(boot, "api.exit", err)
		os.Exit(1)
	}
}

// closers collects shutdown hooks and runs them in reverse order.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) close() (err error) {
	for i := len(c) - 1; i >= 0; i-- {
		err = multierr.Append(err, c[i]())
	}
	return err
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleanup closers
	defer func() { err = multierr.Append(err, cleanup.close()) }()

	deps, err := wire(ctx, cfg, logg, &cleanup)
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logg.Info(ctx, "api.listening")
	if err := api.Serve(ctx, api.NewServer(addr, routes.NewRouter(deps)), ln, api.ShutdownTimeout, logg); err != nil {
		return err
	}
	logg.Info(ctx, "api.stopped")
	return nil
}

// wire opens the backing stores and assembles every service the router needs.
func wire(ctx context.Context, cfg *config.Config, logg *logger.Logger, cleanup *closers) (routes.Deps, error) {
	var deps routes.Deps

	shutdownTracing, err := tracing.Init(cfg.Tracing, os.Stdout)
	if err != nil {
		return deps, err
	}
	cleanup.add(func() error { return shutdownTracing(context.WithoutCancel(ctx)) })

	store, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return deps, err
	}
	cleanup.add(store.Close)
	if err := migrate.MaybeRunDev(ctx, cfg, logg, store); err != nil {
		return deps, err
	}

	cache, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return deps, err
	}
	cleanup.add(cache.Close)

	sessions, err := session.NewManager(cache, cfg.JWT)
	if err != nil {
		return deps, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	meter := metrics.NewStorefrontMetrics(registry)

	orm := store.DB()
	products := catalog.New(cfg.Stripe.PriceOverrides())
	profileSvc, err := profiles.NewService(profiles.NewRepository(orm))
	if err != nil {
		return deps, err
	}
	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(orm),
		Profiles:       profileSvc,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return deps, err
	}
	unsubscribe := authSvc.OnSessionChange(auth.AuditLog(logg))
	cleanup.add(func() error { unsubscribe(); return nil })
	ledger, err := orders.NewLedger(orders.NewRepository(orm))
	if err != nil {
		return deps, err
	}

	checkoutParams := checkout.Params{
		Profiles:      profileSvc,
		Catalog:       products,
		Logger:        logg,
		Metrics:       meter,
		PublicBaseURL: cfg.App.PublicBaseURL,
	}
	var stripeClient *pkgstripe.Client
	if cfg.Stripe.Configured() {
		if stripeClient, err = pkgstripe.NewClient(ctx, cfg.Stripe, logg); err != nil {
			return deps, err
		}
		gateway, err := payments.NewStripeGateway(stripeClient)
		if err != nil {
			return deps, err
		}
		checkoutParams.Gateway = gateway
	} else {
		logg.Warn(ctx, "stripe not configured; checkout and webhooks will fail")
	}
	coordinator, err := checkout.NewCoordinator(checkoutParams)
	if err != nil {
		return deps, err
	}

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{Ledger: ledger, Logger: logg})
	if err != nil {
		return deps, err
	}
	guard, err := stripewebhook.NewIdempotencyGuard(cache, cfg.Eventing.WebhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		return deps, err
	}

	deps = routes.Deps{
		Config:         cfg,
		Logger:         logg,
		Metrics:        meter,
		Scrape:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		DB:             store,
		Redis:          cache,
		Sessions:       sessions,
		Catalog:        products,
		CartMirror:     cart.NewRedisMirror(cache, cfg.Redis.CartTTL),
		Auth:           authSvc,
		Profiles:       profileSvc,
		Orders:         ledger,
		Checkout:       coordinator,
		WebhookService: webhookSvc,
		WebhookGuard:   guard,
	}
	if stripeClient != nil {
		deps.StripeClient = stripeClient
	}
	return deps, nil
}
