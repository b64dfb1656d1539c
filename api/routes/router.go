package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sweetcrumb/storefront/api/controllers"
	webhookcontrollers "github.com/sweetcrumb/storefront/api/controllers/webhooks"
	"github.com/sweetcrumb/storefront/api/middleware"
	"github.com/sweetcrumb/storefront/internal/cart"
	"github.com/sweetcrumb/storefront/pkg/auth/session"
	"github.com/sweetcrumb/storefront/pkg/config"
	"github.com/sweetcrumb/storefront/pkg/logger"
	"github.com/sweetcrumb/storefront/pkg/metrics"
	"github.com/sweetcrumb/storefront/pkg/redis"
)

// redisStore is the Redis surface the HTTP layer uses directly.
type redisStore interface {
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// Deps carries everything the router wires. Nil services produce 500s on
// their routes rather than a panic so partial deployments stay observable.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Metrics  *metrics.StorefrontMetrics
	Scrape   http.Handler
	DB       controllers.Pinger
	Redis    redisStore
	Sessions session.AccessSessionChecker

	Catalog    controllers.CatalogReader
	CartMirror cart.Mirror
	Auth       controllers.AuthService
	Profiles   controllers.ProfileService
	Checkout   controllers.CheckoutService
	Orders     controllers.OrderLister

	StripeClient   webhookSigner
	WebhookService webhookcontrollers.StripeWebhookService
	WebhookGuard   webhookGuard
}

type webhookSigner interface {
	SigningSecret() string
}

type webhookGuard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	signInPolicy := middleware.NewAuthRateLimitPolicy(
		"signin",
		cfg.AuthRateLimit.SignInWindow,
		cfg.AuthRateLimit.SignInIPLimit,
		cfg.AuthRateLimit.SignInEmailLimit,
	)
	signUpPolicy := middleware.NewAuthRateLimitPolicy(
		"signup",
		cfg.AuthRateLimit.SignUpWindow,
		cfg.AuthRateLimit.SignUpIPLimit,
		cfg.AuthRateLimit.SignUpEmailLimit,
	)

	requireAuth := middleware.Auth(cfg.JWT, d.Sessions, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, d.Sessions, logg)
	cartToken := middleware.CartToken(cfg.Redis.CartTTL, cfg.App.IsProd())

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(d)))
	})
	if d.Scrape != nil {
		r.Method(http.MethodGet, "/metrics", d.Scrape)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			params := webhookcontrollers.StripeWebhookParams{
				Service:      d.WebhookService,
				Guard:        d.WebhookGuard,
				Logger:       logg,
				MaxBodyBytes: cfg.Eventing.WebhookMaxBodyBytes,
			}
			if d.StripeClient != nil {
				params.Client = d.StripeClient
			}
			if d.Metrics != nil {
				params.Metrics = d.Metrics
			}
			r.Post("/stripe", webhookcontrollers.StripeWebhook(params))
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(signUpPolicy, d.Redis, logg)).Post("/signup", controllers.AuthSignUp(d.Auth, logg))
			r.With(middleware.AuthRateLimit(signInPolicy, d.Redis, logg)).Post("/signin", controllers.AuthSignIn(d.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
			r.Get("/session", controllers.AuthSession(d.Auth, logg))
			r.With(requireAuth).Post("/signout", controllers.AuthSignOut(d.Auth, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(d.Catalog, logg))
			r.Get("/{productId}", controllers.ProductDetail(d.Catalog, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(cartToken)
			r.Get("/", controllers.CartGet(d.CartMirror, d.Catalog, logg))
			r.Post("/", controllers.CartAdd(d.CartMirror, d.Catalog, logg))
			r.Delete("/", controllers.CartClear(d.CartMirror, d.Catalog, logg))
			r.Put("/{productId}", controllers.CartUpdate(d.CartMirror, d.Catalog, logg))
			r.Delete("/{productId}", controllers.CartRemove(d.CartMirror, d.Catalog, logg))
		})

		r.With(
			optionalAuth,
			cartToken,
			middleware.Idempotency(d.Redis, cfg.Eventing.RequestIdempotencyTTL, logg),
		).Post("/checkout", controllers.Checkout(d.Checkout, d.CartMirror, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/profile", controllers.ProfileGet(d.Profiles, logg))
			r.Put("/profile", controllers.ProfileUpdate(d.Profiles, logg))
			r.Get("/orders", controllers.OrderList(d.Orders, logg))
		})
	})

	return r
}

func readinessDeps(d Deps) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if d.DB != nil {
		deps["db"] = d.DB
	}
	if d.Redis != nil {
		if p, ok := d.Redis.(controllers.Pinger); ok {
			deps["redis"] = p
		}
	}
	return deps
}
