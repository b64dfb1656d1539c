package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	Stripe        StripeConfig
	Tracing       TracingConfig
	Client        ClientConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.resolveDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient reads only the settings the terminal client needs.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env           string   `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port          string   `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel      string   `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack  bool     `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	PublicBaseURL string   `envconfig:"STOREFRONT_PUBLIC_BASE_URL" default:"http://localhost:3000"`
	CORSOrigins   []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DBConfig takes a full DSN, or the discrete parts a managed Postgres
// exposes, which Load assembles into a DSN.
type DBConfig struct {
	DSN string `envconfig:"STOREFRONT_DB_DSN"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
	CartTTL      time.Duration `envconfig:"STOREFRONT_REDIS_CART_TTL" default:"720h"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"STOREFRONT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOREFRONT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOREFRONT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STOREFRONT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOREFRONT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOREFRONT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	SignInWindow     time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_SIGNIN_WINDOW" default:"1m"`
	SignInEmailLimit int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_SIGNIN_EMAIL_LIMIT" default:"5"`
	SignInIPLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_SIGNIN_IP_LIMIT" default:"20"`
	SignUpWindow     time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignUpEmailLimit int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_SIGNUP_EMAIL_LIMIT" default:"3"`
	SignUpIPLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"STOREFRONT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookMaxBodyBytes   int64         `envconfig:"STOREFRONT_WEBHOOK_MAX_BODY_BYTES" default:"1048576"`
	RequestIdempotencyTTL time.Duration `envconfig:"STOREFRONT_REQUEST_IDEMPOTENCY_TTL" default:"24h"`
}

type StripeConfig struct {
	APIKey      string        `envconfig:"STOREFRONT_STRIPE_API_KEY"`
	Secret      string        `envconfig:"STOREFRONT_STRIPE_SECRET"`
	Env         string        `envconfig:"STOREFRONT_STRIPE_ENV" default:"test"`
	HTTPTimeout time.Duration `envconfig:"STOREFRONT_STRIPE_HTTP_TIMEOUT" default:"30s"`

	PriceCC6       string `envconfig:"STOREFRONT_STRIPE_PRICE_CC_6"`
	PriceCC12      string `envconfig:"STOREFRONT_STRIPE_PRICE_CC_12"`
	PriceBC6       string `envconfig:"STOREFRONT_STRIPE_PRICE_BC_6"`
	PriceBC12      string `envconfig:"STOREFRONT_STRIPE_PRICE_BC_12"`
	PriceHH6       string `envconfig:"STOREFRONT_STRIPE_PRICE_HH_6"`
	PriceHH12      string `envconfig:"STOREFRONT_STRIPE_PRICE_HH_12"`
	PriceDoughPint string `envconfig:"STOREFRONT_STRIPE_PRICE_DOUGH_PINT"`
	PriceDoughQt   string `envconfig:"STOREFRONT_STRIPE_PRICE_DOUGH_QUART"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Configured reports whether both the API key and the webhook secret are present.
func (s StripeConfig) Configured() bool {
	return strings.TrimSpace(s.APIKey) != "" && strings.TrimSpace(s.Secret) != ""
}

// PriceOverrides maps catalog product ids to configured Stripe price ids.
// Blank entries are omitted so the catalog defaults apply.
func (s StripeConfig) PriceOverrides() map[string]string {
	all := map[string]string{
		"cc-6":        s.PriceCC6,
		"cc-12":       s.PriceCC12,
		"bc-6":        s.PriceBC6,
		"bc-12":       s.PriceBC12,
		"hh-6":        s.PriceHH6,
		"hh-12":       s.PriceHH12,
		"dough-pint":  s.PriceDoughPint,
		"dough-quart": s.PriceDoughQt,
	}
	out := make(map[string]string, len(all))
	for id, price := range all {
		if v := strings.TrimSpace(price); v != "" {
			out[id] = v
		}
	}
	return out
}

type TracingConfig struct {
	Enabled     bool   `envconfig:"STOREFRONT_TRACING_ENABLED" default:"false"`
	ServiceName string `envconfig:"STOREFRONT_TRACING_SERVICE_NAME" default:"storefront-api"`
}

type ClientConfig struct {
	APIBaseURL string        `envconfig:"STOREFRONT_CLIENT_API_URL" default:"http://localhost:8080"`
	StateDir   string        `envconfig:"STOREFRONT_CLIENT_STATE_DIR" default:".storefront"`
	Timeout    time.Duration `envconfig:"STOREFRONT_CLIENT_TIMEOUT" default:"15s"`
}

// resolveDSN fills DSN from the discrete parts when it is not set directly.
func (db *DBConfig) resolveDSN() error {
	if db.DSN != "" {
		return nil
	}
	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("set %s or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}

// validate checks settings that only make sense together.
func (c *Config) validate() error {
	accessTTL := time.Duration(c.JWT.ExpirationMinutes) * time.Minute
	if c.JWT.RefreshTokenTTL() <= accessTTL {
		return fmt.Errorf("%s must exceed %s", EnvRefreshTokenTTLMinutes, EnvJWTExpMins)
	}
	if c.Redis.CartTTL <= 0 {
		return errors.New("STOREFRONT_REDIS_CART_TTL must be positive")
	}
	return nil
}
