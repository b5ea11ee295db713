package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Webhooks     WebhooksConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MURALIZE_APP_ENV" required:"true"`
	Port         string `envconfig:"MURALIZE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MURALIZE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MURALIZE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MURALIZE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MURALIZE_DB_DSN"`
	Driver string `envconfig:"MURALIZE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MURALIZE_DB_HOST"`
	LegacyPort     int    `envconfig:"MURALIZE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MURALIZE_DB_USER"`
	LegacyPassword string `envconfig:"MURALIZE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MURALIZE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MURALIZE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MURALIZE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MURALIZE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MURALIZE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MURALIZE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MURALIZE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MURALIZE_REDIS_ADDR"`
	Password     string        `envconfig:"MURALIZE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MURALIZE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MURALIZE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MURALIZE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MURALIZE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MURALIZE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MURALIZE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MURALIZE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MURALIZE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MURALIZE_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MURALIZE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MURALIZE_AUTO_MIGRATE" default:"false"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"MURALIZE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MURALIZE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"MURALIZE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MURALIZE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BillingTopic        string `envconfig:"MURALIZE_PUBSUB_BILLING_TOPIC" required:"true"`
	BillingSubscription string `envconfig:"MURALIZE_PUBSUB_BILLING_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MURALIZE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MURALIZE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MURALIZE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type RateLimitConfig struct {
	Requests int           `envconfig:"MURALIZE_RATE_LIMIT_REQUESTS" default:"120"`
	Window   time.Duration `envconfig:"MURALIZE_RATE_LIMIT_WINDOW" default:"1m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"MURALIZE_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"MURALIZE_CRON_LOCK_TTL" default:"10m"`
}

type StripeConfig struct {
	APIKey             string `envconfig:"MURALIZE_STRIPE_API_KEY"`
	Secret             string `envconfig:"MURALIZE_STRIPE_SECRET"`
	Env                string `envconfig:"MURALIZE_STRIPE_ENV" default:"test"`
	CheckoutSuccessURL string `envconfig:"MURALIZE_STRIPE_CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL  string `envconfig:"MURALIZE_STRIPE_CHECKOUT_CANCEL_URL"`
	PortalReturnURL    string `envconfig:"MURALIZE_STRIPE_PORTAL_RETURN_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
