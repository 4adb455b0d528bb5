package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const EnvPrefix = "FUNDI"

const (
	AppEnvDev     = "dev"
	AppEnvStaging = "staging"
	AppEnvProd    = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Paystack     PaystackConfig
	Escrow       EscrowConfig
	Reconcile    ReconcileConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Escrow.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AppConfig carries the deployment stage as explicit configuration. Nothing
// in the codebase may sniff "is this production" from ad-hoc env vars.
type AppConfig struct {
	Env string `envconfig:"FUNDI_APP_ENV" required:"true"`
	// PORT is what container platforms inject; FUNDI_PORT also binds.
	Port         string `envconfig:"PORT" default:"8080"`
	LogLevel     string `envconfig:"FUNDI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FUNDI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FUNDI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"FUNDI_DB_DSN" required:"true"`

	MaxOpenConns    int           `envconfig:"FUNDI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FUNDI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FUNDI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FUNDI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FUNDI_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"FUNDI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FUNDI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FUNDI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FUNDI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FUNDI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies tokens minted by the identity service. This engine only
// consumes identity; it never issues tokens.
type JWTConfig struct {
	Secret string `envconfig:"FUNDI_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"FUNDI_JWT_ISSUER" default:"fundi-identity"`
}

type PaystackConfig struct {
	SecretKey    string        `envconfig:"FUNDI_PAYSTACK_SECRET_KEY" required:"true"`
	BaseURL      string        `envconfig:"FUNDI_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	Timeout      time.Duration `envconfig:"FUNDI_PAYSTACK_TIMEOUT" default:"10s"`
	MaxRetries   int           `envconfig:"FUNDI_PAYSTACK_MAX_RETRIES" default:"3"`
	RetryBackoff time.Duration `envconfig:"FUNDI_PAYSTACK_RETRY_BACKOFF" default:"500ms"`
}

// EscrowConfig carries the business parameters the payment scripts used to
// hard-code. Fee percent and grace period are configuration pending final
// confirmation from the business owner.
type EscrowConfig struct {
	PlatformFeePercent    string        `envconfig:"FUNDI_PLATFORM_FEE_PERCENT" default:"10"`
	AutoConfirmGrace      time.Duration `envconfig:"FUNDI_AUTO_CONFIRM_GRACE" default:"72h"`
	Currency              string        `envconfig:"FUNDI_CURRENCY" default:"NGN"`
	WebhookRetryThreshold int           `envconfig:"FUNDI_WEBHOOK_RETRY_THRESHOLD" default:"5"`
}

// FeePercent parses the configured platform fee into a decimal.
func (e EscrowConfig) FeePercent() decimal.Decimal {
	d, err := decimal.NewFromString(e.PlatformFeePercent)
	if err != nil {
		return decimal.NewFromInt(10)
	}
	return d
}

func (e EscrowConfig) validate() error {
	d, err := decimal.NewFromString(e.PlatformFeePercent)
	if err != nil {
		return fmt.Errorf("invalid platform fee percent %q: %w", e.PlatformFeePercent, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("platform fee percent %s out of range", d)
	}
	if e.AutoConfirmGrace <= 0 {
		return fmt.Errorf("auto confirm grace must be positive")
	}
	if e.WebhookRetryThreshold <= 0 {
		return fmt.Errorf("webhook retry threshold must be positive")
	}
	return nil
}

type ReconcileConfig struct {
	Interval   time.Duration `envconfig:"FUNDI_RECONCILE_INTERVAL" default:"15m"`
	BatchLimit int           `envconfig:"FUNDI_RECONCILE_BATCH_LIMIT" default:"250"`
	LockTTL    time.Duration `envconfig:"FUNDI_RECONCILE_LOCK_TTL" default:"30m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FUNDI_AUTO_MIGRATE" default:"false"`
}
