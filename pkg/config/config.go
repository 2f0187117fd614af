package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable this service reads.
	EnvPrefix = "SIMMER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	RevenueCat   RevenueCatConfig
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
	Env          string `envconfig:"SIMMER_APP_ENV" required:"true"`
	Port         string `envconfig:"SIMMER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SIMMER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SIMMER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"SIMMER_DB_DSN"`

	Host     string `envconfig:"SIMMER_DB_HOST"`
	Port     int    `envconfig:"SIMMER_DB_PORT" default:"5432"`
	User     string `envconfig:"SIMMER_DB_USER"`
	Password string `envconfig:"SIMMER_DB_PASSWORD"`
	Name     string `envconfig:"SIMMER_DB_NAME"`
	SSLMode  string `envconfig:"SIMMER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SIMMER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SIMMER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SIMMER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SIMMER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SIMMER_REDIS_URL"`
	Address      string        `envconfig:"SIMMER_REDIS_ADDR"`
	Password     string        `envconfig:"SIMMER_REDIS_PASSWORD"`
	DB           int           `envconfig:"SIMMER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SIMMER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SIMMER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SIMMER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SIMMER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SIMMER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SIMMER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SIMMER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SIMMER_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SIMMER_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey string `envconfig:"SIMMER_STRIPE_API_KEY"`
	// Secret is the webhook signing secret (whsec_...).
	Secret string `envconfig:"SIMMER_STRIPE_SECRET"`
	Env    string `envconfig:"SIMMER_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type RevenueCatConfig struct {
	// WebhookSecret is the shared secret RevenueCat presents on every delivery.
	WebhookSecret string `envconfig:"SIMMER_REVENUECAT_WEBHOOK_SECRET"`
	// EntitlementID scopes which RevenueCat entitlement this service tracks.
	// Empty means every entitlement is in scope.
	EntitlementID string `envconfig:"SIMMER_REVENUECAT_ENTITLEMENT_ID"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		"SIMMER_DB_HOST": db.Host,
		"SIMMER_DB_USER": db.User,
		"SIMMER_DB_NAME": db.Name,
	}
	for _, key := range []string{"SIMMER_DB_HOST", "SIMMER_DB_USER", "SIMMER_DB_NAME"} {
		if legacyValues[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either SIMMER_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
