// Package config loads every LEARNHUB_* setting once at process start.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	API          APIConfig
	FeatureFlags FeatureFlagsConfig
	Payments     PaymentsConfig
	Certificates CertificatesConfig
	Catalog      CatalogConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

// Load reads the environment and reports every invalid setting at once.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	err := multierr.Combine(
		cfg.DB.resolveDSN(),
		cfg.Certificates.validate(),
		cfg.Outbox.validate(),
		cfg.Cron.validate(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEARNHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"LEARNHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LEARNHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEARNHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool { return envIs(a.Env, AppEnvDev) }

func (a AppConfig) IsProd() bool { return envIs(a.Env, AppEnvProd, "production") }

func envIs(env string, names ...string) bool {
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(env), name) {
			return true
		}
	}
	return false
}

type ServiceConfig struct {
	Kind string `envconfig:"LEARNHUB_SERVICE_KIND" default:"api"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEARNHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LEARNHUB_REDIS_ADDR"`
	Password     string        `envconfig:"LEARNHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEARNHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEARNHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEARNHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEARNHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEARNHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEARNHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LEARNHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LEARNHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LEARNHUB_JWT_EXPIRATION_MINUTES" default:"60"`
	// Audience is checked only when set.
	Audience string        `envconfig:"LEARNHUB_JWT_AUDIENCE"`
	Leeway   time.Duration `envconfig:"LEARNHUB_JWT_LEEWAY" default:"30s"`
}

type APIConfig struct {
	RequestTimeout time.Duration `envconfig:"LEARNHUB_API_REQUEST_TIMEOUT" default:"15s"`
	PublicBaseURL  string        `envconfig:"LEARNHUB_API_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	AllowedOrigins []string      `envconfig:"LEARNHUB_API_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LEARNHUB_AUTO_MIGRATE" default:"false"`
}

type CatalogConfig struct {
	CacheTTL time.Duration `envconfig:"LEARNHUB_CATALOG_CACHE_TTL" default:"5m"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"LEARNHUB_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"LEARNHUB_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"LEARNHUB_PUBSUB_DOMAIN_TOPIC" default:"learnhub-domain-events"`
	CreateTopic bool   `envconfig:"LEARNHUB_PUBSUB_CREATE_TOPIC" default:"false"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LEARNHUB_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"LEARNHUB_CRON_LOCK_TTL" default:"5m"`
	// JobTimeout must stay below LockTTL.
	JobTimeout time.Duration `envconfig:"LEARNHUB_CRON_JOB_TIMEOUT" default:"4m"`
}

func (c CronConfig) validate() error {
	if c.JobTimeout > 0 && c.JobTimeout >= c.LockTTL {
		return fmt.Errorf("%s must be shorter than %s", EnvCronJobTimeout, EnvCronLockTTL)
	}
	return nil
}
