package config

import (
	"fmt"
	"time"
)

type PaymentsConfig struct {
	DefaultCurrency string        `envconfig:"LEARNHUB_PAYMENTS_DEFAULT_CURRENCY" default:"USD"`
	PendingTTL      time.Duration `envconfig:"LEARNHUB_PAYMENTS_PENDING_TTL" default:"30m"`
	GatewaySecret   string        `envconfig:"LEARNHUB_PAYMENTS_GATEWAY_SECRET" required:"true"`
	HandoffTTL      time.Duration `envconfig:"LEARNHUB_PAYMENTS_HANDOFF_TTL" default:"15m"`
	ExpiryBatchSize int           `envconfig:"LEARNHUB_PAYMENTS_EXPIRY_BATCH_SIZE" default:"100"`
}

type CertificatesConfig struct {
	// SigningSecret keys the verification token HMAC. Empty falls back to plain SHA-256.
	SigningSecret           string `envconfig:"LEARNHUB_CERTIFICATES_SIGNING_SECRET"`
	BulkAssumedQuizScore    int    `envconfig:"LEARNHUB_CERTIFICATES_BULK_ASSUMED_QUIZ_SCORE" default:"85"`
	BulkBatchSize           int    `envconfig:"LEARNHUB_CERTIFICATES_BULK_BATCH_SIZE" default:"200"`
	DefaultMinimumProgress  int    `envconfig:"LEARNHUB_CERTIFICATES_DEFAULT_MINIMUM_PROGRESS" default:"100"`
	DefaultMinimumQuizScore int    `envconfig:"LEARNHUB_CERTIFICATES_DEFAULT_MINIMUM_QUIZ_SCORE" default:"70"`
}

func (c CertificatesConfig) validate() error {
	if err := percent(EnvCertBulkAssumedScore, c.BulkAssumedQuizScore); err != nil {
		return err
	}
	return percent(EnvCertDefaultMinProgress, c.DefaultMinimumProgress)
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"LEARNHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"LEARNHUB_OUTBOX_PUBLISH_POLL" default:"500ms"`
	PublishTimeout time.Duration `envconfig:"LEARNHUB_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
	MaxAttempts    int           `envconfig:"LEARNHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MetricsAddr    string        `envconfig:"LEARNHUB_OUTBOX_METRICS_ADDR" default:":9091"`

	// Retention is how long delivered rows are kept before the cron worker prunes them.
	Retention      time.Duration `envconfig:"LEARNHUB_OUTBOX_RETENTION" default:"720h"`
	PruneBatchSize int           `envconfig:"LEARNHUB_OUTBOX_PRUNE_BATCH_SIZE" default:"500"`
}

func (o OutboxConfig) validate() error {
	if o.MaxAttempts < 1 {
		return fmt.Errorf("%s must be at least 1", EnvOutboxMaxAttempts)
	}
	if o.Retention < time.Hour {
		return fmt.Errorf("%s must be at least 1h", EnvOutboxRetention)
	}
	return nil
}

func percent(env string, value int) error {
	if value < 0 || value > 100 {
		return fmt.Errorf("%s must be between 0 and 100, got %d", env, value)
	}
	return nil
}
