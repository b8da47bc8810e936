package config

const (
	EnvPrefix = "LEARNHUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvAppEnv   = "LEARNHUB_APP_ENV"
	EnvPort     = "LEARNHUB_APP_PORT"
	EnvDBDSN    = "LEARNHUB_DB_DSN"
	EnvDBDriver = "LEARNHUB_DB_DRIVER"
	EnvDBHost   = "LEARNHUB_DB_HOST"
	EnvDBUser   = "LEARNHUB_DB_USER"
	EnvDBName   = "LEARNHUB_DB_NAME"

	EnvRedisURL      = "LEARNHUB_REDIS_URL"
	EnvJWTSecret     = "LEARNHUB_JWT_SECRET"
	EnvJWTIssuer     = "LEARNHUB_JWT_ISSUER"
	EnvJWTExpMins    = "LEARNHUB_JWT_EXPIRATION_MINUTES"
	EnvGatewaySecret = "LEARNHUB_PAYMENTS_GATEWAY_SECRET"
	EnvPendingTTL    = "LEARNHUB_PAYMENTS_PENDING_TTL"

	EnvCertSigningSecret      = "LEARNHUB_CERTIFICATES_SIGNING_SECRET"
	EnvCertBulkAssumedScore   = "LEARNHUB_CERTIFICATES_BULK_ASSUMED_QUIZ_SCORE"
	EnvCertDefaultMinProgress = "LEARNHUB_CERTIFICATES_DEFAULT_MINIMUM_PROGRESS"

	EnvPubSubDomainTopic = "LEARNHUB_PUBSUB_DOMAIN_TOPIC"

	EnvOutboxMaxAttempts = "LEARNHUB_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxRetention   = "LEARNHUB_OUTBOX_RETENTION"

	EnvCronLockTTL    = "LEARNHUB_CRON_LOCK_TTL"
	EnvCronJobTimeout = "LEARNHUB_CRON_JOB_TIMEOUT"
)
