// Package wiring assembles the enrollment pipeline services shared by the api and cron binaries.
package wiring

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/learnhub-backend/internal/catalog"
	"github.com/angelmondragon/learnhub-backend/internal/certificates"
	"github.com/angelmondragon/learnhub-backend/internal/enrollments"
	"github.com/angelmondragon/learnhub-backend/internal/gateway"
	"github.com/angelmondragon/learnhub-backend/internal/ledger"
	"github.com/angelmondragon/learnhub-backend/internal/payments"
	"github.com/angelmondragon/learnhub-backend/internal/progress"
	"github.com/angelmondragon/learnhub-backend/internal/quizzes"
	"github.com/angelmondragon/learnhub-backend/pkg/config"
	"github.com/angelmondragon/learnhub-backend/pkg/db"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	"github.com/angelmondragon/learnhub-backend/pkg/metrics"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox"
)

type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Cache    catalog.Cache
	Registry prometheus.Registerer
}

type Services struct {
	Catalog      *catalog.Service
	Enrollments  enrollments.Service
	Payments     payments.Service
	Certificates certificates.Service
	Progress     progress.Service
	Metrics      *metrics.PipelineMetrics
}

// Build wires every pipeline service against one database client. Cache may be nil.
func Build(params Params) (*Services, error) {
	cfg, logg, dbClient := params.Config, params.Logger, params.DB
	if cfg == nil || logg == nil || dbClient == nil {
		return nil, fmt.Errorf("config, logger and database are required")
	}

	currency, err := enums.ParseCurrency(cfg.Payments.DefaultCurrency)
	if err != nil {
		return nil, err
	}

	pipelineMetrics := metrics.NewPipelineMetrics(params.Registry)
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	enrollmentRepo := ledger.NewEnrollmentRepository(dbClient.DB())

	courses, err := catalog.NewService(catalog.ServiceParams{
		Repository: catalog.NewRepository(dbClient.DB()),
		Cache:      params.Cache,
		TTL:        cfg.Catalog.CacheTTL,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	enrollmentSvc, err := enrollments.NewService(enrollments.ServiceParams{
		Repository: enrollmentRepo,
		Catalog:    courses,
		Tx:         dbClient,
		Outbox:     emitter,
		Metrics:    pipelineMetrics,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("enrollments: %w", err)
	}

	gw, err := gateway.NewSimulated(cfg.Payments.GatewaySecret, cfg.Payments.HandoffTTL)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Repository:      ledger.NewPaymentRepository(dbClient.DB()),
		Enrollments:     enrollmentSvc,
		Catalog:         courses,
		Gateway:         gw,
		Tx:              dbClient,
		Outbox:          emitter,
		Metrics:         pipelineMetrics,
		Logger:          logg,
		DefaultCurrency: currency,
	})
	if err != nil {
		return nil, fmt.Errorf("payments: %w", err)
	}

	certificateSvc, err := certificates.NewService(certificates.ServiceParams{
		Certificates:            ledger.NewCertificateRepository(dbClient.DB()),
		Enrollments:             enrollmentRepo,
		Catalog:                 courses,
		Quizzes:                 quizzes.NewService(dbClient.DB()),
		Tx:                      dbClient,
		Outbox:                  emitter,
		Metrics:                 pipelineMetrics,
		Logger:                  logg,
		SigningSecret:           cfg.Certificates.SigningSecret,
		DefaultMinimumProgress:  cfg.Certificates.DefaultMinimumProgress,
		DefaultMinimumQuizScore: cfg.Certificates.DefaultMinimumQuizScore,
		BulkAssumedQuizScore:    cfg.Certificates.BulkAssumedQuizScore,
		BulkBatchSize:           cfg.Certificates.BulkBatchSize,
		PublicBaseURL:           cfg.API.PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("certificates: %w", err)
	}

	progressSvc, err := progress.NewService(progress.ServiceParams{
		Repository: enrollmentRepo,
		Issuer:     certificateSvc,
		Tx:         dbClient,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("progress: %w", err)
	}

	return &Services{
		Catalog:      courses,
		Enrollments:  enrollmentSvc,
		Payments:     paymentSvc,
		Certificates: certificateSvc,
		Progress:     progressSvc,
		Metrics:      pipelineMetrics,
	}, nil
}
