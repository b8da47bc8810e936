package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/learnhub-backend/api/controllers"
	"github.com/angelmondragon/learnhub-backend/api/middleware"
	"github.com/angelmondragon/learnhub-backend/internal/certificates"
	"github.com/angelmondragon/learnhub-backend/internal/enrollments"
	"github.com/angelmondragon/learnhub-backend/internal/payments"
	"github.com/angelmondragon/learnhub-backend/internal/progress"
	"github.com/angelmondragon/learnhub-backend/pkg/config"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/learnhub-backend/pkg/redis"
)

// Dependencies carries everything the HTTP surface calls into.
type Dependencies struct {
	Enrollments  enrollments.Service
	Payments     payments.Service
	Progress     progress.Service
	Certificates certificates.Service

	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Metrics     http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.API.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		if cfg.API.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.API.RequestTimeout))
		}

		r.Route("/api/public", func(r chi.Router) {
			r.Get("/certificates/{certificateId}/verify", controllers.VerifyCertificate(deps.Certificates, logg))
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(deps.Idempotency, logg))

			r.Route("/enrollments", func(r chi.Router) {
				r.Post("/", controllers.RequestEnrollment(deps.Enrollments, logg))
				r.Get("/", controllers.ListEnrollments(deps.Enrollments, logg))
				r.Get("/{courseId}", controllers.GetEnrollment(deps.Enrollments, logg))
				r.Put("/{courseId}/progress", controllers.UpdateProgress(deps.Progress, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/", controllers.InitiatePayment(deps.Payments, logg))
				r.Get("/", controllers.ListPaymentHistory(deps.Payments, logg))
				r.Get("/{paymentId}", controllers.GetPayment(deps.Payments, logg))
				r.Post("/{paymentId}/confirm", controllers.ConfirmPayment(deps.Payments, logg))
				r.Post("/{paymentId}/cancel", controllers.CancelPayment(deps.Payments, logg))
			})

			r.With(middleware.RequireRole(logg, enums.RoleAdmin)).
				Post("/webhooks/gateway/failed", controllers.GatewayPaymentFailed(deps.Payments, logg))

			r.Route("/certificates", func(r chi.Router) {
				r.Get("/", controllers.ListMyCertificates(deps.Certificates, logg))
				r.Post("/", controllers.IssueCertificate(deps.Certificates, logg))
				r.Get("/eligibility/{courseId}", controllers.CheckCertificateEligibility(deps.Certificates, logg))
				r.Get("/{certificateId}", controllers.GetCertificate(deps.Certificates, logg))
				r.Get("/{certificateId}/pdf", controllers.DownloadCertificatePDF(deps.Certificates, logg))
			})
		})

		r.Route("/api/admin/v1", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
			r.Use(middleware.Idempotency(deps.Idempotency, logg))

			r.Get("/payments", controllers.AdminListPayments(deps.Payments, logg))
			r.Post("/payments/{paymentId}/refund", controllers.AdminRefundPayment(deps.Payments, logg))
			r.Get("/certificates", controllers.AdminListCertificates(deps.Certificates, logg))
			r.Post("/certificates/{certificateId}/revoke", controllers.AdminRevokeCertificate(deps.Certificates, logg))
			r.Post("/courses/{courseId}/certificates/bulk-issue", controllers.AdminBulkIssueCertificates(deps.Certificates, logg))
		})
	})

	return r
}
