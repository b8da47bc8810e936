package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/learnhub-backend/api/responses"
	"github.com/angelmondragon/learnhub-backend/api/validators"
	"github.com/angelmondragon/learnhub-backend/internal/certificates"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

type issueCertificateRequest struct {
	CourseID  uuid.UUID  `json:"course_id" validate:"required"`
	LearnerID *uuid.UUID `json:"learner_id"`
	QuizScore *int       `json:"quiz_score" validate:"omitempty,min=0,max=100"`
}

type revokeCertificateRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type bulkIssueRequest struct {
	AssumedQuizScore *int `json:"assumed_quiz_score" validate:"omitempty,min=0,max=100"`
}

func certificateIDParam(r *http.Request, name string) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, name))
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	return id, nil
}

// IssueCertificate issues a certificate for the caller, or for learner_id when an admin asks.
func IssueCertificate(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "certificates")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body issueCertificateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		learnerID := actor.UserID
		if body.LearnerID != nil && *body.LearnerID != uuid.Nil {
			learnerID = *body.LearnerID
		}

		ctx := logg.WithCourseID(r.Context(), body.CourseID.String())
		cert, err := svc.IssueCertificate(ctx, certificates.IssueInput{
			LearnerID: learnerID,
			CourseID:  body.CourseID,
			QuizScore: body.QuizScore,
			Source:    enums.CertificateSourceManual,
			Actor:     actor,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, cert)
	}
}

func CheckCertificateEligibility(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "certificates")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		courseID, err := validators.ParseUUIDParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eligibility, err := svc.CheckEligibility(r.Context(), actor.UserID, courseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, eligibility)
	}
}

func ListMyCertificates(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "certificates")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForLearner(r.Context(), actor.UserID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetCertificate(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "certificates")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := certificateIDParam(r, "certificateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cert, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cert)
	}
}

// DownloadCertificatePDF streams the rendered certificate document.
func DownloadCertificatePDF(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "certificates")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := certificateIDParam(r, "certificateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		doc, err := svc.RenderPDF(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteAttachment(r.Context(), logg, w, "application/pdf", id+".pdf", doc)
	}
}

// VerifyCertificate is the unauthenticated check printed on every certificate.
func VerifyCertificate(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "certificates")
			return
		}
		id, err := certificateIDParam(r, "certificateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Verify(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminListCertificates(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "certificates")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		courseID, err := validators.ParseOptionalUUIDQuery(r, "course_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListAll(r.Context(), actor, courseID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminRevokeCertificate(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "certificates")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := certificateIDParam(r, "certificateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body revokeCertificateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cert, err := svc.Revoke(r.Context(), actor, id, validators.TrimText(body.Reason, maxReasonLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cert)
	}
}

// AdminBulkIssueCertificates issues certificates to every enrolled learner of a course who lacks one.
func AdminBulkIssueCertificates(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "certificates")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		courseID, err := validators.ParseUUIDParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body bulkIssueRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithCourseID(r.Context(), courseID.String())
		report, err := svc.BulkIssue(ctx, actor, courseID, body.AssumedQuizScore)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
