package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/learnhub-backend/api/responses"
	"github.com/angelmondragon/learnhub-backend/api/validators"
	"github.com/angelmondragon/learnhub-backend/internal/enrollments"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

type enrollRequest struct {
	CourseID uuid.UUID `json:"course_id" validate:"required"`
}

// RequestEnrollment enrolls the caller into a free course.
func RequestEnrollment(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "enrollments")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body enrollRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithCourseID(r.Context(), body.CourseID.String())
		enrollment, err := svc.RequestEnrollment(ctx, actor.UserID, body.CourseID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, enrollment)
	}
}

// ListEnrollments returns the caller's enrollments, newest first.
func ListEnrollments(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "enrollments")
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

// GetEnrollment returns the caller's progress in one course.
func GetEnrollment(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "enrollments")
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

		enrollment, err := svc.GetProgress(r.Context(), actor.UserID, courseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, enrollment)
	}
}
