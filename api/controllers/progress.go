package controllers

import (
	"net/http"

	"github.com/angelmondragon/learnhub-backend/api/responses"
	"github.com/angelmondragon/learnhub-backend/api/validators"
	"github.com/angelmondragon/learnhub-backend/internal/progress"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

type progressRequest struct {
	ProgressPercent   *int    `json:"progress_percent" validate:"required"`
	CompletedLessonID *string `json:"completed_lesson_id" validate:"omitempty,min=1,max=128"`
}

// UpdateProgress records lesson progress. Reaching 100% triggers certificate issuance, whose
// outcome is reported next to the enrollment rather than failing the request.
func UpdateProgress(svc progress.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "progress")
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

		var body progressRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.CompletedLessonID != nil {
			lesson := validators.TrimText(*body.CompletedLessonID, 128)
			body.CompletedLessonID = &lesson
		}

		ctx := logg.WithCourseID(r.Context(), courseID.String())
		result, err := svc.UpdateProgress(ctx, progress.Update{
			LearnerID:         actor.UserID,
			CourseID:          courseID,
			ProgressPercent:   *body.ProgressPercent,
			CompletedLessonID: body.CompletedLessonID,
			Actor:             actor,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
