package enrollments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/pagination"
)

// Enrollment is the API view of a learner's access to a course.
type Enrollment struct {
	ID               uuid.UUID `json:"id"`
	LearnerID        uuid.UUID `json:"learner_id"`
	CourseID         uuid.UUID `json:"course_id"`
	EnrolledAt       time.Time `json:"enrolled_at"`
	ProgressPercent  int       `json:"progress_percent"`
	CompletedLessons []string  `json:"completed_lessons"`
	LastAccessedAt   time.Time `json:"last_accessed_at"`
}

// EnrollmentList is a page of a learner's enrollments.
type EnrollmentList = pagination.Page[Enrollment]

// FromModel converts a stored enrollment into its API view.
func FromModel(m *models.Enrollment) Enrollment {
	return Enrollment{
		ID:               m.ID,
		LearnerID:        m.LearnerID,
		CourseID:         m.CourseID,
		EnrolledAt:       m.EnrolledAt,
		ProgressPercent:  m.ProgressPercent,
		CompletedLessons: m.LessonIDs(),
		LastAccessedAt:   m.LastAccessedAt,
	}
}

// PaymentRequiredDetails accompanies PAYMENT_REQUIRED so clients can start checkout.
type PaymentRequiredDetails struct {
	CourseID   uuid.UUID `json:"course_id"`
	PriceCents int64     `json:"price_cents"`
	Price      string    `json:"price"`
	Currency   string    `json:"currency"`
}
