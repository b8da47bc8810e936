package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Enrollment links one learner to one course.
type Enrollment struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	LearnerID        uuid.UUID          `gorm:"column:learner_id;type:uuid;not null;uniqueIndex:ux_enrollments_learner_course,priority:1"`
	CourseID         uuid.UUID          `gorm:"column:course_id;type:uuid;not null;uniqueIndex:ux_enrollments_learner_course,priority:2;index:idx_enrollments_course"`
	ProgressPercent  int                `gorm:"column:progress_percent;not null"`
	EnrolledAt       time.Time          `gorm:"column:enrolled_at;not null"`
	LastAccessedAt   time.Time          `gorm:"column:last_accessed_at;not null"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
	CompletedLessons []EnrollmentLesson `gorm:"foreignKey:EnrollmentID;constraint:OnDelete:CASCADE"`
}

func (e *Enrollment) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// LessonIDs returns the completed lesson ids in completion order.
func (e *Enrollment) LessonIDs() []string {
	ids := make([]string, 0, len(e.CompletedLessons))
	for _, lesson := range e.CompletedLessons {
		ids = append(ids, lesson.LessonID)
	}
	return ids
}

// EnrollmentLesson records a lesson completed inside an enrollment.
type EnrollmentLesson struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	EnrollmentID uuid.UUID `gorm:"column:enrollment_id;type:uuid;not null;uniqueIndex:ux_enrollment_lessons_lesson,priority:1"`
	LessonID     string    `gorm:"column:lesson_id;not null;uniqueIndex:ux_enrollment_lessons_lesson,priority:2"`
	CompletedAt  time.Time `gorm:"column:completed_at;not null"`
}

func (l *EnrollmentLesson) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
