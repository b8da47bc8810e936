package models

import (
	"time"

	"github.com/google/uuid"
)

// QuizAttempt is the quiz subsystem's record of a graded attempt.
type QuizAttempt struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	LearnerID   uuid.UUID `gorm:"column:learner_id;type:uuid;not null;index:idx_quiz_attempts_learner_course,priority:1"`
	CourseID    uuid.UUID `gorm:"column:course_id;type:uuid;not null;index:idx_quiz_attempts_learner_course,priority:2"`
	QuizID      uuid.UUID `gorm:"column:quiz_id;type:uuid;not null"`
	Score       int       `gorm:"column:score;not null"`
	Passed      bool      `gorm:"column:passed;not null"`
	CompletedAt time.Time `gorm:"column:completed_at;not null"`
}
