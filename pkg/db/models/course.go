package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/learnhub-backend/pkg/enums"
)

// Course is the catalog's read model. The pipeline never writes to it.
type Course struct {
	ID                    uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	Title                 string                      `gorm:"column:title;not null"`
	InstructorID          uuid.UUID                   `gorm:"column:instructor_id;type:uuid;not null"`
	PriceCents            int64                       `gorm:"column:price_cents;not null"`
	Currency              enums.Currency              `gorm:"column:currency;type:text;not null"`
	IsPublished           bool                        `gorm:"column:is_published;not null"`
	MinimumProgress       int                         `gorm:"column:minimum_progress;not null"`
	RequireQuizCompletion bool                        `gorm:"column:require_quiz_completion;not null"`
	MinimumQuizScore      int                         `gorm:"column:minimum_quiz_score;not null"`
	Skills                datatypes.JSONSlice[string] `gorm:"column:skills"`
	TotalDurationMinutes  int                         `gorm:"column:total_duration_minutes;not null"`
	LessonCount           int                         `gorm:"column:lesson_count;not null"`
	CreatedAt             time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
