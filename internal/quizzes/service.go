package quizzes

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/pkg/db"
	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
)

// Scores exposes the quiz subsystem's graded results.
type Scores interface {
	BestPassingScore(ctx context.Context, learnerID, courseID uuid.UUID) (*int, error)
}

// Service reads quiz attempts written by the quiz subsystem.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// BestPassingScore returns the highest passed attempt score, or nil when the learner has never
// passed a quiz for the course.
func (s *Service) BestPassingScore(ctx context.Context, learnerID, courseID uuid.UUID) (*int, error) {
	var best sql.NullInt64
	err := s.db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Select("MAX(score)").
		Where("learner_id = ? AND course_id = ? AND passed = ?", learnerID, courseID, true).
		Scan(&best).Error
	if err != nil {
		return nil, db.StoreError(err, "load quiz score")
	}
	if !best.Valid {
		return nil, nil
	}
	score := int(best.Int64)
	return &score, nil
}
