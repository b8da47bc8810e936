package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/pagination"
)

// EnrollmentUniqueIndex guards one enrollment per learner and course.
const EnrollmentUniqueIndex = "ux_enrollments_learner_course"

// EnrollmentRepository persists enrollments and their completed lessons.
type EnrollmentRepository interface {
	WithTx(tx *gorm.DB) EnrollmentRepository
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByPair(ctx context.Context, learnerID, courseID uuid.UUID) (*models.Enrollment, error)
	Exists(ctx context.Context, learnerID, courseID uuid.UUID) (bool, error)
	DeleteByPair(ctx context.Context, learnerID, courseID uuid.UUID) (*models.Enrollment, error)
	AdvanceProgress(ctx context.Context, enrollmentID uuid.UUID, percent int, accessedAt time.Time) (bool, error)
	AddCompletedLesson(ctx context.Context, enrollmentID uuid.UUID, lessonID string, completedAt time.Time) (bool, error)
	ListByLearner(ctx context.Context, learnerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Enrollment, error)
	ListByCourseAfter(ctx context.Context, courseID, afterID uuid.UUID, limit int) ([]models.Enrollment, error)
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository returns an enrollment repository bound to the provided database.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) WithTx(tx *gorm.DB) EnrollmentRepository {
	if tx == nil {
		return r
	}
	return &enrollmentRepository{db: tx}
}

func (r *enrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(enrollment).Error
}

func (r *enrollmentRepository) FindByPair(ctx context.Context, learnerID, courseID uuid.UUID) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.WithContext(ctx).
		Preload("CompletedLessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("completed_at ASC").Order("lesson_id ASC")
		}).
		Where("learner_id = ? AND course_id = ?", learnerID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *enrollmentRepository) Exists(ctx context.Context, learnerID, courseID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("learner_id = ? AND course_id = ?", learnerID, courseID).
		Count(&count).Error
	return count > 0, err
}

// DeleteByPair removes the enrollment and its lessons. A missing enrollment returns (nil, nil).
func (r *enrollmentRepository) DeleteByPair(ctx context.Context, learnerID, courseID uuid.UUID) (*models.Enrollment, error) {
	db := r.db.WithContext(ctx)
	var enrollment models.Enrollment
	err := db.Where("learner_id = ? AND course_id = ?", learnerID, courseID).
		Limit(1).
		Find(&enrollment).Error
	if err != nil {
		return nil, err
	}
	if enrollment.ID == uuid.Nil {
		return nil, nil
	}
	if err := db.Where("enrollment_id = ?", enrollment.ID).Delete(&models.EnrollmentLesson{}).Error; err != nil {
		return nil, err
	}
	if err := db.Delete(&models.Enrollment{}, "id = ?", enrollment.ID).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// AdvanceProgress raises the stored percent when percent is greater and always stamps the access
// time. The bool reports whether this call raised the percent; the row lock makes that true for at
// most one of several concurrent callers.
func (r *enrollmentRepository) AdvanceProgress(ctx context.Context, enrollmentID uuid.UUID, percent int, accessedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("id = ? AND progress_percent < ?", enrollmentID, percent).
		Updates(map[string]any{
			"progress_percent": percent,
			"last_accessed_at": accessedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("id = ?", enrollmentID).
		Update("last_accessed_at", accessedAt).Error
	return false, err
}

// AddCompletedLesson records a lesson once; the bool reports whether a row was inserted.
func (r *enrollmentRepository) AddCompletedLesson(ctx context.Context, enrollmentID uuid.UUID, lessonID string, completedAt time.Time) (bool, error) {
	lesson := models.EnrollmentLesson{
		EnrollmentID: enrollmentID,
		LessonID:     lessonID,
		CompletedAt:  completedAt,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "enrollment_id"}, {Name: "lesson_id"}},
			DoNothing: true,
		}).
		Create(&lesson)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *enrollmentRepository) ListByLearner(ctx context.Context, learnerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Enrollment, error) {
	query := r.db.WithContext(ctx).
		Preload("CompletedLessons").
		Where("learner_id = ?", learnerID)
	var rows []models.Enrollment
	err := pagination.Keyset(query, "enrolled_at", cursor, limit).Find(&rows).Error
	return rows, err
}

// ListByCourseAfter walks a course's enrollments in id order for batch processing.
func (r *enrollmentRepository) ListByCourseAfter(ctx context.Context, courseID, afterID uuid.UUID, limit int) ([]models.Enrollment, error) {
	query := r.db.WithContext(ctx).
		Preload("CompletedLessons").
		Where("course_id = ?", courseID)
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}
	var rows []models.Enrollment
	err := query.Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}
