package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
)

// Repository reads the catalog's courses table. The pipeline never writes courses.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a course repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}
