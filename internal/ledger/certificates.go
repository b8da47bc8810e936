package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/pagination"
)

// ValidCertificateIndex allows at most one valid certificate per learner and course.
const ValidCertificateIndex = "ux_certificates_valid_pair"

// CertificateFilter narrows certificate listings.
type CertificateFilter struct {
	LearnerID *uuid.UUID
	CourseID  *uuid.UUID
}

// CertificateRepository persists certificates. Only validity and revocation fields change after insert.
type CertificateRepository interface {
	WithTx(tx *gorm.DB) CertificateRepository
	Create(ctx context.Context, certificate *models.Certificate) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error)
	FindByCertificateID(ctx context.Context, certificateID string) (*models.Certificate, error)
	FindValidByPair(ctx context.Context, learnerID, courseID uuid.UUID) (*models.Certificate, error)
	FindLatestByPair(ctx context.Context, learnerID, courseID uuid.UUID) (*models.Certificate, error)
	CertifiedLearnerIDs(ctx context.Context, courseID uuid.UUID) (map[uuid.UUID]struct{}, error)
	Revoke(ctx context.Context, id uuid.UUID, reason string, revokedBy uuid.UUID, revokedAt time.Time) (bool, error)
	List(ctx context.Context, filter CertificateFilter, cursor *pagination.Cursor, limit int) ([]models.Certificate, error)
}

type certificateRepository struct {
	db *gorm.DB
}

// NewCertificateRepository returns a certificate repository bound to the provided database.
func NewCertificateRepository(db *gorm.DB) CertificateRepository {
	return &certificateRepository{db: db}
}

func (r *certificateRepository) WithTx(tx *gorm.DB) CertificateRepository {
	if tx == nil {
		return r
	}
	return &certificateRepository{db: tx}
}

func (r *certificateRepository) Create(ctx context.Context, certificate *models.Certificate) error {
	return r.db.WithContext(ctx).Create(certificate).Error
}

func (r *certificateRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	var cert models.Certificate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&cert).Error; err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *certificateRepository) FindByCertificateID(ctx context.Context, certificateID string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := r.db.WithContext(ctx).Where("certificate_id = ?", certificateID).First(&cert).Error; err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *certificateRepository) FindValidByPair(ctx context.Context, learnerID, courseID uuid.UUID) (*models.Certificate, error) {
	var cert models.Certificate
	err := r.db.WithContext(ctx).
		Where("learner_id = ? AND course_id = ? AND is_valid = ?", learnerID, courseID, true).
		First(&cert).Error
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindLatestByPair returns the pair's valid certificate if any, else its most recently issued one.
func (r *certificateRepository) FindLatestByPair(ctx context.Context, learnerID, courseID uuid.UUID) (*models.Certificate, error) {
	var cert models.Certificate
	err := r.db.WithContext(ctx).
		Where("learner_id = ? AND course_id = ?", learnerID, courseID).
		Order("is_valid DESC").
		Order("issued_at DESC").
		First(&cert).Error
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// CertifiedLearnerIDs lists learners holding any certificate for the course, revoked ones included.
func (r *certificateRepository) CertifiedLearnerIDs(ctx context.Context, courseID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Certificate{}).
		Where("course_id = ?", courseID).
		Pluck("learner_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// Revoke invalidates a valid certificate. The bool is false when it was already invalid.
func (r *certificateRepository) Revoke(ctx context.Context, id uuid.UUID, reason string, revokedBy uuid.UUID, revokedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Certificate{}).
		Where("id = ? AND is_valid = ?", id, true).
		Updates(map[string]any{
			"is_valid":          false,
			"revocation_reason": reason,
			"revoked_by":        revokedBy,
			"revoked_at":        revokedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *certificateRepository) List(ctx context.Context, filter CertificateFilter, cursor *pagination.Cursor, limit int) ([]models.Certificate, error) {
	query := r.db.WithContext(ctx).Model(&models.Certificate{})
	if filter.LearnerID != nil {
		query = query.Where("learner_id = ?", *filter.LearnerID)
	}
	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	var rows []models.Certificate
	err := pagination.Keyset(query, "created_at", cursor, limit).Find(&rows).Error
	return rows, err
}
