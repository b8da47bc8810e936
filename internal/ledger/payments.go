package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	"github.com/angelmondragon/learnhub-backend/pkg/pagination"
)

const (
	// PendingPairIndex allows at most one pending payment per learner and course.
	PendingPairIndex = "ux_payments_pending_pair"
	// TransactionIDIndex keeps transaction ids unique.
	TransactionIDIndex = "ux_payments_transaction_id"
)

// PaymentRepository persists payments and applies status transitions.
type PaymentRepository interface {
	WithTx(tx *gorm.DB) PaymentRepository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPendingByPair(ctx context.Context, learnerID, courseID uuid.UUID) (*models.Payment, error)
	Transition(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, updates map[string]any) (bool, error)
	ListByLearner(ctx context.Context, learnerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Payment, error)
	List(ctx context.Context, status *enums.PaymentStatus, cursor *pagination.Cursor, limit int) ([]models.Payment, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository returns a payment repository bound to the provided database.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) WithTx(tx *gorm.DB) PaymentRepository {
	if tx == nil {
		return r
	}
	return &paymentRepository{db: tx}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindPendingByPair(ctx context.Context, learnerID, courseID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("learner_id = ? AND course_id = ? AND status = ?", learnerID, courseID, enums.PaymentStatusPending).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Transition moves a payment from one status to another only if it is still in from. The bool
// is false when another writer changed the row first.
func (r *paymentRepository) Transition(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, updates map[string]any) (bool, error) {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["status"] = to
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentRepository) ListByLearner(ctx context.Context, learnerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Payment, error) {
	query := r.db.WithContext(ctx).Where("learner_id = ?", learnerID)
	var rows []models.Payment
	err := pagination.Keyset(query, "created_at", cursor, limit).Find(&rows).Error
	return rows, err
}

func (r *paymentRepository) List(ctx context.Context, status *enums.PaymentStatus, cursor *pagination.Cursor, limit int) ([]models.Payment, error) {
	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.Payment
	err := pagination.Keyset(query, "created_at", cursor, limit).Find(&rows).Error
	return rows, err
}

func (r *paymentRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
