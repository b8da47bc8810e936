package enrollments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/internal/catalog"
	"github.com/angelmondragon/learnhub-backend/internal/ledger"
	"github.com/angelmondragon/learnhub-backend/pkg/db"
	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	"github.com/angelmondragon/learnhub-backend/pkg/metrics"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/learnhub-backend/pkg/pagination"
	"github.com/angelmondragon/learnhub-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the learner/course access relation.
type Service interface {
	RequestEnrollment(ctx context.Context, learnerID, courseID uuid.UUID) (*Enrollment, error)
	RemoveEnrollment(ctx context.Context, learnerID, courseID uuid.UUID) error
	IsEnrolled(ctx context.Context, learnerID, courseID uuid.UUID) (bool, error)
	GetProgress(ctx context.Context, learnerID, courseID uuid.UUID) (*Enrollment, error)
	ListForLearner(ctx context.Context, learnerID uuid.UUID, params pagination.Params) (*EnrollmentList, error)

	// EnrollTx and RemoveTx run inside a caller-owned transaction.
	EnrollTx(ctx context.Context, tx *gorm.DB, learnerID, courseID uuid.UUID, source enums.EnrollmentSource) (*models.Enrollment, error)
	RemoveTx(ctx context.Context, tx *gorm.DB, learnerID, courseID uuid.UUID) (bool, error)
}

// ServiceParams wires the enrollment service.
type ServiceParams struct {
	Repository ledger.EnrollmentRepository
	Catalog    catalog.Catalog
	Tx         txRunner
	Outbox     outbox.Emitter
	Metrics    *metrics.PipelineMetrics
	Logger     *logger.Logger
	Clock      func() time.Time
}

type service struct {
	repo    ledger.EnrollmentRepository
	catalog catalog.Catalog
	tx      txRunner
	outbox  outbox.Emitter
	metrics *metrics.PipelineMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService validates dependencies and builds the enrollment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("enrollment repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:    params.Repository,
		catalog: params.Catalog,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     clock,
	}, nil
}

func (s *service) RequestEnrollment(ctx context.Context, learnerID, courseID uuid.UUID) (*Enrollment, error) {
	if learnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "learner identity required")
	}
	if courseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "course id required")
	}

	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished {
		return nil, pkgerrors.New(pkgerrors.CodeCourseUnavailable, "course is not published")
	}

	enrolled, err := s.repo.Exists(ctx, learnerID, courseID)
	if err != nil {
		return nil, db.StoreError(err, "check enrollment")
	}
	if enrolled {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyEnrolled, "learner already enrolled in course")
	}

	if course.PriceCents > 0 {
		return nil, pkgerrors.New(pkgerrors.CodePaymentRequired, "course requires payment").WithDetails(PaymentRequiredDetails{
			CourseID:   course.ID,
			PriceCents: course.PriceCents,
			Price:      types.FormatCents(course.PriceCents),
			Currency:   string(course.Currency),
		})
	}

	var created *models.Enrollment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = s.EnrollTx(ctx, tx, learnerID, courseID, enums.EnrollmentSourceFree)
		return err
	})
	if err != nil {
		return nil, db.StoreError(err, "create enrollment")
	}

	s.metrics.EnrollmentCreated(string(enums.EnrollmentSourceFree))
	s.info(ctx, courseID, "enrollment created")
	view := FromModel(created)
	return &view, nil
}

func (s *service) EnrollTx(ctx context.Context, tx *gorm.DB, learnerID, courseID uuid.UUID, source enums.EnrollmentSource) (*models.Enrollment, error) {
	now := s.now().UTC()
	enrollment := &models.Enrollment{
		LearnerID:      learnerID,
		CourseID:       courseID,
		EnrolledAt:     now,
		LastAccessedAt: now,
	}
	if err := s.repo.WithTx(tx).Create(ctx, enrollment); err != nil {
		if db.IsUniqueViolation(err, ledger.EnrollmentUniqueIndex) {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadyEnrolled, "learner already enrolled in course")
		}
		return nil, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventEnrollmentCreated,
		AggregateType: enums.AggregateEnrollment,
		AggregateID:   enrollment.ID,
		Data: payloads.EnrollmentCreatedEvent{
			EnrollmentID: enrollment.ID,
			LearnerID:    learnerID,
			CourseID:     courseID,
			Source:       source,
			EnrolledAt:   now,
		},
		OccurredAt: now,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *service) RemoveEnrollment(ctx context.Context, learnerID, courseID uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.RemoveTx(ctx, tx, learnerID, courseID)
		return err
	})
	return db.StoreError(err, "remove enrollment")
}

// RemoveTx deletes the enrollment if present. The bool reports whether anything was removed.
func (s *service) RemoveTx(ctx context.Context, tx *gorm.DB, learnerID, courseID uuid.UUID) (bool, error) {
	removed, err := s.repo.WithTx(tx).DeleteByPair(ctx, learnerID, courseID)
	if err != nil {
		return false, err
	}
	if removed == nil {
		return false, nil
	}

	now := s.now().UTC()
	event := outbox.DomainEvent{
		EventType:     enums.EventEnrollmentRemoved,
		AggregateType: enums.AggregateEnrollment,
		AggregateID:   removed.ID,
		Data: payloads.EnrollmentRemovedEvent{
			EnrollmentID: removed.ID,
			LearnerID:    learnerID,
			CourseID:     courseID,
			RemovedAt:    now,
		},
		OccurredAt: now,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) IsEnrolled(ctx context.Context, learnerID, courseID uuid.UUID) (bool, error) {
	enrolled, err := s.repo.Exists(ctx, learnerID, courseID)
	if err != nil {
		return false, db.StoreError(err, "check enrollment")
	}
	return enrolled, nil
}

func (s *service) GetProgress(ctx context.Context, learnerID, courseID uuid.UUID) (*Enrollment, error) {
	enrollment, err := s.repo.FindByPair(ctx, learnerID, courseID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotEnrolled, "learner is not enrolled in course")
		}
		return nil, db.StoreError(err, "load enrollment")
	}
	view := FromModel(enrollment)
	return &view, nil
}

func (s *service) ListForLearner(ctx context.Context, learnerID uuid.UUID, params pagination.Params) (*EnrollmentList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByLearner(ctx, learnerID, cursor, params.Limit)
	if err != nil {
		return nil, db.StoreError(err, "list enrollments")
	}
	views := make([]Enrollment, 0, len(rows))
	for i := range rows {
		views = append(views, FromModel(&rows[i]))
	}
	page := pagination.Trim(views, params.Limit, func(e Enrollment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.EnrolledAt, ID: e.ID}
	})
	return &page, nil
}

func (s *service) info(ctx context.Context, courseID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithCourseID(ctx, courseID.String()), msg)
}
