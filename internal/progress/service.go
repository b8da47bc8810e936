// Package progress records learner progress and triggers certificate issuance on completion.
package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/internal/certificates"
	"github.com/angelmondragon/learnhub-backend/internal/enrollments"
	"github.com/angelmondragon/learnhub-backend/internal/ledger"
	"github.com/angelmondragon/learnhub-backend/pkg/auth"
	"github.com/angelmondragon/learnhub-backend/pkg/db"
	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

const completePercent = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Update is one progress report from a learner.
type Update struct {
	LearnerID         uuid.UUID
	CourseID          uuid.UUID
	ProgressPercent   int
	CompletedLessonID *string
	Actor             auth.Actor
}

// IssuanceOutcome describes the automatic certificate attempt made on completion.
type IssuanceOutcome struct {
	Certificate *certificates.Certificate `json:"certificate,omitempty"`
	Error       *IssuanceError            `json:"error,omitempty"`
}

// IssuanceError is the code and message of a failed automatic issuance.
type IssuanceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the enrollment after the update plus the issuance outcome when the course was completed.
type Result struct {
	Enrollment enrollments.Enrollment `json:"enrollment"`
	Completed  bool                   `json:"completed"`
	Issuance   *IssuanceOutcome       `json:"certificate_issuance,omitempty"`
}

// Service owns progress updates.
type Service interface {
	UpdateProgress(ctx context.Context, update Update) (*Result, error)
}

// ServiceParams wires the progress service.
type ServiceParams struct {
	Repository ledger.EnrollmentRepository
	Issuer     certificates.Issuer
	Tx         txRunner
	Logger     *logger.Logger
	Clock      func() time.Time
}

type service struct {
	repo   ledger.EnrollmentRepository
	issuer certificates.Issuer
	tx     txRunner
	logg   *logger.Logger
	now    func() time.Time
}

// NewService validates dependencies and builds the progress service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("enrollment repository required")
	}
	if params.Issuer == nil {
		return nil, fmt.Errorf("certificate issuer required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:   params.Repository,
		issuer: params.Issuer,
		tx:     params.Tx,
		logg:   params.Logger,
		now:    clock,
	}, nil
}

func (s *service) UpdateProgress(ctx context.Context, update Update) (*Result, error) {
	if update.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !update.Actor.CanAccessLearner(update.LearnerID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "progress belongs to another learner")
	}
	var lessonID string
	if update.CompletedLessonID != nil {
		lessonID = strings.TrimSpace(*update.CompletedLessonID)
		if lessonID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "completed lesson id must not be blank")
		}
	}
	percent := clamp(update.ProgressPercent)

	var (
		enrollment *models.Enrollment
		completed  bool
	)
	now := s.now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByPair(ctx, update.LearnerID, update.CourseID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotEnrolled, "learner is not enrolled in course")
			}
			return err
		}
		raised, err := repo.AdvanceProgress(ctx, current.ID, percent, now)
		if err != nil {
			return err
		}
		completed = raised && percent == completePercent
		if lessonID != "" {
			if _, err := repo.AddCompletedLesson(ctx, current.ID, lessonID, now); err != nil {
				return err
			}
		}
		enrollment, err = repo.FindByPair(ctx, update.LearnerID, update.CourseID)
		return err
	})
	if err != nil {
		return nil, db.StoreError(err, "update progress")
	}

	result := &Result{Enrollment: enrollments.FromModel(enrollment), Completed: completed}
	if completed {
		result.Issuance = s.issue(ctx, update)
	}
	return result, nil
}

// issue runs after the progress commit; its failure never fails the update.
func (s *service) issue(ctx context.Context, update Update) *IssuanceOutcome {
	cert, err := s.issuer.IssueCertificate(ctx, certificates.IssueInput{
		LearnerID: update.LearnerID,
		CourseID:  update.CourseID,
		Source:    enums.CertificateSourceProgress,
		Actor:     update.Actor,
	})
	if err == nil {
		return &IssuanceOutcome{Certificate: cert}
	}

	code := pkgerrors.CodeOf(err)
	message := err.Error()
	if typed := pkgerrors.As(err); typed != nil {
		message = typed.Message()
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"course_id":  update.CourseID.String(),
			"learner_id": update.LearnerID.String(),
			"code":       string(code),
		})
		s.logg.Warn(logCtx, "automatic certificate issuance failed: "+message)
	}
	return &IssuanceOutcome{Error: &IssuanceError{Code: string(code), Message: message}}
}

func clamp(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > completePercent:
		return completePercent
	default:
		return percent
	}
}
