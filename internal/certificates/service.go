package certificates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/internal/catalog"
	"github.com/angelmondragon/learnhub-backend/internal/ledger"
	"github.com/angelmondragon/learnhub-backend/internal/quizzes"
	"github.com/angelmondragon/learnhub-backend/pkg/auth"
	"github.com/angelmondragon/learnhub-backend/pkg/db"
	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
	"github.com/angelmondragon/learnhub-backend/pkg/ids"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	"github.com/angelmondragon/learnhub-backend/pkg/metrics"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/learnhub-backend/pkg/pagination"
)

const (
	defaultBulkBatchSize   = 200
	defaultRevokeReason    = "revoked by administrator"
	defaultMinimumProgress = 100
	defaultMinimumQuiz     = 70
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Issuer is the narrow view the progress tracker needs.
type Issuer interface {
	IssueCertificate(ctx context.Context, input IssueInput) (*Certificate, error)
}

// Service decides eligibility, issues, verifies and revokes certificates.
type Service interface {
	Issuer
	CheckEligibility(ctx context.Context, learnerID, courseID uuid.UUID) (*Eligibility, error)
	Verify(ctx context.Context, certificateID string) (*Verification, error)
	Revoke(ctx context.Context, actor auth.Actor, certificateID, reason string) (*Certificate, error)
	BulkIssue(ctx context.Context, actor auth.Actor, courseID uuid.UUID, assumedQuizScore *int) (*BulkReport, error)
	Get(ctx context.Context, actor auth.Actor, certificateID string) (*Certificate, error)
	ListForLearner(ctx context.Context, learnerID uuid.UUID, params pagination.Params) (*CertificateList, error)
	ListAll(ctx context.Context, actor auth.Actor, courseID *uuid.UUID, params pagination.Params) (*CertificateList, error)
	RenderPDF(ctx context.Context, actor auth.Actor, certificateID string) ([]byte, error)
}

// ServiceParams wires the certificate service.
type ServiceParams struct {
	Certificates            ledger.CertificateRepository
	Enrollments             ledger.EnrollmentRepository
	Catalog                 catalog.Catalog
	Quizzes                 quizzes.Scores
	Tx                      txRunner
	Outbox                  outbox.Emitter
	Metrics                 *metrics.PipelineMetrics
	Logger                  *logger.Logger
	SigningSecret           string
	DefaultMinimumProgress  int
	DefaultMinimumQuizScore int
	BulkAssumedQuizScore    int
	BulkBatchSize           int
	PublicBaseURL           string
	Clock                   func() time.Time
}

type service struct {
	certs        ledger.CertificateRepository
	enrollments  ledger.EnrollmentRepository
	catalog      catalog.Catalog
	quizzes      quizzes.Scores
	tx           txRunner
	outbox       outbox.Emitter
	metrics      *metrics.PipelineMetrics
	logg         *logger.Logger
	signer       tokenSigner
	policy       policy
	assumedScore int
	batchSize    int
	baseURL      string
	now          func() time.Time
}

// NewService validates dependencies and builds the certificate service.
func NewService(params ServiceParams) (Service, error) {
	if params.Certificates == nil {
		return nil, fmt.Errorf("certificate repository required")
	}
	if params.Enrollments == nil {
		return nil, fmt.Errorf("enrollment repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Quizzes == nil {
		return nil, fmt.Errorf("quiz scores required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.BulkAssumedQuizScore < 0 || params.BulkAssumedQuizScore > 100 {
		return nil, fmt.Errorf("bulk assumed quiz score must be between 0 and 100")
	}
	minProgress := params.DefaultMinimumProgress
	if minProgress <= 0 {
		minProgress = defaultMinimumProgress
	}
	minQuiz := params.DefaultMinimumQuizScore
	if minQuiz <= 0 {
		minQuiz = defaultMinimumQuiz
	}
	batch := params.BulkBatchSize
	if batch <= 0 {
		batch = defaultBulkBatchSize
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		certs:        params.Certificates,
		enrollments:  params.Enrollments,
		catalog:      params.Catalog,
		quizzes:      params.Quizzes,
		tx:           params.Tx,
		outbox:       params.Outbox,
		metrics:      params.Metrics,
		logg:         params.Logger,
		signer:       newTokenSigner(params.SigningSecret),
		policy:       policy{defaultMinimumProgress: minProgress, defaultMinimumQuizScore: minQuiz},
		assumedScore: params.BulkAssumedQuizScore,
		batchSize:    batch,
		baseURL:      strings.TrimRight(params.PublicBaseURL, "/"),
		now:          clock,
	}, nil
}

func (s *service) CheckEligibility(ctx context.Context, learnerID, courseID uuid.UUID) (*Eligibility, error) {
	if learnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "learner identity required")
	}
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.findEnrollment(ctx, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	var quizScore *int
	if enrollment != nil {
		if quizScore, err = s.quizzes.BestPassingScore(ctx, learnerID, courseID); err != nil {
			return nil, err
		}
	}
	out := s.policy.evaluate(course, enrollment, quizScore)

	if _, err := s.certs.FindValidByPair(ctx, learnerID, courseID); err == nil {
		out.HasCertificate = true
	} else if !db.IsNotFound(err) {
		return nil, db.StoreError(err, "load certificate")
	}
	return &out, nil
}

func (s *service) IssueCertificate(ctx context.Context, input IssueInput) (*Certificate, error) {
	cert, err := s.issueCertificate(ctx, input)
	if err != nil {
		s.metrics.IssuanceFailed(string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	return cert, nil
}

func (s *service) issueCertificate(ctx context.Context, input IssueInput) (*Certificate, error) {
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if input.LearnerID == uuid.Nil || input.CourseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "learner id and course id are required")
	}
	if !input.Actor.CanAccessLearner(input.LearnerID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can issue certificates for other learners")
	}
	if input.QuizScore != nil {
		if !input.Actor.IsAdmin() {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can supply a quiz score")
		}
		if *input.QuizScore < 0 || *input.QuizScore > 100 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quiz score must be between 0 and 100")
		}
	}
	if input.InstructorID != nil && !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can override the instructor")
	}
	source := input.Source
	if source == "" {
		source = enums.CertificateSourceManual
	}
	if !source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid issue source")
	}

	course, err := s.catalog.GetCourse(ctx, input.CourseID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.findEnrollment(ctx, input.LearnerID, input.CourseID)
	if err != nil {
		return nil, err
	}
	quizScore := input.QuizScore
	if quizScore == nil && enrollment != nil {
		if quizScore, err = s.quizzes.BestPassingScore(ctx, input.LearnerID, input.CourseID); err != nil {
			return nil, err
		}
	}

	eligibility := s.policy.evaluate(course, enrollment, quizScore)
	if !eligibility.Eligible {
		return nil, notEligible(eligibility.Reason)
	}
	instructorID := course.InstructorID
	if input.InstructorID != nil && *input.InstructorID != uuid.Nil {
		instructorID = *input.InstructorID
	}
	cert, err := s.insert(ctx, &input.Actor, course, enrollment, quizScore, instructorID, len(enrollment.CompletedLessons), source, input.Actor.IsAdmin())
	if err != nil {
		return nil, err
	}
	view := FromModel(cert)
	return &view, nil
}

// insert persists a certificate for an eligible enrollment together with its event.
// A revoked certificate for the pair blocks the insert unless reissue is set.
func (s *service) insert(ctx context.Context, actor *auth.Actor, course *models.Course, enrollment *models.Enrollment, quizScore *int, instructorID uuid.UUID, completedLessons int, source enums.CertificateSource, reissue bool) (*models.Certificate, error) {
	issuedAt := normalizeIssuedAt(s.now())
	score, grade := gradeFor(enrollment.ProgressPercent, quizScore)
	certificateID := ids.NewCertificateID()
	cert := &models.Certificate{
		CertificateID:     certificateID,
		LearnerID:         enrollment.LearnerID,
		CourseID:          course.ID,
		InstructorID:      instructorID,
		CourseTitle:       course.Title,
		IssuedAt:          issuedAt,
		CompletionDate:    issuedAt,
		Grade:             grade,
		ScorePercent:      score,
		ProgressPercent:   enrollment.ProgressPercent,
		Skills:            datatypes.JSONSlice[string](append([]string{}, course.Skills...)),
		DurationMinutes:   course.TotalDurationMinutes,
		TotalLessons:      course.LessonCount,
		CompletedLessons:  completedLessons,
		FinalQuizScore:    quizScore,
		VerificationToken: s.signer.sign(enrollment.LearnerID, course.ID, issuedAt, certificateID),
		IsValid:           true,
		IssueSource:       source,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.certs.WithTx(tx)
		prior, err := repo.FindLatestByPair(ctx, cert.LearnerID, cert.CourseID)
		switch {
		case err == nil && prior.IsValid:
			return alreadyIssued()
		case err == nil && !reissue:
			return pkgerrors.New(pkgerrors.CodeAlreadyRevoked, "the certificate for this course was revoked; only an admin can re-issue it")
		case err != nil && !db.IsNotFound(err):
			return err
		}
		if err := repo.Create(ctx, cert); err != nil {
			if db.IsUniqueViolation(err, ledger.ValidCertificateIndex) {
				return alreadyIssued()
			}
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventCertificateIssued,
			AggregateType: enums.AggregateCertificate,
			AggregateID:   cert.ID,
			Actor:         actorRef(actor),
			Data: payloads.CertificateIssuedEvent{
				CertificateID: cert.CertificateID,
				LearnerID:     cert.LearnerID,
				CourseID:      cert.CourseID,
				Grade:         cert.Grade,
				ScorePercent:  cert.ScorePercent,
				Source:        source,
				IssuedAt:      issuedAt,
			},
			OccurredAt: issuedAt,
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, db.StoreError(err, "issue certificate")
	}

	s.metrics.CertificateIssued(string(source))
	s.info(ctx, course.ID, "certificate issued")
	return cert, nil
}

func (s *service) Verify(ctx context.Context, certificateID string) (*Verification, error) {
	certificateID = strings.TrimSpace(certificateID)
	if certificateID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "certificate id required")
	}
	cert, err := s.certs.FindByCertificateID(ctx, certificateID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "certificate not found")
		}
		return nil, db.StoreError(err, "load certificate")
	}

	if !s.signer.matches(cert.LearnerID, cert.CourseID, cert.IssuedAt, cert.CertificateID, cert.VerificationToken) {
		return &Verification{Valid: false, Reason: VerifyReasonTampered}, nil
	}
	if !cert.IsValid {
		return &Verification{Valid: false, Reason: VerifyReasonRevoked}, nil
	}
	skills := []string(cert.Skills)
	if skills == nil {
		skills = []string{}
	}
	return &Verification{
		Valid: true,
		Certificate: &Summary{
			CertificateID:  cert.CertificateID,
			LearnerID:      cert.LearnerID,
			CourseTitle:    cert.CourseTitle,
			Grade:          cert.Grade,
			ScorePercent:   cert.ScorePercent,
			Skills:         skills,
			IssuedAt:       cert.IssuedAt,
			CompletionDate: cert.CompletionDate,
		},
	}, nil
}

func (s *service) Revoke(ctx context.Context, actor auth.Actor, certificateID, reason string) (*Certificate, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	cert, err := s.load(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if !cert.IsValid {
		return nil, alreadyRevoked()
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultRevokeReason
	}

	now := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		revoked, err := s.certs.WithTx(tx).Revoke(ctx, cert.ID, reason, actor.UserID, now)
		if err != nil {
			return err
		}
		if !revoked {
			return alreadyRevoked()
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventCertificateRevoked,
			AggregateType: enums.AggregateCertificate,
			AggregateID:   cert.ID,
			Actor:         actorRef(&actor),
			Data: payloads.CertificateRevokedEvent{
				CertificateID: cert.CertificateID,
				LearnerID:     cert.LearnerID,
				CourseID:      cert.CourseID,
				Reason:        reason,
				RevokedBy:     actor.UserID,
				RevokedAt:     now,
			},
			OccurredAt: now,
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, db.StoreError(err, "revoke certificate")
	}

	cert.IsValid = false
	cert.RevocationReason = &reason
	cert.RevokedBy = &actor.UserID
	cert.RevokedAt = &now
	s.info(ctx, cert.CourseID, "certificate revoked")
	view := FromModel(cert)
	return &view, nil
}

// BulkIssue certifies every eligible enrollment of a course that has no certificate yet.
// Learners whose certificate was revoked are skipped.
// Learners are processed independently; a failure for one never stops the run.
func (s *service) BulkIssue(ctx context.Context, actor auth.Actor, courseID uuid.UUID, assumedQuizScore *int) (*BulkReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	assumed := s.assumedScore
	if assumedQuizScore != nil {
		if *assumedQuizScore < 0 || *assumedQuizScore > 100 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "assumed quiz score must be between 0 and 100")
		}
		assumed = *assumedQuizScore
	}
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	existing, err := s.certs.CertifiedLearnerIDs(ctx, courseID)
	if err != nil {
		return nil, db.StoreError(err, "load issued certificates")
	}

	report := &BulkReport{Failures: []BulkFailure{}}
	var errs error
	after := uuid.Nil
	for {
		batch, err := s.enrollments.ListByCourseAfter(ctx, courseID, after, s.batchSize)
		if err != nil {
			return nil, db.StoreError(err, "list course enrollments")
		}
		for i := range batch {
			enrollment := &batch[i]
			report.TotalEnrollments++
			if _, ok := existing[enrollment.LearnerID]; ok {
				report.SkippedExisting++
				continue
			}
			score := assumed
			if !s.policy.evaluate(course, enrollment, &score).Eligible {
				continue
			}
			report.TotalEligible++

			_, err := s.insert(ctx, &actor, course, enrollment, &score, course.InstructorID, max(len(enrollment.CompletedLessons), course.LessonCount), enums.CertificateSourceBulk, false)
			switch {
			case err == nil:
				report.Issued++
			case pkgerrors.Is(err, pkgerrors.CodeAlreadyIssued), pkgerrors.Is(err, pkgerrors.CodeAlreadyRevoked):
				report.SkippedExisting++
			default:
				s.metrics.IssuanceFailed(string(pkgerrors.CodeOf(err)))
				report.Failed++
				report.Failures = append(report.Failures, BulkFailure{
					LearnerID: enrollment.LearnerID,
					Code:      string(pkgerrors.CodeOf(err)),
					Message:   err.Error(),
				})
				errs = multierr.Append(errs, fmt.Errorf("learner %s: %w", enrollment.LearnerID, err))
			}
		}
		if len(batch) < s.batchSize {
			break
		}
		after = batch[len(batch)-1].ID
	}

	if errs != nil && s.logg != nil {
		s.logg.Error(s.logg.WithCourseID(ctx, courseID.String()), "bulk certificate issue had failures", errs)
	}
	return report, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, certificateID string) (*Certificate, error) {
	cert, err := s.loadForActor(ctx, actor, certificateID)
	if err != nil {
		return nil, err
	}
	view := FromModel(cert)
	return &view, nil
}

func (s *service) ListForLearner(ctx context.Context, learnerID uuid.UUID, params pagination.Params) (*CertificateList, error) {
	if learnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "learner identity required")
	}
	return s.list(ctx, ledger.CertificateFilter{LearnerID: &learnerID}, params)
}

func (s *service) ListAll(ctx context.Context, actor auth.Actor, courseID *uuid.UUID, params pagination.Params) (*CertificateList, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.list(ctx, ledger.CertificateFilter{CourseID: courseID}, params)
}

func (s *service) RenderPDF(ctx context.Context, actor auth.Actor, certificateID string) ([]byte, error) {
	cert, err := s.loadForActor(ctx, actor, certificateID)
	if err != nil {
		return nil, err
	}
	doc, err := renderCertificate(FromModel(cert), s.verifyURL(cert.CertificateID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render certificate pdf")
	}
	return doc, nil
}

func (s *service) verifyURL(certificateID string) string {
	return s.baseURL + "/api/public/certificates/" + certificateID + "/verify"
}

func (s *service) list(ctx context.Context, filter ledger.CertificateFilter, params pagination.Params) (*CertificateList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.certs.List(ctx, filter, cursor, params.Limit)
	if err != nil {
		return nil, db.StoreError(err, "list certificates")
	}
	views := make([]Certificate, 0, len(rows))
	createdAt := make(map[uuid.UUID]time.Time, len(rows))
	for i := range rows {
		views = append(views, FromModel(&rows[i]))
		createdAt[rows[i].ID] = rows[i].CreatedAt
	}
	page := pagination.Trim(views, params.Limit, func(c Certificate) pagination.Cursor {
		return pagination.Cursor{CreatedAt: createdAt[c.ID], ID: c.ID}
	})
	return &page, nil
}

func (s *service) findEnrollment(ctx context.Context, learnerID, courseID uuid.UUID) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByPair(ctx, learnerID, courseID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, db.StoreError(err, "load enrollment")
	}
	return enrollment, nil
}

// load accepts either the public CERT- identifier or the row id.
func (s *service) load(ctx context.Context, certificateID string) (*models.Certificate, error) {
	certificateID = strings.TrimSpace(certificateID)
	var (
		cert *models.Certificate
		err  error
	)
	if ids.IsCertificateID(certificateID) {
		cert, err = s.certs.FindByCertificateID(ctx, certificateID)
	} else {
		id, parseErr := uuid.Parse(certificateID)
		if parseErr != nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "certificate not found")
		}
		cert, err = s.certs.FindByID(ctx, id)
	}
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "certificate not found")
		}
		return nil, db.StoreError(err, "load certificate")
	}
	return cert, nil
}

// loadForActor lets the learner, the issuing instructor and admins read a certificate.
func (s *service) loadForActor(ctx context.Context, actor auth.Actor, certificateID string) (*models.Certificate, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	cert, err := s.load(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if actor.CanAccessLearner(cert.LearnerID) {
		return cert, nil
	}
	if actor.Role == enums.RoleInstructor && actor.UserID == cert.InstructorID {
		return cert, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "certificate belongs to another learner")
}

func (s *service) info(ctx context.Context, courseID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithCourseID(ctx, courseID.String()), msg)
}

func actorRef(actor *auth.Actor) *outbox.ActorRef {
	if actor == nil || actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}

func requireAdmin(actor auth.Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

func notEligible(reason string) error {
	return pkgerrors.New(pkgerrors.CodeNotEligible, "learner is not eligible for a certificate: "+reason).
		WithDetails(NotEligibleDetails{Reason: reason})
}

func alreadyIssued() error {
	return pkgerrors.New(pkgerrors.CodeAlreadyIssued, "a valid certificate already exists for this course")
}

func alreadyRevoked() error {
	return pkgerrors.New(pkgerrors.CodeAlreadyRevoked, "certificate is already revoked")
}
