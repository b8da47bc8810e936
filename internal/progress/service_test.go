package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/learnhub-backend/internal/certificates"
	"github.com/angelmondragon/learnhub-backend/internal/ledger"
	"github.com/angelmondragon/learnhub-backend/pkg/auth"
	"github.com/angelmondragon/learnhub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox"
)

type stubCatalog struct {
	courses map[uuid.UUID]*models.Course
}

func (s *stubCatalog) GetCourse(_ context.Context, id uuid.UUID) (*models.Course, error) {
	course, ok := s.courses[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
	}
	return course, nil
}

type noQuizzes struct{}

func (noQuizzes) BestPassingScore(context.Context, uuid.UUID, uuid.UUID) (*int, error) {
	return nil, nil
}

type countingIssuer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingIssuer) IssueCertificate(_ context.Context, input certificates.IssueInput) (*certificates.Certificate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &certificates.Certificate{LearnerID: input.LearnerID, CourseID: input.CourseID, IssueSource: input.Source}, nil
}

type fixture struct {
	svc     Service
	repo    ledger.EnrollmentRepository
	catalog *stubCatalog
}

func newFixture(t *testing.T, issuer certificates.Issuer) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	repo := ledger.NewEnrollmentRepository(client.DB())
	catalog := &stubCatalog{courses: map[uuid.UUID]*models.Course{}}
	if issuer == nil {
		certSvc, err := certificates.NewService(certificates.ServiceParams{
			Certificates: ledger.NewCertificateRepository(client.DB()),
			Enrollments:  repo,
			Catalog:      catalog,
			Quizzes:      noQuizzes{},
			Tx:           client,
			Outbox:       outbox.NewService(outbox.NewRepository(client.DB()), nil),
		})
		require.NoError(t, err)
		issuer = certSvc
	}
	svc, err := NewService(ServiceParams{Repository: repo, Issuer: issuer, Tx: client})
	require.NoError(t, err)
	return &fixture{svc: svc, repo: repo, catalog: catalog}
}

func (f *fixture) enroll(t *testing.T, requireQuiz bool) (uuid.UUID, *models.Course) {
	t.Helper()
	course := &models.Course{
		ID:                    uuid.New(),
		Title:                 "Go Concurrency",
		InstructorID:          uuid.New(),
		Currency:              enums.CurrencyUSD,
		IsPublished:           true,
		RequireQuizCompletion: requireQuiz,
		LessonCount:           3,
	}
	f.catalog.courses[course.ID] = course
	learner := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, f.repo.Create(context.Background(), &models.Enrollment{
		LearnerID:      learner,
		CourseID:       course.ID,
		EnrolledAt:     now,
		LastAccessedAt: now,
	}))
	return learner, course
}

func self(id uuid.UUID) auth.Actor {
	return auth.Actor{UserID: id, Role: enums.RoleStudent}
}

func strPtr(v string) *string { return &v }

func TestUpdateProgressIsMonotonicAndClamped(t *testing.T) {
	f := newFixture(t, &countingIssuer{})
	learner, course := f.enroll(t, false)
	ctx := context.Background()

	res, err := f.svc.UpdateProgress(ctx, Update{LearnerID: learner, CourseID: course.ID, ProgressPercent: 40, Actor: self(learner)})
	require.NoError(t, err)
	require.Equal(t, 40, res.Enrollment.ProgressPercent)
	require.False(t, res.Completed)
	require.Nil(t, res.Issuance)

	res, err = f.svc.UpdateProgress(ctx, Update{LearnerID: learner, CourseID: course.ID, ProgressPercent: 20, Actor: self(learner)})
	require.NoError(t, err)
	require.Equal(t, 40, res.Enrollment.ProgressPercent)

	res, err = f.svc.UpdateProgress(ctx, Update{LearnerID: learner, CourseID: course.ID, ProgressPercent: -5, Actor: self(learner)})
	require.NoError(t, err)
	require.Equal(t, 40, res.Enrollment.ProgressPercent)

	res, err = f.svc.UpdateProgress(ctx, Update{LearnerID: learner, CourseID: course.ID, ProgressPercent: 250, Actor: self(learner)})
	require.NoError(t, err)
	require.Equal(t, 100, res.Enrollment.ProgressPercent)
	require.True(t, res.Completed)
}

func TestCompletedLessonsAreIdempotent(t *testing.T) {
	f := newFixture(t, &countingIssuer{})
	learner, course := f.enroll(t, false)
	ctx := context.Background()

	for _, lesson := range []string{"intro", "channels", "intro"} {
		_, err := f.svc.UpdateProgress(ctx, Update{LearnerID: learner, CourseID: course.ID, ProgressPercent: 30, CompletedLessonID: strPtr(lesson), Actor: self(learner)})
		require.NoError(t, err)
	}
	res, err := f.svc.UpdateProgress(ctx, Update{LearnerID: learner, CourseID: course.ID, ProgressPercent: 30, Actor: self(learner)})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"intro", "channels"}, res.Enrollment.CompletedLessons)

	_, err = f.svc.UpdateProgress(ctx, Update{LearnerID: learner, CourseID: course.ID, ProgressPercent: 30, CompletedLessonID: strPtr("  "), Actor: self(learner)})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestUpdateProgressRequiresEnrollmentAndOwnership(t *testing.T) {
	f := newFixture(t, &countingIssuer{})
	learner, course := f.enroll(t, false)
	ctx := context.Background()

	_, err := f.svc.UpdateProgress(ctx, Update{LearnerID: learner, CourseID: uuid.New(), ProgressPercent: 10, Actor: self(learner)})
	require.Equal(t, pkgerrors.CodeNotEnrolled, pkgerrors.CodeOf(err))

	_, err = f.svc.UpdateProgress(ctx, Update{LearnerID: learner, CourseID: course.ID, ProgressPercent: 10, Actor: self(uuid.New())})
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = f.svc.UpdateProgress(ctx, Update{LearnerID: learner, CourseID: course.ID, ProgressPercent: 10})
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
}

func TestReachingCompletionIssuesCertificateWithoutQuiz(t *testing.T) {
	f := newFixture(t, nil)
	learner, course := f.enroll(t, false)
	ctx := context.Background()

	res, err := f.svc.UpdateProgress(ctx, Update{LearnerID: learner, CourseID: course.ID, ProgressPercent: 100, CompletedLessonID: strPtr("final"), Actor: self(learner)})
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.NotNil(t, res.Issuance)
	require.Nil(t, res.Issuance.Error)
	require.NotNil(t, res.Issuance.Certificate)
	require.Equal(t, 100, res.Issuance.Certificate.ScorePercent)
	require.Equal(t, enums.GradeAPlus, res.Issuance.Certificate.Grade)
	require.Equal(t, enums.CertificateSourceProgress, res.Issuance.Certificate.IssueSource)

	// already at 100, so no second attempt
	res, err = f.svc.UpdateProgress(ctx, Update{LearnerID: learner, CourseID: course.ID, ProgressPercent: 100, Actor: self(learner)})
	require.NoError(t, err)
	require.False(t, res.Completed)
	require.Nil(t, res.Issuance)
}

func TestIssuanceFailureDoesNotFailUpdate(t *testing.T) {
	f := newFixture(t, nil)
	learner, course := f.enroll(t, true)

	res, err := f.svc.UpdateProgress(context.Background(), Update{LearnerID: learner, CourseID: course.ID, ProgressPercent: 100, Actor: self(learner)})
	require.NoError(t, err)
	require.Equal(t, 100, res.Enrollment.ProgressPercent)
	require.NotNil(t, res.Issuance)
	require.Nil(t, res.Issuance.Certificate)
	require.Equal(t, string(pkgerrors.CodeNotEligible), res.Issuance.Error.Code)
	require.Contains(t, res.Issuance.Error.Message, certificates.ReasonQuizNotCompleted)
}

func TestConcurrentCompletionIssuesOnce(t *testing.T) {
	issuer := &countingIssuer{}
	f := newFixture(t, issuer)
	learner, course := f.enroll(t, false)

	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.UpdateProgress(context.Background(), Update{LearnerID: learner, CourseID: course.ID, ProgressPercent: 100, Actor: self(learner)})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, issuer.calls)
}
