package enrollments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/learnhub-backend/internal/ledger"
	"github.com/angelmondragon/learnhub-backend/pkg/db"
	"github.com/angelmondragon/learnhub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox"
	"github.com/angelmondragon/learnhub-backend/pkg/pagination"
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

type fixture struct {
	client  *db.Client
	svc     Service
	catalog *stubCatalog
	outbox  *outbox.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	outboxRepo := outbox.NewRepository(client.DB())
	catalog := &stubCatalog{courses: map[uuid.UUID]*models.Course{}}
	svc, err := NewService(ServiceParams{
		Repository: ledger.NewEnrollmentRepository(client.DB()),
		Catalog:    catalog,
		Tx:         client,
		Outbox:     outbox.NewService(outboxRepo, nil),
	})
	require.NoError(t, err)
	return &fixture{client: client, svc: svc, catalog: catalog, outbox: outboxRepo}
}

func (f *fixture) addCourse(priceCents int64, published bool) *models.Course {
	course := &models.Course{
		ID:           uuid.New(),
		Title:        "Course",
		InstructorID: uuid.New(),
		PriceCents:   priceCents,
		Currency:     enums.CurrencyUSD,
		IsPublished:  published,
	}
	f.catalog.courses[course.ID] = course
	return course
}

func TestRequestEnrollmentFreeCourse(t *testing.T) {
	f := newFixture(t)
	course := f.addCourse(0, true)
	learner := uuid.New()

	enrollment, err := f.svc.RequestEnrollment(context.Background(), learner, course.ID)
	require.NoError(t, err)
	require.Equal(t, 0, enrollment.ProgressPercent)
	require.Empty(t, enrollment.CompletedLessons)

	enrolled, err := f.svc.IsEnrolled(context.Background(), learner, course.ID)
	require.NoError(t, err)
	require.True(t, enrolled)

	events, err := f.outbox.ListForAggregate(enrollment.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventEnrollmentCreated, events[0].EventType)
}

func TestRequestEnrollmentRejections(t *testing.T) {
	f := newFixture(t)
	paid := f.addCourse(4999, true)
	draft := f.addCourse(0, false)
	learner := uuid.New()

	_, err := f.svc.RequestEnrollment(context.Background(), learner, paid.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodePaymentRequired, typed.Code())
	details, ok := typed.Details().(PaymentRequiredDetails)
	require.True(t, ok)
	require.Equal(t, "49.99", details.Price)
	require.Equal(t, int64(4999), details.PriceCents)

	_, err = f.svc.RequestEnrollment(context.Background(), learner, draft.ID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeCourseUnavailable))

	_, err = f.svc.RequestEnrollment(context.Background(), learner, uuid.New())
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.RequestEnrollment(context.Background(), uuid.Nil, draft.ID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestRequestEnrollmentTwiceIsAlreadyEnrolled(t *testing.T) {
	f := newFixture(t)
	course := f.addCourse(0, true)
	learner := uuid.New()

	_, err := f.svc.RequestEnrollment(context.Background(), learner, course.ID)
	require.NoError(t, err)
	_, err = f.svc.RequestEnrollment(context.Background(), learner, course.ID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyEnrolled))
}

func TestConcurrentEnrollmentYieldsSingleRecord(t *testing.T) {
	f := newFixture(t)
	course := f.addCourse(0, true)
	learner := uuid.New()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.RequestEnrollment(context.Background(), learner, course.ID)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		require.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyEnrolled), "unexpected error %v", err)
	}
	require.Equal(t, 1, successes)

	var count int64
	require.NoError(t, f.client.DB().Model(&models.Enrollment{}).
		Where("learner_id = ? AND course_id = ?", learner, course.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestRemoveEnrollmentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	course := f.addCourse(0, true)
	learner := uuid.New()
	created, err := f.svc.RequestEnrollment(context.Background(), learner, course.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveEnrollment(context.Background(), learner, course.ID))
	require.NoError(t, f.svc.RemoveEnrollment(context.Background(), learner, course.ID))

	enrolled, err := f.svc.IsEnrolled(context.Background(), learner, course.ID)
	require.NoError(t, err)
	require.False(t, enrolled)

	events, err := f.outbox.ListForAggregate(created.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, enums.EventEnrollmentRemoved, events[1].EventType)
}

func TestGetProgressNotEnrolled(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetProgress(context.Background(), uuid.New(), uuid.New())
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotEnrolled))
}

func TestListForLearnerPages(t *testing.T) {
	f := newFixture(t)
	learner := uuid.New()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc, err := NewService(ServiceParams{
		Repository: ledger.NewEnrollmentRepository(f.client.DB()),
		Catalog:    f.catalog,
		Tx:         f.client,
		Outbox:     outbox.NewService(f.outbox, nil),
		Clock: func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Minute)
		},
	})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		course := f.addCourse(0, true)
		_, err := svc.RequestEnrollment(context.Background(), learner, course.ID)
		require.NoError(t, err)
	}

	first, err := svc.ListForLearner(context.Background(), learner, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)
	require.True(t, first.Items[0].EnrolledAt.After(first.Items[1].EnrolledAt))

	second, err := svc.ListForLearner(context.Background(), learner, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.NextCursor)

	_, err = svc.ListForLearner(context.Background(), learner, pagination.Params{Cursor: "%%%"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
