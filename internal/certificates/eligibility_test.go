package certificates

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
)

func intPtr(v int) *int { return &v }

func TestEvaluateReportsFirstFailingRequirement(t *testing.T) {
	p := policy{defaultMinimumProgress: 100, defaultMinimumQuizScore: 70}
	quizCourse := &models.Course{ID: uuid.New(), RequireQuizCompletion: true}
	plainCourse := &models.Course{ID: uuid.New(), MinimumProgress: 80}

	cases := []struct {
		name       string
		course     *models.Course
		enrollment *models.Enrollment
		quiz       *int
		eligible   bool
		reason     string
	}{
		{"not enrolled", plainCourse, nil, intPtr(100), false, ReasonNotEnrolled},
		{"progress below course minimum", plainCourse, &models.Enrollment{ProgressPercent: 79}, nil, false, ReasonInsufficientProgress},
		{"progress at course minimum", plainCourse, &models.Enrollment{ProgressPercent: 80}, nil, true, ""},
		{"progress before quiz", quizCourse, &models.Enrollment{ProgressPercent: 99}, nil, false, ReasonInsufficientProgress},
		{"quiz missing", quizCourse, &models.Enrollment{ProgressPercent: 100}, nil, false, ReasonQuizNotCompleted},
		{"quiz below default minimum", quizCourse, &models.Enrollment{ProgressPercent: 100}, intPtr(69), false, ReasonQuizScoreTooLow},
		{"quiz at default minimum", quizCourse, &models.Enrollment{ProgressPercent: 100}, intPtr(70), true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.evaluate(tc.course, tc.enrollment, tc.quiz)
			require.Equal(t, tc.eligible, got.Eligible)
			require.Equal(t, tc.reason, got.Reason)
		})
	}
}

func TestRequirementsFallBackToDefaults(t *testing.T) {
	p := policy{defaultMinimumProgress: 90, defaultMinimumQuizScore: 75}

	req := p.requirements(&models.Course{RequireQuizCompletion: true})
	require.Equal(t, Requirements{MinimumProgress: 90, RequireQuizCompletion: true, MinimumQuizScore: 75}, req)

	req = p.requirements(&models.Course{MinimumProgress: 60, MinimumQuizScore: 50})
	require.Equal(t, Requirements{MinimumProgress: 60, MinimumQuizScore: 50}, req)
}

func TestGradeBoundaries(t *testing.T) {
	cases := []struct {
		progress int
		quiz     *int
		score    int
		grade    enums.CertificateGrade
	}{
		{100, intPtr(87), 96, enums.GradeAPlus},
		{100, intPtr(84), 95, enums.GradeAPlus},
		{100, intPtr(67), 90, enums.GradeA},
		{69, nil, 69, enums.GradePass},
		{100, nil, 100, enums.GradeAPlus},
		{100, intPtr(0), 70, enums.GradeC},
	}
	for _, tc := range cases {
		score, grade := gradeFor(tc.progress, tc.quiz)
		require.Equal(t, tc.score, score)
		require.Equal(t, tc.grade, grade)
	}
}

func TestTokenSignerUsesHMACWhenKeyed(t *testing.T) {
	learner, course := uuid.New(), uuid.New()
	issuedAt := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)

	keyed := newTokenSigner("secret")
	plain := newTokenSigner("  ")
	keyedToken := keyed.sign(learner, course, issuedAt, "CERT-1")
	plainToken := plain.sign(learner, course, issuedAt, "CERT-1")

	require.Len(t, keyedToken, 64)
	require.Len(t, plainToken, 64)
	require.NotEqual(t, keyedToken, plainToken)

	// sub-microsecond precision is not part of the token
	require.True(t, keyed.matches(learner, course, issuedAt.Truncate(time.Microsecond), "CERT-1", keyedToken))
	require.True(t, plain.matches(learner, course, issuedAt.In(time.FixedZone("X", 3600)), "CERT-1", plainToken))
	require.False(t, keyed.matches(learner, course, issuedAt, "CERT-2", keyedToken))
	require.False(t, newTokenSigner("other").matches(learner, course, issuedAt, "CERT-1", keyedToken))
}
