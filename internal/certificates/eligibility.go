package certificates

import (
	"math"

	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
)

const (
	ReasonNotEnrolled          = "not enrolled in this course"
	ReasonInsufficientProgress = "course progress is below the required minimum"
	ReasonQuizNotCompleted     = "course quiz has not been passed"
	ReasonQuizScoreTooLow      = "quiz score is below the required minimum"
)

// Requirements are the completion criteria a course enforces.
type Requirements struct {
	MinimumProgress       int  `json:"minimum_progress"`
	RequireQuizCompletion bool `json:"require_quiz_completion"`
	MinimumQuizScore      int  `json:"minimum_quiz_score"`
}

// Eligibility is the outcome of evaluating a learner against a course.
type Eligibility struct {
	Eligible        bool         `json:"eligible"`
	Reason          string       `json:"reason,omitempty"`
	ProgressPercent int          `json:"progress_percent"`
	QuizScore       *int         `json:"quiz_score"`
	HasCertificate  bool         `json:"has_certificate"`
	Requirements    Requirements `json:"requirements"`
}

// policy supplies the fallbacks used when a course leaves a criterion unset.
type policy struct {
	defaultMinimumProgress  int
	defaultMinimumQuizScore int
}

func (p policy) requirements(course *models.Course) Requirements {
	req := Requirements{
		MinimumProgress:       course.MinimumProgress,
		RequireQuizCompletion: course.RequireQuizCompletion,
		MinimumQuizScore:      course.MinimumQuizScore,
	}
	if req.MinimumProgress <= 0 {
		req.MinimumProgress = p.defaultMinimumProgress
	}
	if req.RequireQuizCompletion && req.MinimumQuizScore <= 0 {
		req.MinimumQuizScore = p.defaultMinimumQuizScore
	}
	return req
}

// evaluate is the only place eligibility is decided. A nil enrollment means the learner is not
// enrolled. Checks run in order and the first failure wins.
func (p policy) evaluate(course *models.Course, enrollment *models.Enrollment, quizScore *int) Eligibility {
	out := Eligibility{QuizScore: quizScore, Requirements: p.requirements(course)}
	if enrollment == nil {
		out.Reason = ReasonNotEnrolled
		return out
	}
	out.ProgressPercent = enrollment.ProgressPercent
	if enrollment.ProgressPercent < out.Requirements.MinimumProgress {
		out.Reason = ReasonInsufficientProgress
		return out
	}
	if out.Requirements.RequireQuizCompletion {
		if quizScore == nil {
			out.Reason = ReasonQuizNotCompleted
			return out
		}
		if *quizScore < out.Requirements.MinimumQuizScore {
			out.Reason = ReasonQuizScoreTooLow
			return out
		}
	}
	out.Eligible = true
	return out
}

// finalScore weights progress 70/30 against the quiz score when there is one.
func finalScore(progress int, quizScore *int) int {
	if quizScore == nil {
		return progress
	}
	return int(math.Round(0.7*float64(progress) + 0.3*float64(*quizScore)))
}

func gradeFor(progress int, quizScore *int) (int, enums.CertificateGrade) {
	score := finalScore(progress, quizScore)
	return score, enums.GradeForScore(score)
}
