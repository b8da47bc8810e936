package certificates

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/learnhub-backend/pkg/auth"
	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	"github.com/angelmondragon/learnhub-backend/pkg/pagination"
)

// Certificate is the API view of an issued certificate. The verification token stays server side.
type Certificate struct {
	ID               uuid.UUID               `json:"id"`
	CertificateID    string                  `json:"certificate_id"`
	LearnerID        uuid.UUID               `json:"learner_id"`
	CourseID         uuid.UUID               `json:"course_id"`
	InstructorID     uuid.UUID               `json:"instructor_id"`
	CourseTitle      string                  `json:"course_title"`
	IssuedAt         time.Time               `json:"issued_at"`
	CompletionDate   time.Time               `json:"completion_date"`
	Grade            enums.CertificateGrade  `json:"grade"`
	ScorePercent     int                     `json:"score_percent"`
	ProgressPercent  int                     `json:"progress_percent"`
	Skills           []string                `json:"skills"`
	DurationMinutes  int                     `json:"duration_minutes"`
	TotalLessons     int                     `json:"total_lessons"`
	CompletedLessons int                     `json:"completed_lessons"`
	FinalQuizScore   *int                    `json:"final_quiz_score,omitempty"`
	IsValid          bool                    `json:"is_valid"`
	IssueSource      enums.CertificateSource `json:"issue_source"`
	RevocationReason *string                 `json:"revocation_reason,omitempty"`
	RevokedAt        *time.Time              `json:"revoked_at,omitempty"`
	RevokedBy        *uuid.UUID              `json:"revoked_by,omitempty"`
}

// CertificateList is a newest-first page of certificates.
type CertificateList = pagination.Page[Certificate]

// FromModel converts a stored certificate into its API view.
func FromModel(m *models.Certificate) Certificate {
	skills := []string(m.Skills)
	if skills == nil {
		skills = []string{}
	}
	return Certificate{
		ID:               m.ID,
		CertificateID:    m.CertificateID,
		LearnerID:        m.LearnerID,
		CourseID:         m.CourseID,
		InstructorID:     m.InstructorID,
		CourseTitle:      m.CourseTitle,
		IssuedAt:         m.IssuedAt,
		CompletionDate:   m.CompletionDate,
		Grade:            m.Grade,
		ScorePercent:     m.ScorePercent,
		ProgressPercent:  m.ProgressPercent,
		Skills:           skills,
		DurationMinutes:  m.DurationMinutes,
		TotalLessons:     m.TotalLessons,
		CompletedLessons: m.CompletedLessons,
		FinalQuizScore:   m.FinalQuizScore,
		IsValid:          m.IsValid,
		IssueSource:      m.IssueSource,
		RevocationReason: m.RevocationReason,
		RevokedAt:        m.RevokedAt,
		RevokedBy:        m.RevokedBy,
	}
}

// IssueInput requests a certificate. QuizScore overrides the quiz subsystem lookup and
// InstructorID overrides the course instructor; both are admin-only.
type IssueInput struct {
	LearnerID    uuid.UUID
	CourseID     uuid.UUID
	InstructorID *uuid.UUID
	QuizScore    *int
	Source       enums.CertificateSource
	Actor        auth.Actor
}

// Summary is what public verification reveals about a valid certificate.
type Summary struct {
	CertificateID  string                 `json:"certificate_id"`
	LearnerID      uuid.UUID              `json:"learner_id"`
	CourseTitle    string                 `json:"course_title"`
	Grade          enums.CertificateGrade `json:"grade"`
	ScorePercent   int                    `json:"score_percent"`
	Skills         []string               `json:"skills"`
	IssuedAt       time.Time              `json:"issued_at"`
	CompletionDate time.Time              `json:"completion_date"`
}

const (
	VerifyReasonRevoked  = "certificate has been revoked"
	VerifyReasonTampered = "verification token does not match"
)

// Verification is the public answer for a certificate id.
type Verification struct {
	Valid       bool     `json:"valid"`
	Reason      string   `json:"reason,omitempty"`
	Certificate *Summary `json:"certificate,omitempty"`
}

// BulkFailure records one learner the bulk run could not certify.
type BulkFailure struct {
	LearnerID uuid.UUID `json:"learner_id"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
}

// BulkReport summarizes a bulk issue run.
type BulkReport struct {
	TotalEnrollments int           `json:"total_enrollments"`
	TotalEligible    int           `json:"total_eligible"`
	Issued           int           `json:"issued"`
	SkippedExisting  int           `json:"skipped_existing"`
	Failed           int           `json:"failed"`
	Failures         []BulkFailure `json:"failures"`
}

// NotEligibleDetails accompanies NOT_ELIGIBLE.
type NotEligibleDetails struct {
	Reason string `json:"reason"`
}
