package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/pkg/enums"
)

// Certificate is the proof that a learner completed a course. Everything except the
// validity and revocation fields is frozen at issuance.
type Certificate struct {
	ID                uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	CertificateID     string                      `gorm:"column:certificate_id;not null;uniqueIndex:ux_certificates_certificate_id"`
	LearnerID         uuid.UUID                   `gorm:"column:learner_id;type:uuid;not null;index:idx_certificates_learner;uniqueIndex:ux_certificates_valid_pair,priority:1,where:is_valid = true"`
	CourseID          uuid.UUID                   `gorm:"column:course_id;type:uuid;not null;index:idx_certificates_course;uniqueIndex:ux_certificates_valid_pair,priority:2,where:is_valid = true"`
	InstructorID      uuid.UUID                   `gorm:"column:instructor_id;type:uuid;not null;index:idx_certificates_instructor"`
	CourseTitle       string                      `gorm:"column:course_title;not null"`
	IssuedAt          time.Time                   `gorm:"column:issued_at;not null"`
	CompletionDate    time.Time                   `gorm:"column:completion_date;not null"`
	Grade             enums.CertificateGrade      `gorm:"column:grade;type:text;not null"`
	ScorePercent      int                         `gorm:"column:score_percent;not null"`
	ProgressPercent   int                         `gorm:"column:progress_percent;not null"`
	Skills            datatypes.JSONSlice[string] `gorm:"column:skills"`
	DurationMinutes   int                         `gorm:"column:duration_minutes;not null"`
	TotalLessons      int                         `gorm:"column:total_lessons;not null"`
	CompletedLessons  int                         `gorm:"column:completed_lessons;not null"`
	FinalQuizScore    *int                        `gorm:"column:final_quiz_score"`
	VerificationToken string                      `gorm:"column:verification_token;not null"`
	IsValid           bool                        `gorm:"column:is_valid;not null"`
	IssueSource       enums.CertificateSource     `gorm:"column:issue_source;type:text;not null"`
	RevocationReason  *string                     `gorm:"column:revocation_reason"`
	RevokedAt         *time.Time                  `gorm:"column:revoked_at"`
	RevokedBy         *uuid.UUID                  `gorm:"column:revoked_by;type:uuid"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Certificate) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
