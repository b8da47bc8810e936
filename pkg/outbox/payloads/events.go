package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/learnhub-backend/pkg/enums"
)

// EnrollmentCreatedEvent is emitted when a learner gains access to a course.
type EnrollmentCreatedEvent struct {
	EnrollmentID uuid.UUID              `json:"enrollment_id"`
	LearnerID    uuid.UUID              `json:"learner_id"`
	CourseID     uuid.UUID              `json:"course_id"`
	Source       enums.EnrollmentSource `json:"source"`
	EnrolledAt   time.Time              `json:"enrolled_at"`
}

// EnrollmentRemovedEvent is emitted when access is withdrawn, typically by a full refund.
type EnrollmentRemovedEvent struct {
	EnrollmentID uuid.UUID `json:"enrollment_id"`
	LearnerID    uuid.UUID `json:"learner_id"`
	CourseID     uuid.UUID `json:"course_id"`
	RemovedAt    time.Time `json:"removed_at"`
}

// PaymentStatusEvent covers every payment lifecycle transition.
type PaymentStatusEvent struct {
	PaymentID         uuid.UUID           `json:"payment_id"`
	TransactionID     string              `json:"transaction_id"`
	LearnerID         uuid.UUID           `json:"learner_id"`
	CourseID          uuid.UUID           `json:"course_id"`
	AmountCents       int64               `json:"amount_cents"`
	Currency          enums.Currency      `json:"currency"`
	Method            enums.PaymentMethod `json:"method"`
	Status            enums.PaymentStatus `json:"status"`
	InvoiceNumber     *string             `json:"invoice_number,omitempty"`
	RefundAmountCents *int64              `json:"refund_amount_cents,omitempty"`
	Reason            string              `json:"reason,omitempty"`
	OccurredAt        time.Time           `json:"occurred_at"`
}

// CertificateIssuedEvent announces a newly issued certificate.
type CertificateIssuedEvent struct {
	CertificateID string                  `json:"certificate_id"`
	LearnerID     uuid.UUID               `json:"learner_id"`
	CourseID      uuid.UUID               `json:"course_id"`
	Grade         enums.CertificateGrade  `json:"grade"`
	ScorePercent  int                     `json:"score_percent"`
	Source        enums.CertificateSource `json:"source"`
	IssuedAt      time.Time               `json:"issued_at"`
}

// CertificateRevokedEvent announces that a certificate no longer verifies.
type CertificateRevokedEvent struct {
	CertificateID string    `json:"certificate_id"`
	LearnerID     uuid.UUID `json:"learner_id"`
	CourseID      uuid.UUID `json:"course_id"`
	Reason        string    `json:"reason"`
	RevokedBy     uuid.UUID `json:"revoked_by"`
	RevokedAt     time.Time `json:"revoked_at"`
}
