package payments

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/learnhub-backend/internal/enrollments"
	"github.com/angelmondragon/learnhub-backend/internal/gateway"
	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	"github.com/angelmondragon/learnhub-backend/pkg/pagination"
	"github.com/angelmondragon/learnhub-backend/pkg/types"
)

// Payment is the API view of a payment record.
type Payment struct {
	ID                uuid.UUID           `json:"id"`
	LearnerID         uuid.UUID           `json:"learner_id"`
	CourseID          uuid.UUID           `json:"course_id"`
	AmountCents       int64               `json:"amount_cents"`
	Amount            string              `json:"amount"`
	Currency          enums.Currency      `json:"currency"`
	Method            enums.PaymentMethod `json:"method"`
	Status            enums.PaymentStatus `json:"status"`
	TransactionID     string              `json:"transaction_id"`
	GatewayReference  *string             `json:"gateway_reference,omitempty"`
	FailureReason     *string             `json:"failure_reason,omitempty"`
	InvoiceNumber     *string             `json:"invoice_number,omitempty"`
	InvoiceIssuedAt   *time.Time          `json:"invoice_issued_at,omitempty"`
	RefundAmountCents *int64              `json:"refund_amount_cents,omitempty"`
	RefundReason      *string             `json:"refund_reason,omitempty"`
	RefundedBy        *uuid.UUID          `json:"refunded_by,omitempty"`
	Metadata          json.RawMessage     `json:"metadata,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	CompletedAt       *time.Time          `json:"completed_at,omitempty"`
	FailedAt          *time.Time          `json:"failed_at,omitempty"`
	CancelledAt       *time.Time          `json:"cancelled_at,omitempty"`
	RefundedAt        *time.Time          `json:"refunded_at,omitempty"`
}

// PaymentList is a newest-first page of payments.
type PaymentList = pagination.Page[Payment]

// FromModel converts a stored payment into its API view.
func FromModel(m *models.Payment) Payment {
	view := Payment{
		ID:                m.ID,
		LearnerID:         m.LearnerID,
		CourseID:          m.CourseID,
		AmountCents:       m.AmountCents,
		Amount:            types.FormatCents(m.AmountCents),
		Currency:          m.Currency,
		Method:            m.Method,
		Status:            m.Status,
		TransactionID:     m.TransactionID,
		GatewayReference:  m.GatewayReference,
		FailureReason:     m.FailureReason,
		InvoiceNumber:     m.InvoiceNumber,
		InvoiceIssuedAt:   m.InvoiceIssuedAt,
		RefundAmountCents: m.RefundAmountCents,
		RefundReason:      m.RefundReason,
		RefundedBy:        m.RefundedBy,
		CreatedAt:         m.CreatedAt,
		CompletedAt:       m.CompletedAt,
		FailedAt:          m.FailedAt,
		CancelledAt:       m.CancelledAt,
		RefundedAt:        m.RefundedAt,
	}
	if len(m.Metadata) > 0 {
		view.Metadata = json.RawMessage(m.Metadata)
	}
	return view
}

// InitiateInput starts a purchase.
type InitiateInput struct {
	CourseID uuid.UUID
	Method   enums.PaymentMethod
}

// InitiateResult carries the new payment plus either the gateway handoff (paid courses) or the
// enrollment (free courses).
type InitiateResult struct {
	Payment    Payment                 `json:"payment"`
	Handoff    *gateway.Handoff        `json:"handoff,omitempty"`
	Enrollment *enrollments.Enrollment `json:"enrollment,omitempty"`
}

// ConfirmResult is returned after a settled payment created the enrollment.
type ConfirmResult struct {
	Payment    Payment                `json:"payment"`
	Enrollment enrollments.Enrollment `json:"enrollment"`
}

// RefundInput describes a refund. A nil amount refunds the full payment.
type RefundInput struct {
	AmountCents *int64
	Reason      string
}

// TransitionDetails accompanies INVALID_TRANSITION.
type TransitionDetails struct {
	From enums.PaymentStatus `json:"from"`
	To   enums.PaymentStatus `json:"to"`
}

type paymentMetadata struct {
	CourseTitle      string     `json:"course_title"`
	HandoffExpiresAt *time.Time `json:"handoff_expires_at,omitempty"`
}
