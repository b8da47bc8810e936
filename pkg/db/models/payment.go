package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/pkg/enums"
)

// Payment is one purchase attempt for one course by one learner.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	LearnerID         uuid.UUID           `gorm:"column:learner_id;type:uuid;not null;index:idx_payments_learner_created,priority:1;uniqueIndex:ux_payments_pending_pair,priority:1,where:status = 'pending'"`
	CourseID          uuid.UUID           `gorm:"column:course_id;type:uuid;not null;uniqueIndex:ux_payments_pending_pair,priority:2,where:status = 'pending'"`
	AmountCents       int64               `gorm:"column:amount_cents;not null"`
	Currency          enums.Currency      `gorm:"column:currency;type:text;not null"`
	Method            enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;index:idx_payments_status_created,priority:1"`
	TransactionID     string              `gorm:"column:transaction_id;not null;uniqueIndex:ux_payments_transaction_id"`
	GatewayReference  *string             `gorm:"column:gateway_reference"`
	FailureReason     *string             `gorm:"column:failure_reason"`
	InvoiceNumber     *string             `gorm:"column:invoice_number;uniqueIndex:ux_payments_invoice_number"`
	InvoiceIssuedAt   *time.Time          `gorm:"column:invoice_issued_at"`
	RefundAmountCents *int64              `gorm:"column:refund_amount_cents"`
	RefundReason      *string             `gorm:"column:refund_reason"`
	RefundedBy        *uuid.UUID          `gorm:"column:refunded_by;type:uuid"`
	Metadata          datatypes.JSON      `gorm:"column:metadata"`
	CompletedAt       *time.Time          `gorm:"column:completed_at"`
	FailedAt          *time.Time          `gorm:"column:failed_at"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	RefundedAt        *time.Time          `gorm:"column:refunded_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime;index:idx_payments_learner_created,priority:2;index:idx_payments_status_created,priority:2"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// IsFullRefund reports whether the recorded refund covers the whole amount.
func (p *Payment) IsFullRefund() bool {
	return p.RefundAmountCents != nil && *p.RefundAmountCents >= p.AmountCents
}
