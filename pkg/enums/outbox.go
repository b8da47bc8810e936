package enums

import "slices"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateEnrollment  OutboxAggregateType = "enrollment"
	AggregatePayment     OutboxAggregateType = "payment"
	AggregateCertificate OutboxAggregateType = "certificate"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateEnrollment,
	AggregatePayment,
	AggregateCertificate,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(validAggregateTypes, "aggregate type", value)
}

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventEnrollmentCreated  OutboxEventType = "enrollment_created"
	EventEnrollmentRemoved  OutboxEventType = "enrollment_removed"
	EventPaymentInitiated   OutboxEventType = "payment_initiated"
	EventPaymentCompleted   OutboxEventType = "payment_completed"
	EventPaymentFailed      OutboxEventType = "payment_failed"
	EventPaymentCancelled   OutboxEventType = "payment_cancelled"
	EventPaymentRefunded    OutboxEventType = "payment_refunded"
	EventCertificateIssued  OutboxEventType = "certificate_issued"
	EventCertificateRevoked OutboxEventType = "certificate_revoked"
)

var validEventTypes = []OutboxEventType{
	EventEnrollmentCreated,
	EventEnrollmentRemoved,
	EventPaymentInitiated,
	EventPaymentCompleted,
	EventPaymentFailed,
	EventPaymentCancelled,
	EventPaymentRefunded,
	EventCertificateIssued,
	EventCertificateRevoked,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(validEventTypes, "event type", value)
}
