package enums

import "slices"

// PaymentStatus tracks the lifecycle of a course payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusCancelled,
	PaymentStatusRefunded,
}

// paymentTransitions lists the only legal moves; everything else is rejected.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCompleted: {PaymentStatusRefunded},
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	return slices.Contains(validPaymentStatuses, p)
}

// CanTransitionTo reports whether moving from p to next is allowed.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return slices.Contains(paymentTransitions[p], next)
}

// IsTerminal reports whether no further transition is possible.
func (p PaymentStatus) IsTerminal() bool {
	return len(paymentTransitions[p]) == 0
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse(validPaymentStatuses, "payment status", value)
}
