package enums

import "testing"

func TestPaymentStatusTransitions(t *testing.T) {
	allowed := map[PaymentStatus]map[PaymentStatus]bool{
		PaymentStatusPending: {
			PaymentStatusCompleted: true,
			PaymentStatusFailed:    true,
			PaymentStatusCancelled: true,
		},
		PaymentStatusCompleted: {
			PaymentStatusRefunded: true,
		},
	}

	for _, from := range validPaymentStatuses {
		for _, to := range validPaymentStatuses {
			want := allowed[from][to]
			if got := from.CanTransitionTo(to); got != want {
				t.Fatalf("%s -> %s: expected %v got %v", from, to, want, got)
			}
		}
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	for _, status := range []PaymentStatus{PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded} {
		if !status.IsTerminal() {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
	if PaymentStatusPending.IsTerminal() || PaymentStatusCompleted.IsTerminal() {
		t.Fatalf("pending and completed must allow transitions")
	}
}

func TestParsePaymentStatus(t *testing.T) {
	if got, err := ParsePaymentStatus("refunded"); err != nil || got != PaymentStatusRefunded {
		t.Fatalf("unexpected parse result %q err=%v", got, err)
	}
	if _, err := ParsePaymentStatus("settled"); err == nil {
		t.Fatalf("expected unknown status to fail")
	}
}
