package enums

import "fmt"

// PaymentAttemptStatus tracks a single charge attempt from checkout session
// creation to its terminal outcome.
type PaymentAttemptStatus string

const (
	PaymentAttemptStatusPending    PaymentAttemptStatus = "pending"
	PaymentAttemptStatusProcessing PaymentAttemptStatus = "processing"
	PaymentAttemptStatusSucceeded  PaymentAttemptStatus = "succeeded"
	PaymentAttemptStatusFailed     PaymentAttemptStatus = "failed"
	PaymentAttemptStatusCancelled  PaymentAttemptStatus = "cancelled"
)

var validPaymentAttemptStatuses = []PaymentAttemptStatus{
	PaymentAttemptStatusPending,
	PaymentAttemptStatusProcessing,
	PaymentAttemptStatusSucceeded,
	PaymentAttemptStatusFailed,
	PaymentAttemptStatusCancelled,
}

// String implements fmt.Stringer.
func (p PaymentAttemptStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentAttemptStatus.
func (p PaymentAttemptStatus) IsValid() bool {
	for _, candidate := range validPaymentAttemptStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the attempt can no longer change state.
func (p PaymentAttemptStatus) IsTerminal() bool {
	switch p {
	case PaymentAttemptStatusSucceeded, PaymentAttemptStatusFailed, PaymentAttemptStatusCancelled:
		return true
	}
	return false
}

// ParsePaymentAttemptStatus converts raw input into a PaymentAttemptStatus.
func ParsePaymentAttemptStatus(value string) (PaymentAttemptStatus, error) {
	for _, candidate := range validPaymentAttemptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment attempt status %q", value)
}
