package stripewebhook

import "errors"

// Permanent integrity errors: the referenced entity should have been
// provisioned out-of-band and redelivery cannot fix its absence. These are
// logged loudly and the event is acknowledged.
var (
	ErrMissingMetadata = errors.New("required event metadata missing")
	ErrUnknownCustomer = errors.New("no billing profile for provider customer")
	ErrUnknownPlan     = errors.New("provider price id is not cataloged")
)

// Retryable gaps: the prerequisite event has probably not been processed
// yet. The sender is asked to redeliver.
var (
	ErrInvoiceNotFound        = errors.New("invoice not recorded yet")
	ErrPaymentAttemptNotFound = errors.New("payment attempt not recorded yet")
	ErrSubscriptionNotFound   = errors.New("subscription not recorded yet")
)

func isPermanentError(err error) bool {
	return errors.Is(err, ErrMissingMetadata) ||
		errors.Is(err, ErrUnknownCustomer) ||
		errors.Is(err, ErrUnknownPlan)
}

func isRetryableGap(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrPaymentAttemptNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound)
}
