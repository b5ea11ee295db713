package stripewebhook

// Outcome classifies what a handler did with an event. Idempotent skips and
// intentionally ignored kinds are not errors; they are first-class results.
type Outcome string

const (
	// OutcomeApplied means the event mutated local state.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkippedIdempotent means local state already reflected the event.
	OutcomeSkippedIdempotent Outcome = "skipped_idempotent"
	// OutcomeIgnored means the event kind carries no local semantics.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeReconciliationGap means a referenced local record was missing
	// and the event was tolerated as a no-op, with a warning signal.
	OutcomeReconciliationGap Outcome = "reconciliation_gap"
	// OutcomeRetryableGap means a prerequisite event has not been processed
	// yet; the sender is asked to redeliver.
	OutcomeRetryableGap Outcome = "retryable_gap"
	// OutcomePermanentError means the event references state that cannot be
	// provisioned by redelivery; it is acknowledged and flagged.
	OutcomePermanentError Outcome = "permanent_error"
)

// Result is the typed outcome of one handler invocation.
type Result struct {
	Outcome Outcome
	Detail  string
}

func applied(detail string) Result {
	return Result{Outcome: OutcomeApplied, Detail: detail}
}

func skipped(detail string) Result {
	return Result{Outcome: OutcomeSkippedIdempotent, Detail: detail}
}

func gap(detail string) Result {
	return Result{Outcome: OutcomeReconciliationGap, Detail: detail}
}
