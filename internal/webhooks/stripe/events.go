package stripewebhook

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/rafaelcosta/muralize-backend/pkg/enums"
)

// Event payloads are decoded into lean local structs instead of the SDK's
// object types: webhook JSON carries expandable references as plain ids, and
// we only depend on the fields the handlers actually read.

type checkoutSessionEvent struct {
	ID              string            `json:"id"`
	Customer        string            `json:"customer"`
	Subscription    string            `json:"subscription"`
	PaymentIntent   string            `json:"payment_intent"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails *struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"customer_details"`
}

type subscriptionItemEvent struct {
	Price struct {
		ID string `json:"id"`
	} `json:"price"`
}

type subscriptionEvent struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	StartDate          int64             `json:"start_date"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	TrialEnd           int64             `json:"trial_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []subscriptionItemEvent `json:"data"`
	} `json:"items"`
}

// subscriptionDiff mirrors the previous_attributes diff on subscription
// update events. Every field is optional: absent means unchanged.
type subscriptionDiff struct {
	Status            *string `json:"status"`
	CurrentPeriodEnd  *int64  `json:"current_period_end"`
	TrialEnd          *int64  `json:"trial_end"`
	CancelAtPeriodEnd *bool   `json:"cancel_at_period_end"`
}

type invoiceEvent struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Subscription       string `json:"subscription"`
	PaymentIntent      string `json:"payment_intent"`
	Charge             string `json:"charge"`
	AmountDue          int64  `json:"amount_due"`
	AmountPaid         int64  `json:"amount_paid"`
	Currency           string `json:"currency"`
	BillingReason      string `json:"billing_reason"`
	NextPaymentAttempt int64  `json:"next_payment_attempt"`
}

func decodeEvent[T any](event *stripe.Event) (*T, error) {
	var payload T
	if err := json.Unmarshal(event.Data.Raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func decodeSubscriptionDiff(event *stripe.Event) (*subscriptionDiff, error) {
	if len(event.Data.PreviousAttributes) == 0 {
		return &subscriptionDiff{}, nil
	}
	raw, err := json.Marshal(event.Data.PreviousAttributes)
	if err != nil {
		return nil, err
	}
	var diff subscriptionDiff
	if err := json.Unmarshal(raw, &diff); err != nil {
		return nil, err
	}
	return &diff, nil
}

// priceID returns the price id on the first subscription line item.
func (e *subscriptionEvent) priceID() string {
	if len(e.Items.Data) == 0 {
		return ""
	}
	return e.Items.Data[0].Price.ID
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func unixTimePtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := unixTime(sec)
	return &t
}

// minorUnitsToDecimal converts the provider's integer minor units (cents)
// into the ledger's decimal representation.
func minorUnitsToDecimal(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

// localSubscriptionStatus maps the provider's status vocabulary onto the
// local state machine. Unknown values map to the empty string and are left
// to the caller to log and skip.
func localSubscriptionStatus(providerStatus string) enums.SubscriptionStatus {
	switch providerStatus {
	case "incomplete":
		return enums.SubscriptionStatusIncomplete
	case "trialing":
		return enums.SubscriptionStatusTrialing
	case "active":
		return enums.SubscriptionStatusActive
	case "past_due":
		return enums.SubscriptionStatusPastDue
	case "canceled":
		return enums.SubscriptionStatusCancelled
	case "unpaid", "incomplete_expired":
		return enums.SubscriptionStatusExpired
	default:
		return ""
	}
}

// invoiceStatusTransitionAllowed enforces monotonic invoice status: terminal
// states never fall back to pending, failed may complete on a later retry,
// and refunds only follow completion.
func invoiceStatusTransitionAllowed(from, to enums.InvoiceStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case enums.InvoiceStatusPending:
		return to == enums.InvoiceStatusCompleted ||
			to == enums.InvoiceStatusFailed ||
			to == enums.InvoiceStatusCancelled
	case enums.InvoiceStatusFailed:
		return to == enums.InvoiceStatusCompleted
	case enums.InvoiceStatusCompleted:
		return to == enums.InvoiceStatusRefunded
	default:
		return false
	}
}
