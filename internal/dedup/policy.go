package dedup

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Action is the outcome of the auto-suppression policy.
type Action string

const (
	// Suppress drops the candidate silently as a re-send.
	Suppress Action = "suppress"
	// Escalate hands the candidate to a human for review.
	Escalate Action = "escalate"
)

// Reasons attached to a Decision.
const (
	ReasonExactMatch          = "exact-match-within-window"
	ReasonCurrencyMismatch    = "currency-mismatch"
	ReasonAmountMismatch      = "amount-mismatch"
	ReasonCounterparty        = "counterparty-mismatch"
	ReasonDescriptionDrift    = "description-drift"
	ReasonTimestampUnresolved = "timestamp-unresolved"
	ReasonOutsideWindow       = "outside-window"
)

// Decision is the tagged result of Policy.Decide.
type Decision struct {
	Action Action
	Reason string
}

// Policy decides whether a colliding candidate is an obvious repeat.
type Policy struct {
	SuppressWindow   time.Duration
	DescriptionSlack int
	AmountTolerance  decimal.Decimal
	Location         *time.Location
}

// DefaultPolicy returns the stock thresholds: 2 minutes, 12 characters, 0.005.
func DefaultPolicy(loc *time.Location) Policy {
	if loc == nil {
		loc = time.Local
	}
	return Policy{
		SuppressWindow:   2 * time.Minute,
		DescriptionSlack: 12,
		AmountTolerance:  decimal.New(5, -3),
		Location:         loc,
	}
}

// Decide compares a candidate with the record it collided with. Exact field
// checks run before any timestamp resolution.
func (p Policy) Decide(candidate, existing *domain.Transaction) Decision {
	if !strings.EqualFold(strings.TrimSpace(candidate.Currency), strings.TrimSpace(existing.Currency)) {
		return Decision{Action: Escalate, Reason: ReasonCurrencyMismatch}
	}

	if candidate.Amount.Sub(existing.Amount).Abs().GreaterThan(p.AmountTolerance) {
		return Decision{Action: Escalate, Reason: ReasonAmountMismatch}
	}

	cpA, cpB := NormalizeText(candidate.Meta.Counterparty), NormalizeText(existing.Meta.Counterparty)
	if cpA != "" && cpB != "" && cpA != cpB {
		return Decision{Action: Escalate, Reason: ReasonCounterparty}
	}

	descA, descB := strings.TrimSpace(candidate.Description), strings.TrimSpace(existing.Description)
	if descA != "" && descB != "" && descA != descB {
		if abs(utf8.RuneCountInString(descA)-utf8.RuneCountInString(descB)) > p.DescriptionSlack {
			return Decision{Action: Escalate, Reason: ReasonDescriptionDrift}
		}
	}

	tsA, okA := candidate.Timestamp(p.Location)
	tsB, okB := existing.Timestamp(p.Location)
	if !okA || !okB {
		return Decision{Action: Escalate, Reason: ReasonTimestampUnresolved}
	}

	delta := tsA.Sub(tsB)
	if delta < 0 {
		delta = -delta
	}
	if delta <= p.SuppressWindow {
		return Decision{Action: Suppress, Reason: ReasonExactMatch}
	}
	return Decision{Action: Escalate, Reason: ReasonOutsideWindow}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
