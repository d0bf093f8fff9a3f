package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Direction is the money flow of a transaction from the owner's point of view.
type Direction string

const (
	// Expense is money leaving the owner.
	Expense Direction = "expense"
	// Income is money reaching the owner.
	Income Direction = "income"
)

// ParseDirection accepts the canonical names plus the banking aliases
// "debit" and "credit".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense", "debit", "debited", "spent":
		return Expense, nil
	case "income", "credit", "credited", "received":
		return Income, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Meta carries provenance and enrichment that is not part of the money itself.
type Meta struct {
	Source       string   `json:"source,omitempty"`       // chat, sms, api, monitor
	Heuristics   []string `json:"heuristics,omitempty"`   // detection rules that fired during normalization
	Counterparty string   `json:"counterparty,omitempty"` // payee or payer, e.g. a UPI handle
	Medium       string   `json:"medium,omitempty"`       // upi, card, cash, netbanking
	OwnerPhone   string   `json:"owner_phone,omitempty"`
	IsFinancial  bool     `json:"is_financial"`
	Flavor       string   `json:"flavor,omitempty"` // essential, discretionary, ...
}

// Transaction is the canonical, immutable record of one accepted submission.
// It is created once by the normalizer and never mutated; corrections are new
// transactions.
type Transaction struct {
	ID         string    `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`

	EventDate *civil.Date `json:"event_date,omitempty"` // nil when no date could be resolved
	EventTime *civil.Time `json:"event_time,omitempty"` // nil means unknown, assume start of day

	Direction   Direction       `json:"direction"`
	Amount      decimal.Decimal `json:"amount"` // magnitude, never negative
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	RawText     string          `json:"raw_text,omitempty"`
	Tags        []string        `json:"tags,omitempty"`

	Meta Meta `json:"meta"`
}

// EffectiveDate is the event date, or the date the record was taken when the
// event date is unknown.
func (t *Transaction) EffectiveDate(loc *time.Location) civil.Date {
	if t.EventDate != nil {
		return *t.EventDate
	}
	return civil.DateOf(t.RecordedAt.In(loc))
}

// Timestamp resolves a comparable instant: event date and time, then event
// date at start of day, then the recording time. ok is false when none is set.
func (t *Transaction) Timestamp(loc *time.Location) (ts time.Time, ok bool) {
	switch {
	case t.EventDate != nil && t.EventTime != nil:
		return civil.DateTime{Date: *t.EventDate, Time: *t.EventTime}.In(loc), true
	case t.EventDate != nil:
		return t.EventDate.In(loc), true
	case !t.RecordedAt.IsZero():
		return t.RecordedAt, true
	}
	return time.Time{}, false
}

// EventTimeString is the event time as HH:MM:SS, or "" when unknown.
func (t *Transaction) EventTimeString() string {
	if t.EventTime == nil {
		return ""
	}
	return FormatClock(*t.EventTime)
}

// EventDateString is the event date as YYYY-MM-DD, or "" when unknown.
func (t *Transaction) EventDateString() string {
	if t.EventDate == nil {
		return ""
	}
	return t.EventDate.String()
}

// FormatClock renders a civil time without fractional seconds.
func FormatClock(ct civil.Time) string {
	return fmt.Sprintf("%02d:%02d:%02d", ct.Hour, ct.Minute, ct.Second)
}
