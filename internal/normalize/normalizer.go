// Package normalize turns raw transaction submissions into canonical
// domain.Transaction records.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// ErrInvalidPayload is returned for submissions that can never be recorded.
var ErrInvalidPayload = errors.New("invalid payload")

// Amount is a submitted amount kept as decimal text, so a missing amount ("")
// stays distinct from zero. It decodes from a JSON number or a JSON string.
type Amount string

// AmountOf formats f without rounding.
func AmountOf(f float64) Amount {
	return Amount(strconv.FormatFloat(f, 'f', -1, 64))
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(n)
	return nil
}

// Decimal parses the amount. Missing and non-numeric amounts are
// ErrInvalidPayload.
func (a Amount) Decimal() (decimal.Decimal, error) {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: amount is required", ErrInvalidPayload)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q is not a number", ErrInvalidPayload, s)
	}
	return d, nil
}

// Payload is a raw submission as produced by the chat tool call or the SMS extractor.
type Payload struct {
	Amount       Amount
	Description  string
	Direction    string
	RawText      string
	Currency     string // optional hint, wins over detection
	Counterparty string
	Medium       string
	OwnerPhone   string

	// Explicit overrides, always preferred over detection.
	EventDate string // YYYY-MM-DD
	EventTime string // HH:MM or HH:MM:SS
}

// Categorization is the classification attached to a submission by the caller.
type Categorization struct {
	Category    string
	Flavor      string
	Tags        []string
	IsFinancial *bool // nil means true
}

// Options carries submission context that is not part of the payload.
type Options struct {
	Source    string
	ExtraTags []string
}

// Normalizer builds canonical records. The zero value is not usable; call New.
type Normalizer struct {
	DefaultCurrency string
	Location        *time.Location
	Now             func() time.Time
	NewID           func() string
}

// New returns a normalizer using the wall clock and random UUIDs.
func New(defaultCurrency string, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{
		DefaultCurrency: strings.ToUpper(defaultCurrency),
		Location:        loc,
		Now:             time.Now,
		NewID:           uuid.NewString,
	}
}

// Normalize validates the payload and maps it to a new canonical record.
// Every call yields a fresh ID, even for identical input.
func (n *Normalizer) Normalize(p Payload, cat Categorization, opts Options) (*domain.Transaction, error) {
	amount, err := p.Amount.Decimal()
	if err != nil {
		return nil, err
	}
	direction, err := domain.ParseDirection(p.Direction)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	now := n.Now().In(n.Location)
	text := p.RawText
	if strings.TrimSpace(text) == "" {
		text = p.Description
	}

	var heuristics []string

	currency, rule := detectCurrency(p.Currency, text, n.DefaultCurrency)
	heuristics = append(heuristics, rule)

	eventDate, eventTime, temporal, err := n.resolveTemporal(p, text, now)
	if err != nil {
		return nil, err
	}
	heuristics = append(heuristics, temporal...)

	category := strings.TrimSpace(cat.Category)
	if category == "" {
		category = "Uncategorized"
	}

	isFinancial := true
	if cat.IsFinancial != nil {
		isFinancial = *cat.IsFinancial
	}

	extra := make([]string, 0, len(cat.Tags)+len(opts.ExtraTags))
	extra = append(extra, cat.Tags...)
	extra = append(extra, opts.ExtraTags...)

	tx := &domain.Transaction{
		ID:          n.NewID(),
		RecordedAt:  now,
		EventDate:   eventDate,
		EventTime:   eventTime,
		Direction:   direction,
		Amount:      amount.Abs(),
		Currency:    currency,
		Category:    category,
		Description: strings.TrimSpace(p.Description),
		RawText:     p.RawText,
		Tags:        deriveTags(direction, category, text, extra),
		Meta: domain.Meta{
			Source:       opts.Source,
			Heuristics:   heuristics,
			Counterparty: strings.TrimSpace(p.Counterparty),
			Medium:       strings.ToLower(strings.TrimSpace(p.Medium)),
			OwnerPhone:   strings.TrimSpace(p.OwnerPhone),
			IsFinancial:  isFinancial,
			Flavor:       strings.TrimSpace(cat.Flavor),
		},
	}
	return tx, nil
}

// resolveTemporal applies caller overrides first, then detection on text.
func (n *Normalizer) resolveTemporal(p Payload, text string, now time.Time) (*civil.Date, *civil.Time, []string, error) {
	var rules []string

	var date *civil.Date
	if s := strings.TrimSpace(p.EventDate); s != "" {
		d, err := civil.ParseDate(s)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: event date %q: %v", ErrInvalidPayload, s, err)
		}
		date = &d
		rules = append(rules, "date:override")
	} else if d, rule, ok := detectDate(text, now); ok {
		date = &d
		rules = append(rules, rule)
	}

	var clock *civil.Time
	if s := strings.TrimSpace(p.EventTime); s != "" {
		ct, err := parseClockOverride(s)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: event time %q: %v", ErrInvalidPayload, s, err)
		}
		clock = &ct
		rules = append(rules, "time:override")
	} else if ct, ok := detectClock(text); ok {
		clock = &ct
		rules = append(rules, "time:clock")
	}

	return date, clock, rules, nil
}

func parseClockOverride(s string) (civil.Time, error) {
	if strings.Count(s, ":") == 1 {
		s += ":00"
	}
	return civil.ParseTime(s)
}
