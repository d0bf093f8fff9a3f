// Package dedup holds the duplicate key, the in-memory duplicate index and
// the auto-suppression policy.
package dedup

import (
	"strings"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Key is the composite fingerprint two records must share to collide.
// It is derived on demand and is never a record identity.
type Key struct {
	Direction    domain.Direction
	Amount       string // rounded to 2 decimals
	Currency     string
	EventDate    string
	EventTime    string
	Description  string
	Counterparty string
}

// KeyOf derives the duplicate key. Records without an event date use the day
// they were recorded on in loc.
func KeyOf(tx *domain.Transaction, loc *time.Location) Key {
	return Key{
		Direction:    tx.Direction,
		Amount:       tx.Amount.StringFixed(2),
		Currency:     strings.ToUpper(strings.TrimSpace(tx.Currency)),
		EventDate:    tx.EffectiveDate(loc).String(),
		EventTime:    tx.EventTimeString(),
		Description:  NormalizeText(tx.Description),
		Counterparty: NormalizeText(tx.Meta.Counterparty),
	}
}

// NormalizeText lower-cases s, trims it and collapses inner whitespace.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
