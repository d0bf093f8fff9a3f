package dedup

import (
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Index maps a duplicate key to the most recent record carrying it.
// It is not safe for concurrent use; the owning store serializes access.
type Index struct {
	loc     *time.Location
	entries map[Key]*domain.Transaction
}

// NewIndex creates an empty index that derives keys in loc.
func NewIndex(loc *time.Location) *Index {
	if loc == nil {
		loc = time.Local
	}
	return &Index{
		loc:     loc,
		entries: make(map[Key]*domain.Transaction),
	}
}

// Lookup returns the record colliding with tx, if any. A record is never its
// own duplicate, so replaying an already-indexed record finds nothing.
func (i *Index) Lookup(tx *domain.Transaction) (*domain.Transaction, bool) {
	existing, ok := i.entries[KeyOf(tx, i.loc)]
	if !ok || existing.ID == tx.ID {
		return nil, false
	}
	return existing, true
}

// Put records tx as the latest holder of its key.
func (i *Index) Put(tx *domain.Transaction) {
	i.entries[KeyOf(tx, i.loc)] = tx
}

// Len reports the number of distinct keys.
func (i *Index) Len() int {
	return len(i.entries)
}
