package resolver

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Table is an in-memory pending-duplicate table, safe for concurrent use.
// Entries live only as long as the process.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Add stores a freshly detected collision in the candidate state.
func (t *Table) Add(entry Entry) error {
	if entry.PendingID == "" {
		return fmt.Errorf("Add: pending ID is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[entry.PendingID]; exists {
		return fmt.Errorf("Add: pending duplicate %s already exists", entry.PendingID)
	}

	entryCopy := entry
	entryCopy.State = StateCandidate
	if entryCopy.CreatedAt.IsZero() {
		entryCopy.CreatedAt = t.now()
	}
	t.entries[entry.PendingID] = &entryCopy
	return nil
}

// Promote moves a candidate into the pending state, making it listable.
func (t *Table) Promote(pendingID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.entries[pendingID]
	if !exists {
		return Entry{}, false
	}
	entry.State = StatePending
	return *entry, true
}

// List returns pending entries, oldest first.
func (t *Table) List() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]Entry, 0, len(t.entries))
	for _, entry := range t.entries {
		if entry.State != StatePending {
			continue
		}
		result = append(result, *entry)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].PendingID < result[j].PendingID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Take removes and returns a pending entry. A missing or not yet promoted ID
// reports false.
func (t *Table) Take(pendingID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.entries[pendingID]
	if !exists || entry.State != StatePending {
		return Entry{}, false
	}
	delete(t.entries, pendingID)
	return *entry, true
}

// Restore puts back an entry taken for a decision that could not be applied.
func (t *Table) Restore(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entryCopy := entry
	entryCopy.State = StatePending
	t.entries[entry.PendingID] = &entryCopy
}

// Len reports the number of entries in any state.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
