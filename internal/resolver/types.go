// Package resolver holds submissions flagged as possible duplicates until a
// human records or ignores them.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// State is the lifecycle position of a pending duplicate.
type State string

const (
	// StateCandidate is a collision that was just detected and is not listable yet.
	StateCandidate State = "candidate"
	// StatePending is awaiting a human decision.
	StatePending State = "pending"
	// StateRecorded means the candidate was appended to the store.
	StateRecorded State = "recorded"
	// StateIgnored means the candidate was discarded.
	StateIgnored State = "ignored"
)

// Action is a human decision on a pending duplicate.
type Action string

const (
	ActionRecord Action = "record"
	ActionIgnore Action = "ignore"
)

// ErrInvalidAction is returned by ParseAction for anything but record or ignore.
var ErrInvalidAction = errors.New("invalid resolve action")

// ParseAction accepts "record" or "ignore", case-insensitive.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionRecord:
		return ActionRecord, nil
	case ActionIgnore:
		return ActionIgnore, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// Entry is a pending duplicate keyed by the candidate's own ID.
type Entry struct {
	PendingID string              `json:"pending_id"`
	Candidate *domain.Transaction `json:"candidate"`
	Existing  *domain.Transaction `json:"existing"`
	Reason    string              `json:"reason"`
	State     State               `json:"state"`
	CreatedAt time.Time           `json:"created_at"`
}

// Handler is called once for every entry that becomes pending.
type Handler func(ctx context.Context, entry Entry) error
