package pipeline

import (
	"errors"
	"fmt"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Status is the caller-facing outcome of an ingestion.
type Status string

const (
	StatusLogged     Status = "logged"
	StatusSuppressed Status = "suppressed"
	StatusDuplicate  Status = "duplicate"
	StatusInvalid    Status = "invalid"
	StatusFailed     Status = "failed"
)

// InvalidPayloadError is returned when a submission has a bad amount or
// direction. Nothing is written.
type InvalidPayloadError struct {
	Err error
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("invalid payload: %v", e.Err)
}

func (e *InvalidPayloadError) Unwrap() error { return e.Err }

// SuppressedDuplicateError is returned when a submission was dropped as an
// obvious re-send of Existing.
type SuppressedDuplicateError struct {
	Reason    string
	Existing  *domain.Transaction
	Candidate *domain.Transaction
}

func (e *SuppressedDuplicateError) Error() string {
	return fmt.Sprintf("suppressed duplicate of %s: %s", e.Existing.ID, e.Reason)
}

// DuplicateTransactionError is returned when a submission collided with
// Existing and now waits for a human decision under PendingID.
type DuplicateTransactionError struct {
	PendingID string
	Reason    string
	Existing  *domain.Transaction
	Candidate *domain.Transaction
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("possible duplicate of %s pending as %s", e.Existing.ID, e.PendingID)
}

// StatusOf maps an Ingest error to its outcome.
func StatusOf(err error) Status {
	if err == nil {
		return StatusLogged
	}

	var invalid *InvalidPayloadError
	var suppressed *SuppressedDuplicateError
	var duplicate *DuplicateTransactionError
	switch {
	case errors.As(err, &invalid):
		return StatusInvalid
	case errors.As(err, &suppressed):
		return StatusSuppressed
	case errors.As(err, &duplicate):
		return StatusDuplicate
	default:
		return StatusFailed
	}
}

// Resolution is the result of ResolveDuplicate.
type Resolution string

const (
	ResolutionRecorded Resolution = "recorded"
	ResolutionIgnored  Resolution = "ignored"
	ResolutionNotFound Resolution = "not-found"
)
