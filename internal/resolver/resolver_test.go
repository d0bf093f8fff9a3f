package resolver

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

func entryFor(id string, created time.Time) Entry {
	return Entry{
		PendingID: id,
		Candidate: &domain.Transaction{ID: id},
		Existing:  &domain.Transaction{ID: "existing"},
		Reason:    "outside-window",
		CreatedAt: created,
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		input   string
		want    Action
		wantErr bool
	}{
		{"record", ActionRecord, false},
		{" IGNORE ", ActionIgnore, false},
		{"delete", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAction(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAction(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidAction) {
				t.Errorf("Expected ErrInvalidAction, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseAction(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTable_Lifecycle(t *testing.T) {
	table := NewTable()
	base := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	if err := table.Add(entryFor("b", base.Add(time.Minute))); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := table.Add(entryFor("a", base)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := table.Add(entryFor("a", base)); err == nil {
		t.Error("Expected error adding the same pending ID twice")
	}
	if err := table.Add(Entry{}); err == nil {
		t.Error("Expected error for empty pending ID")
	}

	if got := table.List(); len(got) != 0 {
		t.Fatalf("Candidates must not be listable, got %d", len(got))
	}
	if _, ok := table.Take("a"); ok {
		t.Error("Candidates must not be resolvable before promotion")
	}

	table.Promote("a")
	table.Promote("b")
	if _, ok := table.Promote("missing"); ok {
		t.Error("Promote of unknown ID must report false")
	}

	list := table.List()
	if len(list) != 2 || list[0].PendingID != "a" || list[1].PendingID != "b" {
		t.Fatalf("List() = %+v, want a then b", list)
	}
	if list[0].State != StatePending {
		t.Errorf("State = %q, want pending", list[0].State)
	}

	entry, ok := table.Take("a")
	if !ok || entry.PendingID != "a" {
		t.Fatalf("Take(a) = %+v, %v", entry, ok)
	}
	if _, ok := table.Take("a"); ok {
		t.Error("Second Take must miss")
	}

	table.Restore(entry)
	if _, ok := table.Take("a"); !ok {
		t.Error("Restored entry must be takeable again")
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}

func TestSubscribers_Cap(t *testing.T) {
	subs := NewSubscribers(2)
	noop := func(ctx context.Context, e Entry) error { return nil }

	unsub1, err := subs.Subscribe(noop)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := subs.Subscribe(noop); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := subs.Subscribe(noop); !errors.Is(err, ErrTooManySubscribers) {
		t.Fatalf("Subscribe past cap error = %v, want ErrTooManySubscribers", err)
	}

	unsub1()
	unsub1()
	if subs.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", subs.Len())
	}
	if _, err := subs.Subscribe(noop); err != nil {
		t.Errorf("Subscribe after unsubscribe failed: %v", err)
	}
}

func TestSubscribers_NotifyIsolatesFailures(t *testing.T) {
	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(&buf))
	subs := NewSubscribers(0)

	var calls []string
	subs.Subscribe(func(ctx context.Context, e Entry) error {
		calls = append(calls, "panics")
		panic("boom")
	})
	subs.Subscribe(func(ctx context.Context, e Entry) error {
		calls = append(calls, "fails")
		return errors.New("handler failed")
	})
	subs.Subscribe(func(ctx context.Context, e Entry) error {
		calls = append(calls, "ok:"+e.PendingID)
		return nil
	})

	subs.Notify(ctx, entryFor("p1", time.Now()))

	if strings.Join(calls, ",") != "panics,fails,ok:p1" {
		t.Errorf("calls = %v", calls)
	}
	out := buf.String()
	if !strings.Contains(out, "Duplicate handler panicked") || !strings.Contains(out, "Duplicate handler failed") {
		t.Errorf("Expected both failures logged, got %q", out)
	}
}
