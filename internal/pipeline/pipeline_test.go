package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/normalize"
	"github.com/dvloznov/finance-assistant/internal/resolver"
	"github.com/dvloznov/finance-assistant/internal/store"
)

// clock is a settable time source for the normalizer.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	pipeline *Pipeline
	clock    *clock
	path     string
	ctx      context.Context
	logs     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	var logs bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(&logs))
	dir := t.TempDir()
	path := filepath.Join(dir, "transactions.csv")

	s, err := store.Open(ctx, store.Options{
		Path:          path,
		AnalyticsPath: filepath.Join(dir, "analytics.csv"),
		Location:      time.UTC,
	})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}

	c := &clock{now: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)}
	n := normalize.New("INR", time.UTC)
	n.Now = c.Now

	p, err := New(Deps{Store: s, Normalizer: n})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return &fixture{pipeline: p, clock: c, path: path, ctx: ctx, logs: &logs}
}

func (f *fixture) dataRows(t *testing.T) int {
	t.Helper()
	data, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	return strings.Count(string(data), "\n") - 1
}

var lunch = normalize.Payload{
	Amount:       "75.00",
	Currency:     "INR",
	Direction:    "debit",
	Description:  "lunch",
	Counterparty: "a@upi",
}

func TestIngest_SuppressesResendWithinWindow(t *testing.T) {
	f := newFixture(t)

	first, err := f.pipeline.Ingest(f.ctx, lunch, normalize.Categorization{}, normalize.Options{Source: "chat"})
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	if first.Direction != domain.Expense {
		t.Errorf("Direction = %q, want expense", first.Direction)
	}

	f.clock.Set(time.Date(2026, 10, 16, 10, 1, 30, 0, time.UTC))
	_, err = f.pipeline.Ingest(f.ctx, lunch, normalize.Categorization{}, normalize.Options{Source: "chat"})

	var suppressed *SuppressedDuplicateError
	if !errors.As(err, &suppressed) {
		t.Fatalf("second Ingest error = %v, want SuppressedDuplicateError", err)
	}
	if suppressed.Reason != "exact-match-within-window" {
		t.Errorf("Reason = %q", suppressed.Reason)
	}
	if suppressed.Existing.ID != first.ID {
		t.Errorf("Existing = %s, want %s", suppressed.Existing.ID, first.ID)
	}
	if StatusOf(err) != StatusSuppressed {
		t.Errorf("StatusOf = %q", StatusOf(err))
	}
	if got := f.dataRows(t); got != 1 {
		t.Errorf("store has %d data rows, want 1", got)
	}
	if len(f.pipeline.ListPendingDuplicates()) != 0 {
		t.Error("Suppressed submissions must not create pending entries")
	}
}

// reopen builds a fresh pipeline over the fixture's store file, as after a
// process restart.
func (f *fixture) reopen(t *testing.T) {
	t.Helper()
	s, err := store.Open(f.ctx, store.Options{
		Path:          f.path,
		AnalyticsPath: filepath.Join(filepath.Dir(f.path), "analytics.csv"),
		Location:      time.UTC,
	})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	n := normalize.New("INR", time.UTC)
	n.Now = f.clock.Now
	p, err := New(Deps{Store: s, Normalizer: n})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	f.pipeline = p
}

func TestIngest_SuppressesResendAfterRestart(t *testing.T) {
	f := newFixture(t)

	if _, err := f.pipeline.Ingest(f.ctx, lunch, normalize.Categorization{}, normalize.Options{Source: "chat"}); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	f.reopen(t)
	f.clock.Set(time.Date(2026, 10, 16, 10, 1, 30, 0, time.UTC))
	_, err := f.pipeline.Ingest(f.ctx, lunch, normalize.Categorization{}, normalize.Options{Source: "chat"})
	if StatusOf(err) != StatusSuppressed {
		t.Fatalf("resend after restart: status = %q (err %v), want suppressed", StatusOf(err), err)
	}
	if got := f.dataRows(t); got != 1 {
		t.Errorf("store has %d data rows, want 1", got)
	}
}

func TestIngest_EscalatesAndResolves(t *testing.T) {
	f := newFixture(t)

	var notified []resolver.Entry
	unsubscribe, err := f.pipeline.OnDuplicate(func(ctx context.Context, e resolver.Entry) error {
		notified = append(notified, e)
		return nil
	})
	if err != nil {
		t.Fatalf("OnDuplicate failed: %v", err)
	}
	defer unsubscribe()

	first, err := f.pipeline.Ingest(f.ctx, lunch, normalize.Categorization{}, normalize.Options{})
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	f.clock.Set(time.Date(2026, 10, 16, 10, 5, 0, 0, time.UTC))
	second, err := f.pipeline.Ingest(f.ctx, lunch, normalize.Categorization{}, normalize.Options{})

	var dup *DuplicateTransactionError
	if !errors.As(err, &dup) {
		t.Fatalf("second Ingest error = %v, want DuplicateTransactionError", err)
	}
	if dup.PendingID == "" || dup.PendingID != second.ID {
		t.Errorf("PendingID = %q, want candidate ID %q", dup.PendingID, second.ID)
	}
	if dup.Existing.ID != first.ID {
		t.Errorf("Existing = %s, want %s", dup.Existing.ID, first.ID)
	}
	if StatusOf(err) != StatusDuplicate {
		t.Errorf("StatusOf = %q", StatusOf(err))
	}

	pending := f.pipeline.ListPendingDuplicates()
	if len(pending) != 1 || pending[0].PendingID != dup.PendingID {
		t.Fatalf("ListPendingDuplicates() = %+v, want one entry", pending)
	}
	if len(notified) != 1 || notified[0].State != resolver.StatePending {
		t.Fatalf("notified = %+v, want one pending entry", notified)
	}
	if got := f.dataRows(t); got != 1 {
		t.Errorf("store has %d data rows before resolve, want 1", got)
	}

	res, err := f.pipeline.ResolveDuplicate(f.ctx, dup.PendingID, resolver.ActionRecord)
	if err != nil || res != ResolutionRecorded {
		t.Fatalf("ResolveDuplicate = %q, %v; want recorded", res, err)
	}
	if got := f.dataRows(t); got != 2 {
		t.Errorf("store has %d data rows after resolve, want 2", got)
	}

	res, err = f.pipeline.ResolveDuplicate(f.ctx, dup.PendingID, resolver.ActionRecord)
	if err != nil || res != ResolutionNotFound {
		t.Errorf("second ResolveDuplicate = %q, %v; want not-found", res, err)
	}
	if len(f.pipeline.ListPendingDuplicates()) != 0 {
		t.Error("Expected no pending entries after resolve")
	}
}

func TestResolveDuplicate_Ignore(t *testing.T) {
	f := newFixture(t)

	if _, err := f.pipeline.Ingest(f.ctx, lunch, normalize.Categorization{}, normalize.Options{}); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	f.clock.Set(time.Date(2026, 10, 16, 10, 3, 0, 0, time.UTC))
	_, err := f.pipeline.Ingest(f.ctx, lunch, normalize.Categorization{}, normalize.Options{})

	var dup *DuplicateTransactionError
	if !errors.As(err, &dup) {
		t.Fatalf("Ingest error = %v, want DuplicateTransactionError", err)
	}

	res, err := f.pipeline.ResolveDuplicate(f.ctx, dup.PendingID, resolver.ActionIgnore)
	if err != nil || res != ResolutionIgnored {
		t.Fatalf("ResolveDuplicate = %q, %v; want ignored", res, err)
	}
	if got := f.dataRows(t); got != 1 {
		t.Errorf("store has %d data rows, want 1", got)
	}

	res, err = f.pipeline.ResolveDuplicate(f.ctx, dup.PendingID, resolver.ActionIgnore)
	if err != nil || res != ResolutionNotFound {
		t.Errorf("second ResolveDuplicate = %q, %v; want not-found", res, err)
	}
}

func TestResolveDuplicate_InvalidAction(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.ResolveDuplicate(f.ctx, "whatever", resolver.Action("delete"))
	if !errors.Is(err, resolver.ErrInvalidAction) {
		t.Errorf("error = %v, want ErrInvalidAction", err)
	}
}

func TestIngest_InvalidPayload(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Ingest(f.ctx, normalize.Payload{Amount: "10", Direction: "sideways"}, normalize.Categorization{}, normalize.Options{})

	var invalid *InvalidPayloadError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidPayloadError", err)
	}
	if !errors.Is(err, normalize.ErrInvalidPayload) {
		t.Error("InvalidPayloadError must wrap normalize.ErrInvalidPayload")
	}
	if StatusOf(err) != StatusInvalid {
		t.Errorf("StatusOf = %q", StatusOf(err))
	}
	if got := f.dataRows(t); got != 0 {
		t.Errorf("store has %d data rows, want 0", got)
	}
}

func TestIngest_DistinctPayloadsAreLogged(t *testing.T) {
	f := newFixture(t)

	dinner := lunch
	dinner.Description = "dinner"

	for _, p := range []normalize.Payload{lunch, dinner} {
		if _, err := f.pipeline.Ingest(f.ctx, p, normalize.Categorization{}, normalize.Options{}); err != nil {
			t.Fatalf("Ingest(%s) failed: %v", p.Description, err)
		}
	}
	if got := f.dataRows(t); got != 2 {
		t.Errorf("store has %d data rows, want 2", got)
	}
}

func TestIngest_HandlerFailureDoesNotAbortIngest(t *testing.T) {
	f := newFixture(t)

	if _, err := f.pipeline.OnDuplicate(func(ctx context.Context, e resolver.Entry) error {
		panic("subscriber bug")
	}); err != nil {
		t.Fatalf("OnDuplicate failed: %v", err)
	}

	if _, err := f.pipeline.Ingest(f.ctx, lunch, normalize.Categorization{}, normalize.Options{}); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	f.clock.Set(time.Date(2026, 10, 16, 10, 5, 0, 0, time.UTC))
	_, err := f.pipeline.Ingest(f.ctx, lunch, normalize.Categorization{}, normalize.Options{})

	if StatusOf(err) != StatusDuplicate {
		t.Fatalf("StatusOf = %q, want duplicate", StatusOf(err))
	}
	if len(f.pipeline.ListPendingDuplicates()) != 1 {
		t.Error("Expected the pending entry to survive the panicking handler")
	}
	if !strings.Contains(f.logs.String(), "Duplicate handler panicked") {
		t.Error("Expected the handler panic to be logged")
	}
}

func TestIngest_ConcurrentResendsRecordOnce(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	statuses := make(chan Status, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pipeline.Ingest(f.ctx, lunch, normalize.Categorization{}, normalize.Options{})
			statuses <- StatusOf(err)
		}()
	}
	wg.Wait()
	close(statuses)

	counts := make(map[Status]int)
	for s := range statuses {
		counts[s]++
	}
	if counts[StatusLogged] != 1 || counts[StatusSuppressed] != 7 {
		t.Errorf("statuses = %v, want 1 logged and 7 suppressed", counts)
	}
	if got := f.dataRows(t); got != 1 {
		t.Errorf("store has %d data rows, want 1", got)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusLogged},
		{"invalid", &InvalidPayloadError{Err: normalize.ErrInvalidPayload}, StatusInvalid},
		{"wrapped suppressed", errors.Join(errors.New("ctx"), &SuppressedDuplicateError{Existing: &domain.Transaction{}}), StatusSuppressed},
		{"duplicate", &DuplicateTransactionError{Existing: &domain.Transaction{}}, StatusDuplicate},
		{"io", errors.New("disk full"), StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("Expected error without a store")
	}
}
