package notionsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

// MockPageStore is a mock implementation of PageStore for testing.
type MockPageStore struct {
	CreatePageFunc func(ctx context.Context, databaseID string, properties notionapi.Properties) (notionapi.ObjectID, error)
	ListPagesFunc  func(ctx context.Context, databaseID string, cursor notionapi.Cursor) ([]notionapi.Page, notionapi.Cursor, error)
}

func (m *MockPageStore) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (notionapi.ObjectID, error) {
	if m.CreatePageFunc != nil {
		return m.CreatePageFunc(ctx, databaseID, properties)
	}
	return "page", nil
}

func (m *MockPageStore) ListPages(ctx context.Context, databaseID string, cursor notionapi.Cursor) ([]notionapi.Page, notionapi.Cursor, error) {
	if m.ListPagesFunc != nil {
		return m.ListPagesFunc(ctx, databaseID, cursor)
	}
	return nil, "", nil
}

func pageFor(txID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID("page-" + txID),
		Properties: notionapi.Properties{
			PropTransactionID: &notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{PlainText: txID}},
			},
		},
	}
}

func ledger(ids ...string) []*domain.Transaction {
	txs := make([]*domain.Transaction, len(ids))
	for i, id := range ids {
		txs[i] = &domain.Transaction{
			ID:          id,
			RecordedAt:  time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC),
			Direction:   domain.Expense,
			Amount:      decimal.RequireFromString("99.90"),
			Currency:    "INR",
			Description: "Groceries at market",
		}
	}
	return txs
}

func testContext() context.Context {
	return logger.WithContext(context.Background(), logger.Nop())
}

func TestSyncLedger_CreatesMissingPages(t *testing.T) {
	var created []string
	var cursors []notionapi.Cursor
	client := &MockPageStore{
		ListPagesFunc: func(ctx context.Context, databaseID string, cursor notionapi.Cursor) ([]notionapi.Page, notionapi.Cursor, error) {
			cursors = append(cursors, cursor)
			if cursor == "" {
				return []notionapi.Page{pageFor("a")}, "next", nil
			}
			return []notionapi.Page{pageFor("c")}, "", nil
		},
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (notionapi.ObjectID, error) {
			if databaseID != "db-1" {
				t.Errorf("databaseID = %q", databaseID)
			}
			id := properties[PropTransactionID].(notionapi.RichTextProperty).RichText[0].Text.Content
			created = append(created, id)
			return notionapi.ObjectID("page-" + id), nil
		},
	}

	result, err := SyncLedger(testContext(), ledger("a", "b", "c", "d"), client, "db-1", time.UTC, false)
	if err != nil {
		t.Fatalf("SyncLedger failed: %v", err)
	}

	want := SyncResult{Total: 4, Created: 2, Skipped: 2}
	if result != want {
		t.Errorf("result = %+v, want %+v", result, want)
	}
	if len(created) != 2 || created[0] != "b" || created[1] != "d" {
		t.Errorf("created = %v, want [b d]", created)
	}
	if len(cursors) != 2 || cursors[1] != "next" {
		t.Errorf("cursors = %v", cursors)
	}
}

func TestSyncLedger_DryRun(t *testing.T) {
	client := &MockPageStore{
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (notionapi.ObjectID, error) {
			t.Error("dry run must not create pages")
			return "", nil
		},
	}

	result, err := SyncLedger(testContext(), ledger("a", "b"), client, "db-1", time.UTC, true)
	if err != nil {
		t.Fatalf("SyncLedger failed: %v", err)
	}
	if result.Created != 2 {
		t.Errorf("Created = %d, want 2", result.Created)
	}
}

func TestSyncLedger_Failures(t *testing.T) {
	client := &MockPageStore{
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (notionapi.ObjectID, error) {
			return "", errors.New("rate limited")
		},
	}
	result, err := SyncLedger(testContext(), ledger("a"), client, "db-1", time.UTC, false)
	if err != nil {
		t.Fatalf("create failures must not abort the sync: %v", err)
	}
	if result.Failed != 1 || result.Created != 0 {
		t.Errorf("result = %+v", result)
	}

	failingQuery := &MockPageStore{
		ListPagesFunc: func(ctx context.Context, databaseID string, cursor notionapi.Cursor) ([]notionapi.Page, notionapi.Cursor, error) {
			return nil, "", errors.New("unauthorized")
		},
	}
	if _, err := SyncLedger(testContext(), ledger("a"), failingQuery, "db-1", time.UTC, false); err == nil {
		t.Error("expected query error")
	}

	if _, err := SyncLedger(testContext(), ledger("a"), client, "", time.UTC, false); err == nil {
		t.Error("expected error for empty database ID")
	}
}

func TestTransactionToNotionProperties(t *testing.T) {
	date := civil.Date{Year: 2026, Month: time.October, Day: 15}
	clock := civil.Time{Hour: 18, Minute: 30}
	tx := &domain.Transaction{
		ID:          "tx-1",
		RecordedAt:  time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC),
		EventDate:   &date,
		EventTime:   &clock,
		Direction:   domain.Income,
		Amount:      decimal.RequireFromString("1500.25"),
		Currency:    "INR",
		Category:    "Salary",
		Description: "",
		Tags:        []string{"salary", "sms"},
		Meta:        domain.Meta{Counterparty: "acme@upi", Medium: "upi", Source: "sms"},
	}

	props := TransactionToNotionProperties(tx, time.UTC)

	title := props[PropDescription].(notionapi.TitleProperty)
	if title.Title[0].Text.Content != "Salary" {
		t.Errorf("title falls back to category, got %q", title.Title[0].Text.Content)
	}
	if n := props[PropAmount].(notionapi.NumberProperty).Number; n != 1500.25 {
		t.Errorf("Amount = %v", n)
	}
	if d := props[PropDirection].(notionapi.SelectProperty).Select.Name; d != "income" {
		t.Errorf("Direction = %q", d)
	}
	start := time.Time(*props[PropDate].(notionapi.DateProperty).Date.Start)
	if !start.Equal(time.Date(2026, 10, 15, 18, 30, 0, 0, time.UTC)) {
		t.Errorf("Date = %v", start)
	}
	if tags := props[PropTags].(notionapi.MultiSelectProperty).MultiSelect; len(tags) != 2 {
		t.Errorf("Tags = %v", tags)
	}
	if _, ok := props[PropFlavor]; ok {
		t.Error("empty flavor should be omitted")
	}
}
