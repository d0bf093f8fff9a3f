package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-assistant/internal/store"
)

// AnalyticsRow mirrors one line of the local analytics file in the warehouse.
type AnalyticsRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	RecordedAt time.Time `bigquery:"recorded_at"` // REQUIRED TIMESTAMP

	Amount    *big.Rat `bigquery:"amount"`    // REQUIRED NUMERIC
	Currency  string   `bigquery:"currency"`  // REQUIRED STRING
	Direction string   `bigquery:"direction"` // REQUIRED STRING

	CategoryName bigquery.NullString `bigquery:"category_name"` // NULLABLE
	Flavor       bigquery.NullString `bigquery:"flavor"`        // NULLABLE
	Description  bigquery.NullString `bigquery:"description"`   // NULLABLE

	EventDate bigquery.NullDate `bigquery:"event_date"` // NULLABLE
	EventTime bigquery.NullTime `bigquery:"event_time"` // NULLABLE

	Tags []string `bigquery:"tags"` // REPEATED STRING

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// toAnalyticsRow converts a decoded analytics line. Timestamps, amounts and
// dates must parse; empty optional columns become NULL.
func toAnalyticsRow(r store.AnalyticsRow, exportedAt time.Time) (*AnalyticsRow, error) {
	recordedAt, err := time.Parse(time.RFC3339, r.RecordedAt)
	if err != nil {
		return nil, fmt.Errorf("recorded_at %q: %w", r.RecordedAt, err)
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", r.Amount, err)
	}

	row := &AnalyticsRow{
		TransactionID: r.TransactionID,
		RecordedAt:    recordedAt,
		Amount:        amount.Rat(),
		Currency:      r.Currency,
		Direction:     r.Direction,
		CategoryName:  nullString(r.Category),
		Flavor:        nullString(r.Flavor),
		Description:   nullString(r.Description),
		Tags:          r.Tags,
		ExportedTS:    exportedAt,
	}

	if r.EventDate != "" {
		d, err := civil.ParseDate(r.EventDate)
		if err != nil {
			return nil, fmt.Errorf("event_date %q: %w", r.EventDate, err)
		}
		row.EventDate = bigquery.NullDate{Date: d, Valid: true}
	}
	if r.EventTime != "" {
		t, err := civil.ParseTime(r.EventTime)
		if err != nil {
			return nil, fmt.Errorf("event_time %q: %w", r.EventTime, err)
		}
		row.EventTime = bigquery.NullTime{Time: t, Valid: true}
	}

	return row, nil
}
