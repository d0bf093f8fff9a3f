package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Header is the fixed column order of the store file.
var Header = []string{
	"owner_phone",
	"transaction_id",
	"datetime",
	"date",
	"time",
	"amount",
	"currency",
	"type",
	"target_party",
	"description",
	"category",
	"is_financial",
	"medium",
}

// AnalyticsHeader is the fixed column order of the analytics metadata file.
var AnalyticsHeader = []string{
	"transaction_id",
	"recorded_at",
	"amount",
	"currency",
	"direction",
	"category",
	"flavor",
	"tags",
	"description",
	"event_date",
	"event_time",
}

const datetimeLayout = "2006-01-02T15:04:05"

// ErrMalformedRow is returned when a store row cannot be decoded.
var ErrMalformedRow = errors.New("malformed row")

// EncodeRow renders fields as one fully quoted, comma separated line
// including the trailing newline. Embedded quotes are doubled and line
// breaks become spaces so a row never spans lines.
func EncodeRow(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(escapeField(f))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	return b.String()
}

func escapeField(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, `"`, `""`)
}

// headerLine is the exact header text without its newline.
func headerLine(header []string) string {
	return strings.TrimSuffix(EncodeRow(header), "\n")
}

// decodeLine parses a single physical line. Each line is parsed on its own so
// a broken quote cannot swallow the rows after it.
func decodeLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("decodeLine: %w", err)
	}
	return record, nil
}

// rowOf maps a transaction onto the store columns. Records without an event
// date carry the recording date in date and the recording instant in datetime.
func rowOf(tx *domain.Transaction, loc *time.Location) []string {
	var datetime, date, clock string
	if tx.EventDate != nil {
		date = tx.EventDate.String()
		clock = tx.EventTimeString()
		t := clock
		if t == "" {
			t = "00:00:00"
		}
		datetime = date + "T" + t
	} else {
		local := tx.RecordedAt.In(loc)
		date = civil.DateOf(local).String()
		datetime = local.Format(datetimeLayout)
	}

	return []string{
		tx.Meta.OwnerPhone,
		tx.ID,
		datetime,
		date,
		clock,
		tx.Amount.String(),
		tx.Currency,
		string(tx.Direction),
		tx.Meta.Counterparty,
		tx.Description,
		tx.Category,
		strconv.FormatBool(tx.Meta.IsFinancial),
		tx.Meta.Medium,
	}
}

// analyticsRowOf maps a transaction onto the analytics columns.
func analyticsRowOf(tx *domain.Transaction, loc *time.Location) []string {
	return []string{
		tx.ID,
		tx.RecordedAt.In(loc).Format(time.RFC3339),
		tx.Amount.String(),
		tx.Currency,
		string(tx.Direction),
		tx.Category,
		tx.Meta.Flavor,
		strings.Join(tx.Tags, "|"),
		tx.Description,
		tx.EventDateString(),
		tx.EventTimeString(),
	}
}

// fromRecord rebuilds a transaction from a decoded store row using the
// column index read from the header.
func fromRecord(record []string, colIndex map[string]int, loc *time.Location) (*domain.Transaction, error) {
	if len(record) < len(colIndex) {
		return nil, fmt.Errorf("%w: %d of %d columns", ErrMalformedRow, len(record), len(colIndex))
	}
	get := func(col string) string {
		i, ok := colIndex[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	id := get("transaction_id")
	if id == "" {
		return nil, fmt.Errorf("%w: empty transaction_id", ErrMalformedRow)
	}

	amount, err := decimal.NewFromString(get("amount"))
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", ErrMalformedRow, get("amount"), err)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %s", ErrMalformedRow, amount)
	}

	direction, err := domain.ParseDirection(get("type"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}

	recordedAt, err := time.ParseInLocation(datetimeLayout, get("datetime"), loc)
	if err != nil {
		return nil, fmt.Errorf("%w: datetime %q: %v", ErrMalformedRow, get("datetime"), err)
	}

	tx := &domain.Transaction{
		ID:          id,
		RecordedAt:  recordedAt,
		Direction:   direction,
		Amount:      amount,
		Currency:    strings.ToUpper(get("currency")),
		Category:    get("category"),
		Description: get("description"),
		Meta: domain.Meta{
			Source:       "store",
			Counterparty: get("target_party"),
			Medium:       get("medium"),
			OwnerPhone:   get("owner_phone"),
			IsFinancial:  get("is_financial") != "false",
		},
	}

	// A row without an event date carries the recording date and a non
	// midnight clock in datetime; only RecordedAt is restored for it.
	if s := get("date"); s != "" && !recordedOnly(get("datetime"), s, get("time")) {
		d, err := civil.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("%w: date %q: %v", ErrMalformedRow, s, err)
		}
		tx.EventDate = &d
	}
	if s := get("time"); s != "" {
		t, err := civil.ParseTime(s)
		if err != nil {
			return nil, fmt.Errorf("%w: time %q: %v", ErrMalformedRow, s, err)
		}
		tx.EventTime = &t
	}

	return tx, nil
}

// recordedOnly reports whether a row's date column is the recording date
// rather than an event date. Event rows without a clock are written as
// midnight, so any other datetime on a clockless row marks a recording.
func recordedOnly(datetime, date, clock string) bool {
	return clock == "" && datetime != date+"T00:00:00"
}
