package store

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/logger"
)

// AnalyticsRow is one decoded line of the analytics metadata file.
type AnalyticsRow struct {
	TransactionID string
	RecordedAt    string
	Amount        string
	Currency      string
	Direction     string
	Category      string
	Flavor        string
	Tags          []string
	Description   string
	EventDate     string
	EventTime     string
}

// ReadAnalyticsFile decodes the analytics file at path. Rows without a
// transaction ID or with too few columns are logged and skipped.
func ReadAnalyticsFile(ctx context.Context, path string) ([]AnalyticsRow, error) {
	log := logger.FromContext(ctx)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ReadAnalyticsFile: open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var rows []AnalyticsRow
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue
		}
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		record, err := decodeLine(line)
		if err != nil || len(record) < len(AnalyticsHeader) || record[0] == "" {
			log.Warn().Err(err).Str("path", path).Int("line", lineNo).Msg("Skipping malformed analytics row")
			continue
		}

		var tags []string
		if record[7] != "" {
			tags = strings.Split(record[7], "|")
		}
		rows = append(rows, AnalyticsRow{
			TransactionID: record[0],
			RecordedAt:    record[1],
			Amount:        record[2],
			Currency:      record[3],
			Direction:     record[4],
			Category:      record[5],
			Flavor:        record[6],
			Tags:          tags,
			Description:   record[8],
			EventDate:     record[9],
			EventTime:     record[10],
		})
	}
	if err := scanner.Err(); err != nil {
		return rows, fmt.Errorf("ReadAnalyticsFile: scan %s: %w", path, err)
	}
	return rows, nil
}
