package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// AnalyticsRepository is the warehouse side of the analytics export.
type AnalyticsRepository interface {
	// ExistingIDs returns which of ids are already in the table.
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)

	// InsertRows streams rows into the table.
	InsertRows(ctx context.Context, rows []*AnalyticsRow) error
}

// BigQueryAnalyticsRepository is the concrete implementation of
// AnalyticsRepository. It holds a shared BigQuery client.
type BigQueryAnalyticsRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	tableID   string
}

// NewBigQueryAnalyticsRepository creates a repository for
// projectID.datasetID.tableID.
func NewBigQueryAnalyticsRepository(ctx context.Context, projectID, datasetID, tableID string) (*BigQueryAnalyticsRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewBigQueryAnalyticsRepository: project ID is required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryAnalyticsRepository: creating client: %w", err)
	}
	return &BigQueryAnalyticsRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		tableID:   tableID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryAnalyticsRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ExistingIDs queries the table for the given transaction IDs.
func (r *BigQueryAnalyticsRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(ids) == 0 {
		return existing, nil
	}

	query := fmt.Sprintf(`
		SELECT transaction_id
		FROM `+"`%s.%s.%s`"+`
		WHERE transaction_id IN UNNEST(@ids)
	`, r.projectID, r.datasetID, r.tableID)

	q := r.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "ids", Value: ids},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ExistingIDs: query read: %w", err)
	}

	for {
		var row struct {
			TransactionID string `bigquery:"transaction_id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ExistingIDs: iter next: %w", err)
		}
		existing[row.TransactionID] = true
	}

	return existing, nil
}

// InsertRows inserts a batch of analytics rows.
func (r *BigQueryAnalyticsRepository) InsertRows(ctx context.Context, rows []*AnalyticsRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := r.client.DatasetInProject(r.projectID, r.datasetID).Table(r.tableID).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertRows: inserting rows: %w", err)
	}
	return nil
}

var _ AnalyticsRepository = (*BigQueryAnalyticsRepository)(nil)
