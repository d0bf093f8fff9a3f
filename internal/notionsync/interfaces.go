package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
)

// PageStore is the slice of the Notion API the ledger mirror uses.
type PageStore interface {
	// CreatePage adds a row to databaseID and returns the new page ID.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (notionapi.ObjectID, error)

	// ListPages returns one page of rows starting at cursor. An empty next
	// cursor means the listing is complete.
	ListPages(ctx context.Context, databaseID string, cursor notionapi.Cursor) (pages []notionapi.Page, next notionapi.Cursor, err error)
}
