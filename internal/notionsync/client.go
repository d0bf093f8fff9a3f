package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
)

const queryPageSize = 100

// Client is the notionapi backed PageStore.
type Client struct {
	api *notionapi.Client
}

// NewClient creates a Client authenticated with an integration token.
func NewClient(token string) *Client {
	return &Client{api: notionapi.NewClient(notionapi.Token(token))}
}

func (c *Client) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (notionapi.ObjectID, error) {
	page, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return "", fmt.Errorf("CreatePage: %w", err)
	}
	return page.ID, nil
}

func (c *Client) ListPages(ctx context.Context, databaseID string, cursor notionapi.Cursor) ([]notionapi.Page, notionapi.Cursor, error) {
	req := &notionapi.DatabaseQueryRequest{PageSize: queryPageSize}
	if cursor != "" {
		req.StartCursor = cursor
	}

	resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, "", fmt.Errorf("ListPages: %w", err)
	}
	if !resp.HasMore {
		return resp.Results, "", nil
	}
	return resp.Results, resp.NextCursor, nil
}

var _ PageStore = (*Client)(nil)
