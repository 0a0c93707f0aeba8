package notion

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
)

// Client is the concrete implementation of Service using the Notion SDK.
// A single Client reuses one underlying HTTP client, so repeated operations
// share a persistent session instead of re-negotiating transport per call.
type Client struct {
	client *notionapi.Client
}

// NewClient creates a new Client with the provided API token.
func NewClient(token string) *Client {
	return &Client{
		client: notionapi.NewClient(notionapi.Token(token)),
	}
}

// CreatePage creates a new page in a Notion database with the given properties.
func (c *Client) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	page, err := c.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}

	return page, nil
}

// UpdatePage updates an existing Notion page with the given properties.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageUpdateRequest{
		Properties: properties,
	}

	page, err := c.client.Page.Update(ctx, notionapi.PageID(pageID), req)
	if err != nil {
		return nil, fmt.Errorf("UpdatePage: %w", err)
	}

	return page, nil
}

// ArchivePage archives a Notion page. Notion has no hard delete over the
// API; archiving removes the page from every database view.
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	req := &notionapi.PageUpdateRequest{
		Archived:   true,
		Properties: notionapi.Properties{},
	}

	if _, err := c.client.Page.Update(ctx, notionapi.PageID(pageID), req); err != nil {
		return fmt.Errorf("ArchivePage: %w", err)
	}

	return nil
}

// QueryDatabase queries a Notion database with the given filter.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := c.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}

	return resp, nil
}

// GetDatabase fetches a database definition, including its property schema.
func (c *Client) GetDatabase(ctx context.Context, databaseID string) (*notionapi.Database, error) {
	db, err := c.client.Database.Get(ctx, notionapi.DatabaseID(databaseID))
	if err != nil {
		return nil, fmt.Errorf("GetDatabase: %w", err)
	}

	return db, nil
}

// Ensure Client implements Service.
var _ Service = (*Client)(nil)
