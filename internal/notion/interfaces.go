package notion

import (
	"context"

	"github.com/jomei/notionapi"
)

// Service defines the interface for interacting with the Notion API.
// This interface enables mocking and testing of Notion operations.
type Service interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage updates an existing Notion page with the given properties.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// ArchivePage archives (soft-deletes) a Notion page.
	ArchivePage(ctx context.Context, pageID string) error

	// QueryDatabase queries a Notion database with the given filter.
	QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

	// GetDatabase fetches a database definition, including its property schema.
	GetDatabase(ctx context.Context, databaseID string) (*notionapi.Database, error)
}
