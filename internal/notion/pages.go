package notion

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
)

const queryPageSize = 100

// QueryAllPages queries every page matching the filter, following the
// cursor until the store reports no more results.
func QueryAllPages(ctx context.Context, svc Service, databaseID string, filter notionapi.Filter) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter:   filter,
			PageSize: queryPageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := svc.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("QueryAllPages: %w", err)
		}

		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return all, nil
}
