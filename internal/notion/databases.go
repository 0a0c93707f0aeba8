package notion

import (
	"fmt"

	"github.com/tanvirk/ledgerbot/internal/domain"
)

// Databases maps logical database names to their Notion database IDs.
type Databases map[domain.Database]string

// ID returns the Notion database ID for a logical database.
func (m Databases) ID(db domain.Database) (string, error) {
	id, ok := m[db]
	if !ok || id == "" {
		return "", fmt.Errorf("no database ID configured for %q", db)
	}
	return id, nil
}

// Known reports whether the logical database has a configured ID.
func (m Databases) Known(db domain.Database) bool {
	id, ok := m[db]
	return ok && id != ""
}
