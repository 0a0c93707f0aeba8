// Package relation maps human-readable names (account names, category
// names) to Notion page IDs. Name indexes are built lazily per database and
// refreshed on the same cadence as schemas.
package relation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tanvirk/ledgerbot/internal/domain"
	"github.com/tanvirk/ledgerbot/internal/notion"
)

// NotFoundError reports a name that did not resolve. Candidates is
// populated when the name matched more than one entry, so the caller can
// list the options instead of guessing.
type NotFoundError struct {
	Database   domain.Database
	Name       string
	Candidates []string
}

func (e *NotFoundError) Error() string {
	if len(e.Candidates) > 0 {
		return fmt.Sprintf("%q is ambiguous in %s: matches %s",
			e.Name, e.Database, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("%q not found in %s", e.Name, e.Database)
}

type index struct {
	// byName maps lowercased name to page ID.
	byName map[string]string
	// names keeps the original casing for candidate listings.
	names     []string
	fetchedAt time.Time
}

// Resolver resolves names against a per-database index. Safe for
// concurrent use; concurrent index builds for one database collapse to a
// single listing query.
type Resolver struct {
	svc notion.Service
	dbs notion.Databases
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	indexes map[domain.Database]*index
	group   singleflight.Group
}

// NewResolver creates a resolver over the given Notion service.
func NewResolver(svc notion.Service, dbs notion.Databases, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Resolver{
		svc:     svc,
		dbs:     dbs,
		ttl:     ttl,
		now:     time.Now,
		indexes: make(map[domain.Database]*index),
	}
}

// Resolve maps a human-readable name to the page ID it refers to.
// Resolution order: exact case-insensitive match, then unique substring
// match. An ambiguous substring match resolves to a NotFoundError carrying
// the candidates, never an arbitrary pick.
func (r *Resolver) Resolve(ctx context.Context, db domain.Database, name string) (string, error) {
	idx, err := r.index(ctx, db)
	if err != nil {
		return "", fmt.Errorf("relation.Resolve: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return "", &NotFoundError{Database: db, Name: name}
	}

	if id, ok := idx.byName[needle]; ok {
		return id, nil
	}

	var candidates []string
	for _, original := range idx.names {
		lower := strings.ToLower(original)
		if strings.Contains(lower, needle) || strings.Contains(needle, lower) {
			candidates = append(candidates, original)
		}
	}

	switch len(candidates) {
	case 1:
		return idx.byName[strings.ToLower(candidates[0])], nil
	case 0:
		return "", &NotFoundError{Database: db, Name: name}
	default:
		sort.Strings(candidates)
		return "", &NotFoundError{Database: db, Name: name, Candidates: candidates}
	}
}

// Names lists every known name in the database, in original casing.
func (r *Resolver) Names(ctx context.Context, db domain.Database) ([]string, error) {
	idx, err := r.index(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("relation.Names: %w", err)
	}
	out := make([]string, len(idx.names))
	copy(out, idx.names)
	return out, nil
}

func (r *Resolver) index(ctx context.Context, db domain.Database) (*index, error) {
	r.mu.RLock()
	idx, ok := r.indexes[db]
	r.mu.RUnlock()

	if ok && r.now().Sub(idx.fetchedAt) < r.ttl {
		return idx, nil
	}

	v, err, _ := r.group.Do(string(db), func() (any, error) {
		return r.build(ctx, db)
	})
	if err != nil {
		// A stale index beats no index when the listing fails.
		if ok {
			return idx, nil
		}
		return nil, err
	}
	return v.(*index), nil
}

func (r *Resolver) build(ctx context.Context, db domain.Database) (*index, error) {
	id, err := r.dbs.ID(db)
	if err != nil {
		return nil, err
	}

	pages, err := notion.QueryAllPages(ctx, r.svc, id, nil)
	if err != nil {
		return nil, err
	}

	idx := &index{
		byName:    make(map[string]string, len(pages)),
		fetchedAt: r.now(),
	}
	for _, page := range pages {
		name := notion.ExtractTitle(page)
		if name == "" {
			continue
		}
		idx.byName[strings.ToLower(strings.TrimSpace(name))] = string(page.ID)
		idx.names = append(idx.names, name)
	}

	r.mu.Lock()
	r.indexes[db] = idx
	r.mu.Unlock()

	return idx, nil
}

// TargetDatabase maps a relation property name to the logical database its
// values live in. Unknown relation properties return false; the caller
// then requires an explicit page ID.
func TargetDatabase(property string) (domain.Database, bool) {
	switch property {
	case "Categories", "Category":
		return domain.DatabaseCategories, true
	case "Accounts", "Account", "From Account", "To Account", "Payment Account":
		return domain.DatabaseAccounts, true
	case "Expenses":
		return domain.DatabaseExpenses, true
	case "Subscriptions", "Subscription":
		return domain.DatabaseSubscriptions, true
	case "Loans", "Loan":
		return domain.DatabaseLoans, true
	case "Payments", "Payment":
		return domain.DatabasePayments, true
	}
	return "", false
}
