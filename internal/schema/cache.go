// Package schema fetches and caches the property schema of each logical
// database. Entries are read-through with a TTL; a failed fetch falls back
// to a static schema so callers never see an empty schema.
package schema

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tanvirk/ledgerbot/internal/domain"
	"github.com/tanvirk/ledgerbot/internal/logger"
	"github.com/tanvirk/ledgerbot/internal/notion"
)

// DefaultTTL is the freshness window for cached schemas.
const DefaultTTL = time.Hour

// Source records where a cached schema came from. Fallback-sourced entries
// expire on the same clock as live ones, so a later fetch can supersede
// them.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

type entry struct {
	schema    domain.Schema
	source    Source
	fetchedAt time.Time
}

// Cache is the schema cache. Safe for concurrent use; concurrent refreshes
// of the same database collapse to one in-flight fetch.
type Cache struct {
	svc notion.Service
	dbs notion.Databases
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[domain.Database]entry
	group   singleflight.Group
}

// NewCache creates a schema cache over the given Notion service.
func NewCache(svc notion.Service, dbs notion.Databases, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		svc:     svc,
		dbs:     dbs,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[domain.Database]entry),
	}
}

// Get returns the schema for a logical database along with its source.
// On cache miss or staleness it fetches live; on fetch failure it falls
// back to the static schema. The returned schema is never empty for a
// known database.
func (c *Cache) Get(ctx context.Context, db domain.Database) (domain.Schema, Source) {
	c.mu.RLock()
	e, ok := c.entries[db]
	c.mu.RUnlock()

	if ok && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.schema, e.source
	}

	// Collapse concurrent refreshes of the same database.
	v, _, _ := c.group.Do(string(db), func() (any, error) {
		return c.refresh(ctx, db), nil
	})
	fresh := v.(entry)
	return fresh.schema, fresh.source
}

// PropertyType looks up the type of one property.
func (c *Cache) PropertyType(ctx context.Context, db domain.Database, property string) (domain.PropertyType, bool) {
	s, _ := c.Get(ctx, db)
	return s.Type(property)
}

// Has reports whether a property exists in the database schema.
func (c *Cache) Has(ctx context.Context, db domain.Database, property string) bool {
	s, _ := c.Get(ctx, db)
	return s.Has(property)
}

func (c *Cache) refresh(ctx context.Context, db domain.Database) entry {
	log := logger.FromContext(ctx)

	e := entry{fetchedAt: c.now()}

	fetched, err := c.fetch(ctx, db)
	if err != nil {
		log.Warn().
			Err(err).
			Str("database", string(db)).
			Msg("Schema fetch failed, using fallback schema")
		e.schema = Fallback(db)
		e.source = SourceFallback
	} else {
		e.schema = fetched
		e.source = SourceLive
	}

	c.mu.Lock()
	c.entries[db] = e
	c.mu.Unlock()

	return e
}

func (c *Cache) fetch(ctx context.Context, db domain.Database) (domain.Schema, error) {
	id, err := c.dbs.ID(db)
	if err != nil {
		return nil, err
	}

	remote, err := c.svc.GetDatabase(ctx, id)
	if err != nil {
		return nil, err
	}

	s := make(domain.Schema, len(remote.Properties))
	for name, cfg := range remote.Properties {
		s[name] = domain.PropertyType(cfg.GetType())
	}
	return s, nil
}
