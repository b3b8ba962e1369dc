package repositorycache

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-record-loader/cache"
)

// Interface assertion to ensure CachedStore implements cache.KeyValueStore
var _ cache.KeyValueStore = (*CachedStore)(nil)

// CachedStore decorates a base store with a front tier. Reads check the
// front first and back-fill it on base hits. Writes and deletes go to the
// base store first, then to the front.
type CachedStore struct {
	base   cache.KeyValueStore
	front  cache.KeyValueStore
	logger *slog.Logger
}

// Option configures a CachedStore.
type Option func(*CachedStore)

// WithLogger sets the logger used to report front tier failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CachedStore) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a new CachedStore that fronts base with front
func New(base, front cache.KeyValueStore, opts ...Option) *CachedStore {
	c := &CachedStore{
		base:   base,
		front:  front,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a single entry, with caching
func (c *CachedStore) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	entry, ok, err := c.front.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "front tier get failed", "key", key, "error", err)
	} else if ok {
		return entry, true, nil
	}

	entry, ok, err = c.base.Get(ctx, key)
	if err != nil || !ok {
		return entry, ok, err
	}
	c.backfill(ctx, entry)
	return entry, true, nil
}

// GetBatch retrieves the entries for keys, asking the base store only for
// the keys the front tier missed
func (c *CachedStore) GetBatch(ctx context.Context, keys []string) (map[string]cache.Entry, error) {
	found, err := c.front.GetBatch(ctx, keys)
	if err != nil {
		c.logger.WarnContext(ctx, "front tier batch get failed", "keys", len(keys), "error", err)
		found = nil
	}

	out := make(map[string]cache.Entry, len(keys))
	var missing []string
	for _, key := range keys {
		if entry, ok := found[key]; ok {
			out[key] = entry
			continue
		}
		missing = append(missing, key)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fromBase, err := c.base.GetBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for key, entry := range fromBase {
		out[key] = entry
		c.backfill(ctx, entry)
	}
	return out, nil
}

// Put upserts entry. Write operations go to the base store first
func (c *CachedStore) Put(ctx context.Context, entry cache.Entry) error {
	if err := c.base.Put(ctx, entry); err != nil {
		return err
	}
	c.backfill(ctx, entry)
	return nil
}

// DeleteByUserID removes every entry owned by userID from both tiers
func (c *CachedStore) DeleteByUserID(ctx context.Context, userID string) error {
	if err := c.base.DeleteByUserID(ctx, userID); err != nil {
		return err
	}
	if err := c.front.DeleteByUserID(ctx, userID); err != nil {
		c.logger.WarnContext(ctx, "front tier delete failed", "user_id", userID, "error", err)
	}
	return nil
}

// backfill stores entry in the front tier. Failures are logged and ignored.
func (c *CachedStore) backfill(ctx context.Context, entry cache.Entry) {
	if err := c.front.Put(ctx, entry); err != nil {
		c.logger.WarnContext(ctx, "front tier put failed", "key", entry.Key, "error", err)
	}
}
