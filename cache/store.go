package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-record-loader/record"
)

// Option configures a RecordCache.
type Option func(*RecordCache)

// WithLogger sets the logger used for skipped entries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *RecordCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(c *RecordCache) {
		if now != nil {
			c.now = now
		}
	}
}

// RecordCache applies the cache policy on top of a KeyValueStore. It decides
// whether a source is cached, derives keys and hydrates hits through the
// record registry.
type RecordCache struct {
	cfg       Config
	store     KeyValueStore
	registry  *record.Registry
	keys      KeyBuilder
	cacheable map[string]struct{}
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.RWMutex
	policy     Policy
	policyName string
	context    string
}

// NewRecordCache validates cfg and returns a cache backed by store.
func NewRecordCache(cfg Config, store KeyValueStore, registry *record.Registry, opts ...Option) (*RecordCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, goerrors.New("record cache requires a key value store", goerrors.CategoryValidation)
	}
	if registry == nil {
		registry = record.NewRegistry()
	}

	policy, err := cfg.ResolvePolicy(cfg.DefaultPolicy)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid default policy")
	}

	c := &RecordCache{
		cfg:        cfg,
		store:      store,
		registry:   registry,
		keys:       NewKeyBuilder(cfg.SourceAliases, cfg.Digest),
		cacheable:  make(map[string]struct{}, len(cfg.CacheableSources)),
		logger:     slog.Default(),
		now:        time.Now,
		policy:     policy,
		policyName: cfg.DefaultPolicy,
		context:    ContextDefault,
	}
	for _, s := range cfg.CacheableSources {
		c.cacheable[s] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Policy returns the active policy and its name.
func (c *RecordCache) Policy() (Policy, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policy, c.policyName
}

// Context returns the active cache context.
func (c *RecordCache) Context() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.context
}

// SetPolicy activates a named policy or a flag expression.
func (c *RecordCache) SetPolicy(name string) error {
	p, err := c.cfg.ResolvePolicy(name)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "cannot set cache policy")
	}
	c.mu.Lock()
	c.policy = p
	c.policyName = name
	c.mu.Unlock()
	return nil
}

// SetContext activates the policy configured for the named context. Unknown
// contexts use the default policy.
func (c *RecordCache) SetContext(name string) {
	policyName, ok := c.cfg.Contexts[name]
	if !ok {
		policyName = c.cfg.DefaultPolicy
	}
	p, err := c.cfg.ResolvePolicy(policyName)
	if err != nil {
		// Validate guarantees context policies resolve.
		p = DisabledPolicy
	}

	c.mu.Lock()
	c.context = name
	c.policy = p
	c.policyName = policyName
	c.mu.Unlock()
}

// IsCacheable reports whether source is configured as cacheable.
func (c *RecordCache) IsCacheable(source string) bool {
	_, ok := c.cacheable[source]
	return ok
}

// IsPrimary reports whether the cache is consulted before live retrieval
// for source.
func (c *RecordCache) IsPrimary(source string) bool {
	p, _ := c.Policy()
	return c.IsCacheable(source) && !p.Disabled && p.Primary
}

// IsFallback reports whether the cache is consulted after live retrieval
// fails for source.
func (c *RecordCache) IsFallback(source string) bool {
	p, _ := c.Policy()
	return c.IsCacheable(source) && !p.Disabled && p.Fallback
}

// Key derives the cache key for a record under the active policy.
func (c *RecordCache) Key(id, source, userID string) string {
	p, _ := c.Policy()
	return c.keys.ComputeKey(id, source, userID, p)
}

// LookupBatch resolves ids of a single source from the cache.
func (c *RecordCache) LookupBatch(ctx context.Context, userID, source string, ids []string) ([]record.Record, error) {
	refs := make([]record.Reference, len(ids))
	for i, id := range ids {
		refs[i] = record.Reference{Source: source, ID: id}
	}
	return c.Lookup(ctx, userID, refs)
}

// Lookup resolves refs from the cache with a single batch read. A hit is
// kept only when the stored record id and source match a requested ref;
// policies that leave a component out of the key make rows of different
// records share a key. Kept hits are hydrated with the factory of the
// requested source. Hits whose source has no registered factory are skipped.
// The result follows the order of refs and omits misses.
func (c *RecordCache) Lookup(ctx context.Context, userID string, refs []record.Reference) ([]record.Record, error) {
	p, _ := c.Policy()
	if p.Disabled || len(refs) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(refs))
	requested := make(map[string][]record.Reference, len(refs))
	for _, ref := range refs {
		if !c.IsCacheable(ref.Source) {
			continue
		}
		key := c.keys.ComputeKey(ref.ID, ref.Source, userID, p)
		if _, dup := requested[key]; !dup {
			keys = append(keys, key)
		}
		requested[key] = append(requested[key], ref)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	entries, err := c.store.GetBatch(ctx, keys)
	if err != nil {
		return nil, record.NewCacheStorageError(err, "get")
	}

	records := make([]record.Record, 0, len(entries))
	for _, key := range keys {
		entry, ok := entries[key]
		if !ok {
			continue
		}
		ref, ok := c.matchEntry(entry, requested[key])
		if !ok {
			c.logger.Debug("skipping cached record of another identity", "source", entry.Source, "id", entry.RecordID)
			continue
		}
		rec, err := c.registry.Create(ref.Source, entry.Data)
		if err != nil {
			c.logger.Debug("skipping cached record", "source", ref.Source, "id", entry.RecordID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// matchEntry returns the ref entry was stored for. Sources are compared
// after alias folding.
func (c *RecordCache) matchEntry(entry Entry, refs []record.Reference) (record.Reference, bool) {
	source := c.keys.NormalizeSource(entry.Source)
	for _, ref := range refs {
		if ref.ID == entry.RecordID && c.keys.NormalizeSource(ref.Source) == source {
			return ref, true
		}
	}
	return record.Reference{}, false
}

// CreateOrUpdate stores data for a record. Nothing is written when the
// source is not cacheable or the cache is disabled.
func (c *RecordCache) CreateOrUpdate(ctx context.Context, recordID, userID, source string, data []byte, sessionID, resourceID string) error {
	err := validation.Errors{
		"record_id": validation.Validate(recordID, validation.Required),
		"source":    validation.Validate(source, validation.Required),
	}.Filter()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid cache entry")
	}

	p, _ := c.Policy()
	if p.Disabled || !c.IsCacheable(source) {
		return nil
	}

	entry := Entry{
		Key:        c.keys.ComputeKey(recordID, source, userID, p),
		Source:     source,
		RecordID:   recordID,
		UserID:     userID,
		Data:       append([]byte(nil), data...),
		SessionID:  sessionID,
		ResourceID: resourceID,
		UpdatedAt:  c.now().UTC(),
	}
	if err := c.store.Put(ctx, entry); err != nil {
		return record.NewCacheStorageError(err, "put")
	}
	return nil
}

// Cleanup removes every entry owned by userID.
func (c *RecordCache) Cleanup(ctx context.Context, userID string) error {
	if err := validation.Validate(userID, validation.Required); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "cleanup requires a user id")
	}
	if err := c.store.DeleteByUserID(ctx, userID); err != nil {
		return record.NewCacheStorageError(err, "delete")
	}
	return nil
}
