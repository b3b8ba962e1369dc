package cacheinfra

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-record-loader/cache"
)

// Config holds the configuration for the sturdyc memory tier.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int `json:"capacity" mapstructure:"capacity"`

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0. Default: 256
	NumShards int `json:"num_shards" mapstructure:"num_shards"`

	// TTL is the time-to-live for cached entries. Must be greater than 0.
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int `json:"eviction_percentage" mapstructure:"eviction_percentage"`

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration `json:"eviction_interval" mapstructure:"eviction_interval"`
}

// DefaultConfig returns a Config with sensible defaults for a request
// scoped front tier.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions converts the Config to sturdyc options. Capacity,
// NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// MemoryStore is a cache.KeyValueStore kept in a sturdyc client. A per-user
// key index backs DeleteByUserID. Entries that expire or get evicted may
// linger in the index until their owner is cleaned up.
type MemoryStore struct {
	client *sturdyc.Client[cache.Entry]
	users  *xsync.MapOf[string, *xsync.MapOf[string, struct{}]]
}

var _ cache.KeyValueStore = (*MemoryStore)(nil)

// NewMemoryStore validates cfg and creates the sturdyc client.
func NewMemoryStore(cfg Config) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[cache.Entry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &MemoryStore{
		client: client,
		users:  xsync.NewMapOf[string, *xsync.MapOf[string, struct{}]](),
	}, nil
}

// Get implements cache.KeyValueStore.
func (s *MemoryStore) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return cache.Entry{}, false, err
	}
	entry, ok := s.client.Get(key)
	return entry, ok, nil
}

// GetBatch implements cache.KeyValueStore.
func (s *MemoryStore) GetBatch(ctx context.Context, keys []string) (map[string]cache.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.client.GetMany(keys), nil
}

// Put implements cache.KeyValueStore.
func (s *MemoryStore) Put(ctx context.Context, entry cache.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.client.Set(entry.Key, entry)

	if entry.UserID != "" {
		keys, _ := s.users.LoadOrCompute(entry.UserID, func() *xsync.MapOf[string, struct{}] {
			return xsync.NewMapOf[string, struct{}]()
		})
		keys.Store(entry.Key, struct{}{})
	}
	return nil
}

// DeleteByUserID implements cache.KeyValueStore. Keys whose entry has since
// been taken over by another user are left alone.
func (s *MemoryStore) DeleteByUserID(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keys, ok := s.users.LoadAndDelete(userID)
	if !ok {
		return nil
	}
	keys.Range(func(key string, _ struct{}) bool {
		if entry, ok := s.client.Get(key); ok && entry.UserID == userID {
			s.client.Delete(key)
		}
		return true
	})
	return nil
}

// Delete removes a single key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// Size returns the number of entries held by the client.
func (s *MemoryStore) Size() int {
	return s.client.Size()
}
