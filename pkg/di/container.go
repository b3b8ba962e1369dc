package di

import (
	"context"
	"log/slog"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-record-loader/cache"
	"github.com/goliatone/go-record-loader/internal/cacheinfra"
	"github.com/goliatone/go-record-loader/loader"
	"github.com/goliatone/go-record-loader/record"
	"github.com/goliatone/go-record-loader/repositorycache"
)

// Config groups the settings of every component the container builds.
type Config struct {
	Cache  cache.Config         `json:"cache" mapstructure:"cache"`
	Memory cacheinfra.Config    `json:"memory" mapstructure:"memory"`
	SQL    cacheinfra.SQLConfig `json:"sql" mapstructure:"sql"`
	Loader loader.Config        `json:"loader" mapstructure:"loader"`
}

// DefaultConfig returns a memory only configuration.
func DefaultConfig() Config {
	return Config{
		Cache:  cache.DefaultConfig(),
		Memory: cacheinfra.DefaultConfig(),
		Loader: loader.DefaultConfig(),
	}
}

// SQLEnabled reports whether a persistent tier is configured.
func (c Config) SQLEnabled() bool {
	return c.SQL.DSN != ""
}

// Validate checks every section. The SQL section is only checked when a
// DSN is set.
func (c Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Memory.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid memory tier config")
	}
	if c.SQLEnabled() {
		if err := c.SQL.Validate(); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid sql tier config")
		}
	}
	return c.Loader.Validate()
}

// Option configures a Container.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	reporter loader.ErrorReporter
	loaders  map[string]loader.FallbackLoader
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithErrorReporter sets the loader's error reporter.
func WithErrorReporter(reporter loader.ErrorReporter) Option {
	return func(o *options) {
		o.reporter = reporter
	}
}

// WithFallbackLoader registers a fallback loader for source.
func WithFallbackLoader(source string, fallback loader.FallbackLoader) Option {
	return func(o *options) {
		o.loaders[source] = fallback
	}
}

// Container provides dependency injection for the record loading stack.
// It builds the memory tier, the optional SQL tier behind a CachedStore
// decorator, the record cache on top of them and the loader.
type Container struct {
	config   Config
	registry *record.Registry
	memory   *cacheinfra.MemoryStore
	sql      *cacheinfra.SQLStore
	store    cache.KeyValueStore
	cache    *cache.RecordCache
	loader   *loader.Loader
}

// NewContainer creates a new DI container. live may be nil when only the
// cache is needed; Loader then returns nil. A nil registry gets
// DefaultRegistry for the configured cacheable sources.
func NewContainer(config Config, live loader.LiveRetrieval, registry *record.Registry, opts ...Option) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: slog.Default(), loaders: make(map[string]loader.FallbackLoader)}
	for _, opt := range opts {
		opt(&o)
	}
	if registry == nil {
		registry = DefaultRegistry(config.Cache.CacheableSources...)
	}

	memory, err := cacheinfra.NewMemoryStore(config.Memory)
	if err != nil {
		return nil, err
	}

	c := &Container{
		config:   config,
		registry: registry,
		memory:   memory,
		store:    memory,
	}

	if config.SQLEnabled() {
		db, err := cacheinfra.OpenDB(config.SQL)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "cannot open record cache database")
		}
		c.sql = cacheinfra.NewSQLStore(db)
		c.store = repositorycache.New(c.sql, memory, repositorycache.WithLogger(o.logger))
	}

	c.cache, err = cache.NewRecordCache(config.Cache, c.store, registry, cache.WithLogger(o.logger))
	if err != nil {
		c.Close()
		return nil, err
	}

	if live != nil {
		loaderOpts := []loader.Option{loader.WithLogger(o.logger)}
		if o.reporter != nil {
			loaderOpts = append(loaderOpts, loader.WithErrorReporter(o.reporter))
		}
		for source, fallback := range o.loaders {
			loaderOpts = append(loaderOpts, loader.WithFallbackLoader(source, fallback))
		}
		c.loader, err = loader.New(config.Loader, live, c.cache, registry, loaderOpts...)
		if err != nil {
			c.Close()
			return nil, err
		}
	}

	return c, nil
}

// NewContainerWithDefaults creates a memory only container using default
// configuration.
func NewContainerWithDefaults(live loader.LiveRetrieval) (*Container, error) {
	return NewContainer(DefaultConfig(), live, nil)
}

// DefaultRegistry registers record.DocumentFactory for sources and the
// placeholder factory.
func DefaultRegistry(sources ...string) *record.Registry {
	registry := record.NewRegistry()
	for _, source := range sources {
		registry.Register(source, record.DocumentFactory{})
	}
	registry.Register(record.MissingSource, record.MissingFactory{})
	return registry
}

// Migrate creates the SQL tier schema. It is a no-op without a SQL tier.
func (c *Container) Migrate(ctx context.Context) error {
	if c.sql == nil {
		return nil
	}
	return c.sql.Migrate(ctx)
}

// Close releases the SQL tier connection, if any.
func (c *Container) Close() error {
	if c.sql == nil {
		return nil
	}
	return c.sql.Close()
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config {
	return c.config
}

// Registry returns the record factory registry.
func (c *Container) Registry() *record.Registry {
	return c.registry
}

// Store returns the key value store the record cache writes to.
func (c *Container) Store() cache.KeyValueStore {
	return c.store
}

// MemoryStore returns the sturdyc backed front tier.
func (c *Container) MemoryStore() *cacheinfra.MemoryStore {
	return c.memory
}

// SQLStore returns the persistent tier, nil when none is configured.
func (c *Container) SQLStore() *cacheinfra.SQLStore {
	return c.sql
}

// RecordCache returns the singleton record cache.
func (c *Container) RecordCache() *cache.RecordCache {
	return c.cache
}

// Loader returns the record loader, nil when no live retrieval backend was
// provided.
func (c *Container) Loader() *loader.Loader {
	return c.loader
}
