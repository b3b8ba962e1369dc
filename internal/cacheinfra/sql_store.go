package cacheinfra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-record-loader/cache"
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// maxBatchKeys bounds the IN list of a single select; SQLite caps bound
// parameters at 999 on older builds.
const maxBatchKeys = 500

// SQLConfig describes the persistent tier connection.
type SQLConfig struct {
	Driver       string `json:"driver" mapstructure:"driver"`
	DSN          string `json:"dsn" mapstructure:"dsn"`
	MaxOpenConns int    `json:"max_open_conns" mapstructure:"max_open_conns"`
}

// Validate checks if the configuration values are valid.
func (c SQLConfig) Validate() error {
	switch c.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return &ConfigError{Field: "Driver", Message: "must be sqlite3 or postgres"}
	}
	if c.DSN == "" {
		return &ConfigError{Field: "DSN", Message: "must not be empty"}
	}
	if c.MaxOpenConns < 0 {
		return &ConfigError{Field: "MaxOpenConns", Message: "must be non-negative"}
	}
	return nil
}

// OpenDB opens a bun database for cfg with the matching dialect.
func OpenDB(cfg SQLConfig) (*bun.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	switch cfg.Driver {
	case DriverPostgres:
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}
}

// Row is the persisted form of a cache.Entry.
type Row struct {
	bun.BaseModel `bun:"table:record_cache,alias:rc"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	CacheKey   string    `bun:"cache_key,notnull,unique"`
	RecordID   string    `bun:"record_id,notnull"`
	Source     string    `bun:"source,notnull"`
	UserID     string    `bun:"user_id,nullzero"`
	SessionID  string    `bun:"session_id,nullzero"`
	ResourceID string    `bun:"resource_id,nullzero"`
	Data       []byte    `bun:"data"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func rowFromEntry(e cache.Entry) *Row {
	updated := e.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return &Row{
		ID:         uuid.New(),
		CacheKey:   e.Key,
		RecordID:   e.RecordID,
		Source:     e.Source,
		UserID:     e.UserID,
		SessionID:  e.SessionID,
		ResourceID: e.ResourceID,
		Data:       e.Data,
		UpdatedAt:  updated,
	}
}

func (r *Row) entry() cache.Entry {
	return cache.Entry{
		Key:        r.CacheKey,
		Source:     r.Source,
		RecordID:   r.RecordID,
		UserID:     r.UserID,
		Data:       r.Data,
		SessionID:  r.SessionID,
		ResourceID: r.ResourceID,
		UpdatedAt:  r.UpdatedAt,
	}
}

// SQLStore is a cache.KeyValueStore persisted in the record_cache table.
// Reads go through a go-repository-bun repository; the upsert is issued
// directly so it can use ON CONFLICT on the cache key.
type SQLStore struct {
	db   *bun.DB
	repo repository.Repository[*Row]
}

var _ cache.KeyValueStore = (*SQLStore)(nil)

// NewSQLStore returns a store over db. Call Migrate before first use.
func NewSQLStore(db *bun.DB) *SQLStore {
	handlers := repository.ModelHandlers[*Row]{
		NewRecord: func() *Row { return &Row{} },
		GetID: func(r *Row) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Row, id uuid.UUID) {
			r.ID = id
		},
		GetIdentifier: func() string {
			return "cache_key"
		},
	}

	return &SQLStore{
		db:   db,
		repo: repository.NewRepository[*Row](db, handlers),
	}
}

// Migrate creates the record_cache table and its user_id index.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*Row)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create record_cache table: %w", err)
	}

	if _, err := s.db.NewCreateIndex().
		Model((*Row)(nil)).
		Index("record_cache_user_id_idx").
		Column("user_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create record_cache user index: %w", err)
	}
	return nil
}

// Get implements cache.KeyValueStore.
func (s *SQLStore) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	rows, _, err := s.repo.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("cache_key = ?", key).Limit(1)
	})
	if err != nil {
		return cache.Entry{}, false, err
	}
	if len(rows) == 0 {
		return cache.Entry{}, false, nil
	}
	return rows[0].entry(), true, nil
}

// GetBatch implements cache.KeyValueStore.
func (s *SQLStore) GetBatch(ctx context.Context, keys []string) (map[string]cache.Entry, error) {
	out := make(map[string]cache.Entry, len(keys))
	for start := 0; start < len(keys); start += maxBatchKeys {
		end := start + maxBatchKeys
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		rows, _, err := s.repo.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("cache_key IN (?)", bun.In(chunk)).Limit(len(chunk))
		})
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[row.CacheKey] = row.entry()
		}
	}
	return out, nil
}

// Put implements cache.KeyValueStore.
func (s *SQLStore) Put(ctx context.Context, entry cache.Entry) error {
	row := rowFromEntry(entry)
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (cache_key) DO UPDATE").
		Set("record_id = EXCLUDED.record_id").
		Set("source = EXCLUDED.source").
		Set("user_id = EXCLUDED.user_id").
		Set("session_id = EXCLUDED.session_id").
		Set("resource_id = EXCLUDED.resource_id").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// DeleteByUserID implements cache.KeyValueStore.
func (s *SQLStore) DeleteByUserID(ctx context.Context, userID string) error {
	return s.repo.DeleteMany(ctx, func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("user_id = ?", userID)
	})
}

// DeleteOlderThan removes rows not refreshed since cutoff and reports how
// many were removed.
func (s *SQLStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*Row)(nil)).
		Where("updated_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Count returns the number of cached rows.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
