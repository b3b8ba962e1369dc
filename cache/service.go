package cache

import (
	"context"
	"time"
)

// Entry is one cached record row. Empty optional fields are absent.
type Entry struct {
	Key        string    `json:"key"`
	Source     string    `json:"source"`
	RecordID   string    `json:"record_id"`
	UserID     string    `json:"user_id,omitempty"`
	Data       []byte    `json:"data"`
	SessionID  string    `json:"session_id,omitempty"`
	ResourceID string    `json:"resource_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// KeyValueStore is the persistence contract the record cache depends on.
// Implementations must support concurrent batch reads. Writes are per key;
// no multi-key transactions are expected.
type KeyValueStore interface {
	// Get returns the entry stored under key. The boolean is false on a miss.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// GetBatch returns the entries found for keys. Missing keys are absent
	// from the result.
	GetBatch(ctx context.Context, keys []string) (map[string]Entry, error)
	// Put upserts entry under entry.Key.
	Put(ctx context.Context, entry Entry) error
	// DeleteByUserID removes every entry owned by userID.
	DeleteByUserID(ctx context.Context, userID string) error
}
