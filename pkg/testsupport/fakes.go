package testsupport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-record-loader/cache"
	"github.com/goliatone/go-record-loader/record"
)

// FakeRetrieval is an in-memory live retrieval backend. A record is found
// both under its id and under its previous id.
type FakeRetrieval struct {
	mu      sync.Mutex
	records map[string]map[string]record.Record
	errs    map[string]error
	calls   map[string]int

	// Delay is applied to every call and honours context cancellation.
	Delay time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

// NewFakeRetrieval returns a backend holding recs.
func NewFakeRetrieval(recs ...record.Record) *FakeRetrieval {
	f := &FakeRetrieval{
		records: make(map[string]map[string]record.Record),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
	f.Add(recs...)
	return f
}

// Add makes recs retrievable.
func (f *FakeRetrieval) Add(recs ...record.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range recs {
		ids, ok := f.records[rec.SourceIdentifier()]
		if !ok {
			ids = make(map[string]record.Record)
			f.records[rec.SourceIdentifier()] = ids
		}
		ids[rec.UniqueID()] = rec
		if prev := record.PreviousID(rec); prev != "" {
			ids[prev] = rec
		}
	}
}

// FailSource makes every call for source return err.
func (f *FakeRetrieval) FailSource(source string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[source] = err
}

// Calls returns the number of calls made for source.
func (f *FakeRetrieval) Calls(source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[source]
}

// MaxInFlight returns the highest number of concurrent calls observed.
func (f *FakeRetrieval) MaxInFlight() int {
	return int(f.maxInFlight.Load())
}

// Retrieve returns the record for source:id, nil when it does not exist.
func (f *FakeRetrieval) Retrieve(ctx context.Context, source, id string) (record.Record, error) {
	recs, err := f.RetrieveBatch(ctx, source, []string{id})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// RetrieveBatch returns the records found for ids. Unknown ids are absent.
func (f *FakeRetrieval) RetrieveBatch(ctx context.Context, source string, ids []string) ([]record.Record, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[source]++
	err := f.errs[source]
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[record.Record]struct{})
	var out []record.Record
	for _, id := range ids {
		rec, ok := f.records[source][id]
		if !ok {
			continue
		}
		if _, dup := seen[rec]; dup {
			continue
		}
		seen[rec] = struct{}{}
		out = append(out, rec)
	}
	return out, nil
}

// CountingStore is an in-memory cache.KeyValueStore that counts calls.
type CountingStore struct {
	mu      sync.Mutex
	entries map[string]cache.Entry

	// Err, when set, is returned by every read.
	Err error

	GetCalls      int
	GetBatchCalls int
	PutCalls      int
	DeleteCalls   int
}

var _ cache.KeyValueStore = (*CountingStore)(nil)

// NewCountingStore returns an empty store.
func NewCountingStore() *CountingStore {
	return &CountingStore{entries: make(map[string]cache.Entry)}
}

func (s *CountingStore) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls++
	if s.Err != nil {
		return cache.Entry{}, false, s.Err
	}
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *CountingStore) GetBatch(ctx context.Context, keys []string) (map[string]cache.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetBatchCalls++
	if s.Err != nil {
		return nil, s.Err
	}
	out := make(map[string]cache.Entry)
	for _, k := range keys {
		if e, ok := s.entries[k]; ok {
			out[k] = e
		}
	}
	return out, nil
}

func (s *CountingStore) Put(ctx context.Context, entry cache.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PutCalls++
	s.entries[entry.Key] = entry
	return nil
}

func (s *CountingStore) DeleteByUserID(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteCalls++
	for k, e := range s.entries {
		if e.UserID == userID {
			delete(s.entries, k)
		}
	}
	return nil
}

// Len returns the number of stored entries.
func (s *CountingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reads returns the number of Get and GetBatch calls.
func (s *CountingStore) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.GetCalls + s.GetBatchCalls
}

// SetErr sets the error returned by reads.
func (s *CountingStore) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}
