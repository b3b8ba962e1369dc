package di

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/goliatone/go-record-loader/cache"
	"github.com/goliatone/go-record-loader/pkg/testsupport"
	"github.com/goliatone/go-record-loader/record"
)

func newMemoryContainer(tb testing.TB, live *testsupport.FakeRetrieval, sources ...string) *Container {
	tb.Helper()

	config := DefaultConfig()
	config.Cache.CacheableSources = sources

	container, err := NewContainer(config, live, nil)
	if err != nil {
		tb.Fatalf("Failed to create DI container: %v", err)
	}
	return container
}

func generateRefs(sources, perSource int) ([]record.Reference, []record.Record) {
	var refs []record.Reference
	var recs []record.Record
	for s := 0; s < sources; s++ {
		source := fmt.Sprintf("S%d", s)
		for i := 0; i < perSource; i++ {
			id := fmt.Sprintf("rec-%d", i)
			refs = append(refs, record.Reference{Source: source, ID: id})
			if i%4 != 0 {
				recs = append(recs, record.NewDocument(source, id, nil))
			}
		}
	}
	return refs, recs
}

// TestConcurrentAccess runs many LoadBatch and CreateOrUpdate calls against
// one container.
func TestConcurrentAccess(t *testing.T) {
	refs, recs := generateRefs(4, 25)
	live := testsupport.NewFakeRetrieval(recs...)
	container := newMemoryContainer(t, live, "S0", "S1")

	ctx := context.Background()
	const numGoroutines = 20
	const operationsPerGoroutine = 10

	var wg sync.WaitGroup
	errors := make(chan error, numGoroutines*operationsPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for j := 0; j < operationsPerGoroutine; j++ {
				results, err := container.Loader().LoadBatch(ctx, refs)
				if err != nil {
					errors <- fmt.Errorf("worker %d operation %d LoadBatch failed: %v", workerID, j, err)
					continue
				}
				if len(results) != len(refs) {
					errors <- fmt.Errorf("worker %d operation %d: expected %d results, got %d", workerID, j, len(refs), len(results))
				}

				if j%3 == 0 {
					id := fmt.Sprintf("rec-%d", (workerID+j)%25)
					data := []byte(fmt.Sprintf(`{"id":%q}`, id))
					if err := container.RecordCache().CreateOrUpdate(ctx, id, "", "S0", data, "", ""); err != nil {
						errors <- fmt.Errorf("worker %d operation %d CreateOrUpdate failed: %v", workerID, j, err)
					}
				}
			}
		}(i)
	}

	wg.Wait()
	close(errors)

	for err := range errors {
		t.Error(err)
	}
}

// TestCacheFillsGapsIntegration checks that ids only present in the cache
// stop being placeholders.
func TestCacheFillsGapsIntegration(t *testing.T) {
	refs, recs := generateRefs(1, 8)
	container := newMemoryContainer(t, testsupport.NewFakeRetrieval(recs...), "S0")
	ctx := context.Background()

	before, err := container.Loader().LoadBatch(ctx, refs)
	if err != nil {
		t.Fatalf("LoadBatch failed: %v", err)
	}
	missing := 0
	for _, rec := range before {
		if record.IsMissing(rec) {
			missing++
			data := []byte(fmt.Sprintf(`{"id":%q}`, rec.UniqueID()))
			if err := container.RecordCache().CreateOrUpdate(ctx, rec.UniqueID(), "", "S0", data, "", ""); err != nil {
				t.Fatalf("CreateOrUpdate failed: %v", err)
			}
		}
	}
	if missing != 2 {
		t.Fatalf("Expected 2 placeholders, got %d", missing)
	}

	after, err := container.Loader().LoadBatch(ctx, refs)
	if err != nil {
		t.Fatalf("LoadBatch failed: %v", err)
	}
	for i, rec := range after {
		if record.IsMissing(rec) {
			t.Errorf("position %d: expected cache to fill the gap", i)
		}
	}
}

func BenchmarkComputeKey(b *testing.B) {
	builder := cache.NewKeyBuilder(cache.DefaultSourceAliases(), cache.DigestMD5)
	policy := cache.DefaultConfig().Policies[cache.PolicyFavorite]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = builder.ComputeKey("rec-1", "Solr", "user-1", policy)
	}
}

func BenchmarkComputeKeyXXHash(b *testing.B) {
	builder := cache.NewKeyBuilder(cache.DefaultSourceAliases(), cache.DigestXXHash)
	policy := cache.DefaultConfig().Policies[cache.PolicyFavorite]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = builder.ComputeKey("rec-1", "Solr", "user-1", policy)
	}
}

func BenchmarkLoadBatch(b *testing.B) {
	refs, recs := generateRefs(4, 50)
	container := newMemoryContainer(b, testsupport.NewFakeRetrieval(recs...), "S0", "S1")
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := container.Loader().LoadBatch(ctx, refs); err != nil {
			b.Fatalf("LoadBatch failed: %v", err)
		}
	}
}

func BenchmarkConcurrentLoadBatch(b *testing.B) {
	refs, recs := generateRefs(4, 50)
	container := newMemoryContainer(b, testsupport.NewFakeRetrieval(recs...), "S0", "S1")
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := container.Loader().LoadBatch(ctx, refs); err != nil {
				b.Errorf("LoadBatch failed: %v", err)
			}
		}
	})
}
