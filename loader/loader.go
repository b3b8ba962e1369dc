package loader

import (
	"context"
	"log/slog"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-record-loader/cache"
	"github.com/goliatone/go-record-loader/idlist"
	"github.com/goliatone/go-record-loader/record"
)

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used by the default error reporter.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithErrorReporter sets the reporter recovered errors are passed to.
func WithErrorReporter(reporter ErrorReporter) Option {
	return func(l *Loader) {
		l.reporter = reporter
	}
}

// WithFallbackLoader registers a last resort loader for source.
func WithFallbackLoader(source string, fallback FallbackLoader) Option {
	return func(l *Loader) {
		if fallback != nil {
			l.fallbacks[source] = fallback
		}
	}
}

// LoadOption tunes a single Load or LoadBatch call.
type LoadOption func(*loadOptions)

type loadOptions struct {
	tolerateMissing bool
	userID          string
}

// TolerateMissing makes Load return a placeholder instead of an error when
// the record cannot be resolved.
func TolerateMissing() LoadOption {
	return func(o *loadOptions) { o.tolerateMissing = true }
}

// ForUser threads userID into cache keys for policies that include it.
func ForUser(userID string) LoadOption {
	return func(o *loadOptions) { o.userID = userID }
}

// Loader resolves references through the record cache and live retrieval.
// It is safe for concurrent use.
type Loader struct {
	cfg       Config
	live      LiveRetrieval
	cache     *cache.RecordCache
	registry  *record.Registry
	fallbacks map[string]FallbackLoader
	reporter  ErrorReporter
	logger    *slog.Logger
}

// New creates a Loader. recordCache may be nil, in which case both cache
// checks are skipped.
func New(cfg Config, live LiveRetrieval, recordCache *cache.RecordCache, registry *record.Registry, opts ...Option) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if live == nil {
		return nil, goerrors.New("loader requires a live retrieval backend", goerrors.CategoryValidation)
	}
	if registry == nil {
		registry = record.NewRegistry()
	}

	l := &Loader{
		cfg:       cfg,
		live:      live,
		cache:     recordCache,
		registry:  registry,
		fallbacks: make(map[string]FallbackLoader),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.reporter == nil {
		l.reporter = logReporter{logger: l.logger}
	}
	return l, nil
}

// SetCacheContext switches the record cache to the policy configured for
// name.
func (l *Loader) SetCacheContext(name string) {
	if l.cache != nil {
		l.cache.SetContext(name)
	}
}

// Load resolves a single record. The primary cache is checked first, then
// live retrieval, then the fallback cache and any fallback loader.
//
// Without TolerateMissing an unresolved record yields a RecordMissingError,
// a LiveRetrievalError when live retrieval failed and nothing else had the
// record, or a CacheStorageError when the fallback cache failed as the last
// remaining source.
func (l *Loader) Load(ctx context.Context, id, source string, opts ...LoadOption) (record.Record, error) {
	o := loadOptionsFrom(opts)
	ctx, span := tracer.Start(ctx, "load", trace.WithAttributes(
		attribute.String("source", source),
		attribute.String("id", id),
	))
	defer span.End()

	ref := record.Reference{Source: source, ID: id}
	if id == "" {
		return l.notFound(ref, o, nil)
	}

	if l.isPrimary(source) {
		rec, err := l.cacheLookupOne(ctx, phasePrimary, o.userID, source, id)
		if err != nil {
			l.reporter.Report(ctx, err)
		} else if rec != nil {
			return rec, nil
		}
	}

	var lastErr error
	rec, err := l.retrieve(ctx, source, id)
	if err != nil {
		lastErr = record.NewLiveRetrievalError(err, source)
		l.reporter.Report(ctx, lastErr)
	} else if rec != nil {
		return rec, nil
	}

	if l.isFallback(source) {
		rec, err := l.cacheLookupOne(ctx, phaseFallback, o.userID, source, id)
		if err != nil {
			lastErr = err
			l.reporter.Report(ctx, err)
		} else if rec != nil {
			record.SetExtraDetail(rec, record.DetailCachedRecord, true)
			return rec, nil
		}
	}

	if fallback, ok := l.fallbacks[source]; ok {
		recs, err := fallback.Load(ctx, source, []string{id})
		if err != nil {
			l.reporter.Report(ctx, err)
		} else if rec := findRecord(recs, source, id); rec != nil {
			return rec, nil
		}
	}

	if lastErr != nil {
		span.SetStatus(codes.Error, lastErr.Error())
	}
	return l.notFound(ref, o, lastErr)
}

func (l *Loader) notFound(ref record.Reference, o loadOptions, cause error) (record.Record, error) {
	if o.tolerateMissing {
		placeholders.WithLabelValues(ref.Source).Inc()
		return l.registry.Missing(ref), nil
	}
	if cause != nil {
		return nil, cause
	}
	return nil, record.NewRecordMissingError(ref.Source, ref.ID)
}

// LoadBatchForSource resolves ids of a single source. Live records come
// first, then fallback loader records, then cache records. Unresolved ids
// are absent from the result; placeholders are never created here.
//
// Backend failures are reported and recovered. The only error returned is
// the context's.
func (l *Loader) LoadBatchForSource(ctx context.Context, source string, ids []string, opts ...LoadOption) ([]record.Record, error) {
	o := loadOptionsFrom(opts)
	ctx, span := tracer.Start(ctx, "loadBatchForSource", trace.WithAttributes(
		attribute.String("source", source),
		attribute.Int("ids", len(ids)),
	))
	defer span.End()

	requested := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			requested = append(requested, id)
		}
	}
	checklist := idlist.NewChecklist(requested)

	var cached []record.Record
	if l.isPrimary(source) && checklist.HasUnchecked() {
		cached = append(cached, l.cacheLookupBatch(ctx, phasePrimary, o.userID, source, checklist)...)
	}

	var live []record.Record
	if checklist.HasUnchecked() {
		pending := checklist.Unchecked()
		recs, err := l.retrieveBatch(ctx, source, pending)
		if err != nil {
			liveRetrievals.WithLabelValues(source, resultError).Add(float64(len(pending)))
			l.reporter.Report(ctx, record.NewLiveRetrievalError(err, source))
		}
		live = checkRecords(checklist, source, recs)
		if err == nil {
			observe(liveRetrievals, source, len(pending), len(live))
		}
	}

	if l.isFallback(source) && checklist.HasUnchecked() {
		recs := l.cacheLookupBatch(ctx, phaseFallback, o.userID, source, checklist)
		for _, rec := range recs {
			record.SetExtraDetail(rec, record.DetailCachedRecord, true)
		}
		cached = append(cached, recs...)
	}

	var loaded []record.Record
	if fallback, ok := l.fallbacks[source]; ok && checklist.HasUnchecked() {
		recs, err := fallback.Load(ctx, source, checklist.Unchecked())
		if err != nil {
			l.reporter.Report(ctx, err)
		}
		loaded = checkRecords(checklist, source, recs)
	}

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]record.Record, 0, len(live)+len(loaded)+len(cached))
	out = append(out, live...)
	out = append(out, loaded...)
	out = append(out, cached...)
	span.SetAttributes(attribute.Int("resolved", len(out)))
	return out, nil
}

// LoadBatch resolves refs, one goroutine per source. The result has the
// length of refs and result[i] answers refs[i]. A record is written to every
// position requested under its current or previous id; extra positions get
// clones. Positions nothing resolved hold placeholders.
//
// The only error returned is the context's.
func (l *Loader) LoadBatch(ctx context.Context, refs []record.Reference, opts ...LoadOption) ([]record.Record, error) {
	start := time.Now()
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, span := tracer.Start(ctx, "loadBatch", trace.WithAttributes(
		attribute.Int("refs", len(refs)),
	))
	defer span.End()

	list := idlist.New(refs)
	results := make([]record.Record, list.Len())
	idsBySource := list.IDsBySource()

	g, gctx := errgroup.WithContext(ctx)
	if l.cfg.MaxConcurrentSources > 0 {
		g.SetLimit(l.cfg.MaxConcurrentSources)
	}

	for _, source := range list.Sources() {
		ids := idsBySource[source]
		g.Go(func() error {
			recs, err := l.LoadBatchForSource(gctx, source, ids, opts...)
			if err != nil {
				return err
			}
			place(list, results, source, recs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	for i, rec := range results {
		if rec != nil {
			continue
		}
		ref := list.At(i)
		results[i] = l.registry.Missing(ref)
		placeholders.WithLabelValues(ref.Source).Inc()
	}
	return results, nil
}

// place writes recs into the positions of source. Each source owns
// disjoint positions, so goroutines never write the same index. The first
// record to claim a position keeps it.
func place(list *idlist.List, results []record.Record, source string, recs []record.Record) {
	for _, rec := range recs {
		placed := false
		for _, pos := range list.RecordPositions(rec) {
			if list.At(pos).Source != source || results[pos] != nil {
				continue
			}
			if placed {
				results[pos] = record.Clone(rec)
				continue
			}
			results[pos] = rec
			placed = true
		}
	}
}

func (l *Loader) isPrimary(source string) bool {
	return l.cache != nil && l.cache.IsPrimary(source)
}

func (l *Loader) isFallback(source string) bool {
	return l.cache != nil && l.cache.IsFallback(source)
}

func (l *Loader) cacheLookupOne(ctx context.Context, phase, userID, source, id string) (record.Record, error) {
	recs, err := l.cache.LookupBatch(ctx, userID, source, []string{id})
	if err != nil {
		cacheLookups.WithLabelValues(phase, resultError).Inc()
		return nil, err
	}
	rec := findRecord(recs, source, id)
	found := 0
	if rec != nil {
		found = 1
	}
	observe(cacheLookups, phase, 1, found)
	return rec, nil
}

// cacheLookupBatch reads the unchecked ids of checklist from the cache,
// checks off the hits and returns them. Failures are reported.
func (l *Loader) cacheLookupBatch(ctx context.Context, phase, userID, source string, checklist *idlist.Checklist) []record.Record {
	pending := checklist.Unchecked()
	recs, err := l.cache.LookupBatch(ctx, userID, source, pending)
	if err != nil {
		cacheLookups.WithLabelValues(phase, resultError).Add(float64(len(pending)))
		l.reporter.Report(ctx, err)
		return nil
	}
	hits := checkRecords(checklist, source, recs)
	observe(cacheLookups, phase, len(pending), len(hits))
	return hits
}

func (l *Loader) retrieve(ctx context.Context, source, id string) (record.Record, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	rec, err := l.live.Retrieve(ctx, source, id)
	switch {
	case record.IsRecordMissing(err):
		liveRetrievals.WithLabelValues(source, resultMiss).Inc()
		return nil, nil
	case err != nil:
		liveRetrievals.WithLabelValues(source, resultError).Inc()
		return nil, err
	case rec == nil:
		liveRetrievals.WithLabelValues(source, resultMiss).Inc()
		return nil, nil
	}
	liveRetrievals.WithLabelValues(source, resultHit).Inc()
	return rec, nil
}

func (l *Loader) retrieveBatch(ctx context.Context, source string, ids []string) ([]record.Record, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()
	return l.live.RetrieveBatch(ctx, source, ids)
}

func (l *Loader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.cfg.RetrievalTimeout > 0 {
		return context.WithTimeout(ctx, l.cfg.RetrievalTimeout)
	}
	return context.WithCancel(ctx)
}

// checkRecords checks off every record of source answering an unchecked id,
// under its current or previous id, and returns those records. Records of
// another source or answering nothing on the list are dropped.
func checkRecords(checklist *idlist.Checklist, source string, recs []record.Record) []record.Record {
	var out []record.Record
	for _, rec := range recs {
		if rec == nil || rec.SourceIdentifier() != source {
			continue
		}
		matched := checklist.Check(rec.UniqueID())
		if prev := record.PreviousID(rec); prev != "" && checklist.Check(prev) {
			matched = true
		}
		if matched {
			out = append(out, rec)
		}
	}
	return out
}

func findRecord(recs []record.Record, source, id string) record.Record {
	for _, rec := range recs {
		if rec == nil || rec.SourceIdentifier() != source {
			continue
		}
		if rec.UniqueID() == id || record.PreviousID(rec) == id {
			return rec
		}
	}
	return nil
}

func loadOptionsFrom(opts []LoadOption) loadOptions {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
