package loader

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-record-loader/record"
)

// LiveRetrieval is the backend records are normally fetched from.
type LiveRetrieval interface {
	// Retrieve returns the record for source:id. A nil record with a nil
	// error, or a RecordMissingError, means it does not exist.
	Retrieve(ctx context.Context, source, id string) (record.Record, error)
	// RetrieveBatch returns the records found for ids. Ids that do not
	// exist are absent from the result.
	RetrieveBatch(ctx context.Context, source string, ids []string) ([]record.Record, error)
}

// FallbackLoader is asked for ids that neither live retrieval nor the
// fallback cache could resolve.
type FallbackLoader interface {
	Load(ctx context.Context, source string, ids []string) ([]record.Record, error)
}

// FallbackLoaderFunc adapts a function to the FallbackLoader interface.
type FallbackLoaderFunc func(ctx context.Context, source string, ids []string) ([]record.Record, error)

// Load implements FallbackLoader.
func (f FallbackLoaderFunc) Load(ctx context.Context, source string, ids []string) ([]record.Record, error) {
	return f(ctx, source, ids)
}

// ErrorReporter receives every error the loader recovers from.
type ErrorReporter interface {
	Report(ctx context.Context, err error)
}

// ErrorReporterFunc adapts a function to the ErrorReporter interface.
type ErrorReporterFunc func(ctx context.Context, err error)

// Report implements ErrorReporter.
func (f ErrorReporterFunc) Report(ctx context.Context, err error) {
	f(ctx, err)
}

type logReporter struct {
	logger *slog.Logger
}

func (r logReporter) Report(ctx context.Context, err error) {
	r.logger.WarnContext(ctx, "recovered record loading error", "error", err)
}
