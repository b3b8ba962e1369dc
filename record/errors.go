package record

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to the module's errors.
const (
	TextCodeRecordMissing = "RECORD_MISSING"
	TextCodeCacheStorage  = "CACHE_STORAGE"
	TextCodeLiveRetrieval = "LIVE_RETRIEVAL"
)

// NewRecordMissingError reports that source:id could not be resolved by any
// configured path.
func NewRecordMissingError(source, id string) error {
	return goerrors.New(fmt.Sprintf("record %s:%s does not exist", source, id), goerrors.CategoryNotFound).
		WithTextCode(TextCodeRecordMissing).
		WithMetadata(map[string]any{"source": source, "id": id})
}

// NewCacheStorageError wraps a failure of the cache persistence layer.
func NewCacheStorageError(err error, op string) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, "record cache "+op+" failed").
		WithTextCode(TextCodeCacheStorage).
		WithMetadata(map[string]any{"operation": op})
}

// NewLiveRetrievalError wraps a failure of the live retrieval backend for
// source.
func NewLiveRetrievalError(err error, source string) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, "live retrieval from "+source+" failed").
		WithTextCode(TextCodeLiveRetrieval).
		WithMetadata(map[string]any{"source": source})
}

// IsRecordMissing reports whether err is a RecordMissingError.
func IsRecordMissing(err error) bool { return hasTextCode(err, TextCodeRecordMissing) }

// IsCacheStorage reports whether err is a CacheStorageError.
func IsCacheStorage(err error) bool { return hasTextCode(err, TextCodeCacheStorage) }

// IsLiveRetrieval reports whether err is a LiveRetrievalError.
func IsLiveRetrieval(err error) bool { return hasTextCode(err, TextCodeLiveRetrieval) }

func hasTextCode(err error, code string) bool {
	for err != nil {
		var ge *goerrors.Error
		if !errors.As(err, &ge) {
			return false
		}
		if ge.TextCode == code {
			return true
		}
		err = errors.Unwrap(ge)
	}
	return false
}
