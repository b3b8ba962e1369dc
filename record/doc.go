// Package record defines the identity and record types shared by the cache
// and loader packages.
//
// # Overview
//
// A Reference names a record by (source, id). References can be written as
// structured values or as "source|id" strings; a bare id without a pipe uses
// DefaultSource. A Record is whatever a backend or a Factory hydrates for a
// reference. When nothing can be hydrated the loader hands back a Missing
// placeholder so callers can zip their input and output by position.
//
// # Factories
//
// Raw cached data is turned back into records by a Factory registered per
// source in a Registry. The Registry is built at startup:
//
//	registry := record.NewRegistry()
//	registry.Register("Solr", solrFactory)
//	registry.Register(record.MissingSource, record.MissingFactory{})
//
// # Errors
//
// The package exports the error taxonomy used across the module:
// RecordMissingError, CacheStorageError and LiveRetrievalError. They are
// go-errors values carrying a category and a text code, and can be checked
// with IsRecordMissing, IsCacheStorage and IsLiveRetrieval.
package record
