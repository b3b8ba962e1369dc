// Package loader resolves record references into records.
//
// A Loader combines three sources per record source: the record cache
// consulted before live retrieval (primary), live retrieval itself, and the
// record cache consulted after live retrieval misses (fallback). Which cache
// checks run is decided by the active cache policy.
//
// LoadBatch accepts references from any number of sources and always
// returns a slice of the same length, index aligned with the input. Unresolved
// positions hold placeholders built by the registry's Missing factory.
// Backend failures for one source never abort the others; they are passed
// to the ErrorReporter and the affected ids fall through to the fallback
// cache or a placeholder.
package loader
