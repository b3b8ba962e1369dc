// Package cache provides the record cache policy, key derivation and the
// storage contract used by the record loader.
//
// # Overview
//
// The package exports three building blocks:
//
//   - Policy: the capabilities the cache runs with (Disabled, Primary,
//     Fallback) plus the identity components included in keys
//   - KeyBuilder: derives stable cache keys from (record id, source, user id)
//   - RecordCache: applies the policy over a KeyValueStore and hydrates hits
//     through a record.Registry
//
// # Basic Usage
//
//	cfg := cache.DefaultConfig()
//	cfg.CacheableSources = []string{"Solr"}
//
//	rc, err := cache.NewRecordCache(cfg, store, registry)
//	if err != nil {
//		return err
//	}
//
//	if rc.IsPrimary("Solr") {
//		records, err := rc.LookupBatch(ctx, userID, "Solr", ids)
//		...
//	}
//
// # Policies and Contexts
//
// Policies are named in Config.Policies and selected with SetPolicy. A cache
// context ("Default", "Favorite", ...) maps to a policy name through
// Config.Contexts and is selected with SetContext. SetPolicy also accepts a
// flag expression:
//
//	rc.SetPolicy("Primary|IncludeRecordId|IncludeSource")
//
// A source missing from Config.CacheableSources is never cached, whatever
// the active policy says.
//
// # Key Derivation
//
// Keys are the MD5 (or xxhash, see Config.Digest) digest of a JSON object
// holding only the components the policy includes. Source names pass
// through Config.SourceAliases first, so "Solr" and "VuFind" share rows.
// Changing the Include flags of a policy changes every key it produces:
// existing rows are then unreachable under that policy.
//
// # Error Handling
//
// Store failures are returned as record CacheStorageError values. Entries
// that cannot be hydrated (unknown source, corrupt data) are skipped rather
// than reported; the cache is best effort.
package cache
