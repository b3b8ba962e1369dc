// Package repositorycache provides a two tier decorator for cache.KeyValueStore.
//
// # Overview
//
// CachedStore wraps a base store, usually the SQL backed store from
// internal/cacheinfra, and puts a fast front tier in front of it, usually
// the sturdyc memory store. The decorator itself implements
// cache.KeyValueStore, so the record cache cannot tell the difference.
//
// # Basic Usage
//
//	db, _ := cacheinfra.OpenDB(sqlConfig)
//	base := cacheinfra.NewSQLStore(db)
//	front, _ := cacheinfra.NewMemoryStore(cacheinfra.DefaultConfig())
//
//	store := repositorycache.New(base, front)
//	recordCache := cache.NewRecordCache(cfg, store, registry)
//
// # Read Path
//
//  1. Check the front tier for the key(s)
//  2. Ask the base store for anything the front tier missed
//  3. Store base hits in the front tier
//  4. Return the merged result
//
// Front tier errors are logged and treated as misses. Base store errors are
// returned unchanged.
//
// # Write Path
//
// Put and DeleteByUserID go to the base store first. The front tier is only
// touched once the base store succeeded, so a failed write never leaves the
// front tier ahead of the base.
package repositorycache
