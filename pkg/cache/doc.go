// Package cache provides the TTL-bounded entity store shared by all
// incoming requests.
//
// Entities are cached by natural key and evicted purely by TTL expiry;
// there is no delete API. Two TTL classes exist: resolved entities live
// under the long TTL, while classified blocking failures (not found, rate
// limited, login required) are remembered as short-lived negative entries
// so repeat requests fail fast without touching the upstream.
//
// Concurrent GetOrFetch calls for one key share a single upstream fetch via
// golang.org/x/sync/singleflight. All waiters receive the same result, and
// only the caller whose hydrator ran is billed for it.
//
// Partial hydration of a cached entity (resolving children or a video URL)
// mutates the stored object in place through its own methods; it does not
// create a new entry and does not reset the TTL.
package cache
