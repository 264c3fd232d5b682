// Package cache defines the in-memory aggregate store behind the read path.
// Entries record a writtenAt timestamp from which a three-state freshness
// (fresh/stale/expired) is derived at read time; expired entries are evicted
// on read and never returned. Size is bounded by a two-phase eviction pass:
// drop entries past their stale TTL first, then the lowest-scoring ~20% by a
// recency+frequency score. Request handlers depend on this package to decide
// between serving cached data, serving stale data while a background
// revalidation runs, and fetching from the document store.
package cache
