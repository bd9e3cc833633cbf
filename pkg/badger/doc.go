// Package badger provides Cache, a session blob store on an embedded Badger
// database. It suits single-node deployments that need sessions to survive a
// restart without running an external cache.
//
// Expiry is tracked with millisecond precision in a small header stored in
// front of each value. Badger's entry TTL is set one second past that expiry
// so compaction eventually drops abandoned sessions. Call RunGC in the
// background to reclaim value log space.
package badger
