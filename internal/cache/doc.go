// Package cache owns the scratch directory holding fetched artifacts and the
// in-memory bookkeeping around it. The store exposes write-once primitives
// (exclusive create + collision suffixes) so concurrent fetches can never
// clobber each other, the registry tracks last-access times behind a single
// mutex, and the sweeper periodically evicts entries idle past their TTL.
// Download handlers depend on this package to persist and stream artifacts
// without duplicating filesystem logic.
package cache
