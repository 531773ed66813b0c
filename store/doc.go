// Package store provides the card.Store implementations shipped with
// gridauth: an in-memory reference store and a Redis-backed store with
// WATCH-scoped compare-and-swap writes. Both hand out deep copies, so
// caller-side zeroing of code buffers never corrupts stored records.
package store
