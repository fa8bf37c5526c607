// Package resolver turns an ordered intent plan into a fully resolved
// change-set of row-level mutations. It never writes to the store.
//
// Staging order is load-bearing: not-yet-existing forms are staged first,
// then field intents, then option intents, then logic intents, because
// later handlers search the inserts staged by earlier ones. Intents within
// each group are processed strictly in plan order.
//
// Every store read is a suspension point and honors the caller's context.
// If the context is cancelled mid-resolution the in-progress change-set is
// simply discarded; nothing was persisted.
//
// Known limitation: store reads are not snapshot-isolated. Two concurrent
// resolutions against the same store may stage conflicting rule priorities
// or duplicate option values because neither sees the other's staged rows.
// The committer is expected to detect this at apply time (for example with
// an optimistic retry); the resolver does not.
package resolver
