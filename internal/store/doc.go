// Package store defines the disk-backed persistence layer for mirrored
// objects. Each committed object lives at StoragePath/<namespace>/<key>; an
// in-progress download is staged at a reserved-prefix sibling (.<key>) and
// only becomes visible through an atomic rename on Commit. The store also
// owns the modtime bookkeeping that the refresh scheduler uses to decide
// freshness, including the TouchValidity escape hatch that extends perceived
// freshness after a not-modified revalidation without rewriting the body.
package store
