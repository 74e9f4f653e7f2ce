// Package mirror contains the refresh policy engine: the per-object Entry
// records, the Registry that owns one Store and one Source, and the
// Orchestrator state machine driving the two externally triggered operations
// (ValidityScan and CompletionPoll). The orchestrator imposes no timing policy
// of its own — callers wire the two operations to whatever tickers they want —
// and never raises errors to them; every failure is absorbed into diagnostics
// while the stale entry is naturally retried on the next scan. The processed
// latch guarantees an object is announced ready exactly once per
// become-usable transition.
package mirror
