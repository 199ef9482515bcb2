// Package ledger provides VisitLedger implementations: InMemory for tests
// and single-process demos, and the SQLite-backed store in ledger/sqlite for
// durable use.
//
// Every implementation normalizes resource identifiers with
// core.NormalizeResource and guarantees at most one Created outcome per
// (subject, resource) pair.
package ledger
