// Package ledger records runs and per-beat outcomes in SQLite so that past
// runs can be inspected with `reelgen history`.
//
// The ledger is an audit trail only. Nothing in the pipeline reads it back to
// decide what to do; a ledger write failure is logged and the run continues.
// Schema changes are added as new files under migrations/ and applied in
// lexical order on Open.
package ledger
