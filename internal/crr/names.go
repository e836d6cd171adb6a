package crr

// SQL-visible function names the extension registers (see extension.go).
// Trigger bodies and the compiler reference these by name rather than by
// Go symbol, since they are spliced into generated SQL text.
const (
	// siteIDFunc returns the calling connection's 16-byte site id as a
	// blob. Registered DETERMINISTIC | INNOCUOUS. Named site_id() per
	// spec.md §6.
	siteIDFunc = "site_id"

	// dbVersionFunc returns the cached database version. Registered
	// INNOCUOUS only: two calls in the same transaction may observe
	// different values once dbVersionFunc is read outside a write, so it
	// is not DETERMINISTIC. Named db_version() per spec.md §6.
	dbVersionFunc = "db_version"

	// txnVersionFunc returns the version stamped on every row touched by
	// the current write transaction. It is resolved once, lazily, on
	// first call within a transaction (see extension.go's commit-hook
	// scheme) so every trigger firing in that transaction agrees on a
	// single version number. Internal-only: not part of spec.md §6's
	// registered surface.
	txnVersionFunc = "__crr_txn_version"

	// compileFunc is the DIRECTONLY entry point a caller invokes to turn
	// an ordinary CREATE/DROP TABLE or CREATE/DROP INDEX statement into its
	// CRR-compiled form; ALTER TABLE is rejected with a MisuseError. Named
	// compile() per spec.md §6.
	compileFunc = "compile"
)

// patchClockColumn is the column a patch-insert carries the sending
// replica's per-(site,pk) clock history in, as a JSON array of
// {"site_id": <blob-as-hex>, "version": <int>} objects.
const patchClockColumn = "__crr_clock"

// causalLengthColumn and sourceColumn are the two bookkeeping columns every
// CRR base table carries alongside the user's own columns and their
// per-column version companions.
const (
	causalLengthColumn = "__causal_length"
	sourceColumn       = "__source"
)
