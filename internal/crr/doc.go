// Package crr compiles ordinary SQLite tables into conflict-free replicated
// relations: it rewrites a user's CREATE TABLE into a backing storage table,
// clock table, user-facing view, patch view, and the trigger programs that
// keep per-column logical clocks current on every write. It also exposes a
// changes feed that a replica can scan to fetch mutations it has not yet
// observed from a peer.
//
// Everything here operates against github.com/ncruces/go-sqlite3. Register
// the engine on every connection opened against a given database file with
// Register, normally via an init-time sqlite3.AutoExtension call (see
// extension.go).
package crr
