package crr

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/ncruces/go-sqlite3"
)

const (
	siteIDTable = "__site_id"

	// minDBVersion mirrors cfsqlite's starting sentinel for a database that
	// has never had a CRR write: one above the most negative value a 64-bit
	// signed integer can hold (math.MinInt64 + 1).
	minDBVersion = int64(-9223372036854775807)
)

// State is the process-wide logical clock for one database file: its site
// id (stable for the file's lifetime) and a cached copy of the database
// version, reconciled against the clock tables' ground truth at Bootstrap.
type State struct {
	siteID      [16]byte
	version     atomic.Int64
	initialized atomic.Bool
}

// SiteID returns this database's 16-byte site identifier. Safe to call
// without synchronization once Bootstrap has succeeded; the id never
// changes for the lifetime of the database file.
func (s *State) SiteID() [16]byte { return s.siteID }

// Version returns the cached database version.
func (s *State) Version() int64 { return s.version.Load() }

// bumpVersion advances the cached version by exactly one via
// compare-and-swap, returning the new value. Called from txnVersionCache
// (extension.go) on the first version request of a write transaction, not
// from the commit hook; a transaction that rolls back after that request
// still consumes the version it reserved.
func (s *State) bumpVersion() int64 {
	for {
		old := s.version.Load()
		next := old + 1
		if s.version.CompareAndSwap(old, next) {
			return next
		}
	}
}

var (
	registryMu sync.Mutex
	registry   = map[any]*State{}

	// bootstrapMu is the single, non-reentrant initialization mutex
	// spec.md §4.C and §5 call for: it serializes the bootstrap critical
	// section across goroutines in this process. Bootstrap additionally
	// takes a cross-process file lock for connections from separate OS
	// processes sharing the same database file.
	bootstrapMu sync.Mutex
)

// stateFor returns the shared State for a database file, creating it on
// first use. Subsequent connections against the same file observe the same
// State instance. An in-memory or temporary database is private to the
// connection that opened it, so its State is keyed by that connection.
func stateFor(c *sqlite3.Conn, path string) *State {
	var key any = path
	if !isFileBacked(path) {
		key = c
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	st, ok := registry[key]
	if !ok {
		st = &State{}
		st.version.Store(minDBVersion)
		registry[key] = st
	}
	return st
}

// isFileBacked reports whether a DSN names an on-disk file worth taking a
// flock on. In-memory and temporary databases have no path other
// connections could contend on.
func isFileBacked(dbPath string) bool {
	if dbPath == "" || dbPath == ":memory:" {
		return false
	}
	return !strings.Contains(dbPath, "mode=memory")
}

// Bootstrap initializes (or re-attaches to) the logical clock state for the
// database c is connected to. On first initialization for a database file
// it creates the site-id table and inserts a freshly generated UUID, or
// reads the previously stored id; it then reconciles the cached database
// version against the maximum version across every clock table. Both steps
// run inside one transaction; on any failure the transaction is rolled back
// and the error returned.
func Bootstrap(c *sqlite3.Conn, dbPath string) (*State, error) {
	st := stateFor(c, dbPath)

	bootstrapMu.Lock()
	defer bootstrapMu.Unlock()

	if st.initialized.Load() {
		return st, nil
	}

	var fl *flock.Flock
	if isFileBacked(dbPath) {
		fl = flock.New(dbPath + ".crr-lock")
		if err := fl.Lock(); err != nil {
			return nil, &ResourceError{Reason: "acquiring cross-process bootstrap lock", Err: err}
		}
		defer fl.Unlock()
	}

	if err := c.Exec("BEGIN IMMEDIATE"); err != nil {
		return nil, &EngineError{Stmt: "BEGIN IMMEDIATE", Err: err}
	}

	siteID, err := initSiteID(c)
	if err != nil {
		_ = c.Exec("ROLLBACK")
		return nil, err
	}

	version, err := initDBVersion(c, siteID)
	if err != nil {
		_ = c.Exec("ROLLBACK")
		return nil, err
	}

	if err := c.Exec("COMMIT"); err != nil {
		return nil, &EngineError{Stmt: "COMMIT", Err: err}
	}

	st.siteID = siteID
	st.version.Store(version)
	st.initialized.Store(true)
	return st, nil
}

func tableExists(c *sqlite3.Conn, name string) (bool, error) {
	stmt, _, err := c.Prepare("SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?")
	if err != nil {
		return false, &EngineError{Stmt: "sqlite_master lookup", Err: err}
	}
	defer stmt.Close()
	stmt.BindText(1, name)
	found := stmt.Step()
	if err := stmt.Err(); err != nil {
		return false, &EngineError{Stmt: "sqlite_master lookup", Err: err}
	}
	return found, nil
}

func initSiteID(c *sqlite3.Conn) ([16]byte, error) {
	var zero [16]byte

	exists, err := tableExists(c, siteIDTable)
	if err != nil {
		return zero, err
	}

	if !exists {
		createSQL := fmt.Sprintf("CREATE TABLE %s (site_id BLOB)", QuoteIdent(siteIDTable))
		if err := c.Exec(createSQL); err != nil {
			return zero, &EngineError{Stmt: createSQL, Err: err}
		}

		id := uuid.New()
		insertSQL := fmt.Sprintf("INSERT INTO %s (site_id) VALUES (?)", QuoteIdent(siteIDTable))
		stmt, _, err := c.Prepare(insertSQL)
		if err != nil {
			return zero, &EngineError{Stmt: insertSQL, Err: err}
		}
		defer stmt.Close()
		stmt.BindBlob(1, id[:])
		if stmt.Step() {
			// single-row INSERT never returns a row; Step() returning true
			// would be unexpected but isn't itself an error.
		}
		if err := stmt.Err(); err != nil {
			return zero, &EngineError{Stmt: insertSQL, Err: err}
		}
		return id, nil
	}

	selectSQL := fmt.Sprintf("SELECT site_id FROM %s", QuoteIdent(siteIDTable))
	stmt, _, err := c.Prepare(selectSQL)
	if err != nil {
		return zero, &EngineError{Stmt: selectSQL, Err: err}
	}
	defer stmt.Close()
	if !stmt.Step() {
		if err := stmt.Err(); err != nil {
			return zero, &EngineError{Stmt: selectSQL, Err: err}
		}
		return zero, &InvariantError{Reason: "site id table exists but holds no row"}
	}
	copy(zero[:], stmt.ColumnBlob(0))
	return zero, stmt.Err()
}

func clockTableNames(c *sqlite3.Conn) ([]string, error) {
	const q = "SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE '%__clock'"
	stmt, _, err := c.Prepare(q)
	if err != nil {
		return nil, &EngineError{Stmt: q, Err: err}
	}
	defer stmt.Close()

	var names []string
	for stmt.Step() {
		names = append(names, stmt.ColumnText(0))
	}
	if err := stmt.Err(); err != nil {
		return nil, &EngineError{Stmt: q, Err: err}
	}
	return names, nil
}

// dbVersionUnionQuery builds the union query from spec.md §4.C: the maximum
// version across every clock table, restricted per-table to rows written by
// a site other than this one (so a fresh replica that has only ever written
// locally still starts at the sentinel minimum rather than its own writes).
func dbVersionUnionQuery(clockTables []string) string {
	arms := make([]string, len(clockTables))
	for i, t := range clockTables {
		arms[i] = fmt.Sprintf(`SELECT MAX(version) AS v FROM %s WHERE site_id != ?`, QuoteIdent(t))
	}
	return "SELECT MAX(v) FROM (" + strings.Join(arms, " UNION ALL ") + ")"
}

func initDBVersion(c *sqlite3.Conn, siteID [16]byte) (int64, error) {
	names, err := clockTableNames(c)
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return minDBVersion, nil
	}

	q := dbVersionUnionQuery(names)
	stmt, _, err := c.Prepare(q)
	if err != nil {
		return 0, &EngineError{Stmt: q, Err: err}
	}
	defer stmt.Close()

	for i := range names {
		stmt.BindBlob(i+1, siteID[:])
	}

	if !stmt.Step() {
		if err := stmt.Err(); err != nil {
			return 0, &EngineError{Stmt: q, Err: err}
		}
		return minDBVersion, nil
	}
	if stmt.ColumnType(0) == sqlite3.NULL {
		return minDBVersion, stmt.Err()
	}
	return stmt.ColumnInt64(0), stmt.Err()
}
