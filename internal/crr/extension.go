package crr

import (
	"sync"

	"github.com/ncruces/go-sqlite3"
)

// AutoRegister arranges for Register to run against every new connection
// the process opens, via sqlite3.AutoExtension — the Go analogue of
// cfsqlite's sqlite3_auto_extension bootstrap. Call it once, before
// opening any database/sql connection pool.
func AutoRegister() {
	sqlite3.AutoExtension(func(c *sqlite3.Conn) error {
		return Register(c)
	})
}

// Register bootstraps this connection's logical clock and installs the
// scalar functions, commit/rollback hooks, and changes virtual table
// a compiled database needs. It is safe to call once per connection;
// AutoRegister does this automatically for every connection the process
// opens.
func Register(c *sqlite3.Conn) error {
	dbPath := c.Filename("main")

	state, err := Bootstrap(c, dbPath)
	if err != nil {
		return err
	}

	txn := &txnVersionCache{state: state}

	if err := c.CreateFunction(siteIDFunc, 0, sqlite3.DETERMINISTIC|sqlite3.INNOCUOUS, func(ctx sqlite3.Context, arg ...sqlite3.Value) {
		id := state.SiteID()
		ctx.ResultBlob(id[:])
	}); err != nil {
		return &EngineError{Stmt: "registering " + siteIDFunc, Err: err}
	}

	if err := c.CreateFunction(dbVersionFunc, 0, sqlite3.INNOCUOUS, func(ctx sqlite3.Context, arg ...sqlite3.Value) {
		ctx.ResultInt64(state.Version())
	}); err != nil {
		return &EngineError{Stmt: "registering " + dbVersionFunc, Err: err}
	}

	if err := c.CreateFunction(txnVersionFunc, 0, sqlite3.INNOCUOUS, func(ctx sqlite3.Context, arg ...sqlite3.Value) {
		ctx.ResultInt64(txn.reserve())
	}); err != nil {
		return &EngineError{Stmt: "registering " + txnVersionFunc, Err: err}
	}

	if err := c.CreateFunction(compileFunc, 1, sqlite3.DIRECTONLY, func(ctx sqlite3.Context, arg ...sqlite3.Value) {
		if err := Compile(c, arg[0].Text()); err != nil {
			ctx.ResultError(err)
			return
		}
	}); err != nil {
		return &EngineError{Stmt: "registering " + compileFunc, Err: err}
	}

	c.CommitHook(func() bool {
		txn.reset()
		return true
	})
	c.RollbackHook(func() {
		txn.reset()
	})

	if err := RegisterChangesModule(c); err != nil {
		return err
	}

	return nil
}

// txnVersionCache resolves __crr_txn_version() to a single value shared by
// every trigger firing within one write transaction: the first call
// reserves the next database version via State.bumpVersion, and every
// later call in the same transaction observes that same reservation. The
// commit and rollback hooks clear the reservation so the next transaction
// reserves its own version.
//
// This is the commit-hook scheme cfsqlite's sqlite3_cfsqlite_init left as
// a TODO ("install a commit_hook to advance the dbversion on every tx
// commit"): reserving eagerly, on first write rather than at commit,
// keeps every row a transaction touches stamped with one version number
// without requiring a second pass over those rows at commit time.
type txnVersionCache struct {
	state    *State
	mu       sync.Mutex
	version  int64
	reserved bool
}

func (t *txnVersionCache) reserve() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.reserved {
		t.version = t.state.bumpVersion()
		t.reserved = true
	}
	return t.version
}

func (t *txnVersionCache) reset() {
	t.mu.Lock()
	t.reserved = false
	t.mu.Unlock()
}
