package crr

import (
	"path/filepath"
	"testing"

	"github.com/ncruces/go-sqlite3"
)

func TestChangesFeedReportsWritesFromOtherSites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crr.db")

	c, err := sqlite3.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	t.Cleanup(func() { c.Close() })

	if err := Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := Compile(c, `CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := c.Exec(`INSERT INTO widgets (id, name) VALUES (1, 'sprocket')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// A peer (any site id other than our own) asking for everything since
	// the sentinel minimum must observe the row we just wrote.
	var foreignSite [16]byte
	foreignSite[0] = 0xFF

	stmt, _, err := c.Prepare(`SELECT "table", col_vals FROM changes WHERE requestor = ? AND curr_version > ?`)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	defer stmt.Close()
	stmt.BindBlob(1, foreignSite[:])
	stmt.BindInt64(2, minDBVersion)

	if !stmt.Step() {
		if err := stmt.Err(); err != nil {
			t.Fatalf("scan: %v", err)
		}
		t.Fatal("expected at least one change row")
	}
	if got := stmt.ColumnText(0); got != "widgets" {
		t.Errorf("tbl = %q, want widgets", got)
	}
}
