package crr

import (
	"testing"

	"github.com/ncruces/go-sqlite3"

	_ "github.com/ncruces/go-sqlite3/embed"
)

// openTestConn opens a private in-memory database, mirroring the DSN
// convention the rest of the pack's test suites use for isolated,
// non-shared test databases.
func openTestConn(t *testing.T) *sqlite3.Conn {
	t.Helper()
	c, err := sqlite3.Open("file::memory:?cache=private")
	if err != nil {
		t.Fatalf("opening test connection: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}
