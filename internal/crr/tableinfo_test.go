package crr

import "testing"

func TestGetTableInfo(t *testing.T) {
	c := openTestConn(t)

	if err := c.Exec(`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL, qty INTEGER DEFAULT 0)`); err != nil {
		t.Fatalf("creating table: %v", err)
	}
	if err := c.Exec(`CREATE INDEX widgets_name ON widgets (name)`); err != nil {
		t.Fatalf("creating index: %v", err)
	}

	ti, err := GetTableInfo(c, UserSpace, "widgets")
	if err != nil {
		t.Fatalf("GetTableInfo: %v", err)
	}

	if len(ti.Columns) != 3 {
		t.Fatalf("got %d columns, want 3", len(ti.Columns))
	}
	if len(ti.PKs) != 1 || ti.PKs[0].Name != "id" {
		t.Fatalf("PKs = %+v, want [id]", ti.PKs)
	}
	if got := ti.NonPKColumns(); len(got) != 2 {
		t.Fatalf("NonPKColumns = %+v, want 2 entries", got)
	}
	if len(ti.Indexes) != 1 || ti.Indexes[0].Columns[0] != "name" {
		t.Fatalf("Indexes = %+v, want one index on name", ti.Indexes)
	}
}

func TestGetTableInfoNoPrimaryKey(t *testing.T) {
	c := openTestConn(t)
	if err := c.Exec(`CREATE TABLE notes (body TEXT)`); err != nil {
		t.Fatalf("creating table: %v", err)
	}

	ti, err := GetTableInfo(c, UserSpace, "notes")
	if err != nil {
		t.Fatalf("GetTableInfo: %v", err)
	}
	if len(ti.PKs) != 0 {
		t.Fatalf("PKs = %+v, want none", ti.PKs)
	}
}

func TestWithVersionColumnDefs(t *testing.T) {
	c := openTestConn(t)
	if err := c.Exec(`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("creating table: %v", err)
	}
	ti, err := GetTableInfo(c, UserSpace, "widgets")
	if err != nil {
		t.Fatalf("GetTableInfo: %v", err)
	}

	defs := ti.WithVersionColumnDefs()
	if len(defs) != 3 {
		t.Fatalf("got %d defs, want 3 (id, name, name__version)", len(defs))
	}
	if defs[2].Name != "name__version" {
		t.Fatalf("defs[2].Name = %q, want name__version", defs[2].Name)
	}
}
