package crr

import "testing"

func TestCompileCreateTableBuildsObjects(t *testing.T) {
	c := openTestConn(t)
	if _, err := Bootstrap(c, ""); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if err := Compile(c, `CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT, qty INTEGER)`); err != nil {
		t.Fatalf("Compile CREATE TABLE: %v", err)
	}

	for _, obj := range []string{"widgets__crr", "widgets__clock", "widgets", "widgets__patch"} {
		stmt, _, err := c.Prepare(`SELECT 1 FROM sqlite_master WHERE name = ?`)
		if err != nil {
			t.Fatalf("prepare: %v", err)
		}
		stmt.BindText(1, obj)
		found := stmt.Step()
		stmt.Close()
		if !found {
			t.Errorf("expected object %q to exist after Compile", obj)
		}
	}
}

func TestCompileRejectsMultipleStatements(t *testing.T) {
	c := openTestConn(t)
	if _, err := Bootstrap(c, ""); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	err := Compile(c, `CREATE TABLE a (id INTEGER PRIMARY KEY); CREATE TABLE b (id INTEGER PRIMARY KEY)`)
	if err == nil {
		t.Fatal("expected an error for a multi-statement compile call")
	}
	if _, ok := err.(*MisuseError); !ok {
		t.Fatalf("got %T, want *MisuseError", err)
	}
}

func TestCompileRejectsAlterTable(t *testing.T) {
	c := openTestConn(t)
	if _, err := Bootstrap(c, ""); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := Compile(c, `CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("Compile CREATE TABLE: %v", err)
	}

	err := Compile(c, `ALTER TABLE widgets ADD COLUMN color TEXT`)
	if _, ok := err.(*MisuseError); !ok {
		t.Fatalf("got %T (%v), want *MisuseError", err, err)
	}
}

func TestInsertUpdateDeleteThroughView(t *testing.T) {
	c := openTestConn(t)
	if err := Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := Compile(c, `CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT, qty INTEGER)`); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if err := c.Exec(`INSERT INTO widgets (id, name, qty) VALUES (1, 'sprocket', 3)`); err != nil {
		t.Fatalf("insert via view: %v", err)
	}

	stmt, _, err := c.Prepare(`SELECT name, qty FROM widgets WHERE id = 1`)
	if err != nil {
		t.Fatalf("prepare select: %v", err)
	}
	if !stmt.Step() {
		t.Fatal("expected one row after insert")
	}
	if got := stmt.ColumnText(0); got != "sprocket" {
		t.Errorf("name = %q, want sprocket", got)
	}
	stmt.Close()

	if err := c.Exec(`UPDATE widgets SET qty = 5 WHERE id = 1`); err != nil {
		t.Fatalf("update via view: %v", err)
	}
	stmt, _, err = c.Prepare(`SELECT qty FROM widgets WHERE id = 1`)
	if err != nil {
		t.Fatalf("prepare select: %v", err)
	}
	if !stmt.Step() {
		t.Fatal("expected one row after update")
	}
	if got := stmt.ColumnInt(0); got != 5 {
		t.Errorf("qty = %d, want 5", got)
	}
	stmt.Close()

	if err := c.Exec(`DELETE FROM widgets WHERE id = 1`); err != nil {
		t.Fatalf("delete via view: %v", err)
	}
	stmt, _, err = c.Prepare(`SELECT 1 FROM widgets WHERE id = 1`)
	if err != nil {
		t.Fatalf("prepare select: %v", err)
	}
	if stmt.Step() {
		t.Error("expected no rows after delete (tombstoned)")
	}
	stmt.Close()

	// The row must still exist, tombstoned, in the backing storage table.
	stmt, _, err = c.Prepare(`SELECT __causal_length FROM widgets__crr WHERE id = 1`)
	if err != nil {
		t.Fatalf("prepare select: %v", err)
	}
	if !stmt.Step() {
		t.Fatal("expected the tombstoned row to remain in widgets__crr")
	}
	if got := stmt.ColumnInt(0); got%2 != 0 {
		t.Errorf("__causal_length = %d, want an even (tombstoned) value", got)
	}
	stmt.Close()
}

func TestCompileDropTableRemovesObjects(t *testing.T) {
	c := openTestConn(t)
	if _, err := Bootstrap(c, ""); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := Compile(c, `CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("Compile CREATE TABLE: %v", err)
	}
	if err := Compile(c, `DROP TABLE widgets`); err != nil {
		t.Fatalf("Compile DROP TABLE: %v", err)
	}

	for _, obj := range []string{"widgets__crr", "widgets__clock", "widgets", "widgets__patch"} {
		stmt, _, err := c.Prepare(`SELECT 1 FROM sqlite_master WHERE name = ?`)
		if err != nil {
			t.Fatalf("prepare: %v", err)
		}
		stmt.BindText(1, obj)
		found := stmt.Step()
		stmt.Close()
		if found {
			t.Errorf("expected object %q to be gone after DROP TABLE", obj)
		}
	}
}
