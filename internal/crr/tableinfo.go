package crr

import (
	"fmt"
	"sort"

	"github.com/ncruces/go-sqlite3"
)

// Namespace tags which schema a table lives in when introspecting it.
type Namespace int

const (
	// UserSpace is the ordinary main schema.
	UserSpace Namespace = iota
	// TempSpace is the temp schema, used for the throwaway table the
	// compiler creates to let the host engine parse a CREATE TABLE
	// statement (see compiler.go).
	TempSpace
)

func (n Namespace) pragmaSchema() string {
	if n == TempSpace {
		return "temp"
	}
	return "main"
}

// ColumnInfo describes one column of a user table.
type ColumnInfo struct {
	Name     string
	Type     string
	NotNull  bool
	HasDflt  bool
	Default  string
	PKOrdinal int // 1-based position in the primary key, 0 if not part of it
}

// IndexInfo describes one index declared on a user table.
type IndexInfo struct {
	Name    string
	Columns []string
	Origin  string // "c" (CREATE INDEX), "u" (UNIQUE constraint), "pk"
	Unique  bool
}

// TableInfo is everything the compiler and changes feed need to know about
// a user table: its columns, primary key, and indexes.
type TableInfo struct {
	Name    string
	Columns []ColumnInfo
	PKs     []ColumnInfo
	Indexes []IndexInfo
}

// NonPKColumns returns the columns that are not part of the primary key, in
// declared order.
func (ti *TableInfo) NonPKColumns() []ColumnInfo {
	out := make([]ColumnInfo, 0, len(ti.Columns))
	for _, c := range ti.Columns {
		if c.PKOrdinal == 0 {
			out = append(out, c)
		}
	}
	return out
}

// PKNames returns the primary-key column names in key order.
func (ti *TableInfo) PKNames() []string {
	names := make([]string, len(ti.PKs))
	for i, c := range ti.PKs {
		names[i] = c.Name
	}
	return names
}

// ColumnNames returns every user-column name in declared order.
func (ti *TableInfo) ColumnNames() []string {
	names := make([]string, len(ti.Columns))
	for i, c := range ti.Columns {
		names[i] = c.Name
	}
	return names
}

// WithVersionColumnDefs is the "with-version" column list from spec.md
// §4.B: every user column, plus a `<col>__version INTEGER` companion for
// each non-primary-key column. This is what backs the T__crr base table
// alongside __causal_length and __source.
func (ti *TableInfo) WithVersionColumnDefs() []ColumnDef {
	defs := make([]ColumnDef, 0, len(ti.Columns)*2)
	for _, c := range ti.Columns {
		defs = append(defs, ColumnDef{Name: c.Name, Type: c.Type, NotNull: c.NotNull, HasDflt: c.HasDflt, Default: c.Default})
		if c.PKOrdinal == 0 {
			defs = append(defs, ColumnDef{Name: c.Name + "__version", Type: "INTEGER"})
		}
	}
	return defs
}

// GetTableInfo introspects a table's columns, primary key, and indexes via
// the host engine's PRAGMA interface. When the table has no declared
// primary key, PKs is empty and callers fall back to the engine's implicit
// rowid.
func GetTableInfo(c *sqlite3.Conn, ns Namespace, table string) (*TableInfo, error) {
	ti := &TableInfo{Name: table}

	cols, err := tableInfoPragma(c, ns, table)
	if err != nil {
		return nil, &IntrospectionError{Table: table, Err: err}
	}
	ti.Columns = cols
	for _, c := range cols {
		if c.PKOrdinal > 0 {
			ti.PKs = append(ti.PKs, c)
		}
	}
	sort.Slice(ti.PKs, func(i, j int) bool { return ti.PKs[i].PKOrdinal < ti.PKs[j].PKOrdinal })

	idxs, err := indexListPragma(c, ns, table)
	if err != nil {
		return nil, &IntrospectionError{Table: table, Err: err}
	}
	ti.Indexes = idxs

	return ti, nil
}

func tableInfoPragma(c *sqlite3.Conn, ns Namespace, table string) ([]ColumnInfo, error) {
	sql := fmt.Sprintf("PRAGMA %s.table_info(%s)", ns.pragmaSchema(), QuoteIdent(table))
	stmt, _, err := c.Prepare(sql)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var cols []ColumnInfo
	for stmt.Step() {
		col := ColumnInfo{
			Name:      stmt.ColumnText(1),
			Type:      stmt.ColumnText(2),
			NotNull:   stmt.ColumnInt(3) != 0,
			PKOrdinal: stmt.ColumnInt(5),
		}
		if stmt.ColumnType(4) != sqlite3.NULL {
			col.HasDflt = true
			col.Default = stmt.ColumnText(4)
		}
		cols = append(cols, col)
	}
	if err := stmt.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q has no columns or does not exist", table)
	}
	return cols, nil
}

func indexListPragma(c *sqlite3.Conn, ns Namespace, table string) ([]IndexInfo, error) {
	sql := fmt.Sprintf("PRAGMA %s.index_list(%s)", ns.pragmaSchema(), QuoteIdent(table))
	stmt, _, err := c.Prepare(sql)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var idxs []IndexInfo
	for stmt.Step() {
		idx := IndexInfo{
			Name:   stmt.ColumnText(1),
			Unique: stmt.ColumnInt(2) != 0,
			Origin: stmt.ColumnText(3),
		}
		cols, err := indexInfoPragma(c, ns, idx.Name)
		if err != nil {
			return nil, err
		}
		idx.Columns = cols
		idxs = append(idxs, idx)
	}
	if err := stmt.Err(); err != nil {
		return nil, err
	}
	return idxs, nil
}

func indexInfoPragma(c *sqlite3.Conn, ns Namespace, index string) ([]string, error) {
	sql := fmt.Sprintf("PRAGMA %s.index_info(%s)", ns.pragmaSchema(), QuoteIdent(index))
	stmt, _, err := c.Prepare(sql)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var cols []string
	for stmt.Step() {
		cols = append(cols, stmt.ColumnText(2))
	}
	if err := stmt.Err(); err != nil {
		return nil, err
	}
	return cols, nil
}
