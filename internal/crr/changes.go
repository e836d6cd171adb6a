package crr

import (
	"fmt"
	"strings"

	"github.com/ncruces/go-sqlite3"
	"github.com/ncruces/go-sqlite3/vtab"
)

// Column indices of the changes virtual table's declared schema (spec.md
// §4.F, §6): (table, pk, col_vals, col_versions, curr_version,
// requestor HIDDEN).
const (
	changesColTable       = 0
	changesColPK          = 1
	changesColVals        = 2
	changesColVersions    = 3
	changesColCurrVersion = 4
	changesColRequestor   = 5
)

const changesSchema = `CREATE TABLE x(
	"table" TEXT,
	pk TEXT,
	col_vals TEXT,
	col_versions TEXT,
	curr_version INTEGER,
	requestor BLOB HIDDEN
)`

// idxVersionBit and idxRequestorBit are the BestIndex idxNum bits
// spec.md §4.F assigns: "bit 1 = version, bit 2 = requestor".
const (
	idxVersionBit   = 1 << 0
	idxRequestorBit = 1 << 1
)

// changesModule implements the changes virtual table: a merge-scan over
// every compiled relation's clock table, reporting rows written after a
// given database version by a site other than the one asking.
type changesModule struct{}

// RegisterChangesModule installs the changes virtual table module on the
// connection. Called once per connection from Register (see extension.go).
func RegisterChangesModule(c *sqlite3.Conn) error {
	return vtab.Register(c, "changes", changesModule{})
}

func (changesModule) Connect(c *sqlite3.Conn, _ ...string) (vtab.Table, error) {
	if err := c.DeclareVTab(changesSchema); err != nil {
		return nil, &EngineError{Stmt: "changes schema declaration", Err: err}
	}
	return &changesTable{conn: c}, nil
}

type changesTable struct {
	conn *sqlite3.Conn
}

// BestIndex implements the four cost tiers spec.md §4.F calls for: both
// requestor and a strict version watermark present (cost 1), version only
// (cost 10), requestor only or neither (cost effectively infinite — a
// full scan of every compiled table's clock history).
func (t *changesTable) BestIndex(info *vtab.IndexInfo) error {
	var idxNum int
	used := make([]int, len(info.Constraint))

	for i, cons := range info.Constraint {
		if !cons.Usable {
			continue
		}
		switch {
		case cons.Column == changesColCurrVersion && cons.Op == sqlite3.INDEX_CONSTRAINT_GT && idxNum&idxVersionBit == 0:
			used[i] = idxVersionBit
			idxNum |= idxVersionBit
		case cons.Column == changesColRequestor && cons.Op == sqlite3.INDEX_CONSTRAINT_EQ && idxNum&idxRequestorBit == 0:
			used[i] = idxRequestorBit
			idxNum |= idxRequestorBit
		}
	}

	// Filter reads the version watermark before the requestor, whatever
	// order the constraints arrive in, so argv positions follow that order.
	for i, u := range used {
		if u != 0 {
			argv := 1
			if u == idxRequestorBit && idxNum&idxVersionBit != 0 {
				argv = 2
			}
			info.ConstraintUsage[i].ArgvIndex = argv
			info.ConstraintUsage[i].Omit = true
		}
	}

	info.IndexNum = idxNum
	switch idxNum {
	case idxVersionBit | idxRequestorBit:
		info.EstimatedCost = 1
		info.EstimatedRows = 64
	case idxVersionBit:
		info.EstimatedCost = 10
		info.EstimatedRows = 1024
	default:
		info.EstimatedCost = 1e9
		info.EstimatedRows = 1 << 20
	}
	return nil
}

func (t *changesTable) Open() (vtab.Cursor, error) {
	return &changesCursor{table: t}, nil
}

func (t *changesTable) Disconnect() error { return nil }

type changesCursor struct {
	table *changesTable
	stmt  *sqlite3.Stmt
	eof   bool
}

// Filter enumerates every compiled table, composes the UNION query, and
// prepares it, binding the requestor site id and version watermark once
// per UNION arm (spec.md §4.F's cursor lifecycle, step 2).
func (cur *changesCursor) Filter(idxNum int, _ string, arg ...sqlite3.Value) error {
	if cur.stmt != nil {
		cur.stmt.Close()
		cur.stmt = nil
	}

	var requestor, sinceVersion sqlite3.Value
	var haveRequestor, haveSinceVersion bool
	argi := 0
	if idxNum&idxVersionBit != 0 {
		sinceVersion = arg[argi]
		haveSinceVersion = true
		argi++
	}
	if idxNum&idxRequestorBit != 0 {
		requestor = arg[argi]
		haveRequestor = true
	}

	tables, err := compiledTables(cur.table.conn)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		cur.eof = true
		return nil
	}

	query := changesUnionQuery(tables)
	stmt, _, err := cur.table.conn.Prepare(query)
	if err != nil {
		return &EngineError{Stmt: query, Err: err}
	}

	// Every arm of the union binds the same two parameters in the same
	// positions; requestor defaults to an empty blob, which no real 16-byte
	// site id equals, so no site is excluded, and the version watermark to
	// the engine's minimum sentinel when the caller left either unbound.
	for i := range tables {
		base := i*2 + 1
		if haveRequestor {
			stmt.BindValue(base, requestor)
		} else {
			stmt.BindBlob(base, []byte{})
		}
		if haveSinceVersion {
			stmt.BindValue(base+1, sinceVersion)
		} else {
			stmt.BindInt64(base+1, minDBVersion)
		}
	}

	cur.stmt = stmt
	return cur.Next()
}

func (cur *changesCursor) Next() error {
	if cur.stmt == nil {
		cur.eof = true
		return nil
	}
	cur.eof = !cur.stmt.Step()
	if err := cur.stmt.Err(); err != nil {
		return &EngineError{Stmt: "changes scan", Err: err}
	}
	return nil
}

func (cur *changesCursor) EOF() bool { return cur.eof }

func (cur *changesCursor) Column(ctx sqlite3.Context, col int) error {
	switch col {
	case changesColTable:
		ctx.ResultText(cur.stmt.ColumnText(0))
	case changesColPK:
		ctx.ResultText(cur.stmt.ColumnText(1))
	case changesColVals:
		if cur.stmt.ColumnType(2) == sqlite3.NULL {
			ctx.ResultNull()
		} else {
			ctx.ResultText(cur.stmt.ColumnText(2))
		}
	case changesColVersions:
		ctx.ResultText(cur.stmt.ColumnText(3))
	case changesColCurrVersion:
		ctx.ResultInt64(cur.stmt.ColumnInt64(4))
	}
	return nil
}

func (cur *changesCursor) RowID() (int64, error) {
	return cur.stmt.ColumnInt64(4), nil
}

func (cur *changesCursor) Close() error {
	if cur.stmt != nil {
		return cur.stmt.Close()
	}
	return nil
}

// compiledTables enumerates every compiled table in the database, by
// scanning for its clock tables and introspecting the matching backing
// storage table (whose declared primary key is exactly the user's).
func compiledTables(c *sqlite3.Conn) ([]*TableInfo, error) {
	names, err := clockTableNames(c)
	if err != nil {
		return nil, err
	}
	infos := make([]*TableInfo, 0, len(names))
	for _, clockName := range names {
		display := strings.TrimSuffix(clockName, "__clock")
		crrName := crrBaseTable(display)
		ti, err := GetTableInfo(c, UserSpace, crrName)
		if err != nil {
			return nil, err
		}
		infos = append(infos, projectUserColumns(ti, display))
	}
	return infos, nil
}

// projectUserColumns strips the bookkeeping columns (__version
// companions, causal length, source) a CRR base table carries, leaving
// the same TableInfo shape GetTableInfo would have produced against the
// user's original table definition.
func projectUserColumns(crrInfo *TableInfo, displayName string) *TableInfo {
	out := &TableInfo{Name: displayName}
	for _, c := range crrInfo.Columns {
		if c.Name == causalLengthColumn || c.Name == sourceColumn || strings.HasSuffix(c.Name, "__version") {
			continue
		}
		out.Columns = append(out.Columns, c)
		if c.PKOrdinal > 0 {
			out.PKs = append(out.PKs, c)
		}
	}
	return out
}

// changeQueryForTable builds the per-table arm of the changes union
// (spec.md §4.F): group the clock table by primary key, taking the
// minimum qualifying version per group so the outer ORDER BY min_v
// sequences the stream correctly, then join the backing storage table to
// assemble col_vals/col_versions — the computation the reference
// implementation left stubbed (see SPEC_FULL.md's §4.F decision and
// DESIGN.md). pk is quote()-concatenated with '~', matching spec.md §6's
// declared column shape rather than a JSON array.
func changeQueryForTable(ti *TableInfo) string {
	crr := crrBaseTable(ti.Name)
	clock := crrClockTable(ti.Name)
	pkNames := ti.PKNames()

	pkQuoted := make([]string, len(pkNames))
	pkConcat := make([]string, len(pkNames))
	for i, pk := range pkNames {
		pkQuoted[i] = QuoteIdent(pk)
		pkConcat[i] = fmt.Sprintf("quote(crr.%s)", QuoteIdent(pk))
	}

	valPairs := make([]string, 0, len(ti.Columns))
	verPairs := make([]string, 0, len(ti.Columns))
	for _, c := range ti.NonPKColumns() {
		valPairs = append(valPairs, fmt.Sprintf("'%s', crr.%s", c.Name, QuoteIdent(c.Name)))
		verPairs = append(verPairs, fmt.Sprintf("'%s', crr.%s", c.Name, QuoteIdent(c.Name+"__version")))
	}

	joinPreds := make([]string, len(pkNames))
	for i, pk := range pkNames {
		joinPreds[i] = fmt.Sprintf("grp.%s = crr.%s", QuoteIdent(pk), QuoteIdent(pk))
	}

	return fmt.Sprintf(`SELECT
  '%s' AS tbl,
  %s AS pk,
  CASE WHEN crr.%s %% 2 = 1 THEN json_object(%s) ELSE NULL END AS col_vals,
  json_object(%s) AS col_versions,
  grp.min_v AS curr_version
FROM (
  SELECT %s, MIN(version) AS min_v
  FROM %s
  WHERE site_id != ? AND version > ?
  GROUP BY %s
) AS grp
JOIN %s AS crr ON %s`,
		ti.Name,
		strings.Join(pkConcat, ` || '~' || `),
		QuoteIdent(causalLengthColumn), strings.Join(valPairs, ", "),
		strings.Join(verPairs, ", "),
		strings.Join(pkQuoted, ", "),
		QuoteIdent(clock),
		strings.Join(pkQuoted, ", "),
		QuoteIdent(crr), strings.Join(joinPreds, " AND "))
}

// changesUnionQuery unions every table's change query, ordered so a replay
// applies writes in the order they originally committed (spec.md §4.F's
// aggregate query: ORDER BY min_v ASC, tbl ASC).
func changesUnionQuery(tables []*TableInfo) string {
	arms := make([]string, len(tables))
	for i, ti := range tables {
		arms[i] = changeQueryForTable(ti)
	}
	return strings.Join(arms, "\nUNION ALL\n") + "\nORDER BY curr_version ASC, tbl ASC"
}
