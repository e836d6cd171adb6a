package crr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ncruces/go-sqlite3"
)

// statementKind classifies the handful of DDL forms Compile understands.
type statementKind int

const (
	stmtUnknown statementKind = iota
	stmtCreateTable
	stmtCreateIndex
	stmtDropTable
	stmtDropIndex
	stmtAlterTable
)

var (
	reCreateTable = regexp.MustCompile(`(?is)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?("?[\w]+"?)\s*\(`)
	reCreateIndex = regexp.MustCompile(`(?is)^\s*CREATE\s+(?:UNIQUE\s+)?INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?("?[\w]+"?)\s+ON\s+("?[\w]+"?)`)
	reDropTable   = regexp.MustCompile(`(?is)^\s*DROP\s+TABLE\s+(?:IF\s+EXISTS\s+)?("?[\w]+"?)\s*;?\s*$`)
	reDropIndex   = regexp.MustCompile(`(?is)^\s*DROP\s+INDEX\s+(?:IF\s+EXISTS\s+)?("?[\w]+"?)\s*;?\s*$`)
	reAlterTable  = regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\s+("?[\w]+"?)`)
	reCreateKw    = regexp.MustCompile(`(?i)\bCREATE\s+TABLE\b`)
)

func unquoteIdent(s string) string {
	return strings.Trim(s, `"`)
}

// Compile turns a single CREATE TABLE, DROP TABLE, CREATE INDEX, or DROP
// INDEX statement into its CRR-compiled form: the backing storage table,
// clock table, user-facing view, patch view, and trigger programs (for
// CREATE TABLE); the matching cascade of drops (for DROP TABLE); or an
// index rewritten onto the backing storage table (for CREATE/DROP INDEX).
// ALTER TABLE on a compiled relation is rejected outright rather than
// silently accepted, unlike the reference implementation this engine is
// descended from.
//
// Compile rejects anything but a single statement: a caller that wants to
// compile several tables must call Compile once per statement.
func Compile(c *sqlite3.Conn, statementText string) error {
	stmt, err := soleStatement(statementText)
	if err != nil {
		return err
	}

	switch {
	case reCreateTable.MatchString(stmt):
		m := reCreateTable.FindStringSubmatch(stmt)
		return compileCreateTable(c, stmt, unquoteIdent(m[1]))
	case reCreateIndex.MatchString(stmt):
		return compileCreateIndex(c, stmt)
	case reDropTable.MatchString(stmt):
		m := reDropTable.FindStringSubmatch(stmt)
		return compileDropTable(c, unquoteIdent(m[1]))
	case reDropIndex.MatchString(stmt):
		return c.Exec(stmt)
	case reAlterTable.MatchString(stmt):
		m := reAlterTable.FindStringSubmatch(stmt)
		return &MisuseError{Op: "compile", Reason: fmt.Sprintf(
			"ALTER TABLE %q on a compiled relation is not supported; drop and recreate it", unquoteIdent(m[1]))}
	default:
		return &MisuseError{Op: "compile", Reason: "statement is not a CREATE/DROP TABLE or CREATE/DROP INDEX"}
	}
}

// soleStatement trims a trailing semicolon and rejects the input if more
// than one statement remains, mirroring the reference implementation's
// refusal to compile a multi-statement batch (each CRR table must compile
// inside its own transaction boundary).
func soleStatement(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimSuffix(trimmed, ";")
	if strings.Contains(trimmed, ";") {
		return "", &MisuseError{Op: "compile", Reason: "only a single statement may be compiled at a time"}
	}
	if trimmed == "" {
		return "", &MisuseError{Op: "compile", Reason: "empty statement"}
	}
	return trimmed, nil
}

// withImplicitPK synthesizes a "rowid" primary key when a table declares
// none, following cfsqlite's fallback to the engine's implicit rowid
// (cfsqlite-triggers.h's row_id column) rather than refusing such tables.
func withImplicitPK(ti *TableInfo) {
	if len(ti.PKs) > 0 {
		return
	}
	rowid := ColumnInfo{Name: "rowid", Type: "INTEGER", PKOrdinal: 1}
	ti.Columns = append([]ColumnInfo{rowid}, ti.Columns...)
	ti.PKs = []ColumnInfo{rowid}
}

func compileCreateTable(c *sqlite3.Conn, createSQL, table string) error {
	tempSQL := reCreateKw.ReplaceAllString(createSQL, "CREATE TEMP TABLE")
	if err := c.Exec(tempSQL); err != nil {
		return &EngineError{Stmt: tempSQL, Err: err}
	}
	ti, err := GetTableInfo(c, TempSpace, table)
	dropTemp := fmt.Sprintf("DROP TABLE temp.%s", QuoteIdent(table))
	if dErr := c.Exec(dropTemp); dErr != nil && err == nil {
		return &EngineError{Stmt: dropTemp, Err: dErr}
	}
	if err != nil {
		return err
	}

	withImplicitPK(ti)

	stmts := buildCreateStatements(ti)
	for _, s := range stmts {
		if err := c.Exec(s); err != nil {
			rollbackCreate(c, ti)
			return &EngineError{Stmt: s, Err: err}
		}
	}
	return nil
}

// buildCreateStatements emits, in dependency order, every object a
// compiled table consists of: the clock table, the backing storage table,
// the user-facing view, the patch view, and the four trigger programs.
func buildCreateStatements(ti *TableInfo) []string {
	crr := crrBaseTable(ti.Name)
	clock := crrClockTable(ti.Name)
	patch := crrPatchView(ti.Name)
	pkNames := ti.PKNames()

	clockCols := make([]ColumnDef, 0, len(pkNames)+2)
	for _, pk := range ti.PKs {
		clockCols = append(clockCols, ColumnDef{Name: pk.Name, Type: pk.Type, NotNull: true})
	}
	clockCols = append(clockCols,
		ColumnDef{Name: "site_id", Type: "BLOB", NotNull: true},
		ColumnDef{Name: "version", Type: "INTEGER", NotNull: true})
	clockPK := append([]string{"site_id"}, pkNames...)

	crrCols := ti.WithVersionColumnDefs()
	crrCols = append(crrCols,
		ColumnDef{Name: causalLengthColumn, Type: "INTEGER", NotNull: true, HasDflt: true, Default: "1"},
		ColumnDef{Name: sourceColumn, Type: "INTEGER", NotNull: true, HasDflt: true, Default: "0"})

	viewCols := JoinIdent(ti.ColumnNames(), ", ")

	patchSelectCols := make([]string, 0, len(ti.Columns)*2+3)
	for _, c := range ti.Columns {
		patchSelectCols = append(patchSelectCols, QuoteIdent(c.Name))
		if c.PKOrdinal == 0 {
			patchSelectCols = append(patchSelectCols, QuoteIdent(c.Name+"__version"))
		}
	}
	patchSelectCols = append(patchSelectCols, QuoteIdent(causalLengthColumn), QuoteIdent(sourceColumn))
	patchSelectCols = append(patchSelectCols, "NULL AS "+QuoteIdent(patchClockColumn))

	return []string{
		fmt.Sprintf("CREATE TABLE %s (%s, %s)", QuoteIdent(clock), AsColumnDefinitions(clockCols), PrimaryKeyClause(clockPK)),
		fmt.Sprintf("CREATE TABLE %s (%s, %s)", QuoteIdent(crr), AsColumnDefinitions(crrCols), PrimaryKeyClause(pkNames)),
		fmt.Sprintf("CREATE VIEW %s AS SELECT %s FROM %s WHERE %s %% 2 = 1",
			QuoteIdent(ti.Name), viewCols, QuoteIdent(crr), QuoteIdent(causalLengthColumn)),
		fmt.Sprintf("CREATE VIEW %s AS SELECT %s FROM %s WHERE 0",
			QuoteIdent(patch), strings.Join(patchSelectCols, ", "), QuoteIdent(crr)),
		InsertTriggerSQL(ti),
		UpdateTriggerSQL(ti),
		DeleteTriggerSQL(ti),
		PatchInsertTriggerSQL(ti),
	}
}

// rollbackCreate best-effort drops whatever prefix of buildCreateStatements
// already succeeded, since a failure partway through must not leave a
// half-compiled table behind for the caller's transaction to commit.
func rollbackCreate(c *sqlite3.Conn, ti *TableInfo) {
	for _, s := range dropStatements(ti.Name) {
		_ = c.Exec(s)
	}
}

func dropStatements(table string) []string {
	return []string{
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s", QuoteIdent(patchInsertTriggerName(table))),
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s", QuoteIdent(deleteTriggerName(table))),
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s", QuoteIdent(updateTriggerName(table))),
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s", QuoteIdent(insertTriggerName(table))),
		fmt.Sprintf("DROP VIEW IF EXISTS %s", QuoteIdent(crrPatchView(table))),
		fmt.Sprintf("DROP VIEW IF EXISTS %s", QuoteIdent(table)),
		fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdent(crrBaseTable(table))),
		fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdent(crrClockTable(table))),
	}
}

func compileDropTable(c *sqlite3.Conn, table string) error {
	for _, s := range dropStatements(table) {
		if err := c.Exec(s); err != nil {
			return &EngineError{Stmt: s, Err: err}
		}
	}
	return nil
}

// compileCreateIndex rewrites a CREATE INDEX statement onto the backing
// storage table, rejecting partial (WHERE-predicated) indexes: a partial
// index risks silently excluding tombstoned rows a peer still needs to
// observe through the changes feed.
func compileCreateIndex(c *sqlite3.Conn, stmt string) error {
	if regexp.MustCompile(`(?i)\bWHERE\b`).MatchString(stmt) {
		return &MisuseError{Op: "compile", Reason: "predicated (WHERE-qualified) indexes are not supported on a compiled relation"}
	}
	loc := reCreateIndex.FindStringSubmatchIndex(stmt)
	table := unquoteIdent(stmt[loc[4]:loc[5]])
	rewritten := stmt[:loc[4]] + QuoteIdent(crrBaseTable(table)) + stmt[loc[5]:]
	if err := c.Exec(rewritten); err != nil {
		return &EngineError{Stmt: rewritten, Err: err}
	}
	return nil
}
