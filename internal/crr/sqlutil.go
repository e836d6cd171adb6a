package crr

import "strings"

// QuoteIdent double-quotes a SQL identifier, doubling any embedded quote
// characters so the result is always safe to splice into generated SQL.
func QuoteIdent(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 2)
	b.WriteByte('"')
	for _, r := range name {
		if r == '"' {
			b.WriteByte('"')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// JoinIdent quotes every name and joins the result with sep.
func JoinIdent(names []string, sep string) string {
	return JoinWith(names, sep, QuoteIdent)
}

// JoinWith applies fn to every element of names and joins the results with
// sep. It is the general form JoinIdent specializes: the changes feed, for
// instance, needs each primary-key column wrapped in quote(...) rather than
// merely identifier-quoted.
func JoinWith(names []string, sep string, fn func(string) string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fn(n)
	}
	return strings.Join(parts, sep)
}

// ColumnDef is a single column's declaration as carried by TableInfo.
type ColumnDef struct {
	Name     string
	Type     string
	NotNull  bool
	HasDflt  bool
	Default  string
}

// AsColumnDefinitions formats a list of column definitions as the
// comma-separated body of a CREATE TABLE statement, e.g.
// `"a" INTEGER, "b" TEXT NOT NULL DEFAULT 'x'`.
func AsColumnDefinitions(cols []ColumnDef) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		var b strings.Builder
		b.WriteString(QuoteIdent(c.Name))
		if c.Type != "" {
			b.WriteByte(' ')
			b.WriteString(c.Type)
		}
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
		if c.HasDflt {
			b.WriteString(" DEFAULT ")
			b.WriteString(c.Default)
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, ", ")
}

// PrimaryKeyClause formats `PRIMARY KEY ("a", "b")` for the given column
// names, or the empty string when cols is empty (no declared primary key).
func PrimaryKeyClause(cols []string) string {
	if len(cols) == 0 {
		return ""
	}
	return "PRIMARY KEY (" + JoinIdent(cols, ", ") + ")"
}
