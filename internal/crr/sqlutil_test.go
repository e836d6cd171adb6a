package crr

import "testing"

func TestQuoteIdent(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"foo", `"foo"`},
		{`fo"o`, `"fo""o"`},
		{"", `""`},
	}
	for _, c := range cases {
		if got := QuoteIdent(c.in); got != c.want {
			t.Errorf("QuoteIdent(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestJoinIdent(t *testing.T) {
	got := JoinIdent([]string{"a", "b", "c"}, ", ")
	want := `"a", "b", "c"`
	if got != want {
		t.Errorf("JoinIdent = %q, want %q", got, want)
	}
}

func TestPrimaryKeyClause(t *testing.T) {
	if got := PrimaryKeyClause(nil); got != "" {
		t.Errorf("PrimaryKeyClause(nil) = %q, want empty", got)
	}
	got := PrimaryKeyClause([]string{"id", "site"})
	want := `PRIMARY KEY ("id", "site")`
	if got != want {
		t.Errorf("PrimaryKeyClause = %q, want %q", got, want)
	}
}

func TestAsColumnDefinitions(t *testing.T) {
	defs := []ColumnDef{
		{Name: "id", Type: "INTEGER", NotNull: true},
		{Name: "name", Type: "TEXT", HasDflt: true, Default: "'x'"},
	}
	got := AsColumnDefinitions(defs)
	want := `"id" INTEGER NOT NULL, "name" TEXT DEFAULT 'x'`
	if got != want {
		t.Errorf("AsColumnDefinitions = %q, want %q", got, want)
	}
}
