package crr

import (
	"strings"
	"testing"
)

func widgetsTableInfo() *TableInfo {
	return &TableInfo{
		Name: "widgets",
		Columns: []ColumnInfo{
			{Name: "id", Type: "INTEGER", PKOrdinal: 1},
			{Name: "name", Type: "TEXT"},
			{Name: "qty", Type: "INTEGER"},
		},
		PKs: []ColumnInfo{{Name: "id", Type: "INTEGER", PKOrdinal: 1}},
	}
}

func TestInsertTriggerSQLShape(t *testing.T) {
	sql := InsertTriggerSQL(widgetsTableInfo())
	for _, want := range []string{
		`CREATE TRIGGER "widgets__crr_ins" INSTEAD OF INSERT ON "widgets"`,
		`"name__version"`,
		`"qty__version"`,
		`"__causal_length"`,
		`"__source"`,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("InsertTriggerSQL missing %q:\n%s", want, sql)
		}
	}
}

func TestUpdateTriggerSQLOnlyAdvancesChangedColumns(t *testing.T) {
	sql := UpdateTriggerSQL(widgetsTableInfo())
	if !strings.Contains(sql, `IS NOT`) {
		t.Errorf("UpdateTriggerSQL should guard each column with a changed-ness check:\n%s", sql)
	}
	if !strings.Contains(sql, `"name__version"`) {
		t.Errorf("UpdateTriggerSQL should update per-column version companions:\n%s", sql)
	}
}

func TestDeleteTriggerSQLAdvancesCausalLength(t *testing.T) {
	sql := DeleteTriggerSQL(widgetsTableInfo())
	if !strings.Contains(sql, `"__causal_length" = "__causal_length" + 1`) {
		t.Errorf("DeleteTriggerSQL should increment causal length rather than delete the row:\n%s", sql)
	}
}

func TestPatchInsertTriggerSQLMergesClocks(t *testing.T) {
	sql := PatchInsertTriggerSQL(widgetsTableInfo())
	for _, want := range []string{
		`ON CONFLICT`,
		`json_each(NEW."__crr_clock")`,
		`MAX(excluded."version", "version")`,
		`unhex(json_extract(entry.value, '$.site_id'))`,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("PatchInsertTriggerSQL missing %q:\n%s", want, sql)
		}
	}
}

// A tied column version must break the tie on site id rather than silently
// preferring the locally-stored value, or two replicas that each write the
// same primary key at the same version will never converge.
func TestPatchInsertTriggerSQLBreaksVersionTiesOnSiteID(t *testing.T) {
	sql := PatchInsertTriggerSQL(widgetsTableInfo())
	for _, want := range []string{
		`WHEN excluded."name__version" < "name__version" THEN "widgets__crr"."name"`,
		`> site_id() THEN excluded."name"`,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("PatchInsertTriggerSQL missing symmetric site-id tie-break %q:\n%s", want, sql)
		}
	}
}
