package crr

import (
	"fmt"
	"strings"
)

// crrBaseTable, crrClockTable, and crrPatchView return the
// mechanically-derived object names from spec.md §6: "<T>__crr",
// "<T>__clock", and "<T>__patch". The user view keeps the name "<T>" itself.
func crrBaseTable(table string) string  { return table + "__crr" }
func crrClockTable(table string) string { return table + "__clock" }
func crrPatchView(table string) string  { return table + "__patch" }

func insertTriggerName(table string) string      { return table + "__crr_ins" }
func updateTriggerName(table string) string      { return table + "__crr_upd" }
func deleteTriggerName(table string) string      { return table + "__crr_del" }
func patchInsertTriggerName(table string) string { return table + "__crr_patch_ins" }

// pkPredicate emits the WHERE clause selecting a row by its primary-key
// tuple, comparing each pk column against `rowAlias.col` (spec.md §4.E's
// first trigger-synthesizer helper). Used by the update and delete triggers
// against OLD, since both target T__crr unaliased.
func pkPredicate(pks []ColumnInfo, rowAlias string) string {
	conds := make([]string, len(pks))
	for i, pk := range pks {
		conds[i] = fmt.Sprintf("%s = %s.%s", QuoteIdent(pk.Name), rowAlias, QuoteIdent(pk.Name))
	}
	return strings.Join(conds, " AND ")
}

// changedPredicate emits the NULL-aware "did this column change" test used
// by the update trigger to decide which columns actually advance their
// version: `OLD.c IS NOT NEW.c`.
func changedPredicate(col string) string {
	return fmt.Sprintf("%s.%s IS NOT %s.%s", "OLD", QuoteIdent(col), "NEW", QuoteIdent(col))
}

// InsertTriggerSQL emits the view-insert trigger (spec.md §4.E): an insert
// against the user view stamps every non-pk column's version at the
// current write version, sets __causal_length = 1 and __source = 0 on the
// new T__crr row, and upserts the writing site's T__clock row.
func InsertTriggerSQL(ti *TableInfo) string {
	crr := crrBaseTable(ti.Name)
	pkNames := ti.PKNames()

	cols := make([]string, 0, len(ti.Columns)*2+2)
	vals := make([]string, 0, len(ti.Columns)*2+2)
	for _, c := range ti.Columns {
		cols = append(cols, QuoteIdent(c.Name))
		vals = append(vals, "NEW."+QuoteIdent(c.Name))
		if c.PKOrdinal == 0 {
			cols = append(cols, QuoteIdent(c.Name+"__version"))
			vals = append(vals, txnVersionFunc+"()")
		}
	}
	cols = append(cols, QuoteIdent(causalLengthColumn), QuoteIdent(sourceColumn))
	vals = append(vals, "1", "0")

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TRIGGER %s INSTEAD OF INSERT ON %s\nBEGIN\n",
		QuoteIdent(insertTriggerName(ti.Name)), QuoteIdent(ti.Name))
	fmt.Fprintf(&b, "  INSERT INTO %s (%s) VALUES (%s);\n",
		QuoteIdent(crr), strings.Join(cols, ", "), strings.Join(vals, ", "))
	b.WriteString(clockUpsertSQL(ti, "NEW", "  "))
	b.WriteString("END;")
	return b.String()
}

// UpdateTriggerSQL emits the view-update trigger: changed columns (NULL-aware
// OLD IS NOT NEW) advance to the current write version, unchanged columns'
// versions are left alone, and the writing site's clock row is upserted.
func UpdateTriggerSQL(ti *TableInfo) string {
	crr := crrBaseTable(ti.Name)

	sets := make([]string, 0, len(ti.Columns)*2)
	for _, c := range ti.NonPKColumns() {
		changed := changedPredicate(c.Name)
		sets = append(sets, fmt.Sprintf("%s = CASE WHEN %s THEN NEW.%s ELSE %s.%s END",
			QuoteIdent(c.Name), changed, QuoteIdent(c.Name), QuoteIdent(crr), QuoteIdent(c.Name)))
		sets = append(sets, fmt.Sprintf("%s = CASE WHEN %s THEN %s() ELSE %s.%s END",
			QuoteIdent(c.Name+"__version"), changed, txnVersionFunc, QuoteIdent(crr), QuoteIdent(c.Name+"__version")))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TRIGGER %s INSTEAD OF UPDATE ON %s\nBEGIN\n",
		QuoteIdent(updateTriggerName(ti.Name)), QuoteIdent(ti.Name))
	fmt.Fprintf(&b, "  UPDATE %s SET %s WHERE %s;\n",
		QuoteIdent(crr), strings.Join(sets, ", "), pkPredicate(ti.PKs, "OLD"))
	b.WriteString(clockUpsertSQL(ti, "OLD", "  "))
	b.WriteString("END;")
	return b.String()
}

// DeleteTriggerSQL emits the view-delete trigger: __causal_length advances
// by one (odd -> even, tombstoning the row) without removing it, and the
// writing site's clock row is upserted to the current write version.
func DeleteTriggerSQL(ti *TableInfo) string {
	crr := crrBaseTable(ti.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TRIGGER %s INSTEAD OF DELETE ON %s\nBEGIN\n",
		QuoteIdent(deleteTriggerName(ti.Name)), QuoteIdent(ti.Name))
	fmt.Fprintf(&b, "  UPDATE %s SET %s = %s + 1 WHERE %s;\n",
		QuoteIdent(crr), QuoteIdent(causalLengthColumn), QuoteIdent(causalLengthColumn),
		pkPredicate(ti.PKs, "OLD"))
	b.WriteString(clockUpsertSQL(ti, "OLD", "  "))
	b.WriteString("END;")
	return b.String()
}

// incomingWriterSiteSQL extracts, from the patch's own clock payload, the
// site id that stamped a given incoming column version: the entry in
// NEW.__crr_clock whose version equals verExpr. site_id travels through the
// JSON payload hex-encoded (JSON has no blob type); unhex() recovers the raw
// 16-byte value so it compares correctly against site_id() and against
// every other blob-typed site_id in this schema.
func incomingWriterSiteSQL(verExpr string) string {
	return fmt.Sprintf(
		"(SELECT unhex(json_extract(entry.value, '$.site_id')) FROM json_each(NEW.%s) AS entry WHERE json_extract(entry.value, '$.version') = %s LIMIT 1)",
		QuoteIdent(patchClockColumn), verExpr)
}

// PatchInsertTriggerSQL emits the patch-insert trigger: an insert into
// T__patch carries an incoming T__crr row plus a JSON clock payload (an
// array of {"site_id": <hex>, "version": <int>} objects — the sending
// replica's full clock history for this primary key, per spec.md §4.E).
// Per column, the larger of the local and incoming version wins
// last-writer-wins; on a tie, the value written by the larger site id wins
// (spec.md §8 property 5 and the literal §8.4 scenario), comparing the
// incoming column's writer (read back out of the patch's own clock payload)
// against this connection's own site id, so both directions of a direct
// two-site exchange converge on the same value regardless of which side
// applies first. __causal_length takes the larger of local and incoming (so
// a delete observed by either side tombstones the merged row); every (site,
// version) pair in the incoming clock is upserted into T__clock.
func PatchInsertTriggerSQL(ti *TableInfo) string {
	crr := crrBaseTable(ti.Name)
	patch := crrPatchView(ti.Name)
	pkNames := ti.PKNames()

	insCols := make([]string, 0, len(ti.Columns)*2+2)
	insVals := make([]string, 0, len(ti.Columns)*2+2)
	for _, c := range ti.Columns {
		insCols = append(insCols, QuoteIdent(c.Name))
		insVals = append(insVals, "NEW."+QuoteIdent(c.Name))
		if c.PKOrdinal == 0 {
			insCols = append(insCols, QuoteIdent(c.Name+"__version"))
			insVals = append(insVals, "NEW."+QuoteIdent(c.Name+"__version"))
		}
	}
	insCols = append(insCols, QuoteIdent(causalLengthColumn), QuoteIdent(sourceColumn))
	insVals = append(insVals, "NEW."+QuoteIdent(causalLengthColumn), "1")

	updates := make([]string, 0, len(ti.Columns)*2+1)
	for _, c := range ti.NonPKColumns() {
		verCol := QuoteIdent(c.Name + "__version")
		incomingSite := incomingWriterSiteSQL("excluded." + verCol)
		updates = append(updates, fmt.Sprintf(
			"%s = CASE WHEN excluded.%s > %s THEN excluded.%s WHEN excluded.%s < %s THEN %s.%s WHEN %s > %s() THEN excluded.%s ELSE %s.%s END",
			QuoteIdent(c.Name),
			verCol, verCol, QuoteIdent(c.Name),
			verCol, verCol, QuoteIdent(crr), QuoteIdent(c.Name),
			incomingSite, siteIDFunc, QuoteIdent(c.Name),
			QuoteIdent(crr), QuoteIdent(c.Name)))
		updates = append(updates, fmt.Sprintf(
			"%s = MAX(excluded.%s, %s.%s)", verCol, verCol, QuoteIdent(crr), verCol))
	}
	updates = append(updates, fmt.Sprintf(
		`%s = MAX(excluded.%s, %s.%s)`,
		QuoteIdent(causalLengthColumn), QuoteIdent(causalLengthColumn), QuoteIdent(crr), QuoteIdent(causalLengthColumn)))

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TRIGGER %s INSTEAD OF INSERT ON %s\nBEGIN\n",
		QuoteIdent(patchInsertTriggerName(ti.Name)), QuoteIdent(patch))
	fmt.Fprintf(&b, "  INSERT INTO %s (%s) VALUES (%s)\n  ON CONFLICT (%s) DO UPDATE SET\n    %s;\n",
		QuoteIdent(crr), strings.Join(insCols, ", "), strings.Join(insVals, ", "),
		JoinIdent(pkNames, ", "), strings.Join(updates, ",\n    "))

	insertPK := make([]string, len(pkNames))
	selectPK := make([]string, len(pkNames))
	for i, pk := range pkNames {
		insertPK[i] = QuoteIdent(pk)
		selectPK[i] = "NEW." + QuoteIdent(pk)
	}
	fmt.Fprintf(&b, "  INSERT INTO %s (%s, %s, %s)\n  SELECT %s, unhex(json_extract(entry.value, '$.site_id')), json_extract(entry.value, '$.version')\n  FROM json_each(NEW.%s) AS entry WHERE true\n  ON CONFLICT (%s, %s) DO UPDATE SET %s = MAX(excluded.%s, %s);\n",
		QuoteIdent(crrClockTable(ti.Name)), strings.Join(insertPK, ", "), QuoteIdent("site_id"), QuoteIdent("version"),
		strings.Join(selectPK, ", "),
		QuoteIdent(patchClockColumn),
		QuoteIdent("site_id"), strings.Join(insertPK, ", "),
		QuoteIdent("version"), QuoteIdent("version"), QuoteIdent("version"))
	b.WriteString("END;")
	return b.String()
}

// clockUpsertSQL emits the T__clock upsert shared by the insert, update,
// and delete triggers: one row per (this site, pk), its version advanced to
// the current write version.
func clockUpsertSQL(ti *TableInfo, rowAlias, indent string) string {
	clock := crrClockTable(ti.Name)
	pkNames := ti.PKNames()

	cols := append(append([]string{}, pkNames...), "site_id", "version")
	vals := make([]string, 0, len(cols))
	for _, pk := range pkNames {
		vals = append(vals, rowAlias+"."+QuoteIdent(pk))
	}
	vals = append(vals, siteIDFunc+"()", txnVersionFunc+"()")

	quotedCols := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = QuoteIdent(c)
	}

	conflictCols := append([]string{"site_id"}, pkNames...)
	quotedConflict := make([]string, len(conflictCols))
	for i, c := range conflictCols {
		quotedConflict[i] = QuoteIdent(c)
	}

	return fmt.Sprintf("%sINSERT INTO %s (%s) VALUES (%s)\n%s  ON CONFLICT (%s) DO UPDATE SET %s = %s();\n",
		indent, QuoteIdent(clock), strings.Join(quotedCols, ", "), strings.Join(vals, ", "),
		indent, strings.Join(quotedConflict, ", "), QuoteIdent("version"), txnVersionFunc)
}
