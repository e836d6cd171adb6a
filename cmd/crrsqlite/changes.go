package main

import (
	"fmt"
	"os"

	"github.com/ncruces/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/haldoran/crrlite/internal/crr"
)

var changesSince int64

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "List rows written by other sites since a given database version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		requireDBPath()

		c, err := sqlite3.Open(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "crrsqlite: opening %s: %v\n", dbPath, err)
			os.Exit(1)
		}
		defer c.Close()

		if err := crr.Register(c); err != nil {
			fmt.Fprintf(os.Stderr, "crrsqlite: %v\n", err)
			os.Exit(1)
		}

		state, err := crr.Bootstrap(c, dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "crrsqlite: %v\n", err)
			os.Exit(1)
		}
		id := state.SiteID()

		stmt, _, err := c.Prepare(`SELECT "table", pk, col_vals, col_versions, curr_version
			FROM changes WHERE requestor = ? AND curr_version > ?`)
		if err != nil {
			fmt.Fprintf(os.Stderr, "crrsqlite: %v\n", err)
			os.Exit(1)
		}
		defer stmt.Close()

		stmt.BindBlob(1, id[:])
		stmt.BindInt64(2, changesSince)

		for stmt.Step() {
			fmt.Printf("%s\tpk=%s\tvals=%s\tversions=%s\tv=%d\n",
				stmt.ColumnText(0), stmt.ColumnText(1), stmt.ColumnText(2),
				stmt.ColumnText(3), stmt.ColumnInt64(4))
		}
		if err := stmt.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "crrsqlite: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	changesCmd.Flags().Int64Var(&changesSince, "since", 0, "only list changes after this database version")
}
