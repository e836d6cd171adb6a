package main

import (
	"fmt"
	"os"

	"github.com/ncruces/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/haldoran/crrlite/internal/crr"
)

var compileCmd = &cobra.Command{
	Use:   "compile <statement>",
	Short: "Compile a CREATE/DROP TABLE or CREATE/DROP INDEX statement into its CRR form",
	Args:  cobra.ExactArgs(1),
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

		if err := crr.Compile(c, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "crrsqlite: %v\n", err)
			os.Exit(1)
		}
	},
}
