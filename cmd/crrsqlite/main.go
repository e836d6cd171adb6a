// Command crrsqlite drives a SQLite database compiled with the crr
// extension from the shell: compile tables into conflict-free replicated
// relations, inspect their clocks, and pull the changes feed a peer would
// replay.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/ncruces/go-sqlite3/embed"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "crrsqlite",
	Short: "Inspect and drive a SQLite database's conflict-free replicated relations",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite database file (required)")
	rootCmd.AddCommand(compileCmd, changesCmd, siteIDCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func requireDBPath() {
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "crrsqlite: --db is required")
		os.Exit(1)
	}
}
