package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/ncruces/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/haldoran/crrlite/internal/crr"
)

var siteIDCmd = &cobra.Command{
	Use:   "siteid",
	Short: "Print this database's site id",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		requireDBPath()

		c, err := sqlite3.Open(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "crrsqlite: opening %s: %v\n", dbPath, err)
			os.Exit(1)
		}
		defer c.Close()

		state, err := crr.Bootstrap(c, dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "crrsqlite: %v\n", err)
			os.Exit(1)
		}

		id := state.SiteID()
		fmt.Println(hex.EncodeToString(id[:]))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print this database's current logical version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		requireDBPath()

		c, err := sqlite3.Open(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "crrsqlite: opening %s: %v\n", dbPath, err)
			os.Exit(1)
		}
		defer c.Close()

		state, err := crr.Bootstrap(c, dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "crrsqlite: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(state.Version())
	},
}
