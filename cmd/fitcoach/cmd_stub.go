package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexcodex/fitcoach/persistence"
	"github.com/lexcodex/fitcoach/server"
)

func newStubCmd() *cobra.Command {
	var addr string
	var dbPath string
	var holdPolls int
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve the stub record service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.Stub.Addr
			}
			if dbPath == "" {
				dbPath = cfg.Stub.DBPath
			}
			if !cmd.Flags().Changed("hold-polls") {
				holdPolls = cfg.Stub.HoldPolls
			}

			var store persistence.Store
			if dbPath != "" {
				sqlStore, err := persistence.NewSQLiteStore(dbPath)
				if err != nil {
					return err
				}
				store = sqlStore
			} else {
				store = persistence.NewMemoryStore()
			}
			defer store.Close()

			stub := server.NewStubServer(store)
			stub.HoldPolls = holdPolls
			stub.Token = cfg.Backend.Token
			stub.Logger = log.New(os.Stderr, "stub ", log.LstdFlags)

			fmt.Fprintf(cmd.OutOrStdout(), "stub record service listening on %s\n", addr)
			return stub.ServeContext(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to stub.addr from config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (in-memory store when empty)")
	cmd.Flags().IntVar(&holdPolls, "hold-polls", 0, "Pending replies before a draft commits (defaults to stub.hold_polls)")
	return cmd
}
