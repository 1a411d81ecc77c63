package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-entities/internal/entitystore"
	"github.com/nerrad567/gray-logic-entities/internal/entitystore/schema"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/logging"
)

const defaultDBPath = "./data/graylogic.db"

func newImportCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Validate and store entity records in the database",
		Long: `Import entity records into the entity store database.

Every record is validated before any is stored; one invalid record aborts
the whole import.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(cmd, args[0])
			if err != nil {
				return err
			}

			db, err := database.Open(database.Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close() //nolint:errcheck // process exits afterwards

			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			log := logging.NewWriter(cmd.ErrOrStderr(), config.LoggingConfig{Level: "warn", Format: "text"}, version)
			store := entitystore.NewStore(entitystore.NewSQLiteRepository(db.DB), schema.Default())
			store.SetLogger(log)
			if err := store.RefreshCache(cmd.Context()); err != nil {
				return err
			}

			created, err := store.Import(cmd.Context(), records)
			if err != nil {
				return err
			}
			return printCreated(cmd.OutOrStdout(), created, jsonOutput(cmd))
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", defaultDBPath, "SQLite database path")
	return cmd
}

func printCreated(w io.Writer, created []*entitystore.Entry, asJSON bool) error {
	if asJSON {
		return printJSON(w, created)
	}
	for _, e := range created {
		fmt.Fprintf(w, "%s\t%s\n", e.UniqueID, e.Platform)
	}
	fmt.Fprintf(w, "imported %d entities\n", len(created))
	return nil
}
