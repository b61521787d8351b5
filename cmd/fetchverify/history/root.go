package history

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"fetchverify/cmd/fetchverify/common"
	"fetchverify/pkg/driver/journal/sqlite"
)

func GetCommand() *cobra.Command {
	var (
		dbPath string
		runID  string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journal entries recorded by previous runs",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			if dbPath == "" {
				cfg, err := common.LoadConfig(c)
				if err != nil {
					return err
				}
				dbPath = cfg.Journal.SQLite
			}
			if dbPath == "" {
				return fmt.Errorf("no journal database: set journal.sqlite or pass --db")
			}

			store, err := sqlite.Open(c.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Entries(c.Context(), runID, limit)
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(c.OutOrStdout()).Encode(entries)
			}
			for _, e := range entries {
				t := e.Time.Format("2006-01-02 15:04:05")
				fmt.Fprintf(c.OutOrStdout(), "%s\t%s\t%s\t%s\n", t, e.RunID, e.Level, e.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Journal database (defaults to journal.sqlite)")
	cmd.Flags().StringVar(&runID, "run", "", "Only show entries of this run")
	cmd.Flags().IntVar(&limit, "limit", 100, "Limit number of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
