package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/dropwatch/am"
	"github.com/teranos/dropwatch/db"
	"github.com/teranos/dropwatch/display"
	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/logger"
	"github.com/teranos/dropwatch/pipeline"
	"github.com/teranos/dropwatch/sym"
)

// HistoryCmd lists past runs
var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: sym.DB + " Show past runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	HistoryCmd.Flags().IntP("limit", "n", pipeline.DefaultHistoryLimit, "Number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	database, err := db.OpenWithMigrations(cfg.GetDatabasePath(), logger.ComponentLogger("db"))
	if err != nil {
		return errors.Wrap(err, "failed to open run history")
	}
	defer database.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := pipeline.NewHistory(database).List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(runs)
	}
	return display.RenderHistory(os.Stdout, runs)
}
