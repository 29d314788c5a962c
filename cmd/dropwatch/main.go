package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/dropwatch/am"
	"github.com/teranos/dropwatch/cmd/dropwatch/commands"
	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/logger"
	"github.com/teranos/dropwatch/sym"
)

var rootCmd = &cobra.Command{
	Use:   "dropwatch",
	Short: "dropwatch - time-critical product drop monitor",
	Long: `dropwatch - watch a storefront for a product drop and act the moment it lands.

Available commands:
  snipe   - ` + sym.So + ` Wait for a product page to become buyable, then add it to cart
  watch   - ` + sym.Ix + ` Watch a store listing for new items matching keywords
  clock   - ` + sym.At + ` Check the local clock against network time
  history - ` + sym.DB + ` Show past runs
  am      - ` + sym.Am + ` Show and initialise configuration
  version - Show version information

Placing an order is never automatic unless safety.auto_purchase is set
and confirmed (interactively or with --yes).

Examples:
  dropwatch snipe https://www.lazada.sg/products/foo-i123.html --at "2026-05-01 20:00"
  dropwatch watch https://www.lazada.sg/shop/acme -k "limited" -k "preorder"
  dropwatch watch https://www.lazada.sg/shop/acme --once
  dropwatch history --limit 5`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if cfg, err := am.Load(); err == nil {
			logger.SetTheme(cfg.GetLogTheme())
			jsonLogs = jsonLogs || cfg.Log.JSON
		}
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (-v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON to stderr")
	rootCmd.PersistentFlags().Bool("json", false, "Write machine-readable JSON to stdout")

	rootCmd.AddCommand(commands.SnipeCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.ClockCmd)
	rootCmd.AddCommand(commands.HistoryCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	logger.Cleanup()
	os.Exit(code)
}

func run(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exitErr *commands.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
	}
	return 1
}
