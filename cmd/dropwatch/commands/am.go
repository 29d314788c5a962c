package commands

import (
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/dropwatch/am"
	"github.com/teranos/dropwatch/display"
	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/storefront"
	"github.com/teranos/dropwatch/sym"
)

// AmCmd groups configuration commands
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.Am + " Show and initialise configuration",
	Long: sym.Am + ` am - dropwatch configuration ("I am").

Configuration sources, highest precedence first:
  1. Command line flags
  2. Environment variables (DROPWATCH_* prefix)
  3. Project config (nearest ./am.toml walking upward)
  4. User config (~/.dropwatch/am.toml)
  5. Default values`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runAmShow,
}

var amInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter am.toml",
	Long:  "Write a starter configuration to ./am.toml (or path). Existing files are kept unless --force; replaced files are backed up.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAmInit,
}

var amProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Print the storefront selector profile",
	Long:  "Print the effective storefront profile as TOML. Save it, edit the selectors and point profile.path at it to override the built-in profile.",
	Args:  cobra.NoArgs,
	RunE:  runAmProfile,
}

func init() {
	amShowCmd.Flags().String("format", "toml", "Output format: toml, yaml")
	amShowCmd.Flags().Bool("sources", false, "Show where each setting came from")
	amInitCmd.Flags().Bool("force", false, "Overwrite an existing file (a backup is kept)")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amInitCmd)
	AmCmd.AddCommand(amProfileCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	if sources, _ := cmd.Flags().GetBool("sources"); sources {
		settings := am.Introspect()
		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(settings)
		}
		data := pterm.TableData{{"Key", "Value", "Source", "From"}}
		for _, s := range settings {
			data = append(data, []string{s.Key, pterm.Sprint(s.Value), string(s.Source), s.SourcePath})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cfg)
	}
	format, _ := cmd.Flags().GetString("format")
	out, err := am.Render(cfg, format)
	if err != nil {
		return err
	}
	if used := am.ConfigFileUsed(); used != "" {
		pterm.Printf("# loaded from %s\n", used)
	}
	_, err = os.Stdout.Write(out)
	return err
}

func runAmInit(cmd *cobra.Command, args []string) error {
	path := am.ConfigFileName
	if len(args) == 1 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", path)
	}
	force, _ := cmd.Flags().GetBool("force")
	if err := am.WriteStarter(abs, force); err != nil {
		return err
	}
	pterm.Success.Printf("Wrote %s\n", abs)
	return nil
}

func runAmProfile(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	profile, err := storefront.LoadProfile(cfg.Profile.Path)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(profile)
	}
	return profile.Encode(os.Stdout)
}
