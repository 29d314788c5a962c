package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/dropwatch/display"
	"github.com/teranos/dropwatch/version"
)

// VersionCmd prints build information
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(info)
		}
		pterm.Println(info.String())
		pterm.Printf("Platform: %s\n", info.Platform)
		pterm.Printf("Go: %s\n", info.GoVersion)
		return nil
	},
}
