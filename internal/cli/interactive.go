package cli

import (
	"io"

	"github.com/buemura/rook/internal/tui"
	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Launch interactive TUI mode",
	Long:  "Start an interactive terminal UI for choosing a speed, entering targets and browsing results.",
	RunE:  runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	// Log lines would corrupt the alternate screen.
	if appConfig.Log.Output != "file" {
		appLog.SetOutput(io.Discard)
	}

	a, err := buildApp(appConfig, appLog)
	if err != nil {
		return err
	}
	defer a.Close()

	return tui.Run(a.orch, a.defaults)
}
