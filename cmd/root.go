package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "autotag",
		Short: "AI keyword tagging for Lightroom catalogs and photo folders",
		Long: `Autotag generates descriptive keywords for photos with a vision LLM and
writes them into a Lightroom Classic catalog, XMP sidecar files, or both.

It analyzes Smart Previews when the catalog has them, so originals on
unmounted drives are no obstacle, and it checkpoints after every photo so a
long run can be interrupted and resumed.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			logLevel := slog.LevelInfo
			if verbose {
				logLevel = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
			slog.SetDefault(logger)
		},
	}

	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")

	// Add subcommands
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newModelsCmd())
	cmd.AddCommand(newProfilesCmd())

	return cmd
}
