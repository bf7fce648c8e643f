package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phototools/autotag/internal/checkpoint"
	"github.com/phototools/autotag/internal/config"
)

func newStatusCmd() *cobra.Command {
	statePath := config.Default().CheckpointPath

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the paused session, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeStatus(statePath)
		},
	}

	cmd.Flags().StringVar(&statePath, "state", statePath, "Session checkpoint file")
	return cmd
}

func executeStatus(statePath string) error {
	ckpt := checkpoint.NewManager(statePath)
	state, err := ckpt.Load()
	if errors.Is(err, checkpoint.ErrNoState) {
		fmt.Printf("No paused session at %s\n", ckpt.Path())
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Paused session at %s\n", ckpt.Path())
	fmt.Printf("  saved:       %s\n", state.SavedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  progress:    %d of %d photos\n", state.Cursor, state.Total)
	fmt.Printf("  source:      %s\n", describeSource(state.Config))
	fmt.Printf("  provider:    %s (%s)\n", state.Config.Provider, state.Config.Model)
	fmt.Printf("  mode:        %s\n", state.Config.Mode)
	fmt.Printf("  analyzed:    %d\n", state.Counters.Analyzed)
	fmt.Printf("  tagged:      %d\n", state.Counters.Tagged)
	fmt.Printf("  failed:      %d\n", state.Counters.Failed)
	fmt.Printf("\nResume with: autotag run --resume --state %s\n", ckpt.Path())
	return nil
}

func describeSource(cfg config.Session) string {
	if cfg.SourceMode == config.SourceCatalog {
		return "catalog " + cfg.CatalogPath
	}
	return "folder " + cfg.FolderPath
}
