package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phototools/autotag/internal/catalog"
	"github.com/phototools/autotag/internal/export"
)

func newExportCmd() *cobra.Command {
	var catalogPath, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog's photo/keyword report",
		Long: `Export every catalog photo with its keyword list to a file.

The output format follows the file extension: .csv, .json or .parquet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeExport(cmd, catalogPath, outPath)
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Path to the Lightroom catalog (.lrcat)")
	cmd.Flags().StringVar(&outPath, "output", "keywords.csv", "Output file (.csv, .json or .parquet)")
	_ = cmd.MarkFlagRequired("catalog")
	return cmd
}

func executeExport(cmd *cobra.Command, catalogPath, outPath string) error {
	store, err := catalog.Open(catalogPath)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.KeywordReport(cmd.Context())
	if err != nil {
		return err
	}
	if err := export.Write(rows, outPath); err != nil {
		return err
	}

	fmt.Printf("Exported %d photos to %s\n", len(rows), outPath)
	return nil
}
