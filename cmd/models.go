package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phototools/autotag/internal/tagging"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available on the Ollama server",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := tagging.NewOllama().ListModels(cmd.Context())
			if err != nil {
				return err
			}
			if len(models) == 0 {
				fmt.Println("No models installed; pull a vision model first (e.g. 'ollama pull qwen2-vl')")
				return nil
			}
			for _, m := range models {
				fmt.Println(m)
			}
			return nil
		},
	}
}
