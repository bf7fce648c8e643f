package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phototools/autotag/internal/profiles"
)

func newProfilesCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List and inspect tagging profiles",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Profiles directory (defaults to the user config dir)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List available profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := profiles.NewStore(dir)
			if err != nil {
				return err
			}
			all, err := store.List()
			if err != nil {
				return err
			}
			for _, p := range all {
				fmt.Printf("%-16s %s\n", p.Name, p.Description)
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one profile's settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := profiles.NewStore(dir)
			if err != nil {
				return err
			}
			p, err := store.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("%s: %s\n", p.Name, p.Description)
			if p.Mode != "" {
				fmt.Printf("  mode: %s\n", p.Mode)
			}
			for _, m := range p.Mappings {
				fmt.Printf("  detect %q -> %s\n", m.Criterion, m.Tag)
			}
			if len(p.AutoTags) > 0 {
				fmt.Printf("  auto tags: %v\n", p.AutoTags)
			}
			if p.Language != "" {
				fmt.Printf("  language: %s\n", p.Language)
			}
			if p.MaxTags > 0 {
				fmt.Printf("  max tags: %d\n", p.MaxTags)
			}
			return nil
		},
	}

	cmd.AddCommand(list)
	cmd.AddCommand(show)
	return cmd
}
