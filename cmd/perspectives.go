package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foldingvectors/prism/internal/registry"
)

var perspectivesCmd = &cobra.Command{
	Use:   "perspectives",
	Short: "List the built-in analytical perspectives",
	Run: func(cmd *cobra.Command, args []string) {
		for _, c := range registry.Categories {
			info, _ := registry.Describe(c)
			fmt.Printf("%s - %s\n", info.Name, info.Description)
			for _, p := range registry.ByCategory(c) {
				fmt.Printf("  %-16s %s (%s)\n", p.ID, p.Name, p.CoreFocus)
			}
			fmt.Println()
		}
		fmt.Printf("Defaults: %v\n", registry.DefaultSelectors)
	},
}

func init() {
	rootCmd.AddCommand(perspectivesCmd)
}
