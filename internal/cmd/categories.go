package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dativo-io/veil/internal/entity"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the PII categories and their placeholder tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "categories")
		defer span.End()

		for _, c := range entity.All() {
			fmt.Printf("%-18s %s\n", c, c.Placeholder())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}
