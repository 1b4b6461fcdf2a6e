package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muimaps/muitiles/internal/pipeline"
)

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "List the built-in tile styles",
	Run: func(cmd *cobra.Command, args []string) {
		for _, s := range pipeline.Styles() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-12s %s\n", s.Name, s.Folder, s.Template)
		}
	},
}

func init() {
	rootCmd.AddCommand(stylesCmd)
}
