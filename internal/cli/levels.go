package cli

import (
	"github.com/spf13/cobra"

	"premarket-bias/internal/app"
)

var levelsJSON bool

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Display overnight levels for the briefing instruments",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Levels(cmd.Context(), app.LevelsOptions{JSON: levelsJSON})
	},
}

func init() {
	levelsCmd.Flags().BoolVar(&levelsJSON, "json", false, "Print levels as JSON")
}
