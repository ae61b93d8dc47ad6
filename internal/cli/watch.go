package cli

import (
	"github.com/spf13/cobra"

	"premarket-bias/internal/app"
)

var (
	watchRunOnStart  bool
	watchWithContext bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Generate briefings on the configured schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Watch(cmd.Context(), app.WatchOptions{
			RunOnStart:  watchRunOnStart,
			WithContext: watchWithContext,
		})
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchRunOnStart, "run-on-start", false, "Generate one briefing immediately")
	watchCmd.Flags().BoolVar(&watchWithContext, "with-context", false, "Attach the raw context to each delivery")
}
