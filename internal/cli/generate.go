package cli

import (
	"github.com/spf13/cobra"

	"premarket-bias/internal/app"
)

var (
	genLLMKey      string
	genNewsKey     string
	genModel       string
	genShowContext bool
	genJSON        bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the generator once and print the bias summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Generate(cmd.Context(), app.GenerateOptions{
			LLMKey:      genLLMKey,
			NewsKey:     genNewsKey,
			Model:       genModel,
			ShowContext: genShowContext,
			JSON:        genJSON,
		})
	},
}

func init() {
	generateCmd.Flags().StringVar(&genLLMKey, "llm-key", "", "LLM API key for this run (overrides secrets file and environment)")
	generateCmd.Flags().StringVar(&genNewsKey, "news-key", "", "NewsAPI key for this run (optional)")
	generateCmd.Flags().StringVar(&genModel, "model", "", "Model identifier (defaults to llm.model)")
	generateCmd.Flags().BoolVar(&genShowContext, "show-context", false, "Also print the raw context sent to the model")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "Print the full result as JSON")
}
