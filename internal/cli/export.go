package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"premarket-bias/internal/app"
)

var (
	exportSymbol    string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export overnight 5-minute bars as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportMaxPoints < 0 {
			return fmt.Errorf("--max-points must not be negative")
		}
		return getApp().Export(cmd.Context(), app.ExportOptions{
			Symbol:    exportSymbol,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSymbol, "symbol", "", "Provider symbol (defaults to market.symbols.es)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum bars to export (0 keeps all)")
}
