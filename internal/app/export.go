package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"premarket-bias/internal/fetcher"
	"premarket-bias/internal/marketdata"
)

// Export renders a symbol's overnight 5-minute bars as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errNoOutput
	}
	if opts.Symbol == "" {
		opts.Symbol = a.Config.Market.Symbols.ES
	}

	loc := a.Config.Location()
	from, to := fetcher.OvernightWindow(time.Now(), loc)

	bars, err := a.newProvider().Bars(ctx, opts.Symbol, from, to, marketdata.Interval5m)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		a.Logger.Info().Str("symbol", opts.Symbol).Msg("no bars found for the overnight window")
		return nil
	}

	downsampled := downsampleBars(bars, opts.MaxPoints)
	a.Logger.Info().Str("symbol", opts.Symbol).Int("total", len(bars)).Int("exported", len(downsampled)).Msg("exporting overnight bars")

	if opts.CSVPath != "" {
		if err := writeBarsCSV(opts.CSVPath, downsampled, loc); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeBarsPNG(opts.PNGPath, opts.Symbol, downsampled, a.Config.Export.Width, a.Config.Export.Height); err != nil {
			return err
		}
	}

	return nil
}

func downsampleBars(bars []marketdata.Bar, max int) []marketdata.Bar {
	if max <= 1 || len(bars) <= max {
		return bars
	}

	result := make([]marketdata.Bar, 0, max)
	step := float64(len(bars)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(bars) {
			idx = len(bars) - 1
		}
		result = append(result, bars[idx])
	}
	return result
}

func writeBarsCSV(path string, bars []marketdata.Bar, loc *time.Location) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"time", "open", "high", "low", "close"}); err != nil {
		return err
	}

	for _, bar := range bars {
		record := []string{
			bar.Time.In(loc).Format(time.RFC3339),
			formatPrice(bar.Open),
			formatPrice(bar.High),
			formatPrice(bar.Low),
			formatPrice(bar.Close),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeBarsPNG(path, symbol string, bars []marketdata.Bar, width, height int) error {
	if len(bars) < 2 {
		return errors.New("need at least two bars to draw a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(bars))
	closes := make([]float64, len(bars))
	high := make([]float64, len(bars))
	low := make([]float64, len(bars))

	hi, lo := bars[0].High, bars[0].Low
	for _, bar := range bars {
		hi = math.Max(hi, bar.High)
		lo = math.Min(lo, bar.Low)
	}
	for i, bar := range bars {
		x[i] = bar.Time
		closes[i] = bar.Close
		high[i] = hi
		low[i] = lo
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  symbol + " overnight",
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeMinuteValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Close",
				XValues: x,
				YValues: closes,
			},
			chart.TimeSeries{
				Name:    "Overnight high",
				XValues: x,
				YValues: high,
				Style:   chart.Style{StrokeDashArray: []float64{5, 5}},
			},
			chart.TimeSeries{
				Name:    "Overnight low",
				XValues: x,
				YValues: low,
				Style:   chart.Style{StrokeDashArray: []float64{5, 5}},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
