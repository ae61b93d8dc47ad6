package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"premarket-bias/internal/briefing"
	"premarket-bias/internal/fetcher"
	"premarket-bias/internal/service"
)

// Levels prints the five overnight stats without calling the model.
func (a *App) Levels(ctx context.Context, opts LevelsOptions) error {
	prices, closePrices, err := a.newPrices(ctx)
	if err != nil {
		return err
	}
	defer closePrices()

	sym := a.Config.Market.Symbols
	svc := service.New(prices, nil, nil, nil, nil, service.Options{
		Symbols:  service.Symbols{ES: sym.ES, NQ: sym.NQ, VIX: sym.VIX, DXY: sym.DXY, TNX: sym.TNX},
		Location: a.Config.Location(),
	}, a.Logger)

	snap, _ := svc.Snapshot(ctx)
	if opts.JSON {
		enc := json.NewEncoder(a.out())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return writeLevels(a.out(), snap)
}

func writeLevels(w io.Writer, snap briefing.Snapshot) error {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Instrument\tSymbol\tHigh\tLow\tLast\tPrev Close\tChange%")

	rows := []struct {
		label string
		stats fetcher.PriceStats
	}{
		{"ES", snap.ES},
		{"NQ", snap.NQ},
		{"VIX", snap.VIX},
		{"DXY", snap.DXY},
		{"10-yr yield", snap.TNX},
	}
	for _, row := range rows {
		s := row.stats
		if !s.Available {
			m := briefing.MissingMarker
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", row.label, s.Symbol, m, m, m, m, m)
			continue
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.label, s.Symbol,
			s.High.StringFixed(2), s.Low.StringFixed(2), s.Last.StringFixed(2),
			s.PrevClose.StringFixed(2), s.PctChange.StringFixed(2))
	}

	return writer.Flush()
}
